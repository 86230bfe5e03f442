// Package bindings hosts the thin cgo layer that links the mosquitto package
// to libmosquitto. The real implementation lives behind the "mosquitto" build
// tag so the rest of the repository compiles and tests without the C library.
//
// Build with:
//
//	go build -tags mosquitto ./...
//
// # Design Principles
//
// 1. Isolation: this is the only package that imports "C".
//
// 2. Minimal Surface: only the calls listed by native.Library are wrapped.
//
// 3. Status Codes: every native status is returned untouched; translation into
//    Go errors happens one layer up where the operation name is known.
//
// 4. Callbacks: one C trampoline per event kind is installed per handle. The
//    trampoline routes to the Go callback registered for that handle and passes
//    the handle's user data through unchanged.
package bindings
