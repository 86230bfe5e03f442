// Package internalcheck holds repository policy tests.
//
// The tests load the module's own packages with golang.org/x/tools/go/packages
// and inspect their syntax. They guard rules the compiler cannot: cgo stays
// confined to internal/bindings, and secrets never reach a logger.
//
// # Internal Use Only
//
// This package has no API. Applications should use pkg/mosquitto.
package internalcheck
