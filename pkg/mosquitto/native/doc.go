// Package native describes the slice of libmosquitto that the mosquitto
// package drives: one-time library setup, handle allocation, callback slots,
// a user-data slot and the connection primitives.
//
// The cgo implementation lives in internal/bindings. Tests and alternative
// runtimes can supply their own Library, see the mockmosq package.
package native
