// Package mockmosq provides an in-memory native.Library for tests.
//
// It records every native call in order, remembers what each handle was
// configured with, and lets tests play the role of the native network thread
// by firing message, connect and disconnect events at a handle. Status codes
// returned by individual calls are configurable, so error paths can be
// exercised without a broker.
//
//	lib := mockmosq.New()
//	lib.SetStatus(mockmosq.OpPublish, native.ErrNoConn)
//	c, _ := mosquitto.Open("c1", mosquitto.WithLibrary(lib))
package mockmosq
