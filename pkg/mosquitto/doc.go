// Package mosquitto is a Go client for MQTT brokers built on the native
// libmosquitto library.
//
// A Client owns one native handle. Handlers registered on it are reached
// through a callback bridge: the native library keeps only an opaque token in
// its user-data slot, and each callback resolves that token and checks the
// bridge's identity before invoking any Go code. Callbacks that arrive for a
// destroyed or unknown bridge are logged and dropped.
//
//	c, err := mosquitto.Open("sensor-1")
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	_ = c.SetMessageHandler(func(m mosquitto.Message) {
//		fmt.Println(m.Topic(), m.PayloadString())
//	})
//	if err := c.Connect(ctx, "localhost", 1883, 60*time.Second); err != nil {
//		return err
//	}
//	if err := c.Subscribe(ctx, "sensors/#"); err != nil {
//		return err
//	}
//	return c.LoopStart()
//
// # Concurrency
//
// Register every handler before LoopStart. After LoopStart the native
// library calls handlers from its own network thread, concurrently with the
// owner's calls to Publish, Subscribe and the rest; the handler slots are not
// locked and cannot be changed while the loop runs.
//
// Handlers may publish or subscribe through the client (for example Subscribe
// from the connect handler). They must not register handlers, stop the loop
// or Close the client.
//
// # Library lifetime
//
// The native library is initialised once per process on the first Open and
// cleaned up by Close. Cleanup is process-wide, so a program that opens
// several clients must close them together.
//
// # Building
//
// The libmosquitto bindings are compiled with cgo and the "mosquitto" build
// tag. Without them Open returns ErrNotBuilt unless a native.Library is
// supplied with WithLibrary.
package mosquitto
