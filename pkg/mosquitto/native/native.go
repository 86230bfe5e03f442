package native

// Handle is an opaque reference to one native client instance. The zero
// Handle means allocation failed.
type Handle uintptr

// MessageView exposes a message delivered by the native layer. It is only
// valid for the duration of the callback that received it; Payload in
// particular may alias memory the native layer frees afterwards.
type MessageView interface {
	Mid() int
	Topic() string
	Payload() []byte
	QoS() int
	Retain() bool
}

// MessageCallback is the fixed signature installed into a handle's message
// slot. userData is whatever was last passed to UserDataSet for the handle.
// msg may be nil.
type MessageCallback func(userData uintptr, msg MessageView)

// StatusCallback is the fixed signature for connect and disconnect slots.
type StatusCallback func(userData uintptr, rc int)

// Library is the native client library. Every int-returning method reports a
// status code where Success (0) means the call succeeded, except Socket which
// returns a descriptor or a negative value.
//
// Implementations must be comparable; the mosquitto package keys its
// one-time initialisation state by Library value.
type Library interface {
	LibInit() int
	LibCleanup() int
	LibVersion() (major, minor, revision int)

	New(id string, cleanSession bool) Handle
	Destroy(h Handle)

	UserDataSet(h Handle, userData uintptr)
	MessageCallbackSet(h Handle, cb MessageCallback)
	ConnectCallbackSet(h Handle, cb StatusCallback)
	DisconnectCallbackSet(h Handle, cb StatusCallback)

	UsernamePwSet(h Handle, username, password string) int
	TLSSet(h Handle, caFile, caPath, certFile, keyFile string) int

	Connect(h Handle, host string, port, keepAlive int) int
	Disconnect(h Handle) int
	Reconnect(h Handle) int
	Publish(h Handle, topic string, payload []byte, qos int, retain bool) (mid int, rc int)
	Subscribe(h Handle, pattern string, qos int) (mid int, rc int)
	Unsubscribe(h Handle, pattern string) (mid int, rc int)

	Loop(h Handle, timeoutMillis, maxPackets int) int
	LoopStart(h Handle) int
	LoopStop(h Handle, force bool) int
	LoopWrite(h Handle, maxPackets int) int
	LoopMisc(h Handle) int
	WantWrite(h Handle) bool
	Socket(h Handle) int
}
