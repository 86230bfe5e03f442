package mockmosq

import (
	"bytes"
	"sync"

	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/native"
)

// Names recorded by Calls and accepted by SetStatus.
const (
	OpLibInit               = "lib_init"
	OpLibCleanup            = "lib_cleanup"
	OpLibVersion            = "lib_version"
	OpNew                   = "new"
	OpDestroy               = "destroy"
	OpUserDataSet           = "user_data_set"
	OpMessageCallbackSet    = "message_callback_set"
	OpConnectCallbackSet    = "connect_callback_set"
	OpDisconnectCallbackSet = "disconnect_callback_set"
	OpUsernamePwSet         = "username_pw_set"
	OpTLSSet                = "tls_set"
	OpConnect               = "connect"
	OpDisconnect            = "disconnect"
	OpReconnect             = "reconnect"
	OpPublish               = "publish"
	OpSubscribe             = "subscribe"
	OpUnsubscribe           = "unsubscribe"
	OpLoop                  = "loop"
	OpLoopStart             = "loop_start"
	OpLoopStop              = "loop_stop"
	OpLoopWrite             = "loop_write"
	OpLoopMisc              = "loop_misc"
	OpWantWrite             = "want_write"
	OpSocket                = "socket"
)

// Msg is a message as the native layer would deliver it. Payload is handed
// to the callback without copying, like the real library's buffer.
type Msg struct {
	Mid     int
	Topic   string
	Payload []byte
	QoS     int
	Retain  bool
}

type view struct{ m *Msg }

func (v view) Mid() int        { return v.m.Mid }
func (v view) Topic() string   { return v.m.Topic }
func (v view) Payload() []byte { return v.m.Payload }
func (v view) QoS() int        { return v.m.QoS }
func (v view) Retain() bool    { return v.m.Retain }

// Publication is one recorded Publish call.
type Publication struct {
	Topic   string
	Payload []byte
	QoS     int
	Retain  bool
}

// Subscription is one recorded Subscribe call.
type Subscription struct {
	Pattern string
	QoS     int
}

// Client is the state the mock keeps for one handle.
type Client struct {
	ID           string
	CleanSession bool
	UserData     uintptr
	Attaches     int
	Destroyed    bool
	Looping      bool

	Host      string
	Port      int
	KeepAlive int

	Username string
	Password string
	TLS      [4]string

	Published     []Publication
	Subscriptions []Subscription
	Unsubscribed  []string

	message    native.MessageCallback
	connect    native.StatusCallback
	disconnect native.StatusCallback
}

// Library is a native.Library that runs entirely in memory. The zero value
// is not usable; call New.
type Library struct {
	mu        sync.Mutex
	version   [3]int
	status    map[string]int
	failNew   bool
	socket    int
	wantWrite bool
	next      native.Handle
	calls     []string
	clients   map[native.Handle]*Client
	mid       int
}

// New returns a mock reporting libmosquitto 2.0.18 whose calls all succeed.
func New() *Library {
	return &Library{
		version: [3]int{2, 0, 18},
		status:  make(map[string]int),
		socket:  3,
		next:    0x1000,
		clients: make(map[native.Handle]*Client),
	}
}

// SetVersion sets the version triple reported by LibVersion.
func (l *Library) SetVersion(major, minor, revision int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.version = [3]int{major, minor, revision}
}

// SetStatus makes every later call of op return rc.
func (l *Library) SetStatus(op string, rc int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status[op] = rc
}

// FailNew makes New return the zero handle.
func (l *Library) FailNew() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNew = true
}

// SetSocket sets the value returned by Socket.
func (l *Library) SetSocket(fd int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.socket = fd
}

// SetWantWrite sets the value returned by WantWrite.
func (l *Library) SetWantWrite(want bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wantWrite = want
}

// Calls returns the names of all native calls made so far, in order.
func (l *Library) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// Count returns how many times op was called.
func (l *Library) Count(op string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == op {
			n++
		}
	}
	return n
}

// Handles returns every handle allocated so far, destroyed or not.
func (l *Library) Handles() []native.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]native.Handle, 0, len(l.clients))
	for h := range l.clients {
		out = append(out, h)
	}
	return out
}

// Lookup returns a snapshot of the state recorded for the handle allocated
// for id.
func (l *Library) Lookup(id string) (native.Handle, Client, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for h, c := range l.clients {
		if c.ID == id {
			return h, c.snapshot(), true
		}
	}
	return 0, Client{}, false
}

// State returns a snapshot of the state recorded for h.
func (l *Library) State(h native.Handle) (Client, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.clients[h]
	if !ok {
		return Client{}, false
	}
	return c.snapshot(), true
}

func (c *Client) snapshot() Client {
	out := *c
	out.Published = append([]Publication(nil), c.Published...)
	out.Subscriptions = append([]Subscription(nil), c.Subscriptions...)
	out.Unsubscribed = append([]string(nil), c.Unsubscribed...)
	return out
}

// DeliverMessage invokes h's message callback with h's user data, as the
// native network thread would. It reports whether a callback was installed.
// Delivery still happens after Destroy, which is how tests simulate a
// late callback.
func (l *Library) DeliverMessage(h native.Handle, m Msg) bool {
	cb, userData, ok := l.messageCallback(h)
	if !ok {
		return false
	}
	cb(userData, view{m: &m})
	return true
}

// DeliverNil invokes h's message callback with a nil message.
func (l *Library) DeliverNil(h native.Handle) bool {
	cb, userData, ok := l.messageCallback(h)
	if !ok {
		return false
	}
	cb(userData, nil)
	return true
}

// DeliverWithUserData invokes h's message callback with arbitrary user data,
// simulating a repurposed or corrupted user-data slot.
func (l *Library) DeliverWithUserData(h native.Handle, userData uintptr, m Msg) bool {
	cb, _, ok := l.messageCallback(h)
	if !ok {
		return false
	}
	cb(userData, view{m: &m})
	return true
}

// FireConnect invokes h's connect callback with rc.
func (l *Library) FireConnect(h native.Handle, rc int) bool {
	l.mu.Lock()
	c, ok := l.clients[h]
	if !ok || c.connect == nil {
		l.mu.Unlock()
		return false
	}
	cb, userData := c.connect, c.UserData
	l.mu.Unlock()
	cb(userData, rc)
	return true
}

// FireDisconnect invokes h's disconnect callback with rc.
func (l *Library) FireDisconnect(h native.Handle, rc int) bool {
	l.mu.Lock()
	c, ok := l.clients[h]
	if !ok || c.disconnect == nil {
		l.mu.Unlock()
		return false
	}
	cb, userData := c.disconnect, c.UserData
	l.mu.Unlock()
	cb(userData, rc)
	return true
}

func (l *Library) messageCallback(h native.Handle) (native.MessageCallback, uintptr, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.clients[h]
	if !ok || c.message == nil {
		return nil, 0, false
	}
	return c.message, c.UserData, true
}

// record appends op to the call log and returns its configured status. It
// must be called with l.mu held.
func (l *Library) record(op string) int {
	l.calls = append(l.calls, op)
	return l.status[op]
}

func (l *Library) client(h native.Handle) *Client {
	c, ok := l.clients[h]
	if !ok {
		c = &Client{}
	}
	return c
}

func (l *Library) LibInit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record(OpLibInit)
}

func (l *Library) LibCleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record(OpLibCleanup)
}

func (l *Library) LibVersion() (int, int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpLibVersion)
	return l.version[0], l.version[1], l.version[2]
}

func (l *Library) New(id string, cleanSession bool) native.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpNew)
	if l.failNew {
		return 0
	}
	h := l.next
	l.next += 0x10
	l.clients[h] = &Client{ID: id, CleanSession: cleanSession}
	return h
}

func (l *Library) Destroy(h native.Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpDestroy)
	l.client(h).Destroyed = true
}

func (l *Library) UserDataSet(h native.Handle, userData uintptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpUserDataSet)
	c := l.client(h)
	c.UserData = userData
	c.Attaches++
}

func (l *Library) MessageCallbackSet(h native.Handle, cb native.MessageCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpMessageCallbackSet)
	l.client(h).message = cb
}

func (l *Library) ConnectCallbackSet(h native.Handle, cb native.StatusCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpConnectCallbackSet)
	l.client(h).connect = cb
}

func (l *Library) DisconnectCallbackSet(h native.Handle, cb native.StatusCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpDisconnectCallbackSet)
	l.client(h).disconnect = cb
}

func (l *Library) UsernamePwSet(h native.Handle, username, password string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	rc := l.record(OpUsernamePwSet)
	if rc == native.Success {
		c := l.client(h)
		c.Username, c.Password = username, password
	}
	return rc
}

func (l *Library) TLSSet(h native.Handle, caFile, caPath, certFile, keyFile string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	rc := l.record(OpTLSSet)
	if rc == native.Success {
		l.client(h).TLS = [4]string{caFile, caPath, certFile, keyFile}
	}
	return rc
}

func (l *Library) Connect(h native.Handle, host string, port, keepAlive int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	rc := l.record(OpConnect)
	c := l.client(h)
	c.Host, c.Port, c.KeepAlive = host, port, keepAlive
	return rc
}

func (l *Library) Disconnect(native.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record(OpDisconnect)
}

func (l *Library) Reconnect(native.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record(OpReconnect)
}

func (l *Library) Publish(h native.Handle, topic string, payload []byte, qos int, retain bool) (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rc := l.record(OpPublish)
	if rc != native.Success {
		return 0, rc
	}
	l.mid++
	c := l.client(h)
	c.Published = append(c.Published, Publication{Topic: topic, Payload: bytes.Clone(payload), QoS: qos, Retain: retain})
	return l.mid, rc
}

func (l *Library) Subscribe(h native.Handle, pattern string, qos int) (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rc := l.record(OpSubscribe)
	if rc != native.Success {
		return 0, rc
	}
	l.mid++
	c := l.client(h)
	c.Subscriptions = append(c.Subscriptions, Subscription{Pattern: pattern, QoS: qos})
	return l.mid, rc
}

func (l *Library) Unsubscribe(h native.Handle, pattern string) (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rc := l.record(OpUnsubscribe)
	if rc != native.Success {
		return 0, rc
	}
	l.mid++
	c := l.client(h)
	c.Unsubscribed = append(c.Unsubscribed, pattern)
	return l.mid, rc
}

func (l *Library) Loop(native.Handle, int, int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record(OpLoop)
}

func (l *Library) LoopStart(h native.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	rc := l.record(OpLoopStart)
	if rc == native.Success {
		l.client(h).Looping = true
	}
	return rc
}

func (l *Library) LoopStop(h native.Handle, _ bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	rc := l.record(OpLoopStop)
	if rc == native.Success {
		l.client(h).Looping = false
	}
	return rc
}

func (l *Library) LoopWrite(native.Handle, int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record(OpLoopWrite)
}

func (l *Library) LoopMisc(native.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record(OpLoopMisc)
}

func (l *Library) WantWrite(native.Handle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpWantWrite)
	return l.wantWrite
}

func (l *Library) Socket(native.Handle) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(OpSocket)
	return l.socket
}

var _ native.Library = (*Library)(nil)
