//go:build cgo && mosquitto

package bindings

/*
#cgo LDFLAGS: -lmosquitto
#cgo darwin CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo darwin LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib
#include <stdlib.h>
#include <string.h>
#include <stdbool.h>
#include <mosquitto.h>
#include "trampoline.h"
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/native"
)

// route holds the Go callbacks installed for one handle. The C trampolines
// only know the struct mosquitto pointer, so they look the route up by handle.
type route struct {
	mu         sync.RWMutex
	message    native.MessageCallback
	connect    native.StatusCallback
	disconnect native.StatusCallback
}

// routes maps native.Handle to *route.
var routes sync.Map

func routeFor(h native.Handle) *route {
	r, _ := routes.LoadOrStore(h, &route{})
	return r.(*route)
}

func lookupRoute(h native.Handle) (*route, bool) {
	r, ok := routes.Load(h)
	if !ok {
		return nil, false
	}
	return r.(*route), true
}

// User data crosses the C boundary as uintptr_t. It is a registry token, not
// a Go pointer, so it never passes through unsafe.Pointer.

//export mosqgoOnMessage
func mosqgoOnMessage(m *C.struct_mosquitto, obj C.uintptr_t, msg *C.struct_mosquitto_message) {
	var view native.MessageView
	if msg != nil {
		view = messageView{msg: msg}
	}
	dispatchMessage(native.Handle(unsafe.Pointer(m)), uintptr(obj), view)
}

//export mosqgoOnConnect
func mosqgoOnConnect(m *C.struct_mosquitto, obj C.uintptr_t, rc C.int) {
	dispatchConnect(native.Handle(unsafe.Pointer(m)), uintptr(obj), int(rc))
}

//export mosqgoOnDisconnect
func mosqgoOnDisconnect(m *C.struct_mosquitto, obj C.uintptr_t, rc C.int) {
	dispatchDisconnect(native.Handle(unsafe.Pointer(m)), uintptr(obj), int(rc))
}

func dispatchMessage(h native.Handle, userData uintptr, msg native.MessageView) {
	r, ok := lookupRoute(h)
	if !ok {
		return
	}
	r.mu.RLock()
	cb := r.message
	r.mu.RUnlock()
	if cb != nil {
		cb(userData, msg)
	}
}

func dispatchConnect(h native.Handle, userData uintptr, rc int) {
	r, ok := lookupRoute(h)
	if !ok {
		return
	}
	r.mu.RLock()
	cb := r.connect
	r.mu.RUnlock()
	if cb != nil {
		cb(userData, rc)
	}
}

func dispatchDisconnect(h native.Handle, userData uintptr, rc int) {
	r, ok := lookupRoute(h)
	if !ok {
		return
	}
	r.mu.RLock()
	cb := r.disconnect
	r.mu.RUnlock()
	if cb != nil {
		cb(userData, rc)
	}
}

// messageView reads straight from the native struct. Payload aliases
// native memory and must be copied before the callback returns.
type messageView struct {
	msg *C.struct_mosquitto_message
}

func (v messageView) Mid() int { return int(v.msg.mid) }

func (v messageView) Topic() string {
	if v.msg.topic == nil {
		return ""
	}
	return C.GoString(v.msg.topic)
}

func (v messageView) Payload() []byte {
	if v.msg.payload == nil || v.msg.payloadlen <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(v.msg.payload), int(v.msg.payloadlen))
}

func (v messageView) QoS() int { return int(v.msg.qos) }

func (v messageView) Retain() bool { return bool(v.msg.retain) }

type library struct{}

var defaultLibrary = &library{}

// Default returns the libmosquitto-backed native.Library.
func Default() (native.Library, error) {
	return defaultLibrary, nil
}

func mosq(h native.Handle) *C.struct_mosquitto {
	return (*C.struct_mosquitto)(unsafe.Pointer(h))
}

// cstring returns nil for the empty string so optional arguments reach the
// library as NULL.
func cstring(s string) *C.char {
	if s == "" {
		return nil
	}
	return C.CString(s)
}

func free(p *C.char) {
	if p != nil {
		C.free(unsafe.Pointer(p))
	}
}

// freeSecret wipes a C copy of a secret before releasing it.
func freeSecret(p *C.char) {
	if p == nil {
		return
	}
	C.memset(unsafe.Pointer(p), 0, C.strlen(p))
	C.free(unsafe.Pointer(p))
}

func (*library) LibInit() int    { return int(C.mosquitto_lib_init()) }
func (*library) LibCleanup() int { return int(C.mosquitto_lib_cleanup()) }

func (*library) LibVersion() (int, int, int) {
	var major, minor, revision C.int
	C.mosquitto_lib_version(&major, &minor, &revision)
	return int(major), int(minor), int(revision)
}

func (*library) New(id string, cleanSession bool) native.Handle {
	cID := cstring(id)
	defer free(cID)
	m := C.mosquitto_new(cID, C.bool(cleanSession), nil)
	if m == nil {
		return 0
	}
	return native.Handle(unsafe.Pointer(m))
}

func (*library) Destroy(h native.Handle) {
	if h == 0 {
		return
	}
	routes.Delete(h)
	C.mosquitto_destroy(mosq(h))
}

func (*library) UserDataSet(h native.Handle, userData uintptr) {
	C.mosqgo_user_data_set(mosq(h), C.uintptr_t(userData))
}

func (*library) MessageCallbackSet(h native.Handle, cb native.MessageCallback) {
	r := routeFor(h)
	r.mu.Lock()
	r.message = cb
	r.mu.Unlock()
	C.mosqgo_set_message_callback(mosq(h))
}

func (*library) ConnectCallbackSet(h native.Handle, cb native.StatusCallback) {
	r := routeFor(h)
	r.mu.Lock()
	r.connect = cb
	r.mu.Unlock()
	C.mosqgo_set_connect_callback(mosq(h))
}

func (*library) DisconnectCallbackSet(h native.Handle, cb native.StatusCallback) {
	r := routeFor(h)
	r.mu.Lock()
	r.disconnect = cb
	r.mu.Unlock()
	C.mosqgo_set_disconnect_callback(mosq(h))
}

func (*library) UsernamePwSet(h native.Handle, username, password string) int {
	cUser := cstring(username)
	defer free(cUser)
	cPass := cstring(password)
	defer freeSecret(cPass)
	return int(C.mosquitto_username_pw_set(mosq(h), cUser, cPass))
}

func (*library) TLSSet(h native.Handle, caFile, caPath, certFile, keyFile string) int {
	cCAFile := cstring(caFile)
	defer free(cCAFile)
	cCAPath := cstring(caPath)
	defer free(cCAPath)
	cCert := cstring(certFile)
	defer free(cCert)
	cKey := cstring(keyFile)
	defer free(cKey)
	return int(C.mosquitto_tls_set(mosq(h), cCAFile, cCAPath, cCert, cKey, nil))
}

func (*library) Connect(h native.Handle, host string, port, keepAlive int) int {
	cHost := C.CString(host)
	defer C.free(unsafe.Pointer(cHost))
	return int(C.mosquitto_connect(mosq(h), cHost, C.int(port), C.int(keepAlive)))
}

func (*library) Disconnect(h native.Handle) int {
	return int(C.mosquitto_disconnect(mosq(h)))
}

func (*library) Reconnect(h native.Handle) int {
	return int(C.mosquitto_reconnect(mosq(h)))
}

func (*library) Publish(h native.Handle, topic string, payload []byte, qos int, retain bool) (int, int) {
	cTopic := C.CString(topic)
	defer C.free(unsafe.Pointer(cTopic))
	var p unsafe.Pointer
	if len(payload) > 0 {
		p = unsafe.Pointer(&payload[0])
	}
	var mid C.int
	rc := C.mosquitto_publish(mosq(h), &mid, cTopic, C.int(len(payload)), p, C.int(qos), C.bool(retain))
	return int(mid), int(rc)
}

func (*library) Subscribe(h native.Handle, pattern string, qos int) (int, int) {
	cPattern := C.CString(pattern)
	defer C.free(unsafe.Pointer(cPattern))
	var mid C.int
	rc := C.mosquitto_subscribe(mosq(h), &mid, cPattern, C.int(qos))
	return int(mid), int(rc)
}

func (*library) Unsubscribe(h native.Handle, pattern string) (int, int) {
	cPattern := C.CString(pattern)
	defer C.free(unsafe.Pointer(cPattern))
	var mid C.int
	rc := C.mosquitto_unsubscribe(mosq(h), &mid, cPattern)
	return int(mid), int(rc)
}

func (*library) Loop(h native.Handle, timeoutMillis, maxPackets int) int {
	return int(C.mosquitto_loop(mosq(h), C.int(timeoutMillis), C.int(maxPackets)))
}

func (*library) LoopStart(h native.Handle) int {
	return int(C.mosquitto_loop_start(mosq(h)))
}

func (*library) LoopStop(h native.Handle, force bool) int {
	return int(C.mosquitto_loop_stop(mosq(h), C.bool(force)))
}

func (*library) LoopWrite(h native.Handle, maxPackets int) int {
	return int(C.mosquitto_loop_write(mosq(h), C.int(maxPackets)))
}

func (*library) LoopMisc(h native.Handle) int {
	return int(C.mosquitto_loop_misc(mosq(h)))
}

func (*library) WantWrite(h native.Handle) bool {
	return bool(C.mosquitto_want_write(mosq(h)))
}

func (*library) Socket(h native.Handle) int {
	return int(C.mosquitto_socket(mosq(h)))
}
