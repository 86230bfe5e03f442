package mosquitto

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/logging"
	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/native"
)

// identityTag marks a live bridge. Zeroed memory and a destroyed bridge both
// fail the comparison.
const identityTag uint32 = 0xCA11BACC

const (
	eventMessage    = "message"
	eventConnect    = "connect"
	eventDisconnect = "disconnect"
)

// Anomalies for user data that resolves to no bridge have no client logger
// to report to.
var (
	fallbackLog       = logging.New(nil)
	fallbackTelemetry = sync.OnceValue(func() *telemetry { return newTelemetry(nil, nil) })
)

// callbacks bridges native callback slots to the owner's closures. The
// native layer only holds the registry token in its user-data slot; the
// trampolines below resolve it and check the identity tag before touching
// any closure.
//
// Slots are written during registration only. Registration must finish
// before a background loop starts, after which the slots are read from the
// native network thread without locking.
type callbacks struct {
	tag       atomic.Uint32
	userData  token
	installed bool

	onMessage    func(Message)
	onConnect    func(int)
	onDisconnect func(int)

	log logging.Logger
	tel *telemetry
}

func newCallbacks(log logging.Logger, tel *telemetry) *callbacks {
	cb := &callbacks{log: log, tel: tel}
	cb.tag.Store(identityTag)
	return cb
}

// attach puts the bridge in the handle's user-data slot. Only the first call
// does anything.
func (cb *callbacks) attach(lib native.Library, h native.Handle) {
	if cb.installed {
		return
	}
	cb.userData = put(cb)
	lib.UserDataSet(h, uintptr(cb.userData))
	cb.installed = true
	cb.log.Debug(context.Background(), "callback bridge attached", "user_data", uint64(cb.userData))
}

func (cb *callbacks) registerMessage(lib native.Library, h native.Handle, fn func(Message)) {
	cb.attach(lib, h)
	lib.MessageCallbackSet(h, messageTrampoline)
	cb.onMessage = fn
}

func (cb *callbacks) registerConnect(lib native.Library, h native.Handle, fn func(int)) {
	cb.attach(lib, h)
	lib.ConnectCallbackSet(h, connectTrampoline)
	cb.onConnect = fn
}

func (cb *callbacks) registerDisconnect(lib native.Library, h native.Handle, fn func(int)) {
	cb.attach(lib, h)
	lib.DisconnectCallbackSet(h, disconnectTrampoline)
	cb.onDisconnect = fn
}

// destroy detaches the bridge. Callbacks still carrying its token are
// reported as anomalies from here on.
func (cb *callbacks) destroy() {
	if cb.installed {
		del(cb.userData)
		cb.installed = false
	}
	cb.tag.Store(0)
	cb.onMessage = nil
	cb.onConnect = nil
	cb.onDisconnect = nil
	cb.log.Debug(context.Background(), "callback bridge destroyed")
}

// resolve turns native user data back into a bridge, refusing anything that
// is not a live, tagged *callbacks.
func resolve(userData uintptr, event string) (*callbacks, bool) {
	ctx := logging.Callback(context.Background())
	v, ok := get(userData)
	if !ok {
		fallbackLog.Error(ctx, "callback user data does not resolve to a bridge", "event", event, "user_data", uint64(userData))
		fallbackTelemetry().anomaly(ctx, event)
		return nil, false
	}
	cb, ok := v.(*callbacks)
	if !ok {
		fallbackLog.Error(ctx, "callback user data bound to a foreign value", "event", event, "user_data", uint64(userData), "type", fmt.Sprintf("%T", v))
		fallbackTelemetry().anomaly(ctx, event)
		return nil, false
	}
	if tag := cb.tag.Load(); tag != identityTag {
		cb.log.Error(ctx, "callback bridge identity check failed", "event", event, "tag", tag)
		cb.tel.anomaly(ctx, event)
		return nil, false
	}
	return cb, true
}

func messageTrampoline(userData uintptr, msg native.MessageView) {
	if msg == nil {
		return
	}
	cb, ok := resolve(userData, eventMessage)
	if !ok {
		return
	}
	fn := cb.onMessage
	if fn == nil {
		return
	}
	m := messageFromView(msg)
	ctx, span := cb.tel.start(logging.Callback(context.Background()), "mosquitto.dispatch", trace.SpanKindConsumer, m.topic)
	span.SetAttributes(attribute.String("mosquitto.event", eventMessage))
	cb.tel.received.Add(ctx, 1)
	cb.invoke(ctx, span, eventMessage, func() { fn(m) })
}

func connectTrampoline(userData uintptr, rc int) {
	statusTrampoline(userData, rc, eventConnect)
}

func disconnectTrampoline(userData uintptr, rc int) {
	statusTrampoline(userData, rc, eventDisconnect)
}

func statusTrampoline(userData uintptr, rc int, event string) {
	cb, ok := resolve(userData, event)
	if !ok {
		return
	}
	fn := cb.onConnect
	if event == eventDisconnect {
		fn = cb.onDisconnect
	}
	if fn == nil {
		return
	}
	ctx, span := cb.tel.start(logging.Callback(context.Background()), "mosquitto.dispatch", trace.SpanKindConsumer, "")
	span.SetAttributes(attribute.String("mosquitto.event", event), attribute.Int("mosquitto.rc", rc))
	cb.invoke(ctx, span, event, func() { fn(rc) })
}

// invoke runs an owner closure. A panic must not unwind into the native
// caller, so it is recovered and logged.
func (cb *callbacks) invoke(ctx context.Context, span trace.Span, event string, call func()) {
	var err error
	defer func() { endSpan(span, err) }()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mosquitto: %s handler panicked: %v", event, r)
			cb.log.Error(ctx, "handler panicked", "event", event, "panic", fmt.Sprint(r))
		}
	}()
	call()
}
