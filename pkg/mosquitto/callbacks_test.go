package mosquitto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/logging"
	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/mockmosq"
)

func TestMessageHandlerReplacesPrevious(t *testing.T) {
	hs := newHarness(t)

	var first, second int
	require.NoError(t, hs.c.SetMessageHandler(func(Message) { first++ }))
	require.NoError(t, hs.c.SetMessageHandler(func(Message) { second++ }))

	require.True(t, hs.lib.DeliverMessage(hs.h, mockmosq.Msg{Topic: "a/b"}))

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestBridgeAttachesOnce(t *testing.T) {
	hs := newHarness(t)

	require.NoError(t, hs.c.SetMessageHandler(func(Message) {}))
	require.NoError(t, hs.c.SetConnectHandler(func(int) {}))
	require.NoError(t, hs.c.SetDisconnectHandler(func(int) {}))
	require.NoError(t, hs.c.SetMessageHandler(func(Message) {}))

	st := hs.state(t)
	assert.Equal(t, 1, st.Attaches)
	assert.NotZero(t, st.UserData)
	assert.Equal(t, 2, hs.lib.Count(mockmosq.OpMessageCallbackSet))
}

func TestNoBridgeUntilFirstRegistration(t *testing.T) {
	hs := newHarness(t)
	assert.Equal(t, 0, hs.lib.Count(mockmosq.OpUserDataSet))
	assert.False(t, hs.lib.DeliverMessage(hs.h, mockmosq.Msg{Topic: "t"}))
}

func TestMessageDispatch(t *testing.T) {
	hs := newHarness(t)

	var got []Message
	require.NoError(t, hs.c.SetMessageHandler(func(m Message) { got = append(got, m) }))

	hs.lib.DeliverMessage(hs.h, mockmosq.Msg{Mid: 9, Topic: "sensors/1", Payload: []byte("21.5"), QoS: 1, Retain: true})

	require.Len(t, got, 1)
	assert.Equal(t, "sensors/1", got[0].Topic())
	assert.Equal(t, "21.5", got[0].PayloadString())
	assert.Equal(t, 1, got[0].QoS())
	assert.True(t, got[0].Retain())
	assert.Equal(t, 9, got[0].Mid())
}

func TestMessageOutlivesNativeBuffer(t *testing.T) {
	hs := newHarness(t)

	var got Message
	require.NoError(t, hs.c.SetMessageHandler(func(m Message) { got = m }))

	buf := []byte("original")
	hs.lib.DeliverMessage(hs.h, mockmosq.Msg{Topic: "t", Payload: buf})
	copy(buf, "XXXXXXXX")

	assert.Equal(t, "original", got.PayloadString())

	p := got.Payload()
	p[0] = 'Z'
	assert.Equal(t, "original", got.PayloadString())
}

func TestNilMessageIsIgnored(t *testing.T) {
	hs := newHarness(t)

	called := false
	require.NoError(t, hs.c.SetMessageHandler(func(Message) { called = true }))

	require.True(t, hs.lib.DeliverNil(hs.h))
	assert.False(t, called)
}

func TestEmptySlotIsNoOp(t *testing.T) {
	hs := newHarness(t)

	// Only the connect slot is populated; the message trampoline is never
	// installed, and disconnect stays empty.
	require.NoError(t, hs.c.SetConnectHandler(func(int) {}))
	assert.False(t, hs.lib.FireDisconnect(hs.h, 0))

	require.NoError(t, hs.c.SetMessageHandler(nil))
	assert.True(t, hs.lib.DeliverMessage(hs.h, mockmosq.Msg{Topic: "t"}))
	assert.Zero(t, hs.logs.FilterMessage("handler panicked").Len())
}

func TestIdentityMismatchIsRefused(t *testing.T) {
	hs := newHarness(t)

	called := false
	require.NoError(t, hs.c.SetMessageHandler(func(Message) { called = true }))

	hs.c.bridge.tag.Store(0xDEADBEEF)
	hs.lib.DeliverMessage(hs.h, mockmosq.Msg{Topic: "t"})

	assert.False(t, called)
	failed := hs.logs.FilterMessage("callback bridge identity check failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "native", failed[0].ContextMap()[logging.OriginKey])

	hs.c.bridge.tag.Store(identityTag)
	hs.lib.DeliverMessage(hs.h, mockmosq.Msg{Topic: "t"})
	assert.True(t, called)
}

func TestUnknownUserDataIsRefused(t *testing.T) {
	hs := newHarness(t)

	called := false
	require.NoError(t, hs.c.SetMessageHandler(func(Message) { called = true }))

	hs.lib.DeliverWithUserData(hs.h, 0, mockmosq.Msg{Topic: "t"})
	hs.lib.DeliverWithUserData(hs.h, 1<<40, mockmosq.Msg{Topic: "t"})
	assert.False(t, called)
}

func TestForeignUserDataIsRefused(t *testing.T) {
	hs := newHarness(t)

	called := false
	require.NoError(t, hs.c.SetMessageHandler(func(Message) { called = true }))

	foreign := put("not a bridge")
	defer del(foreign)

	hs.lib.DeliverWithUserData(hs.h, uintptr(foreign), mockmosq.Msg{Topic: "t"})
	assert.False(t, called)
}

func TestCallbackAfterCloseIsRefused(t *testing.T) {
	hs := newHarness(t)

	called := false
	require.NoError(t, hs.c.SetMessageHandler(func(Message) { called = true }))
	require.NoError(t, hs.c.SetConnectHandler(func(int) { called = true }))
	require.NoError(t, hs.c.Close())

	// The mock keeps its callbacks after destroy, like a late event racing
	// teardown on the network thread.
	hs.lib.DeliverMessage(hs.h, mockmosq.Msg{Topic: "t"})
	hs.lib.FireConnect(hs.h, 0)
	assert.False(t, called)
}

func TestStatusCallbacks(t *testing.T) {
	hs := newHarness(t)

	connect, disconnect := -1, -1
	require.NoError(t, hs.c.SetConnectHandler(func(rc int) { connect = rc }))
	require.NoError(t, hs.c.SetDisconnectHandler(func(rc int) { disconnect = rc }))

	hs.lib.FireConnect(hs.h, 0)
	hs.lib.FireDisconnect(hs.h, 7)

	assert.Equal(t, 0, connect)
	assert.Equal(t, 7, disconnect)
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	hs := newHarness(t)

	calls := 0
	require.NoError(t, hs.c.SetMessageHandler(func(Message) {
		calls++
		panic("boom")
	}))

	require.NotPanics(t, func() {
		hs.lib.DeliverMessage(hs.h, mockmosq.Msg{Topic: "t"})
		hs.lib.DeliverMessage(hs.h, mockmosq.Msg{Topic: "t"})
	})
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, hs.logs.FilterMessage("handler panicked").Len())
}

func TestRegistry(t *testing.T) {
	a := put(1)
	b := put(2)
	defer del(b)
	require.NotEqual(t, a, b)

	v, ok := get(uintptr(a))
	require.True(t, ok)
	assert.Equal(t, 1, v)

	del(a)
	_, ok = get(uintptr(a))
	assert.False(t, ok)

	_, ok = get(0)
	assert.False(t, ok)
}
