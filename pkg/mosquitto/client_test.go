package mosquitto

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/mockmosq"
	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/native"
)

func TestConnectPublishRoundTrip(t *testing.T) {
	lib := mockmosq.New()
	lib.SetVersion(2, 0, 18)
	hs := openOn(t, lib, "client-1")
	ctx := context.Background()

	assert.Equal(t, "client-1", hs.c.ClientID())
	assert.Equal(t, LibVersion{Major: 2, Minor: 0, Revision: 18}, hs.c.Version())
	assert.Equal(t, "2.0.18", hs.c.Version().String())

	require.NoError(t, hs.c.Connect(ctx, "localhost", 1883, 60*time.Second))
	st := hs.state(t)
	assert.Equal(t, "localhost", st.Host)
	assert.Equal(t, 1883, st.Port)
	assert.Equal(t, 60, st.KeepAlive)

	require.NoError(t, hs.c.Publish(ctx, "sensors/1", []byte("21.5"), WithQoS(1), WithRetain()))
	st = hs.state(t)
	require.Len(t, st.Published, 1)
	assert.Equal(t, mockmosq.Publication{Topic: "sensors/1", Payload: []byte("21.5"), QoS: 1, Retain: true}, st.Published[0])

	lib.SetStatus(mockmosq.OpPublish, native.ErrConnRefused)
	err := hs.c.Publish(ctx, "sensors/1", []byte("21.6"))
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, OpPublish, se.Op)
	assert.Equal(t, 5, se.Code)
	assert.ErrorIs(t, err, ErrPublish)
	assert.ErrorIs(t, err, &StatusError{Op: OpPublish, Code: 5})
	assert.NotErrorIs(t, err, &StatusError{Op: OpPublish, Code: 4})
	assert.NotErrorIs(t, err, ErrSubscribe)
}

func TestStatusMapping(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name     string
		mockOp   string
		sentinel error
		call     func(*Client) error
	}{
		{"credentials", mockmosq.OpUsernamePwSet, ErrCredentials, func(c *Client) error { return c.SetCredentials("u", "p") }},
		{"tls", mockmosq.OpTLSSet, ErrTLS, func(c *Client) error { return c.SetTLS(TLSConfig{CAFile: "ca.pem"}) }},
		{"connect", mockmosq.OpConnect, ErrConnect, func(c *Client) error { return c.Connect(ctx, "localhost", 1883, time.Minute) }},
		{"disconnect", mockmosq.OpDisconnect, ErrDisconnect, (*Client).Disconnect},
		{"reconnect", mockmosq.OpReconnect, ErrReconnect, (*Client).Reconnect},
		{"publish", mockmosq.OpPublish, ErrPublish, func(c *Client) error { return c.Publish(ctx, "t", []byte("x")) }},
		{"subscribe", mockmosq.OpSubscribe, ErrSubscribe, func(c *Client) error { return c.Subscribe(ctx, "t/#") }},
		{"unsubscribe", mockmosq.OpUnsubscribe, ErrUnsubscribe, func(c *Client) error { return c.Unsubscribe(ctx, "t/#") }},
		{"loop", mockmosq.OpLoop, ErrLoop, func(c *Client) error { return c.Loop(100*time.Millisecond, 1) }},
		{"loop start", mockmosq.OpLoopStart, ErrLoopStart, (*Client).LoopStart},
		{"loop stop", mockmosq.OpLoopStop, ErrLoopStop, func(c *Client) error { return c.LoopStop(false) }},
		{"loop write", mockmosq.OpLoopWrite, ErrLoopWrite, func(c *Client) error { return c.LoopWrite(1) }},
		{"loop misc", mockmosq.OpLoopMisc, ErrLoopMisc, (*Client).LoopMisc},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hs := newHarness(t)
			require.NoError(t, tc.call(hs.c), "success status must map to nil")

			hs.lib.SetStatus(tc.mockOp, native.ErrNoConn)
			err := tc.call(hs.c)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.sentinel)

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, native.ErrNoConn, se.Code)
		})
	}
}

func TestEmbeddedNulRejectedBeforeNativeCall(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		field string
		call  func(*Client) error
	}{
		{"username", "username", func(c *Client) error { return c.SetCredentials("us\x00er", "p") }},
		{"password", "password", func(c *Client) error { return c.SetCredentials("u", "pa\x00ss") }},
		{"host", "host", func(c *Client) error { return c.Connect(ctx, "local\x00host", 1883, time.Minute) }},
		{"topic", "topic", func(c *Client) error { return c.Publish(ctx, "a\x00b", []byte("x")) }},
		{"payload", "payload", func(c *Client) error { return c.Publish(ctx, "t", []byte("a\x00b")) }},
		{"subscribe", "topic", func(c *Client) error { return c.Subscribe(ctx, "a/\x00") }},
		{"unsubscribe", "topic", func(c *Client) error { return c.Unsubscribe(ctx, "a/\x00") }},
		{"ca file", "ca file", func(c *Client) error { return c.SetTLS(TLSConfig{CAFile: "ca\x00.pem"}) }},
		{"key file", "key file", func(c *Client) error { return c.SetTLS(TLSConfig{CAFile: "ca.pem", KeyFile: "k\x00"}) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hs := newHarness(t)
			before := len(hs.lib.Calls())

			err := tc.call(hs.c)
			require.ErrorIs(t, err, ErrEmbeddedNul)
			assert.Contains(t, err.Error(), tc.field)
			assert.Len(t, hs.lib.Calls(), before, "no native call may follow a rejected argument")
		})
	}
}

func TestOpenRejectsEmbeddedNul(t *testing.T) {
	lib := mockmosq.New()
	_, err := Open("client\x001", WithLibrary(lib))
	require.ErrorIs(t, err, ErrEmbeddedNul)
	assert.Empty(t, lib.Calls())
}

func TestBinaryPayload(t *testing.T) {
	hs := newHarness(t)
	payload := []byte{0x01, 0x00, 0x02}

	require.NoError(t, hs.c.Publish(context.Background(), "bin", payload, WithBinaryPayload()))
	st := hs.state(t)
	require.Len(t, st.Published, 1)
	assert.Equal(t, payload, st.Published[0].Payload)
}

func TestInvalidQoS(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, hs.c.Publish(ctx, "t", nil, WithQoS(3)), ErrInvalidQoS)
	assert.ErrorIs(t, hs.c.Subscribe(ctx, "t", SubscribeQoS(-1)), ErrInvalidQoS)
	assert.Zero(t, hs.lib.Count(mockmosq.OpPublish))
	assert.Zero(t, hs.lib.Count(mockmosq.OpSubscribe))

	require.NoError(t, hs.c.Subscribe(ctx, "t/+", SubscribeQoS(2)))
	assert.Equal(t, []mockmosq.Subscription{{Pattern: "t/+", QoS: 2}}, hs.state(t).Subscriptions)
}

func TestCancelledContextSkipsNativeCall(t *testing.T) {
	hs := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, hs.c.Connect(ctx, "localhost", 1883, time.Minute), context.Canceled)
	assert.ErrorIs(t, hs.c.Publish(ctx, "t", nil), context.Canceled)
	assert.Zero(t, hs.lib.Count(mockmosq.OpConnect))
	assert.Zero(t, hs.lib.Count(mockmosq.OpPublish))
}

func TestCloseOrdering(t *testing.T) {
	hs := newHarness(t)
	require.NoError(t, hs.c.SetMessageHandler(func(Message) {}))
	require.NoError(t, hs.c.Close())

	calls := hs.lib.Calls()
	destroy := index(calls, mockmosq.OpDestroy)
	cleanup := index(calls, mockmosq.OpLibCleanup)
	require.NotEqual(t, -1, destroy)
	require.NotEqual(t, -1, cleanup)
	assert.Less(t, destroy, cleanup)
	assert.Equal(t, -1, index(calls, mockmosq.OpLoopStop), "loop was never started")
	assert.True(t, hs.state(t).Destroyed)
}

func TestCloseStopsLoopBeforeDestroy(t *testing.T) {
	hs := newHarness(t)
	require.NoError(t, hs.c.SetMessageHandler(func(Message) {}))
	require.NoError(t, hs.c.LoopStart())
	require.NoError(t, hs.c.Close())

	calls := hs.lib.Calls()
	stop := index(calls, mockmosq.OpLoopStop)
	require.NotEqual(t, -1, stop)
	assert.Less(t, stop, index(calls, mockmosq.OpDestroy))
	assert.False(t, hs.state(t).Looping)
}

func TestCleanupFailureIsLoggedNotReturned(t *testing.T) {
	hs := newHarness(t)
	hs.lib.SetStatus(mockmosq.OpLibCleanup, native.ErrUnknown)

	require.NoError(t, hs.c.Close())
	assert.Less(t, index(hs.lib.Calls(), mockmosq.OpDestroy), index(hs.lib.Calls(), mockmosq.OpLibCleanup))
	assert.Equal(t, 1, hs.logs.FilterMessage("native library cleanup failed").Len())
}

func TestCloseIsIdempotent(t *testing.T) {
	hs := newHarness(t)
	require.NoError(t, hs.c.Close())
	require.NoError(t, hs.c.Close())

	assert.Equal(t, 1, hs.lib.Count(mockmosq.OpDestroy))
	assert.Equal(t, 1, hs.lib.Count(mockmosq.OpLibCleanup))
}

func TestOperationsAfterClose(t *testing.T) {
	hs := newHarness(t)
	require.NoError(t, hs.c.Close())
	ctx := context.Background()
	before := len(hs.lib.Calls())

	assert.ErrorIs(t, hs.c.Connect(ctx, "localhost", 1883, time.Minute), ErrClosed)
	assert.ErrorIs(t, hs.c.Publish(ctx, "t", nil), ErrClosed)
	assert.ErrorIs(t, hs.c.Subscribe(ctx, "t"), ErrClosed)
	assert.ErrorIs(t, hs.c.SetMessageHandler(func(Message) {}), ErrClosed)
	assert.ErrorIs(t, hs.c.LoopStart(), ErrClosed)
	assert.ErrorIs(t, hs.c.LoopStop(true), ErrClosed)
	assert.False(t, hs.c.WantWrite())
	_, err := hs.c.Socket()
	assert.ErrorIs(t, err, ErrClosed)

	assert.Len(t, hs.lib.Calls(), before)
}

func TestRegistrationAfterLoopStart(t *testing.T) {
	hs := newHarness(t)
	require.NoError(t, hs.c.SetConnectHandler(func(int) {}))
	require.NoError(t, hs.c.LoopStart())

	assert.ErrorIs(t, hs.c.SetMessageHandler(func(Message) {}), ErrLoopRunning)
	assert.ErrorIs(t, hs.c.SetDisconnectHandler(func(int) {}), ErrLoopRunning)

	require.NoError(t, hs.c.LoopStop(true))
	assert.NoError(t, hs.c.SetMessageHandler(func(Message) {}))
}

func TestLibraryInitialisedOnce(t *testing.T) {
	lib := mockmosq.New()
	a := openOn(t, lib, "a")
	b := openOn(t, lib, "b")

	assert.Equal(t, 1, lib.Count(mockmosq.OpLibInit))
	assert.Equal(t, 2, lib.Count(mockmosq.OpNew))

	require.NoError(t, a.c.Close())
	assert.Equal(t, 1, a.logs.FilterMessage("cleaning up native library while other clients are open").Len())

	require.NoError(t, b.c.Close())
	assert.Zero(t, b.logs.FilterMessage("cleaning up native library while other clients are open").Len())
	assert.Equal(t, 2, lib.Count(mockmosq.OpLibCleanup))
}

func TestLibInitFailureIsNotFatal(t *testing.T) {
	lib := mockmosq.New()
	lib.SetStatus(mockmosq.OpLibInit, native.ErrUnknown)
	hs := openOn(t, lib, "client-1")

	assert.Equal(t, 1, hs.logs.FilterMessage("native library initialisation failed").Len())
}

func TestInitializationFailed(t *testing.T) {
	lib := mockmosq.New()
	lib.FailNew()

	c, err := Open("client-1", WithLibrary(lib))
	require.ErrorIs(t, err, ErrInitializationFailed)
	assert.Nil(t, c)

	libMu.Lock()
	live := libStates[lib].live
	libMu.Unlock()
	assert.Zero(t, live)
}

func TestCleanSessionOption(t *testing.T) {
	assert.True(t, newHarness(t).state(t).CleanSession)
	assert.False(t, newHarness(t, WithCleanSession(false)).state(t).CleanSession)
}

func TestSocketAndWantWrite(t *testing.T) {
	hs := newHarness(t)

	hs.lib.SetSocket(7)
	fd, err := hs.c.Socket()
	require.NoError(t, err)
	assert.Equal(t, 7, fd)

	hs.lib.SetSocket(-1)
	fd, err = hs.c.Socket()
	assert.ErrorIs(t, err, ErrSocket)
	assert.Equal(t, -1, fd)

	assert.False(t, hs.c.WantWrite())
	hs.lib.SetWantWrite(true)
	assert.True(t, hs.c.WantWrite())
}

func TestCredentialsAndTLSReachNativeLayer(t *testing.T) {
	hs := newHarness(t)
	require.NoError(t, hs.c.SetCredentials("alice", "s3cret"))
	require.NoError(t, hs.c.SetTLS(TLSConfig{CAFile: "ca.pem", CertFile: "c.pem", KeyFile: "k.pem"}))

	st := hs.state(t)
	assert.Equal(t, "alice", st.Username)
	assert.Equal(t, "s3cret", st.Password)
	assert.Equal(t, [4]string{"ca.pem", "", "c.pem", "k.pem"}, st.TLS)

	for _, entry := range hs.logs.All() {
		for k, v := range entry.ContextMap() {
			assert.NotEqual(t, "s3cret", v, "password logged under %q", k)
		}
	}
}

func TestMessageChannel(t *testing.T) {
	hs := newHarness(t)
	ch := NewFifoChannel(2)
	require.NoError(t, hs.c.SetMessageChannel(ch))

	hs.lib.DeliverMessage(hs.h, mockmosq.Msg{Topic: "a", Payload: []byte("1")})
	hs.lib.DeliverMessage(hs.h, mockmosq.Msg{Topic: "b", Payload: []byte("2")})

	assert.Equal(t, "a", (<-ch.Messages()).Topic())
	assert.Equal(t, "b", (<-ch.Messages()).Topic())

	require.NoError(t, hs.c.Close())
	_, open := <-ch.Messages()
	assert.False(t, open)
}

func TestReplacingChannelClosesOldOne(t *testing.T) {
	hs := newHarness(t)
	old := NewRingChannel(1)
	require.NoError(t, hs.c.SetMessageChannel(old))
	require.NoError(t, hs.c.SetMessageHandler(func(Message) {}))

	_, open := <-old.Messages()
	assert.False(t, open)
}

func TestStatusErrorText(t *testing.T) {
	err := statusError(OpConnect, native.ErrConnRefused)
	assert.Equal(t, "mosquitto: connect failed: connection refused (status 5)", err.Error())
	assert.NoError(t, statusError(OpConnect, native.Success))
	assert.False(t, errors.Is(err, ErrEmbeddedNul))
}

func TestSameChannelRegisteredTwice(t *testing.T) {
	hs := newHarness(t)
	ch := NewFifoChannel(4)
	require.NoError(t, hs.c.SetMessageChannel(ch))
	require.NoError(t, hs.c.SetMessageChannel(ch))

	hs.lib.DeliverMessage(hs.h, mockmosq.Msg{Topic: "a", Payload: []byte("1")})
	select {
	case m, ok := <-ch.Messages():
		require.True(t, ok, "channel closed by re-registration")
		assert.Equal(t, "a", m.Topic())
	default:
		t.Fatal("message not delivered after re-registering the same channel")
	}
	assert.Zero(t, hs.logs.FilterMessage("handler panicked").Len())

	require.NotPanics(t, func() { require.NoError(t, hs.c.Close()) })
	assert.True(t, hs.state(t).Destroyed)
	assert.Equal(t, 1, hs.lib.Count(mockmosq.OpLibCleanup))

	_, open := <-ch.Messages()
	assert.False(t, open)

	// The client mutex must be free again.
	assert.ErrorIs(t, hs.c.SetMessageHandler(func(Message) {}), ErrClosed)
}

func TestChannelReusedAfterClientClose(t *testing.T) {
	lib := mockmosq.New()
	ch := NewRingChannel(2)

	first := openOn(t, lib, "first")
	require.NoError(t, first.c.SetMessageChannel(ch))
	require.NoError(t, first.c.Close())

	second := openOn(t, lib, "second")
	require.NoError(t, second.c.SetMessageChannel(ch))
	require.NotPanics(t, func() {
		second.lib.DeliverMessage(second.h, mockmosq.Msg{Topic: "late"})
		require.NoError(t, second.c.Close())
	})
	assert.True(t, second.state(t).Destroyed)
}

func TestCloseReleasesBlockedChannel(t *testing.T) {
	hs := newHarness(t)
	ch := NewFifoChannel(0)
	require.NoError(t, hs.c.SetMessageChannel(ch))
	require.NoError(t, hs.c.LoopStart())

	entered := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(entered)
		// No reader: this blocks like a network thread on a full channel.
		ch.handle(NewMessage("t", nil))
		close(done)
	}()
	<-entered

	require.NoError(t, hs.c.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked delivery not released by Close")
	}

	calls := hs.lib.Calls()
	assert.Less(t, index(calls, mockmosq.OpLoopStop), index(calls, mockmosq.OpDestroy))
}
