package mosquitto

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/logging"
	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/mockmosq"
	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/native"
)

type harness struct {
	c    *Client
	lib  *mockmosq.Library
	h    native.Handle
	logs *observer.ObservedLogs
}

// newHarness opens "client-1" against a fresh mock library with an observed
// zap logger. The client is closed when the test ends.
func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	lib := mockmosq.New()
	return openOn(t, lib, "client-1", opts...)
}

func openOn(t *testing.T, lib *mockmosq.Library, id string, opts ...Option) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	all := append([]Option{
		WithLibrary(lib),
		WithLogger(logging.NewZap(zap.New(core))),
	}, opts...)

	c, err := Open(id, all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	h, _, ok := lib.Lookup(id)
	require.True(t, ok, "mock has no handle for %q", id)
	return &harness{c: c, lib: lib, h: h, logs: logs}
}

func (hs *harness) state(t *testing.T) mockmosq.Client {
	t.Helper()
	st, ok := hs.lib.State(hs.h)
	require.True(t, ok)
	return st
}

func index(calls []string, op string) int {
	for i, c := range calls {
		if c == op {
			return i
		}
	}
	return -1
}
