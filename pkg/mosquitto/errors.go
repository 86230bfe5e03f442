package mosquitto

import (
	"errors"
	"fmt"

	"github.com/hsiuhsiu/mosquitto-go/internal/bindings"
	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/native"
)

// Op names the native operation a StatusError came from.
type Op string

const (
	OpConnect     Op = "connect"
	OpDisconnect  Op = "disconnect"
	OpReconnect   Op = "reconnect"
	OpPublish     Op = "publish"
	OpSubscribe   Op = "subscribe"
	OpUnsubscribe Op = "unsubscribe"
	OpLoop        Op = "loop"
	OpLoopStart   Op = "loop_start"
	OpLoopStop    Op = "loop_stop"
	OpLoopWrite   Op = "loop_write"
	OpLoopMisc    Op = "loop_misc"
	OpTLS         Op = "tls_set"
	OpCredentials Op = "credentials"
	OpCleanup     Op = "cleanup"
)

// StatusError reports a native call that returned a status other than
// success. Code is the untouched native status.
type StatusError struct {
	Op   Op
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mosquitto: %s failed: %s (status %d)", e.Op, native.StatusText(e.Code), e.Code)
}

// Is reports whether target is a StatusError for the same operation. A target
// with a zero Code matches any code, so the per-operation sentinels below
// work with errors.Is.
func (e *StatusError) Is(target error) bool {
	t, ok := target.(*StatusError)
	if !ok {
		return false
	}
	return t.Op == e.Op && (t.Code == 0 || t.Code == e.Code)
}

func statusError(op Op, rc int) error {
	if rc == native.Success {
		return nil
	}
	return &StatusError{Op: op, Code: rc}
}

// Per-operation sentinels, usable with errors.Is.
var (
	ErrConnect     = &StatusError{Op: OpConnect}
	ErrDisconnect  = &StatusError{Op: OpDisconnect}
	ErrReconnect   = &StatusError{Op: OpReconnect}
	ErrPublish     = &StatusError{Op: OpPublish}
	ErrSubscribe   = &StatusError{Op: OpSubscribe}
	ErrUnsubscribe = &StatusError{Op: OpUnsubscribe}
	ErrLoop        = &StatusError{Op: OpLoop}
	ErrLoopStart   = &StatusError{Op: OpLoopStart}
	ErrLoopStop    = &StatusError{Op: OpLoopStop}
	ErrLoopWrite   = &StatusError{Op: OpLoopWrite}
	ErrLoopMisc    = &StatusError{Op: OpLoopMisc}
	ErrTLS         = &StatusError{Op: OpTLS}
	ErrCredentials = &StatusError{Op: OpCredentials}
	ErrCleanup     = &StatusError{Op: OpCleanup}
)

var (
	// ErrInitializationFailed is returned by Open when the native library
	// could not allocate a client handle.
	ErrInitializationFailed = errors.New("mosquitto: client handle allocation failed")

	// ErrEmbeddedNul rejects text that cannot cross into C as a
	// NUL-terminated string. It is wrapped with the offending argument name.
	ErrEmbeddedNul = errors.New("mosquitto: string contains NUL byte")

	// ErrSocket is returned when the native layer has no socket to report.
	ErrSocket = errors.New("mosquitto: no socket available")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("mosquitto: client closed")

	// ErrLoopRunning rejects handler registration once a background loop may
	// be delivering events.
	ErrLoopRunning = errors.New("mosquitto: handlers must be registered before LoopStart")

	// ErrInvalidQoS rejects QoS levels outside 0..2.
	ErrInvalidQoS = errors.New("mosquitto: qos must be 0, 1 or 2")

	// ErrNotBuilt reports that libmosquitto is not linked into this binary and
	// no native.Library was supplied with WithLibrary.
	ErrNotBuilt = bindings.ErrNotBuilt
)
