package native

import "strconv"

// Status codes as defined by mosquitto.h (enum mosq_err_t).
const (
	ErrAuthContinue  = -4
	ErrNoSubscribers = -3
	ErrSubExists     = -2
	ErrConnPending   = -1
	Success          = 0
	ErrNoMem         = 1
	ErrProtocol      = 2
	ErrInval         = 3
	ErrNoConn        = 4
	ErrConnRefused   = 5
	ErrNotFound      = 6
	ErrConnLost      = 7
	ErrTLS           = 8
	ErrPayloadSize   = 9
	ErrNotSupported  = 10
	ErrAuth          = 11
	ErrACLDenied     = 12
	ErrUnknown       = 13
	ErrErrno         = 14
	ErrEAI           = 15
	ErrProxy         = 16
	ErrPluginDefer   = 17
	ErrMalformedUTF8 = 18
	ErrKeepalive     = 19
	ErrLookup        = 20
)

var statusText = map[int]string{
	ErrAuthContinue:  "authentication continues",
	ErrNoSubscribers: "no subscribers",
	ErrSubExists:     "subscription already exists",
	ErrConnPending:   "connection pending",
	Success:          "success",
	ErrNoMem:         "out of memory",
	ErrProtocol:      "protocol error",
	ErrInval:         "invalid arguments",
	ErrNoConn:        "not connected",
	ErrConnRefused:   "connection refused",
	ErrNotFound:      "not found",
	ErrConnLost:      "connection lost",
	ErrTLS:           "TLS error",
	ErrPayloadSize:   "payload too large",
	ErrNotSupported:  "not supported",
	ErrAuth:          "authorisation failed",
	ErrACLDenied:     "access denied by ACL",
	ErrUnknown:       "unknown error",
	ErrErrno:         "system call error",
	ErrEAI:           "lookup error",
	ErrProxy:         "proxy error",
	ErrPluginDefer:   "plugin deferred",
	ErrMalformedUTF8: "malformed UTF-8",
	ErrKeepalive:     "keepalive exceeded",
	ErrLookup:        "DNS lookup error",
}

// StatusText returns a short description of a native status code.
func StatusText(rc int) string {
	if s, ok := statusText[rc]; ok {
		return s
	}
	return "status " + strconv.Itoa(rc)
}
