package mosquitto

import "sync"

// token is the opaque user-data value handed to the native layer. Go
// pointers cannot be stored in C memory, so bridges are registered here and
// the native side only ever sees the integer.
type token uintptr

var (
	regMu sync.Mutex
	next  token = 1
	reg         = map[token]any{}
)

func put(v any) token {
	regMu.Lock()
	t := next
	next++
	reg[t] = v
	regMu.Unlock()
	return t
}

func get(userData uintptr) (any, bool) {
	regMu.Lock()
	v, ok := reg[token(userData)]
	regMu.Unlock()
	return v, ok
}

func del(t token) {
	regMu.Lock()
	delete(reg, t)
	regMu.Unlock()
}
