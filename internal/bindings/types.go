package bindings

import "errors"

// ErrNotBuilt reports that the libmosquitto bindings were not linked into the
// current binary. Build with cgo and the "mosquitto" tag to enable them.
var ErrNotBuilt = errors.New("mosquitto/internal/bindings: native bindings not built")
