//go:build !cgo || !mosquitto

package bindings

import "github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/native"

// Default reports ErrNotBuilt in builds that do not link libmosquitto. Callers
// can still inject their own native.Library.
func Default() (native.Library, error) {
	return nil, ErrNotBuilt
}
