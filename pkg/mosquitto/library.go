package mosquitto

import (
	"context"
	"sync"

	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/logging"
	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/native"
)

// libraryState is the process-wide setup latch for one native library.
// LibInit runs once, on the first Open; later calls are no-ops even if it
// failed. live counts open clients so teardown can flag a cleanup that
// pulls the library out from under another client.
type libraryState struct {
	once sync.Once
	live int
}

var (
	libMu     sync.Mutex
	libStates = map[native.Library]*libraryState{}
)

func acquireLibrary(lib native.Library, log logging.Logger) *libraryState {
	libMu.Lock()
	st, ok := libStates[lib]
	if !ok {
		st = &libraryState{}
		libStates[lib] = st
	}
	st.live++
	libMu.Unlock()

	st.once.Do(func() {
		if rc := lib.LibInit(); rc != native.Success {
			log.Error(context.Background(), "native library initialisation failed",
				logging.Status(rc, native.StatusText(rc)))
		}
	})
	return st
}

// release drops one client and reports how many remain open.
func (st *libraryState) release() int {
	libMu.Lock()
	defer libMu.Unlock()
	st.live--
	return st.live
}
