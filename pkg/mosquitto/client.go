package mosquitto

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/hsiuhsiu/mosquitto-go/internal/bindings"
	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/logging"
	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/native"
)

// Client owns one native client handle and the callback bridge attached to
// it. Create it with Open and release it with Close.
//
// Handlers must be registered before LoopStart. Once the background loop
// runs, they are invoked from the native library's network thread,
// concurrently with whatever the owner does on its own goroutines.
type Client struct {
	lib     native.Library
	state   *libraryState
	id      string
	version LibVersion
	log     logging.Logger
	tel     *telemetry

	mu      sync.RWMutex
	handle  native.Handle
	closing bool
	looping bool
	bridge  *callbacks
	channel ChannelHandler
}

// Open initialises the native library on first use and allocates a client
// handle for clientID.
func Open(clientID string, opts ...Option) (*Client, error) {
	o := newOptions(opts...)
	if err := checkText("client id", clientID); err != nil {
		return nil, err
	}

	lib := o.library
	if lib == nil {
		var err error
		if lib, err = bindings.Default(); err != nil {
			return nil, err
		}
	}

	log := o.logger.With("client_id", clientID)
	st := acquireLibrary(lib, log)

	h := lib.New(clientID, o.cleanSession)
	if h == 0 {
		st.release()
		return nil, ErrInitializationFailed
	}

	major, minor, revision := lib.LibVersion()
	c := &Client{
		lib:     lib,
		state:   st,
		id:      clientID,
		version: LibVersion{Major: major, Minor: minor, Revision: revision},
		log:     log,
		tel:     newTelemetry(o.tracer, o.meter),
		handle:  h,
	}
	runtime.SetFinalizer(c, (*Client).Close)

	log.Info(context.Background(), "client opened", "libmosquitto", c.version.String(), "clean_session", o.cleanSession)
	return c, nil
}

// ClientID returns the id the client was opened with.
func (c *Client) ClientID() string { return c.id }

// Version returns the libmosquitto version captured at Open.
func (c *Client) Version() LibVersion { return c.version }

// SetMessageHandler installs fn as the message handler, replacing any
// previous one. The Message passed to fn owns its data.
func (c *Client) SetMessageHandler(fn func(Message)) error {
	return c.register(func(cb *callbacks, h native.Handle) {
		c.dropMessageChannel()
		cb.registerMessage(c.lib, h, fn)
	})
}

// SetMessageChannel routes messages into ch. The channel is closed when the
// handler is replaced by a different one or the client is closed.
// Registering the channel already installed keeps it open.
func (c *Client) SetMessageChannel(ch ChannelHandler) error {
	return c.register(func(cb *callbacks, h native.Handle) {
		if c.channel != ch {
			c.dropMessageChannel()
		}
		cb.registerMessage(c.lib, h, ch.handle)
		c.channel = ch
	})
}

// SetConnectHandler installs fn as the connect handler, replacing any
// previous one. fn receives the broker's CONNACK return code.
func (c *Client) SetConnectHandler(fn func(rc int)) error {
	return c.register(func(cb *callbacks, h native.Handle) {
		cb.registerConnect(c.lib, h, fn)
	})
}

// SetDisconnectHandler installs fn as the disconnect handler, replacing any
// previous one. rc is 0 when the disconnect was requested by the client.
func (c *Client) SetDisconnectHandler(fn func(rc int)) error {
	return c.register(func(cb *callbacks, h native.Handle) {
		cb.registerDisconnect(c.lib, h, fn)
	})
}

func (c *Client) register(install func(*callbacks, native.Handle)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == 0 || c.closing {
		return ErrClosed
	}
	if c.looping {
		return ErrLoopRunning
	}
	if c.bridge == nil {
		c.bridge = newCallbacks(c.log, c.tel)
	}
	install(c.bridge, c.handle)
	return nil
}

// dropMessageChannel must be called with c.mu held.
func (c *Client) dropMessageChannel() {
	if c.channel != nil {
		c.channel.close()
		c.channel = nil
	}
}

// Close stops a running background loop, detaches the callback bridge,
// destroys the native handle and finally asks the library for process-wide
// cleanup. Cleanup failures are logged, never returned. Close is idempotent.
//
// Cleanup is global to the process: closing one client while another client
// of the same library is still open leaves that client on an uninitialised
// library. Callers owning several clients must close them together.
func (c *Client) Close() error {
	ctx := context.Background()

	c.mu.Lock()
	if c.handle == 0 || c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	h := c.handle
	looping := c.looping
	ch := c.channel
	c.channel = nil
	c.mu.Unlock()

	runtime.SetFinalizer(c, nil)

	// A network thread blocked on a full channel must be released before a
	// forced stop, which cannot interrupt Go code.
	if ch != nil {
		ch.close()
	}

	// Handlers on the network thread may still call into the client while
	// the loop winds down, so no lock is held here.
	if looping {
		if err := statusError(OpLoopStop, c.lib.LoopStop(h, true)); err != nil {
			c.log.Warn(ctx, "stopping background loop failed", "error", err)
		}
	}

	c.destroyHandle(h)

	if open := c.state.release(); open > 0 {
		c.log.Warn(ctx, "cleaning up native library while other clients are open", "open_clients", open)
	}
	if err := statusError(OpCleanup, c.lib.LibCleanup()); err != nil {
		c.log.Error(ctx, "native library cleanup failed", "error", err)
	}
	c.log.Info(ctx, "client closed")
	return nil
}

// destroyHandle detaches the bridge and frees the native handle. The handle
// never outlives the bridge it references.
func (c *Client) destroyHandle(h native.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bridge != nil {
		c.bridge.destroy()
		c.bridge = nil
	}
	c.lib.Destroy(h)
	c.handle = 0
	c.looping = false
}

// do runs call with the live handle. The read lock keeps Close from
// destroying the handle underneath the call.
func (c *Client) do(call func(native.Handle) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.handle == 0 || c.closing {
		return ErrClosed
	}
	return call(c.handle)
}

func checkText(field, s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return fmt.Errorf("%w: %s", ErrEmbeddedNul, field)
	}
	return nil
}
