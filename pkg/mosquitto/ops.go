package mosquitto

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/logging"
	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/native"
)

// TLSConfig names the certificate material passed to the native TLS setup.
// At least one of CAFile or CAPath is required by libmosquitto; CertFile and
// KeyFile enable client certificate authentication.
type TLSConfig struct {
	CAFile   string
	CAPath   string
	CertFile string
	KeyFile  string
}

// SetCredentials configures the username and password sent on connect.
func (c *Client) SetCredentials(username, password string) error {
	if err := checkText("username", username); err != nil {
		return err
	}
	if err := checkText("password", password); err != nil {
		return err
	}
	c.log.Info(context.Background(), "setting credentials", "username", username, logging.Redacted("password"))
	return c.do(func(h native.Handle) error {
		return statusError(OpCredentials, c.lib.UsernamePwSet(h, username, password))
	})
}

// SetTLS enables TLS for the next connect.
func (c *Client) SetTLS(cfg TLSConfig) error {
	for _, f := range []struct{ name, value string }{
		{"ca file", cfg.CAFile},
		{"ca path", cfg.CAPath},
		{"cert file", cfg.CertFile},
		{"key file", cfg.KeyFile},
	} {
		if err := checkText(f.name, f.value); err != nil {
			return err
		}
	}
	c.log.Info(context.Background(), "setting up TLS", "ca_file", cfg.CAFile, "ca_path", cfg.CAPath, "cert_file", cfg.CertFile)
	return c.do(func(h native.Handle) error {
		return statusError(OpTLS, c.lib.TLSSet(h, cfg.CAFile, cfg.CAPath, cfg.CertFile, cfg.KeyFile))
	})
}

// Connect connects to the broker at host:port. keepAlive is rounded down to
// whole seconds. ctx is checked before the call and parents its span; the
// native connect itself cannot be cancelled.
func (c *Client) Connect(ctx context.Context, host string, port int, keepAlive time.Duration) (err error) {
	if err := checkText("host", host); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := c.tel.start(ctx, "mosquitto.connect", trace.SpanKindClient, "")
	span.SetAttributes(attribute.String("server.address", host), attribute.Int("server.port", port))
	defer func() { endSpan(span, err) }()

	c.log.Info(ctx, "connecting to broker", "host", host, "port", port, "keepalive", keepAlive.String())
	return c.do(func(h native.Handle) error {
		return statusError(OpConnect, c.lib.Connect(h, host, port, int(keepAlive/time.Second)))
	})
}

// Disconnect sends DISCONNECT to the broker.
func (c *Client) Disconnect() error {
	c.log.Info(context.Background(), "disconnecting from broker")
	return c.do(func(h native.Handle) error {
		return statusError(OpDisconnect, c.lib.Disconnect(h))
	})
}

// Reconnect reconnects using the parameters of the last Connect. Retry
// scheduling is left to the caller.
func (c *Client) Reconnect() error {
	c.log.Debug(context.Background(), "reconnecting to broker")
	return c.do(func(h native.Handle) error {
		return statusError(OpReconnect, c.lib.Reconnect(h))
	})
}

// Publish sends payload to topic. The payload is treated as text and must not
// contain NUL bytes unless WithBinaryPayload is given.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, opts ...PublishOption) (err error) {
	var o publishOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !validQoS(o.qos) {
		return fmt.Errorf("%w: got %d", ErrInvalidQoS, o.qos)
	}
	if err := checkText("topic", topic); err != nil {
		return err
	}
	if !o.binary && bytes.IndexByte(payload, 0) >= 0 {
		return fmt.Errorf("%w: payload", ErrEmbeddedNul)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := c.tel.start(ctx, "mosquitto.publish", trace.SpanKindProducer, topic)
	span.SetAttributes(
		attribute.Int("messaging.mqtt.qos", o.qos),
		attribute.Bool("messaging.mqtt.retain", o.retain),
		attribute.Int("messaging.message.body.size", len(payload)),
	)
	defer func() { endSpan(span, err) }()

	return c.do(func(h native.Handle) error {
		mid, rc := c.lib.Publish(h, topic, payload, o.qos, o.retain)
		if err := statusError(OpPublish, rc); err != nil {
			return err
		}
		c.tel.published.Add(ctx, 1)
		c.log.Debug(ctx, "published", "topic", topic, "mid", mid, "bytes", len(payload))
		return nil
	})
}

// Subscribe subscribes to pattern, which may contain MQTT wildcards.
func (c *Client) Subscribe(ctx context.Context, pattern string, opts ...SubscribeOption) (err error) {
	var o subscribeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !validQoS(o.qos) {
		return fmt.Errorf("%w: got %d", ErrInvalidQoS, o.qos)
	}
	if err := checkText("topic", pattern); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := c.tel.start(ctx, "mosquitto.subscribe", trace.SpanKindClient, pattern)
	defer func() { endSpan(span, err) }()

	return c.do(func(h native.Handle) error {
		mid, rc := c.lib.Subscribe(h, pattern, o.qos)
		if err := statusError(OpSubscribe, rc); err != nil {
			return err
		}
		c.log.Debug(ctx, "subscribed", "topic", pattern, "mid", mid, "qos", o.qos)
		return nil
	})
}

// Unsubscribe removes a subscription made with Subscribe.
func (c *Client) Unsubscribe(ctx context.Context, pattern string) (err error) {
	if err := checkText("topic", pattern); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := c.tel.start(ctx, "mosquitto.unsubscribe", trace.SpanKindClient, pattern)
	defer func() { endSpan(span, err) }()

	return c.do(func(h native.Handle) error {
		mid, rc := c.lib.Unsubscribe(h, pattern)
		if err := statusError(OpUnsubscribe, rc); err != nil {
			return err
		}
		c.log.Debug(ctx, "unsubscribed", "topic", pattern, "mid", mid)
		return nil
	})
}

// Loop runs one iteration of the network loop on the calling goroutine,
// waiting at most timeout for activity.
func (c *Client) Loop(timeout time.Duration, maxPackets int) error {
	return c.do(func(h native.Handle) error {
		return statusError(OpLoop, c.lib.Loop(h, int(timeout.Milliseconds()), maxPackets))
	})
}

// LoopStart starts the native library's own network thread. Handlers
// registered so far are invoked from that thread; registering more fails
// with ErrLoopRunning.
func (c *Client) LoopStart() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == 0 || c.closing {
		return ErrClosed
	}
	if err := statusError(OpLoopStart, c.lib.LoopStart(c.handle)); err != nil {
		return err
	}
	c.looping = true
	c.log.Debug(context.Background(), "background loop started")
	return nil
}

// LoopStop stops the network thread started by LoopStart. Without force it
// waits for the thread to exit after a Disconnect.
func (c *Client) LoopStop(force bool) error {
	c.mu.RLock()
	h := c.handle
	closed := h == 0 || c.closing
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	// The network thread may be inside a handler that calls back into the
	// client, so the native stop runs without the lock.
	if err := statusError(OpLoopStop, c.lib.LoopStop(h, force)); err != nil {
		return err
	}

	c.mu.Lock()
	c.looping = false
	c.mu.Unlock()
	c.log.Debug(context.Background(), "background loop stopped", "force", force)
	return nil
}

// LoopWrite writes pending outgoing packets, for callers driving their own
// select loop around Socket.
func (c *Client) LoopWrite(maxPackets int) error {
	return c.do(func(h native.Handle) error {
		return statusError(OpLoopWrite, c.lib.LoopWrite(h, maxPackets))
	})
}

// LoopMisc handles keepalive and retry housekeeping for external loops.
func (c *Client) LoopMisc() error {
	return c.do(func(h native.Handle) error {
		return statusError(OpLoopMisc, c.lib.LoopMisc(h))
	})
}

// WantWrite reports whether outgoing data is pending. It returns false on a
// closed client.
func (c *Client) WantWrite() bool {
	var want bool
	_ = c.do(func(h native.Handle) error {
		want = c.lib.WantWrite(h)
		return nil
	})
	return want
}

// Socket returns the client's socket descriptor for use in an external
// event loop.
func (c *Client) Socket() (int, error) {
	var fd int
	err := c.do(func(h native.Handle) error {
		fd = c.lib.Socket(h)
		if fd < 0 {
			return ErrSocket
		}
		return nil
	})
	if err != nil {
		return -1, err
	}
	return fd, nil
}
