package mosquitto

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/logging"
	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/native"
)

type options struct {
	logger       logging.Logger
	library      native.Library
	cleanSession bool
	tracer       trace.Tracer
	meter        metric.Meter
}

// Option configures a Client at Open.
type Option func(*options)

func newOptions(opts ...Option) options {
	o := options{cleanSession: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.New(nil)
	}
	return o
}

// WithLogger sets the logger used for lifecycle events and dispatch
// anomalies.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithLibrary replaces the linked libmosquitto with another implementation,
// typically mockmosq in tests.
func WithLibrary(lib native.Library) Option {
	return func(o *options) {
		o.library = lib
	}
}

// WithCleanSession controls whether the broker discards session state on
// disconnect. Defaults to true.
func WithCleanSession(clean bool) Option {
	return func(o *options) {
		o.cleanSession = clean
	}
}

// WithTracer sets the tracer used for operation and dispatch spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithMeter sets the meter used for message and anomaly counters.
func WithMeter(m metric.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

type publishOptions struct {
	qos    int
	retain bool
	binary bool
}

// PublishOption configures a single Publish call.
type PublishOption func(*publishOptions)

// WithQoS sets the delivery QoS (0, 1 or 2).
func WithQoS(qos int) PublishOption {
	return func(o *publishOptions) {
		o.qos = qos
	}
}

// WithRetain asks the broker to retain the message.
func WithRetain() PublishOption {
	return func(o *publishOptions) {
		o.retain = true
	}
}

// WithBinaryPayload allows NUL bytes in the payload. Without it the payload
// is treated as text and checked like every other string argument.
func WithBinaryPayload() PublishOption {
	return func(o *publishOptions) {
		o.binary = true
	}
}

type subscribeOptions struct {
	qos int
}

// SubscribeOption configures a single Subscribe call.
type SubscribeOption func(*subscribeOptions)

// SubscribeQoS sets the maximum QoS requested for the subscription.
func SubscribeQoS(qos int) SubscribeOption {
	return func(o *subscribeOptions) {
		o.qos = qos
	}
}

func validQoS(qos int) bool {
	return qos >= 0 && qos <= 2
}
