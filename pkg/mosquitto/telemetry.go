package mosquitto

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/hsiuhsiu/mosquitto-go"

type telemetry struct {
	tracer    trace.Tracer
	published metric.Int64Counter
	received  metric.Int64Counter
	anomalies metric.Int64Counter
}

func newTelemetry(tracer trace.Tracer, meter metric.Meter) *telemetry {
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	t := &telemetry{tracer: tracer}

	var err error
	if t.published, err = meter.Int64Counter("mosquitto.messages.published",
		metric.WithDescription("Messages handed to the native library for publishing")); err != nil {
		t.published, _ = noop.Meter{}.Int64Counter("mosquitto.messages.published")
	}
	if t.received, err = meter.Int64Counter("mosquitto.messages.received",
		metric.WithDescription("Messages dispatched to the message handler")); err != nil {
		t.received, _ = noop.Meter{}.Int64Counter("mosquitto.messages.received")
	}
	if t.anomalies, err = meter.Int64Counter("mosquitto.dispatch.anomalies",
		metric.WithDescription("Callbacks dropped because the user data did not resolve to a live bridge")); err != nil {
		t.anomalies, _ = noop.Meter{}.Int64Counter("mosquitto.dispatch.anomalies")
	}
	return t
}

func (t *telemetry) start(ctx context.Context, name string, kind trace.SpanKind, destination string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("messaging.system", "mqtt")}
	if destination != "" {
		attrs = append(attrs, attribute.String("messaging.destination", destination))
	}
	return t.tracer.Start(ctx, name, trace.WithSpanKind(kind), trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *telemetry) anomaly(ctx context.Context, event string) {
	t.anomalies.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}
