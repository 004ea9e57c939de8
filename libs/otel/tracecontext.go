package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	traceparentKey = "traceparent"
	tracestateKey  = "tracestate"
)

// TraceContextStrings serializes the current span context as W3C header
// values, suitable for storing alongside outbox rows.
func TraceContextStrings(ctx context.Context) (traceparent string, tracestate string) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier[traceparentKey], carrier[tracestateKey]
}

// ContextWithTraceContext restores a span context previously captured with
// TraceContextStrings. Empty strings leave ctx unchanged.
func ContextWithTraceContext(ctx context.Context, traceparent string, tracestate string) context.Context {
	if traceparent == "" && tracestate == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{}
	if traceparent != "" {
		carrier[traceparentKey] = traceparent
	}
	if tracestate != "" {
		carrier[tracestateKey] = tracestate
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
