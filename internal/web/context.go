// Package web carries per request state through a context.
package web

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const valuesKey ctxKey = 1

// Values represent state for each request.
type Values struct {
	TraceID string
	Tracer  trace.Tracer
	Now     time.Time
}

// SetValues stores the request values in the context.
func SetValues(ctx context.Context, v *Values) context.Context {
	return context.WithValue(ctx, valuesKey, v)
}

func values(ctx context.Context) (*Values, bool) {
	v, ok := ctx.Value(valuesKey).(*Values)
	return v, ok
}

// GetTraceID returns the trace id from the context.
func GetTraceID(ctx context.Context) string {
	v, ok := values(ctx)
	if !ok {
		return trace.TraceID{}.String()
	}
	return v.TraceID
}

// GetTime returns the time the request started. Every transaction booked while
// serving one request shares this timestamp. Outside of a request it is the
// current time.
func GetTime(ctx context.Context) time.Time {
	v, ok := values(ctx)
	if !ok || v.Now.IsZero() {
		return time.Now().UTC()
	}
	return v.Now
}

// WithTime returns a context whose request time is now. It keeps any values
// already present.
func WithTime(ctx context.Context, now time.Time) context.Context {
	v, ok := values(ctx)
	if !ok {
		return SetValues(ctx, &Values{TraceID: trace.TraceID{}.String(), Now: now})
	}
	cp := *v
	cp.Now = now
	return SetValues(ctx, &cp)
}

// AddSpan adds a OpenTelemetry span to the trace and context.
func AddSpan(ctx context.Context, spanName string, keyValues ...attribute.KeyValue) (context.Context, trace.Span) {
	v, ok := values(ctx)
	if !ok || v.Tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := v.Tracer.Start(ctx, spanName)
	span.SetAttributes(keyValues...)

	return ctx, span
}

// AddSpanAttributes sets attributes on the span carried by ctx.
func AddSpanAttributes(ctx context.Context, keyValues ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(keyValues...)
}
