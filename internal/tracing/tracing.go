package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by fern spans.
const (
	AttrProject = attribute.Key("fern.project")
	AttrPhase   = attribute.Key("fern.phase")
	AttrCount   = attribute.Key("fern.count")
)

var tracer trace.Tracer

// SetTracer installs the tracer used by StartSpan. Until it is called spans
// are not recorded.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan starts a child span of ctx. Without a tracer the span already on
// ctx is returned so callers can always End it.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// Project tags a span with the project it works on.
func Project(project string) attribute.KeyValue {
	return AttrProject.String(project)
}

// Fail records err on span and marks it failed. A nil err is ignored.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// GetTraceID returns the id of the recording trace on ctx, or "".
func GetTraceID(ctx context.Context) string {
	if tracer == nil {
		return ""
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
