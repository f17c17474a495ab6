package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/emandor/crosseval_service"

// Tracer returns the service tracer from the global provider. Spans are
// dropped unless the process installs an exporter.
func Tracer() trace.Tracer { return otel.Tracer(tracerName) }

// EndSpan records err (if any) and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
