package pipeline

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/indyzai/api-gateway/internal/observability"
)

const spanKey = "pipeline.span"

type tracingStage struct {
	tracer *observability.Tracer
}

// Trace opens a server span per request, continuing any trace context the
// caller sent. Upstream calls made while handling the request become its
// children.
func Trace(tracer *observability.Tracer) Stage {
	return &tracingStage{tracer: tracer}
}

// Handle implements Stage.
func (s *tracingStage) Handle(req *Request) Outcome {
	ctx := observability.ExtractTraceContext(req.Context(), req.Header())

	name := req.c.FullPath()
	if name == "" {
		name = "unmatched"
	}
	ctx, span := s.tracer.StartSpan(ctx, req.Method+" "+name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			attribute.String("url.path", req.Path),
			attribute.String("client.address", req.ClientAddress),
		),
	)
	if req.CorrelationID != "" {
		span.SetAttributes(attribute.String("gateway.request_id", req.CorrelationID))
	}

	req.c.Set(spanKey, span)
	req.SetContext(ctx)
	return Continue()
}

// Finish implements Finisher.
func (s *tracingStage) Finish(req *Request, status int) {
	v, ok := req.c.Get(spanKey)
	if !ok {
		return
	}
	span, ok := v.(trace.Span)
	if !ok {
		return
	}

	span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
	span.End()
}
