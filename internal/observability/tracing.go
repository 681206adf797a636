package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// DefaultOTLPTimeout bounds each OTLP export.
const DefaultOTLPTimeout = 10 * time.Second

const fallbackTracerName = "indyz-gateway"

// TracerConfig configures span export.
type TracerConfig struct {
	ServiceName string
	// OTLPEndpoint is a host:port reached over insecure gRPC. Spans are
	// sampled but not exported when it is empty.
	OTLPEndpoint string
	SamplingRate float64
	Enabled      bool
}

// Tracer starts spans for inbound requests and upstream calls. A nil
// *Tracer is usable and falls back to the global provider.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer installs the W3C trace context and baggage propagators and,
// when enabled, an SDK provider as the global tracer provider.
func NewTracer(ctx context.Context, cfg TracerConfig) (*Tracer, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	name := cfg.ServiceName
	if name == "" {
		name = fallbackTracerName
	}
	if !cfg.Enabled {
		return &Tracer{tracer: otel.Tracer(name)}, nil
	}

	// Schemaless so the merge never conflicts with the SDK's default schema.
	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(createSampler(cfg.SamplingRate))),
	}
	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithTimeout(DefaultOTLPTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	return &Tracer{provider: provider, tracer: provider.Tracer(name)}, nil
}

func createSampler(rate float64) sdktrace.Sampler {
	if rate >= 1 {
		return sdktrace.AlwaysSample()
	}
	if rate <= 0 {
		return sdktrace.NeverSample()
	}
	return sdktrace.TraceIDRatioBased(rate)
}

// Shutdown flushes pending spans.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// StartSpan starts a span named name as a child of any span in ctx.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return otel.Tracer(fallbackTracerName).Start(ctx, name, opts...)
	}
	return t.tracer.Start(ctx, name, opts...)
}

// InjectTraceHeaders writes the trace context of ctx into h.
func InjectTraceHeaders(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}

// ExtractTraceContext returns ctx extended with the trace context sent by
// the caller in h.
func ExtractTraceContext(ctx context.Context, h http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(h))
}
