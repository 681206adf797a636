// Package observability provides logging, metrics, and tracing
// functionality for the API Gateway.
//
// # Logging
//
// The Logger interface wraps zap:
//
//	logger, level, err := observability.NewLoggerWithLevel(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//	logger.Info("request processed",
//	    observability.String("method", "GET"),
//	    observability.Int("status", 200),
//	)
//	_ = level.SetLevel("debug")
//
// # Metrics
//
// Gateway metrics live on a private Prometheus registry exposed by
// Metrics.Handler.
//
// # Tracing
//
// Tracer configures the OpenTelemetry SDK with an optional OTLP gRPC
// exporter and the W3C trace context propagator.
package observability
