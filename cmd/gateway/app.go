package main

import (
	"context"
	"fmt"

	"github.com/indyzai/api-gateway/internal/config"
	"github.com/indyzai/api-gateway/internal/gateway"
	"github.com/indyzai/api-gateway/internal/observability"
)

// application holds all application components.
type application struct {
	gateway *gateway.Gateway
	metrics *observability.Metrics
	tracer  *observability.Tracer
	config  *config.Config
}

// initApplication builds the tracer, metrics and gateway from cfg.
func initApplication(cfg *config.Config, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("gateway")
	metrics.SetBuildInfo(version, gitCommit)

	tracer, err := initTracer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	gw, err := gateway.New(cfg,
		gateway.WithLogger(logger),
		gateway.WithMetrics(metrics),
		gateway.WithTracer(tracer),
		gateway.WithVersion(version),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	logger.Info("configuration loaded",
		observability.Int("port", cfg.Server.Port),
		observability.Int("services", len(cfg.Services)),
		observability.Int("rate_limit_classes", len(cfg.RateLimits)),
		observability.Bool("tracing", cfg.Tracing.Enabled),
		observability.Bool("metrics", cfg.Metrics.Enabled),
	)

	return &application{
		gateway: gw,
		metrics: metrics,
		tracer:  tracer,
		config:  cfg,
	}, nil
}

// initTracer initializes the tracer.
func initTracer(cfg *config.Config) (*observability.Tracer, error) {
	serviceName := cfg.Tracing.ServiceName
	if serviceName == "" {
		serviceName = "indyz-gateway"
	}
	return observability.NewTracer(context.Background(), observability.TracerConfig{
		ServiceName:  serviceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Enabled:      cfg.Tracing.Enabled,
	})
}
