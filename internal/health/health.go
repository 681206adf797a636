// Package health reports the liveness and readiness of the gateway and the
// reachability of every registered backend service.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indyzai/api-gateway/internal/observability"
	"github.com/indyzai/api-gateway/internal/proxy"
	"github.com/indyzai/api-gateway/internal/registry"
)

// Status represents the health status.
type Status string

const (
	// StatusHealthy indicates the service is healthy.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates a backend could not be reached.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates at least one backend is unhealthy.
	StatusDegraded Status = "degraded"
)

// ProbePath is requested on every backend by Check.
const ProbePath = "/health"

// Forwarder sends a call to a backend service.
type Forwarder interface {
	Forward(ctx context.Context, call proxy.Call) (*proxy.Response, error)
}

// ServiceLister lists the registered backends.
type ServiceLister interface {
	List() []registry.ServiceConfig
}

// Memory is a snapshot of the runtime's memory usage.
type Memory struct {
	HeapAlloc  uint64 `json:"heapAlloc"`
	HeapSys    uint64 `json:"heapSys"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"numGC"`
	Goroutines int    `json:"goroutines"`
}

// Snapshot describes the gateway process.
type Snapshot struct {
	Status      Status  `json:"status"`
	Timestamp   string  `json:"timestamp"`
	Uptime      float64 `json:"uptime"`
	Memory      Memory  `json:"memory"`
	Version     string  `json:"version"`
	Environment string  `json:"environment"`
}

// ServiceHealth is the probe result of one backend.
type ServiceHealth struct {
	Status       Status `json:"status"`
	ResponseTime string `json:"responseTime,omitempty"`
	Error        string `json:"error,omitempty"`
	URL          string `json:"url"`
}

// Report is a Snapshot plus the state of every backend.
type Report struct {
	Snapshot
	Services map[string]ServiceHealth `json:"services"`
}

// Healthy reports whether every backend answered.
func (r *Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// Checker probes backends through the proxy dispatcher.
type Checker struct {
	services    ServiceLister
	forwarder   Forwarder
	version     string
	environment string
	startTime   time.Time
	clock       func() time.Time
	ready       atomic.Bool
	logger      observability.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithVersion sets the reported version.
func WithVersion(version string) Option {
	return func(c *Checker) {
		c.version = version
	}
}

// WithEnvironment sets the reported environment name.
func WithEnvironment(env string) Option {
	return func(c *Checker) {
		c.environment = env
	}
}

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(c *Checker) {
		c.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// NewChecker creates a checker. The gateway starts out ready.
func NewChecker(services ServiceLister, forwarder Forwarder, opts ...Option) *Checker {
	c := &Checker{
		services:  services,
		forwarder: forwarder,
		version:   "1.0.0",
		clock:     time.Now,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.startTime = c.clock()
	c.ready.Store(true)
	return c
}

// SetReady changes the readiness reported by Ready. The server clears it
// while draining.
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// Ready reports whether the gateway accepts traffic.
func (c *Checker) Ready() bool {
	return c.ready.Load()
}

// Snapshot describes the process without probing backends.
func (c *Checker) Snapshot() Snapshot {
	now := c.clock()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return Snapshot{
		Status:      StatusHealthy,
		Timestamp:   now.UTC().Format(time.RFC3339Nano),
		Uptime:      now.Sub(c.startTime).Seconds(),
		Version:     c.version,
		Environment: c.environment,
		Memory: Memory{
			HeapAlloc:  ms.HeapAlloc,
			HeapSys:    ms.HeapSys,
			Sys:        ms.Sys,
			NumGC:      ms.NumGC,
			Goroutines: runtime.NumGoroutine(),
		},
	}
}

// Check probes GET /health on every backend concurrently, one attempt
// each. The report is degraded when any backend is unhealthy.
func (c *Checker) Check(ctx context.Context) *Report {
	services := c.services.List()
	report := &Report{
		Snapshot: c.Snapshot(),
		Services: make(map[string]ServiceHealth, len(services)),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, svc := range services {
		wg.Add(1)
		go func(svc registry.ServiceConfig) {
			defer wg.Done()
			result := c.probe(ctx, svc)

			mu.Lock()
			report.Services[svc.Name] = result
			mu.Unlock()
		}(svc)
	}
	wg.Wait()

	for _, s := range report.Services {
		if s.Status != StatusHealthy {
			report.Status = StatusDegraded
			break
		}
	}

	c.logger.WithContext(ctx).Info("detailed health check performed",
		observability.String("status", string(report.Status)),
		observability.Int("service_count", len(services)),
	)
	return report
}

func (c *Checker) probe(ctx context.Context, svc registry.ServiceConfig) ServiceHealth {
	start := c.clock()
	resp, err := c.forwarder.Forward(ctx, proxy.Call{
		Service:     svc.Name,
		Path:        ProbePath,
		Method:      http.MethodGet,
		RequestID:   observability.RequestIDFromContext(ctx),
		MaxAttempts: 1,
	})
	elapsed := c.clock().Sub(start)

	switch {
	case err != nil:
	case resp == nil:
		err = errors.New("health endpoint returned no response")
	case !resp.Successful():
		err = fmt.Errorf("health endpoint returned status %d", resp.Status)
	}
	if err != nil {
		c.logger.WithContext(ctx).Warn("health check failed",
			observability.String("service", svc.Name),
			observability.Error(err),
			observability.Duration("duration", elapsed),
		)
		return ServiceHealth{Status: StatusUnhealthy, Error: err.Error(), URL: svc.BaseURL}
	}

	return ServiceHealth{
		Status:       StatusHealthy,
		ResponseTime: fmt.Sprintf("%dms", elapsed.Milliseconds()),
		URL:          svc.BaseURL,
	}
}
