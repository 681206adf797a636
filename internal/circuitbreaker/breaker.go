// Package circuitbreaker keeps one breaker per backend service so a failing
// upstream is short-circuited instead of dialed on every request.
package circuitbreaker

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/indyzai/api-gateway/internal/config"
	"github.com/indyzai/api-gateway/internal/observability"
)

var tracer = otel.Tracer("indyz-gateway/circuitbreaker")

// Config holds breaker settings shared by every service.
type Config struct {
	// Enabled turns breaking on. A disabled Set runs calls directly.
	Enabled bool

	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures int

	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration

	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests int
}

// DefaultConfig returns the default breaker settings.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

// FromConfig converts the configured breaker settings.
func FromConfig(c config.BreakerConfig) Config {
	return Config{
		Enabled:             c.Enabled,
		ConsecutiveFailures: c.ConsecutiveFailures,
		OpenTimeout:         c.OpenTimeout.Duration(),
		HalfOpenRequests:    c.HalfOpenRequests,
	}
}

// IsOpen reports whether err was produced by a breaker refusing a call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Set lazily creates one breaker per name.
type Set struct {
	cfg     Config
	logger  observability.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// Option configures a Set.
type Option func(*Set)

// WithLogger sets the logger for state changes.
func WithLogger(logger observability.Logger) Option {
	return func(s *Set) {
		s.logger = logger
	}
}

// WithMetrics exports breaker state per service.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Set) {
		s.metrics = m
	}
}

// NewSet creates an empty breaker set.
func NewSet(cfg Config, opts ...Option) *Set {
	s := &Set{
		cfg:      cfg,
		logger:   observability.NopLogger(),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs fn through the named breaker. Only a non-nil error from fn
// counts as a failure.
func (s *Set) Execute(name string, fn func() (interface{}, error)) (interface{}, error) {
	if s == nil || !s.cfg.Enabled {
		return fn()
	}
	return s.breaker(name).Execute(fn)
}

// State returns the state of the named breaker. Unknown names are closed.
func (s *Set) State(name string) gobreaker.State {
	if s == nil {
		return gobreaker.StateClosed
	}
	s.mu.Lock()
	cb, ok := s.breakers[name]
	s.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

// Remove forgets the named breaker, e.g. after the service is deregistered
// or reconfigured.
func (s *Set) Remove(name string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.breakers, name)
	s.mu.Unlock()
	s.metrics.SetCircuitState(name, int(gobreaker.StateClosed))
}

func (s *Set) breaker(name string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[name]; ok {
		return cb
	}

	threshold := safeIntToUint32(s.cfg.ConsecutiveFailures)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: safeIntToUint32(s.cfg.HalfOpenRequests),
		Timeout:     s.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: s.onStateChange,
	})
	s.breakers[name] = cb
	return cb
}

func (s *Set) onStateChange(name string, from, to gobreaker.State) {
	s.logger.Warn("circuit breaker state change",
		observability.String("service", name),
		observability.String("from", from.String()),
		observability.String("to", to.String()),
	)
	s.metrics.SetCircuitState(name, int(to))

	_, span := tracer.Start(context.Background(),
		"circuitbreaker.state_change",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.AddEvent("state_change", trace.WithAttributes(
		attribute.String("circuitbreaker.name", name),
		attribute.String("circuitbreaker.from", from.String()),
		attribute.String("circuitbreaker.to", to.String()),
	))
	span.End()
}

func safeIntToUint32(n int) uint32 {
	if n <= 0 {
		return 1
	}
	if uint64(n) > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n) //nolint:gosec // bounds checked above
}
