// Package ratelimit provides per-identity fixed window rate limiting for the
// API Gateway. Requests are counted per (class, key) where a class is a named
// policy such as "global" or "auth".
package ratelimit

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/indyzai/api-gateway/internal/observability"
)

// ErrUnknownClass is returned when a check names a class that was never
// configured.
var ErrUnknownClass = errors.New("unknown rate limit class")

// ErrRateLimitExceeded matches every *ExceededError.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Class is one named limiter policy.
type Class struct {
	// Name identifies the class, e.g. "global".
	Name string

	// Window is the length of one counting window.
	Window time.Duration

	// Max is the number of requests allowed per window.
	Max int

	// Code is the machine-readable error code reported on denial.
	Code string

	// SkipSuccessful excludes successful requests from the count.
	SkipSuccessful bool
}

// Result represents the result of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is allowed.
	Allowed bool

	// Limit is the maximum number of requests allowed.
	Limit int

	// Remaining is the number of requests remaining in the current window.
	Remaining int

	// ResetAt is the end of the current window.
	ResetAt time.Time
}

// ExceededError is returned when a request is denied.
type ExceededError struct {
	Class  string
	Code   string
	Result *Result
}

// Error implements the error interface.
func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for class %q", e.Class)
}

// Is matches ErrRateLimitExceeded.
func (e *ExceededError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// RetryAfter returns the time left until the window resets, relative to now.
func (e *ExceededError) RetryAfter(now time.Time) time.Duration {
	if e.Result == nil {
		return 0
	}
	d := e.Result.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Limiter holds one fixed window table per class.
type Limiter struct {
	mu      sync.RWMutex
	windows map[string]*fixedWindow
	clock   func() time.Time
	logger  observability.Logger
	metrics *observability.Metrics
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) {
		l.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// WithMetrics records denials per class.
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// NewLimiter creates a limiter for classes.
func NewLimiter(classes []Class, opts ...Option) (*Limiter, error) {
	l := &Limiter{
		windows: make(map[string]*fixedWindow, len(classes)),
		clock:   time.Now,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}

	for _, c := range classes {
		if c.Name == "" {
			return nil, errors.New("rate limit class name is empty")
		}
		if c.Max <= 0 {
			return nil, fmt.Errorf("rate limit class %q: max must be positive", c.Name)
		}
		if c.Window <= 0 {
			return nil, fmt.Errorf("rate limit class %q: window must be positive", c.Name)
		}
		if _, dup := l.windows[c.Name]; dup {
			return nil, fmt.Errorf("rate limit class %q defined twice", c.Name)
		}
		l.windows[c.Name] = newFixedWindow(c)
	}

	return l, nil
}

// Check counts one request for key under class. A denied request is not
// counted and yields an *ExceededError.
func (l *Limiter) Check(class, key string) (*Result, error) {
	w, err := l.window(class)
	if err != nil {
		return nil, err
	}

	result := w.allow(key, l.clock())
	if !result.Allowed {
		l.logger.Warn("rate limit exceeded",
			observability.String("class", class),
			observability.String("key", key),
		)
		l.metrics.RecordRateLimitDenied(class)
		return result, &ExceededError{Class: class, Code: w.class.Code, Result: result}
	}

	return result, nil
}

// Refund gives back one request counted for key in the current window.
func (l *Limiter) Refund(class, key string) {
	w, err := l.window(class)
	if err != nil {
		return
	}
	w.refund(key, l.clock())
}

// Class returns the configuration of the named class.
func (l *Limiter) Class(name string) (Class, bool) {
	w, err := l.window(name)
	if err != nil {
		return Class{}, false
	}
	return w.class, true
}

// Classes returns the configured class names in sorted order.
func (l *Limiter) Classes() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.windows))
	for name := range l.windows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cleanup drops buckets whose window has ended. It returns the number of
// buckets removed.
func (l *Limiter) Cleanup() int {
	l.mu.RLock()
	windows := make([]*fixedWindow, 0, len(l.windows))
	for _, w := range l.windows {
		windows = append(windows, w)
	}
	l.mu.RUnlock()

	now := l.clock()
	removed := 0
	for _, w := range windows {
		removed += w.sweep(now)
	}
	if removed > 0 {
		l.logger.Debug("rate limit buckets swept", observability.Int("removed", removed))
	}
	return removed
}

func (l *Limiter) window(class string) (*fixedWindow, error) {
	l.mu.RLock()
	w, ok := l.windows[class]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}
	return w, nil
}
