// Package registry holds the set of named backend services the gateway can
// forward to.
package registry

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/indyzai/api-gateway/internal/config"
	"github.com/indyzai/api-gateway/internal/observability"
)

// ErrServiceNotFound is matched by every *NotFoundError.
var ErrServiceNotFound = errors.New("service not found")

// NotFoundError reports a lookup of an unregistered service.
type NotFoundError struct {
	Name string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("service '%s' not found", e.Name)
}

// Is matches ErrServiceNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrServiceNotFound
}

// ServiceConfig describes one backend service.
type ServiceConfig struct {
	Name       string            `json:"name"`
	BaseURL    string            `json:"baseUrl"`
	Timeout    time.Duration     `json:"timeout"`
	MaxRetries int               `json:"retries"`
	Headers    map[string]string `json:"headers,omitempty"`
}

func (s ServiceConfig) clone() ServiceConfig {
	s.Headers = maps.Clone(s.Headers)
	return s
}

// FromConfig converts a configured service.
func FromConfig(c config.ServiceConfig) ServiceConfig {
	return ServiceConfig{
		Name:       c.Name,
		BaseURL:    c.BaseURL,
		Timeout:    c.Timeout.Duration(),
		MaxRetries: c.MaxRetries,
		Headers:    maps.Clone(c.Headers),
	}
}

// ChangeType identifies a registry mutation.
type ChangeType string

// Change types.
const (
	ChangeAdded   ChangeType = "added"
	ChangeUpdated ChangeType = "updated"
	ChangeRemoved ChangeType = "removed"
)

// ChangeEvent is delivered to listeners after every mutation.
type ChangeEvent struct {
	Type    ChangeType
	Service ServiceConfig
}

// Registry is a concurrency-safe map of service name to configuration.
type Registry struct {
	mu        sync.RWMutex
	services  map[string]ServiceConfig
	listeners []func(ChangeEvent)

	logger  observability.Logger
	metrics *observability.Metrics
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics records mutations and registry size.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		services: make(map[string]ServiceConfig),
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromConfig creates a registry seeded with the configured services.
func NewFromConfig(cfg *config.Config, opts ...Option) *Registry {
	r := New(opts...)
	for _, svc := range cfg.Services {
		r.Add(FromConfig(svc))
	}
	return r
}

// OnChange registers fn to be called after every mutation. Listeners run
// synchronously outside the registry lock.
func (r *Registry) OnChange(fn func(ChangeEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Add inserts svc or replaces the entry with the same name.
func (r *Registry) Add(svc ServiceConfig) {
	svc = svc.clone()

	r.mu.Lock()
	_, existed := r.services[svc.Name]
	r.services[svc.Name] = svc
	size := len(r.services)
	listeners := r.listeners
	r.mu.Unlock()

	change := ChangeAdded
	if existed {
		change = ChangeUpdated
	}

	r.logger.Info("service registered",
		observability.String("service", svc.Name),
		observability.String("base_url", svc.BaseURL),
		observability.String("change", string(change)),
	)
	r.notify(listeners, ChangeEvent{Type: change, Service: svc}, size)
}

// Remove deletes the named service. It reports whether an entry existed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	svc, ok := r.services[name]
	if ok {
		delete(r.services, name)
	}
	size := len(r.services)
	listeners := r.listeners
	r.mu.Unlock()

	if !ok {
		return false
	}

	r.logger.Info("service removed", observability.String("service", name))
	r.notify(listeners, ChangeEvent{Type: ChangeRemoved, Service: svc}, size)
	return true
}

// Get returns a copy of the named service's configuration.
func (r *Registry) Get(name string) (ServiceConfig, error) {
	r.mu.RLock()
	svc, ok := r.services[name]
	r.mu.RUnlock()

	if !ok {
		return ServiceConfig{}, &NotFoundError{Name: name}
	}
	return svc.clone(), nil
}

// List returns copies of all services sorted by name.
func (r *Registry) List() []ServiceConfig {
	r.mu.RLock()
	out := make([]ServiceConfig, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, svc.clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered service names sorted.
func (r *Registry) Names() []string {
	list := r.List()
	names := make([]string, len(list))
	for i, svc := range list {
		names[i] = svc.Name
	}
	return names
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.services)
}

func (r *Registry) notify(listeners []func(ChangeEvent), ev ChangeEvent, size int) {
	r.metrics.RecordRegistryChange(string(ev.Type), size)
	for _, fn := range listeners {
		fn(ChangeEvent{Type: ev.Type, Service: ev.Service.clone()})
	}
}
