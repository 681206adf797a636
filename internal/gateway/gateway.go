package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/indyzai/api-gateway/internal/auth"
	"github.com/indyzai/api-gateway/internal/auth/jwt"
	"github.com/indyzai/api-gateway/internal/circuitbreaker"
	"github.com/indyzai/api-gateway/internal/config"
	"github.com/indyzai/api-gateway/internal/health"
	"github.com/indyzai/api-gateway/internal/observability"
	"github.com/indyzai/api-gateway/internal/pipeline"
	"github.com/indyzai/api-gateway/internal/proxy"
	"github.com/indyzai/api-gateway/internal/ratelimit"
	"github.com/indyzai/api-gateway/internal/registry"
	"github.com/indyzai/api-gateway/internal/retry"
	"github.com/indyzai/api-gateway/internal/users"
	"github.com/indyzai/api-gateway/internal/validation"
)

// DefaultCleanupInterval is how often stale rate limit buckets are swept.
const DefaultCleanupInterval = time.Minute

// State represents the gateway state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateStarting indicates the gateway is starting.
	StateStarting
	// StateRunning indicates the gateway is running.
	StateRunning
	// StateStopping indicates the gateway is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Gateway owns the components and the HTTP server.
type Gateway struct {
	cfg     *config.Config
	logger  observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	version string

	httpClient      *http.Client
	sleeper         retry.Sleeper
	backoffUnit     time.Duration
	cleanupInterval time.Duration

	registry   *registry.Registry
	breakers   *circuitbreaker.Set
	dispatcher *proxy.Dispatcher
	limiter    *ratelimit.Limiter
	users      *users.Service
	signer     *jwt.Signer
	verifier   *auth.Verifier
	apiKeys    *auth.APIKeyVerifier
	validator  *validation.Validator
	checker    *health.Checker
	pipeline   *pipeline.Pipeline
	engine     *gin.Engine

	mu        sync.Mutex
	server    *http.Server
	listener  net.Listener
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	state     atomic.Int32
	startTime time.Time
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway and every component.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithTracer sets the tracer used for upstream spans.
func WithTracer(t *observability.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = t
	}
}

// WithVersion sets the version reported by the welcome and health routes.
func WithVersion(version string) Option {
	return func(g *Gateway) {
		g.version = version
	}
}

// WithHTTPClient sets the client used for upstream calls.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = client
	}
}

// WithRetrySleeper replaces the sleeper between upstream retries.
func WithRetrySleeper(s retry.Sleeper) Option {
	return func(g *Gateway) {
		g.sleeper = s
	}
}

// WithBackoffUnit sets the base of the exponential upstream backoff.
func WithBackoffUnit(unit time.Duration) Option {
	return func(g *Gateway) {
		g.backoffUnit = unit
	}
}

// WithCleanupInterval sets how often stale rate limit buckets are swept.
func WithCleanupInterval(d time.Duration) Option {
	return func(g *Gateway) {
		g.cleanupInterval = d
	}
}

// New builds a gateway from cfg. Default users are seeded when
// cfg.Security.SeedUsers is set.
func New(cfg *config.Config, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	g := &Gateway{
		cfg:             cfg,
		logger:          observability.NopLogger(),
		version:         "1.0.0",
		cleanupInterval: DefaultCleanupInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.state.Store(int32(StateStopped))

	if err := g.buildComponents(); err != nil {
		return nil, err
	}

	if cfg.Security.SeedUsers {
		if err := g.users.Seed(context.Background(), users.DefaultSeeds()); err != nil {
			return nil, fmt.Errorf("failed to seed users: %w", err)
		}
	}

	engine, err := g.buildEngine()
	if err != nil {
		return nil, err
	}
	g.engine = engine
	return g, nil
}

func (g *Gateway) buildComponents() error {
	cfg := g.cfg

	signer, err := jwt.NewSigner(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpiresIn.Duration())
	if err != nil {
		return fmt.Errorf("failed to create token signer: %w", err)
	}
	g.signer = signer
	g.verifier = auth.NewVerifier(signer, auth.WithVerifierLogger(g.logger))
	g.apiKeys = auth.NewAPIKeyVerifier(cfg.Security.InternalAPIKey)

	g.registry = registry.NewFromConfig(cfg,
		registry.WithLogger(g.logger),
		registry.WithMetrics(g.metrics),
	)
	g.breakers = circuitbreaker.NewSet(circuitbreaker.FromConfig(cfg.Breaker),
		circuitbreaker.WithLogger(g.logger),
		circuitbreaker.WithMetrics(g.metrics),
	)
	g.registry.OnChange(func(ev registry.ChangeEvent) {
		if ev.Type != registry.ChangeAdded {
			g.breakers.Remove(ev.Service.Name)
		}
	})

	dispatchOpts := []proxy.Option{
		proxy.WithBreakers(g.breakers),
		proxy.WithLogger(g.logger),
		proxy.WithMetrics(g.metrics),
		proxy.WithTracer(g.tracer),
	}
	if g.httpClient != nil {
		dispatchOpts = append(dispatchOpts, proxy.WithHTTPClient(g.httpClient))
	}
	if g.sleeper != nil {
		dispatchOpts = append(dispatchOpts, proxy.WithSleeper(g.sleeper))
	}
	if g.backoffUnit > 0 {
		dispatchOpts = append(dispatchOpts, proxy.WithBackoffUnit(g.backoffUnit))
	}
	g.dispatcher = proxy.NewDispatcher(g.registry, dispatchOpts...)

	g.limiter, err = ratelimit.NewFromConfig(cfg,
		ratelimit.WithLogger(g.logger),
		ratelimit.WithMetrics(g.metrics),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limiter: %w", err)
	}
	for _, class := range []string{config.ClassGlobal, config.ClassStrict, config.ClassAuth, config.ClassAPI} {
		if _, ok := g.limiter.Class(class); !ok {
			return fmt.Errorf("rate limit class %q is not configured", class)
		}
	}

	userOpts := []users.Option{users.WithLogger(g.logger)}
	if cfg.Security.BcryptCost > 0 {
		userOpts = append(userOpts, users.WithBcryptCost(cfg.Security.BcryptCost))
	}
	g.users = users.NewService(users.NewMemoryStore(), signer, userOpts...)

	g.validator = validation.New()
	g.checker = health.NewChecker(g.registry, g.dispatcher,
		health.WithVersion(g.version),
		health.WithEnvironment(cfg.Environment),
		health.WithLogger(g.logger),
	)
	g.pipeline = pipeline.New(
		pipeline.WithLogger(g.logger),
		pipeline.WithMetrics(g.metrics),
		pipeline.WithProduction(cfg.IsProduction()),
	)
	return nil
}

// Handler returns the HTTP handler serving every route.
func (g *Gateway) Handler() http.Handler {
	return g.engine
}

// Registry returns the service registry.
func (g *Gateway) Registry() *registry.Registry {
	return g.registry
}

// Users returns the user service.
func (g *Gateway) Users() *users.Service {
	return g.users
}

// Limiter returns the rate limiter.
func (g *Gateway) Limiter() *ratelimit.Limiter {
	return g.limiter
}

// Start listens on the configured address and serves until Stop. It
// returns once the listener is bound.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return errors.New("gateway is not in stopped state")
	}

	addr := fmt.Sprintf("%s:%d", g.cfg.Server.Address, g.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		g.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           g.engine,
		ReadTimeout:       g.cfg.Server.ReadTimeout.Duration(),
		ReadHeaderTimeout: g.cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:      g.cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:       g.cfg.Server.IdleTimeout.Duration(),
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	g.mu.Lock()
	g.server = server
	g.listener = ln
	g.cancel = cancel
	g.mu.Unlock()

	g.wg.Add(2)
	go func() {
		defer g.wg.Done()
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("HTTP server error", observability.Error(err))
		}
	}()
	go func() {
		defer g.wg.Done()
		g.sweepBuckets(runCtx)
	}()

	g.startTime = time.Now()
	g.state.Store(int32(StateRunning))
	g.checker.SetReady(true)

	g.logger.Info("IndyzAI API Gateway started",
		observability.String("address", ln.Addr().String()),
		observability.String("environment", g.cfg.Environment),
		observability.String("version", g.version),
		observability.Strings("services", g.registry.Names()),
	)
	return nil
}

// Stop drains in-flight requests and shuts the server down. Readiness is
// withdrawn first so load balancers stop routing new traffic.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return errors.New("gateway is not running")
	}
	g.checker.SetReady(false)

	g.logger.Info("stopping gateway")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
	}

	g.mu.Lock()
	server, cancel := g.server, g.cancel
	g.mu.Unlock()

	err := server.Shutdown(ctx)
	cancel()
	g.wg.Wait()

	g.state.Store(int32(StateStopped))
	if err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	g.logger.Info("gateway stopped")
	return nil
}

// Addr returns the bound address while running.
func (g *Gateway) Addr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// State returns the current gateway state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// IsRunning returns true if the gateway is running.
func (g *Gateway) IsRunning() bool {
	return g.State() == StateRunning
}

// Uptime returns the gateway uptime.
func (g *Gateway) Uptime() time.Duration {
	if g.startTime.IsZero() {
		return 0
	}
	return time.Since(g.startTime)
}

// ApplyConfig applies the hot-reloadable parts of cfg. Only the service
// list is reconciled: new and changed services are upserted. Services
// missing from cfg are kept, since they may have been added at runtime.
func (g *Gateway) ApplyConfig(cfg *config.Config) {
	for _, svc := range cfg.Services {
		next := registry.FromConfig(svc)
		if cur, err := g.registry.Get(next.Name); err == nil && sameService(cur, next) {
			continue
		}
		g.registry.Add(next)
	}
}

func sameService(a, b registry.ServiceConfig) bool {
	if a.BaseURL != b.BaseURL || a.Timeout != b.Timeout || a.MaxRetries != b.MaxRetries {
		return false
	}
	if len(a.Headers) != len(b.Headers) {
		return false
	}
	for k, v := range a.Headers {
		if b.Headers[k] != v {
			return false
		}
	}
	return true
}

func (g *Gateway) sweepBuckets(ctx context.Context) {
	ticker := time.NewTicker(g.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.limiter.Cleanup(); n > 0 {
				g.logger.Debug("stale rate limit buckets removed", observability.Int("count", n))
			}
		}
	}
}
