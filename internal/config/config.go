package config

import (
	"sort"
	"time"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Limiter class names.
const (
	ClassGlobal = "global"
	ClassStrict = "strict"
	ClassAuth   = "auth"
	ClassAPI    = "api"
)

// Config is the root gateway configuration.
type Config struct {
	Environment string                    `yaml:"environment"`
	Server      ServerConfig              `yaml:"server"`
	Logging     LoggingConfig             `yaml:"logging"`
	JWT         JWTConfig                 `yaml:"jwt"`
	Security    SecurityConfig            `yaml:"security"`
	CORS        CORSConfig                `yaml:"cors"`
	RateLimits  map[string]RateLimitClass `yaml:"rateLimits"`
	Services    []ServiceConfig           `yaml:"services"`
	Breaker     BreakerConfig             `yaml:"circuitBreaker"`
	Tracing     TracingConfig             `yaml:"tracing"`
	Metrics     MetricsConfig             `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
	MaxBodyBytes    int64    `yaml:"maxBodyBytes"`

	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty trusts none, so the client
	// address is always the socket peer.
	TrustedProxies []string `yaml:"trustedProxies"`
}

// LoggingConfig holds logger settings. Level is hot-reloadable.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret    string   `yaml:"secret"`
	Issuer    string   `yaml:"issuer"`
	ExpiresIn Duration `yaml:"expiresIn"`
}

// SecurityConfig holds credentials and hashing settings.
type SecurityConfig struct {
	InternalAPIKey string `yaml:"internalApiKey"`
	BcryptCost     int    `yaml:"bcryptCost"`
	SeedUsers      bool   `yaml:"seedUsers"`
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// RateLimitClass configures one limiter class.
type RateLimitClass struct {
	Window         Duration `yaml:"window"`
	Max            int      `yaml:"max"`
	Code           string   `yaml:"code"`
	SkipSuccessful bool     `yaml:"skipSuccessful"`
}

// ServiceConfig seeds one backend service into the registry.
type ServiceConfig struct {
	Name       string            `yaml:"name"`
	BaseURL    string            `yaml:"baseUrl"`
	Timeout    Duration          `yaml:"timeout"`
	MaxRetries int               `yaml:"maxRetries"`
	Headers    map[string]string `yaml:"headers"`
}

// BreakerConfig configures per-service circuit breakers.
type BreakerConfig struct {
	Enabled             bool     `yaml:"enabled"`
	ConsecutiveFailures int      `yaml:"consecutiveFailures"`
	OpenTimeout         Duration `yaml:"openTimeout"`
	HalfOpenRequests    int      `yaml:"halfOpenRequests"`
}

// TracingConfig configures OpenTelemetry.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(90 * time.Second),
			IdleTimeout:     Duration(120 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
			MaxBodyBytes:    10 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		JWT: JWTConfig{
			Secret:    "your-super-secret-jwt-key",
			Issuer:    "IndyzAI-Gateway",
			ExpiresIn: Duration(24 * time.Hour),
		},
		Security: SecurityConfig{
			InternalAPIKey: "default-internal-key",
			BcryptCost:     12,
			SeedUsers:      true,
		},
		CORS: CORSConfig{
			AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
			AllowCredentials: true,
			MaxAge:           86400,
		},
		RateLimits: DefaultRateLimits(),
		Services: []ServiceConfig{
			{
				Name:       "users",
				BaseURL:    "http://localhost:3001",
				Timeout:    Duration(10 * time.Second),
				MaxRetries: 3,
			},
			{
				Name:       "payments",
				BaseURL:    "https://api.stripe.com",
				Timeout:    Duration(15 * time.Second),
				MaxRetries: 2,
			},
			{
				Name:       "notifications",
				BaseURL:    "https://api.sendgrid.com",
				Timeout:    Duration(5 * time.Second),
				MaxRetries: 1,
			},
		},
		Breaker: BreakerConfig{
			Enabled:             true,
			ConsecutiveFailures: 5,
			OpenTimeout:         Duration(30 * time.Second),
			HalfOpenRequests:    1,
		},
		Tracing: TracingConfig{
			ServiceName:  "indyz-gateway",
			SamplingRate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// DefaultRateLimits returns the built-in limiter classes.
func DefaultRateLimits() map[string]RateLimitClass {
	return map[string]RateLimitClass{
		ClassGlobal: {Window: Duration(15 * time.Minute), Max: 100, Code: "RATE_LIMIT_EXCEEDED"},
		ClassStrict: {Window: Duration(15 * time.Minute), Max: 5, Code: "STRICT_RATE_LIMIT_EXCEEDED"},
		ClassAuth: {
			Window:         Duration(15 * time.Minute),
			Max:            10,
			Code:           "AUTH_RATE_LIMIT_EXCEEDED",
			SkipSuccessful: true,
		},
		ClassAPI: {Window: Duration(time.Minute), Max: 30, Code: "API_RATE_LIMIT_EXCEEDED"},
	}
}

// IsProduction reports whether the gateway runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Service returns the seeded service with the given name.
func (c *Config) Service(name string) (ServiceConfig, bool) {
	for _, s := range c.Services {
		if s.Name == name {
			return s, true
		}
	}
	return ServiceConfig{}, false
}

// ClassNames returns the configured limiter class names in stable order.
func (c *Config) ClassNames() []string {
	names := make([]string, 0, len(c.RateLimits))
	for name := range c.RateLimits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
