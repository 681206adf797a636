package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Environment variable names recognized by the gateway.
const (
	EnvPort               = "PORT"
	EnvNodeEnv            = "NODE_ENV"
	EnvGatewayEnv         = "GATEWAY_ENV"
	EnvJWTSecret          = "JWT_SECRET"
	EnvJWTIssuer          = "JWT_ISSUER"
	EnvJWTExpiresInHours  = "JWT_EXPIRES_IN_HOURS"
	EnvRateLimitWindowMS  = "RATE_LIMIT_WINDOW_MS"
	EnvRateLimitMax       = "RATE_LIMIT_MAX_REQUESTS"
	EnvCORSOrigin         = "CORS_ORIGIN"
	EnvTrustedProxies     = "TRUSTED_PROXIES"
	EnvUserServiceURL     = "USER_SERVICE_URL"
	EnvPaymentServiceURL  = "PAYMENT_SERVICE_URL"
	EnvNotificationURL    = "NOTIFICATION_SERVICE_URL"
	EnvStripeAPIKey       = "STRIPE_API_KEY"
	EnvSendgridAPIKey     = "SENDGRID_API_KEY"
	EnvInternalAPIKey     = "INTERNAL_API_KEY"
	EnvBcryptRounds       = "BCRYPT_ROUNDS"
	EnvLogLevel           = "LOG_LEVEL"
	EnvLogFormat          = "LOG_FORMAT"
	EnvOTLPEndpoint       = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvTracingSampleRatio = "OTEL_TRACES_SAMPLER_ARG"
)

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config, lookup LookupEnvFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := get(EnvNodeEnv); ok {
		cfg.Environment = v
	}
	if v, ok := get(EnvGatewayEnv); ok {
		cfg.Environment = v
	}

	if err := envInt(get, EnvPort, func(n int) { cfg.Server.Port = n }); err != nil {
		return err
	}

	if v, ok := get(EnvJWTSecret); ok {
		cfg.JWT.Secret = v
	}
	if v, ok := get(EnvJWTIssuer); ok {
		cfg.JWT.Issuer = v
	}
	if err := envInt(get, EnvJWTExpiresInHours, func(n int) {
		cfg.JWT.ExpiresIn = Duration(time.Duration(n) * time.Hour)
	}); err != nil {
		return err
	}

	global := cfg.RateLimits[ClassGlobal]
	if err := envInt(get, EnvRateLimitWindowMS, func(n int) {
		global.Window = Duration(time.Duration(n) * time.Millisecond)
	}); err != nil {
		return err
	}
	if err := envInt(get, EnvRateLimitMax, func(n int) { global.Max = n }); err != nil {
		return err
	}
	if cfg.RateLimits == nil {
		cfg.RateLimits = make(map[string]RateLimitClass)
	}
	cfg.RateLimits[ClassGlobal] = global

	if v, ok := get(EnvCORSOrigin); ok {
		cfg.CORS.AllowedOrigins = splitList(v)
	}

	if v, ok := get(EnvTrustedProxies); ok {
		cfg.Server.TrustedProxies = splitList(v)
	}

	if v, ok := get(EnvUserServiceURL); ok {
		cfg.updateService("users", func(s *ServiceConfig) { s.BaseURL = v })
	}
	if v, ok := get(EnvPaymentServiceURL); ok {
		cfg.updateService("payments", func(s *ServiceConfig) { s.BaseURL = v })
	}
	if v, ok := get(EnvNotificationURL); ok {
		cfg.updateService("notifications", func(s *ServiceConfig) { s.BaseURL = v })
	}
	if v, ok := get(EnvStripeAPIKey); ok {
		cfg.updateService("payments", bearer(v))
	}
	if v, ok := get(EnvSendgridAPIKey); ok {
		cfg.updateService("notifications", bearer(v))
	}

	if v, ok := get(EnvInternalAPIKey); ok {
		cfg.Security.InternalAPIKey = v
	}
	if err := envInt(get, EnvBcryptRounds, func(n int) { cfg.Security.BcryptCost = n }); err != nil {
		return err
	}

	if v, ok := get(EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
	if v, ok := get(EnvLogFormat); ok {
		cfg.Logging.Format = v
	}

	if v, ok := get(EnvOTLPEndpoint); ok {
		cfg.Tracing.Enabled = true
		cfg.Tracing.OTLPEndpoint = v
	}
	if v, ok := get(EnvTracingSampleRatio); ok {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvTracingSampleRatio, v, err)
		}
		cfg.Tracing.SamplingRate = ratio
	}

	return nil
}

func envInt(get func(string) (string, bool), key string, set func(int)) error {
	v, ok := get(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	set(n)
	return nil
}

func bearer(key string) func(*ServiceConfig) {
	return func(s *ServiceConfig) {
		if s.Headers == nil {
			s.Headers = make(map[string]string)
		}
		s.Headers["Authorization"] = "Bearer " + key
	}
}

// updateService applies fn to the named seeded service if present.
func (c *Config) updateService(name string, fn func(*ServiceConfig)) {
	for i := range c.Services {
		if c.Services[i].Name == name {
			fn(&c.Services[i])
			return
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
