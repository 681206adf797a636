package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// ValidationError aggregates every configuration problem found.
type ValidationError struct {
	Errors []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Errors, "; ")
}

// ErrInvalidConfig is matched by every *ValidationError.
var ErrInvalidConfig = errors.New("invalid configuration")

// Is reports whether target is ErrInvalidConfig.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	switch c.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		add("environment must be one of development, production, test; got %q", c.Environment)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port must be between 1 and 65535; got %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes < 0 {
		add("server.maxBodyBytes must not be negative")
	}
	for _, p := range c.Server.TrustedProxies {
		if !validProxy(p) {
			add("server.trustedProxies: %q is not an IP address or CIDR", p)
		}
	}

	if c.JWT.Secret == "" {
		add("jwt.secret is required")
	}
	if c.JWT.ExpiresIn.Duration() <= 0 {
		add("jwt.expiresIn must be positive")
	}

	if c.Security.InternalAPIKey == "" {
		add("security.internalApiKey is required")
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		add("security.bcryptCost must be between 4 and 31; got %d", c.Security.BcryptCost)
	}

	for _, name := range []string{ClassGlobal, ClassStrict, ClassAuth, ClassAPI} {
		if _, ok := c.RateLimits[name]; !ok {
			add("rateLimits.%s is required", name)
		}
	}
	for _, name := range c.ClassNames() {
		class := c.RateLimits[name]
		if class.Max < 1 {
			add("rateLimits.%s.max must be positive", name)
		}
		if class.Window.Duration() <= 0 {
			add("rateLimits.%s.window must be positive", name)
		}
	}

	seen := make(map[string]bool, len(c.Services))
	for i, s := range c.Services {
		if s.Name == "" {
			add("services[%d].name is required", i)
			continue
		}
		if seen[s.Name] {
			add("services[%d].name %q is duplicated", i, s.Name)
		}
		seen[s.Name] = true
		if u, err := url.Parse(s.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			add("services.%s.baseUrl %q is not an absolute URL", s.Name, s.BaseURL)
		}
		if s.Timeout.Duration() <= 0 {
			add("services.%s.timeout must be positive", s.Name)
		}
		if s.MaxRetries < 0 {
			add("services.%s.maxRetries must not be negative", s.Name)
		}
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		add("tracing.samplingRate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func validProxy(s string) bool {
	if _, err := netip.ParseAddr(s); err == nil {
		return true
	}
	_, _, err := net.ParseCIDR(s)
	return err == nil
}
