package pipeline

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/indyzai/api-gateway/internal/config"
)

// SecurityConfig holds the hardening headers set on every response.
type SecurityConfig struct {
	HSTSMaxAge            int
	HSTSIncludeSubDomains bool
	ContentSecurityPolicy string
	XFrameOptions         string
	XContentTypeOptions   string
	XXSSProtection        string
	ReferrerPolicy        string
}

// DefaultSecurityConfig returns secure defaults.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		HSTSMaxAge:            31536000,
		HSTSIncludeSubDomains: true,
		ContentSecurityPolicy: "default-src 'self'",
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		XXSSProtection:        "0",
		ReferrerPolicy:        "no-referrer",
	}
}

// SecurityHeaders sets cfg's headers on the response.
func SecurityHeaders(cfg SecurityConfig) Stage {
	headers := make(map[string]string)
	if cfg.HSTSMaxAge > 0 {
		hsts := fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubDomains {
			hsts += "; includeSubDomains"
		}
		headers["Strict-Transport-Security"] = hsts
	}
	set := func(name, value string) {
		if value != "" {
			headers[name] = value
		}
	}
	set("Content-Security-Policy", cfg.ContentSecurityPolicy)
	set("X-Frame-Options", cfg.XFrameOptions)
	set("X-Content-Type-Options", cfg.XContentTypeOptions)
	set("X-XSS-Protection", cfg.XXSSProtection)
	set("Referrer-Policy", cfg.ReferrerPolicy)

	return StageFunc(func(req *Request) Outcome {
		h := req.ResponseHeader()
		for name, value := range headers {
			h.Set(name, value)
		}
		return Continue()
	})
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig returns the gateway's CORS policy for the local
// frontends.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "X-Requested-With", "Content-Type", "Accept", "Authorization",
			"X-API-Key", "X-Request-ID", "Cache-Control",
		},
		ExposeHeaders: []string{
			"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}
}

// CORSFromConfig overlays the configured origins and credentials policy on
// DefaultCORSConfig.
func CORSFromConfig(cfg config.CORSConfig) CORSConfig {
	c := DefaultCORSConfig()
	if len(cfg.AllowedOrigins) > 0 {
		c.AllowOrigins = cfg.AllowedOrigins
	}
	c.AllowCredentials = cfg.AllowCredentials
	if cfg.MaxAge > 0 {
		c.MaxAge = cfg.MaxAge
	}
	return c
}

// corsHeaders holds pre-computed CORS header values.
type corsHeaders struct {
	allowOrigins     map[string]bool
	wildcardPatterns []string
	allowAllOrigins  bool
	allowMethods     string
	allowHeaders     string
	exposeHeaders    string
	maxAge           string
	allowCredentials bool
}

func newCORSHeaders(cfg CORSConfig) *corsHeaders {
	h := &corsHeaders{
		allowOrigins:     make(map[string]bool),
		allowMethods:     strings.Join(cfg.AllowMethods, ", "),
		allowHeaders:     strings.Join(cfg.AllowHeaders, ", "),
		exposeHeaders:    strings.Join(cfg.ExposeHeaders, ", "),
		allowCredentials: cfg.AllowCredentials,
	}
	if cfg.MaxAge > 0 {
		h.maxAge = strconv.Itoa(cfg.MaxAge)
	}

	for _, origin := range cfg.AllowOrigins {
		switch {
		case origin == "*":
			h.allowAllOrigins = true
		case strings.HasPrefix(origin, "*."):
			h.wildcardPatterns = append(h.wildcardPatterns, origin)
		default:
			h.allowOrigins[origin] = true
		}
	}
	return h
}

func (h *corsHeaders) isOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if h.allowAllOrigins || h.allowOrigins[origin] {
		return true
	}
	for _, pattern := range h.wildcardPatterns {
		if matchWildcardOrigin(origin, pattern) {
			return true
		}
	}
	return false
}

// matchWildcardOrigin reports whether origin's host is a strict subdomain
// of a "*.example.com" pattern.
func matchWildcardOrigin(origin, pattern string) bool {
	suffix := pattern[1:]

	host := origin
	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return len(host) > len(suffix) && strings.HasSuffix(host, suffix)
}

func (h *corsHeaders) apply(header http.Header, origin string) {
	if h.isOriginAllowed(origin) {
		header.Set("Access-Control-Allow-Origin", origin)
		header.Add("Vary", "Origin")
		if h.allowCredentials {
			header.Set("Access-Control-Allow-Credentials", "true")
		}
	}
	if h.exposeHeaders != "" {
		header.Set("Access-Control-Expose-Headers", h.exposeHeaders)
	}
}

func (h *corsHeaders) applyPreflight(header http.Header) {
	if h.allowMethods != "" {
		header.Set("Access-Control-Allow-Methods", h.allowMethods)
	}
	if h.allowHeaders != "" {
		header.Set("Access-Control-Allow-Headers", h.allowHeaders)
	}
	if h.maxAge != "" {
		header.Set("Access-Control-Max-Age", h.maxAge)
	}
}

// CORS sets cross-origin headers and answers preflight requests with 200,
// halting the pipeline.
func CORS(cfg CORSConfig) Stage {
	headers := newCORSHeaders(cfg)

	return StageFunc(func(req *Request) Outcome {
		h := req.ResponseHeader()
		headers.apply(h, req.Header().Get("Origin"))

		if req.Method == http.MethodOptions {
			headers.applyPreflight(h)
			return Respond(http.StatusOK, nil)
		}
		return Continue()
	})
}
