package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indyzai/api-gateway/internal/auth"
	"github.com/indyzai/api-gateway/internal/ratelimit"
	"github.com/indyzai/api-gateway/internal/validation"
)

func TestSecurityHeaders(t *testing.T) {
	p := New()
	engine := gin.New()
	engine.Use(p.Handler(SecurityHeaders(DefaultSecurityConfig())))
	engine.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, http.MethodGet, "/x", "", nil)
	assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Referrer-Policy"))
}

func TestCORS(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = append(cfg.AllowOrigins, "*.indyzai.com")

	p := New()
	engine := gin.New()
	engine.Use(p.Handler(CORS(cfg)))
	engine.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.NoRoute(p.NotFound())

	tests := []struct {
		name        string
		method      string
		origin      string
		wantStatus  int
		wantAllowed bool
		wantMethods bool
	}{
		{name: "allowed origin", method: http.MethodGet, origin: "http://localhost:3000", wantStatus: 200, wantAllowed: true},
		{name: "wildcard subdomain", method: http.MethodGet, origin: "https://app.indyzai.com", wantStatus: 200, wantAllowed: true},
		{name: "bare wildcard domain", method: http.MethodGet, origin: "https://indyzai.com", wantStatus: 200},
		{name: "unknown origin", method: http.MethodGet, origin: "https://evil.example", wantStatus: 200},
		{name: "preflight", method: http.MethodOptions, origin: "http://localhost:5173", wantStatus: 200, wantAllowed: true, wantMethods: true},
		{name: "preflight on unknown route", method: http.MethodOptions, origin: "http://localhost:5173", wantStatus: 200, wantAllowed: true, wantMethods: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/x"
			if strings.Contains(tt.name, "unknown route") {
				path = "/missing"
			}
			w := serve(engine, tt.method, path, "", map[string]string{"Origin": tt.origin})
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantAllowed {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
			assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-RateLimit-Remaining")

			if tt.wantMethods {
				assert.Equal(t, "GET, POST, PUT, DELETE, PATCH, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
				assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
				assert.Empty(t, w.Body.String())
			}
		})
	}
}

func TestDecodeBodyAndSanitize(t *testing.T) {
	p := New()
	engine := gin.New()
	engine.Use(p.Handler(RequestID(), DecodeBody(64), Sanitize()))
	engine.POST("/echo/:name", func(c *gin.Context) {
		req := RequestFrom(c)
		c.JSON(http.StatusOK, gin.H{"body": req.Body, "query": req.Query, "name": req.Param("name")})
	})

	t.Run("decodes and sanitizes", func(t *testing.T) {
		w := serve(engine, http.MethodPost, "/echo/ab?q=%3CSCRIPT%3E1%3C%2FSCRIPT%3Eok",
			`{"msg":"hi<script>alert(1)</script>","list":["<script>x</script>y"]}`, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, `{"body":{"msg":"hi","list":["y"]},"query":{"q":["ok"]},"name":"ab"}`, w.Body.String())
	})

	t.Run("sanitizes every query value and the raw query", func(t *testing.T) {
		var raw, first string
		e := gin.New()
		e.Use(p.Handler(Sanitize()))
		e.GET("/q", func(c *gin.Context) {
			raw = c.Request.URL.RawQuery
			first = c.Query("tag")
			c.JSON(http.StatusOK, gin.H{"query": RequestFrom(c).Query})
		})

		w := serve(e, http.MethodGet, "/q?tag=a%3Cscript%3Ex%3C%2Fscript%3E&tag=%3CScript%3Ey%3C%2Fscript%3Eb&plain=1", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"query":{"tag":["a","b"],"plain":["1"]}}`, w.Body.String())
		assert.NotContains(t, strings.ToLower(raw), "script")
		assert.Equal(t, "a", first)
	})

	t.Run("invalid json", func(t *testing.T) {
		w := serve(engine, http.MethodPost, "/echo/a", `{"msg":`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decode(t, w)
		assert.Equal(t, "INVALID_JSON", env.Error)
		assert.Equal(t, "Invalid JSON payload", env.Message)
	})

	t.Run("too large", func(t *testing.T) {
		w := serve(engine, http.MethodPost, "/echo/a", `{"msg":"`+strings.Repeat("x", 100)+`"}`, nil)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, "PAYLOAD_TOO_LARGE", decode(t, w).Error)
	})

	t.Run("empty body", func(t *testing.T) {
		w := serve(engine, http.MethodPost, "/echo/a", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"body":null,"query":{},"name":"a"}`, w.Body.String())
	})
}

func newTestLimiter(t *testing.T, now *time.Time) *ratelimit.Limiter {
	t.Helper()
	l, err := ratelimit.NewLimiter([]ratelimit.Class{
		{Name: "api", Window: time.Minute, Max: 2, Code: "API_RATE_LIMIT_EXCEEDED"},
		{Name: "auth", Window: time.Minute, Max: 2, Code: "AUTH_RATE_LIMIT_EXCEEDED", SkipSuccessful: true},
	}, ratelimit.WithClock(func() time.Time { return *now }))
	require.NoError(t, err)
	return l
}

func TestRateLimit(t *testing.T) {
	now := time.Now()
	limiter := newTestLimiter(t, &now)

	p := New()
	engine := gin.New()
	engine.GET("/api", p.Handler(RateLimit(limiter, "api")), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 1; i <= 2; i++ {
		w := serve(engine, http.MethodGet, "/api", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get(HeaderRateLimitLimit))
		assert.Equal(t, strconv.Itoa(2-i), w.Header().Get(HeaderRateLimitRemaining))
		assert.Equal(t, strconv.FormatInt(now.Add(time.Minute).Unix(), 10), w.Header().Get(HeaderRateLimitReset))
	}

	w := serve(engine, http.MethodGet, "/api", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	env := decode(t, w)
	assert.Equal(t, "API_RATE_LIMIT_EXCEEDED", env.Error)
	assert.Equal(t, "Rate limit exceeded", env.Message)
	assert.NotEmpty(t, w.Header().Get(HeaderRetryAfter))
}

func TestRateLimit_SkipSuccessful(t *testing.T) {
	now := time.Now()
	limiter := newTestLimiter(t, &now)

	p := New()
	engine := gin.New()
	engine.POST("/login", p.Handler(RateLimit(limiter, "auth")), func(c *gin.Context) {
		if c.Query("ok") == "1" {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusUnauthorized)
	})

	// Successful attempts never use up the budget.
	for range 5 {
		w := serve(engine, http.MethodPost, "/login?ok=1", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	// Failures do.
	for range 2 {
		w := serve(engine, http.MethodPost, "/login", "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := serve(engine, http.MethodPost, "/login?ok=1", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "AUTH_RATE_LIMIT_EXCEEDED", decode(t, w).Error)
}

type stubParser struct {
	claims *auth.Claims
	err    error
}

func (p stubParser) ParseToken(_ context.Context, token string) (*auth.Claims, error) {
	if token != "good" {
		if p.err != nil {
			return nil, p.err
		}
		return nil, auth.NewAuthError(auth.KindInvalidToken, nil)
	}
	return p.claims, nil
}

func TestAuthenticateAndAuthorize(t *testing.T) {
	claims := &auth.Claims{Identity: auth.Identity{ID: "u1", Email: "u@x.io", Role: "user", Permissions: []string{"read"}}}
	verifier := auth.NewVerifier(stubParser{claims: claims})
	expired := auth.NewVerifier(stubParser{err: auth.NewAuthError(auth.KindExpiredToken, nil)})

	p := New()
	engine := gin.New()
	ok := func(c *gin.Context) {
		identity, _ := auth.IdentityFromContext(c.Request.Context())
		id := ""
		if identity != nil {
			id = identity.ID
		}
		c.String(http.StatusOK, id)
	}
	engine.GET("/me", p.Handler(Authenticate(verifier)), ok)
	engine.GET("/expired", p.Handler(Authenticate(expired)), ok)
	engine.GET("/optional", p.Handler(OptionalAuthenticate(verifier)), ok)
	engine.GET("/admin", p.Handler(Authenticate(verifier), RequireRole("admin")), ok)
	engine.GET("/any-role", p.Handler(OptionalAuthenticate(verifier), RequireRole()), ok)
	engine.GET("/write", p.Handler(Authenticate(verifier), RequirePermission("write")), ok)
	engine.GET("/read", p.Handler(Authenticate(verifier), RequirePermission("read")), ok)

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
		wantCode   string
		wantBody   string
	}{
		{name: "missing token", path: "/me", wantStatus: 401, wantCode: "MISSING_TOKEN"},
		{name: "invalid token", path: "/me", token: "bad", wantStatus: 403, wantCode: "INVALID_TOKEN"},
		{name: "expired token", path: "/expired", token: "old", wantStatus: 403, wantCode: "TOKEN_EXPIRED"},
		{name: "valid token", path: "/me", token: "good", wantStatus: 200, wantBody: "u1"},
		{name: "optional without token", path: "/optional", wantStatus: 200, wantBody: ""},
		{name: "optional with bad token", path: "/optional", token: "bad", wantStatus: 200, wantBody: ""},
		{name: "optional with good token", path: "/optional", token: "good", wantStatus: 200, wantBody: "u1"},
		{name: "wrong role", path: "/admin", token: "good", wantStatus: 403, wantCode: "INSUFFICIENT_PERMISSIONS"},
		{name: "empty role list requires identity", path: "/any-role", wantStatus: 401, wantCode: "AUTH_REQUIRED"},
		{name: "empty role list with identity", path: "/any-role", token: "good", wantStatus: 200, wantBody: "u1"},
		{name: "missing permission", path: "/write", token: "good", wantStatus: 403, wantCode: "MISSING_PERMISSION"},
		{name: "held permission", path: "/read", token: "good", wantStatus: 200, wantBody: "u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.token != "" {
				headers["Authorization"] = "Bearer " + tt.token
			}
			w := serve(engine, http.MethodGet, tt.path, "", headers)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				env := decode(t, w)
				assert.Equal(t, tt.wantCode, env.Error)
				assert.False(t, env.Success)
				return
			}
			assert.Equal(t, tt.wantBody, w.Body.String())
		})
	}

	t.Run("missing permission message names the permission", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/write", "", map[string]string{"Authorization": "Bearer good"})
		assert.Equal(t, "Permission 'write' required", decode(t, w).Message)
	})
}

func TestAPIKey(t *testing.T) {
	p := New()
	engine := gin.New()
	engine.GET("/internal", p.Handler(APIKey(auth.NewAPIKeyVerifier("secret"))), func(c *gin.Context) {
		_, hasIdentity := auth.IdentityFromContext(c.Request.Context())
		c.String(http.StatusOK, strconv.FormatBool(hasIdentity))
	})

	tests := []struct {
		name       string
		key        string
		wantStatus int
		wantCode   string
	}{
		{name: "missing", wantStatus: 401, wantCode: "MISSING_API_KEY"},
		{name: "wrong", key: "nope", wantStatus: 403, wantCode: "INVALID_API_KEY"},
		{name: "valid", key: "secret", wantStatus: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.key != "" {
				headers[auth.HeaderAPIKey] = tt.key
			}
			w := serve(engine, http.MethodGet, "/internal", "", headers)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decode(t, w).Error)
				return
			}
			assert.Equal(t, "false", w.Body.String())
		})
	}
}

func TestValidate(t *testing.T) {
	p := New()
	v := validation.New()
	engine := gin.New()
	engine.Use(p.Handler(DecodeBody(0)))
	engine.POST("/login", p.Handler(Validate(v, validation.LoginSchema)), func(c *gin.Context) {
		in := RequestFrom(c).Input.Body.(*validation.LoginRequest)
		c.String(http.StatusOK, in.Email)
	})

	t.Run("valid", func(t *testing.T) {
		w := serve(engine, http.MethodPost, "/login", `{"email":"a@b.io","password":"secret1"}`, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "a@b.io", w.Body.String())
	})

	t.Run("every failing field reported", func(t *testing.T) {
		w := serve(engine, http.MethodPost, "/login", `{"email":"nope","password":"123"}`, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		env := decode(t, w)
		assert.Equal(t, "VALIDATION_ERROR", env.Error)
		assert.Equal(t, "Validation failed", env.Message)

		var details map[string][]validation.FieldError
		require.NoError(t, json.Unmarshal(env.Details, &details))
		require.Len(t, details["body"], 2)
		assert.Equal(t, "email", details["body"][0].Field)
		assert.Equal(t, "password", details["body"][1].Field)
	})
}
