package gateway

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/indyzai/api-gateway/internal/authz"
	"github.com/indyzai/api-gateway/internal/config"
	"github.com/indyzai/api-gateway/internal/health"
	"github.com/indyzai/api-gateway/internal/pipeline"
	"github.com/indyzai/api-gateway/internal/validation"
)

// APIPrefix is the mount point of every versioned route group.
const APIPrefix = "/api"

func (g *Gateway) buildEngine() (*gin.Engine, error) {
	p := g.pipeline

	engine := gin.New()
	engine.HandleMethodNotAllowed = false
	// gin trusts every proxy unless told otherwise. An empty list makes
	// ClientIP the socket peer.
	if err := engine.SetTrustedProxies(g.cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	engine.Use(
		p.Recovery(),
		p.Handler(
			pipeline.RequestID(),
			pipeline.Trace(g.tracer),
			p.Logging(),
			pipeline.SecurityHeaders(pipeline.DefaultSecurityConfig()),
			pipeline.CORS(pipeline.CORSFromConfig(g.cfg.CORS)),
			pipeline.DecodeBody(g.cfg.Server.MaxBodyBytes),
			pipeline.Sanitize(),
			pipeline.RateLimit(g.limiter, config.ClassGlobal),
		),
	)

	engine.GET("/ping", g.ping)
	if g.cfg.Metrics.Enabled && g.metrics != nil {
		engine.GET(g.cfg.Metrics.Path, gin.WrapH(g.metrics.Handler()))
	}

	api := engine.Group(APIPrefix)
	api.GET("/", g.welcome)

	g.registerAuthRoutes(api.Group("/auth"))
	g.registerProxyRoutes(api.Group("/proxy"))
	g.registerAdminRoutes(api.Group("/admin"))

	api.GET("/internal/services", p.Handler(pipeline.APIKey(g.apiKeys)), g.internalServices)

	health.NewHandler(g.checker, p).RegisterRoutesOnGroup(api.Group("/health"))

	engine.NoRoute(p.NotFound())
	return engine, nil
}

func (g *Gateway) registerAuthRoutes(group *gin.RouterGroup) {
	p := g.pipeline
	limit := pipeline.RateLimit(g.limiter, config.ClassAuth)
	jwt := pipeline.Authenticate(g.verifier)

	group.POST("/register", p.Handler(limit, pipeline.Validate(g.validator, validation.RegisterSchema)), g.register)
	group.POST("/login", p.Handler(limit, pipeline.Validate(g.validator, validation.LoginSchema)), g.login)
	group.GET("/me", p.Handler(jwt), g.me)
	group.POST("/verify", g.verifyToken)
}

func (g *Gateway) registerProxyRoutes(group *gin.RouterGroup) {
	p := g.pipeline
	limit := pipeline.RateLimit(g.limiter, config.ClassAPI)
	jwt := pipeline.Authenticate(g.verifier)

	group.GET("/services", p.Handler(jwt), g.proxyServices)
	group.GET("/users/:id", p.Handler(pipeline.OptionalAuthenticate(g.verifier), limit), g.proxyUser)
	group.POST("/payments/charge", p.Handler(jwt, limit), g.proxyCharge)
	group.POST("/notifications/send", p.Handler(jwt, limit), g.proxyNotification)
	group.Any("/:service/*path", p.Handler(jwt, limit), g.proxyGeneric)
}

func (g *Gateway) registerAdminRoutes(group *gin.RouterGroup) {
	p := g.pipeline
	group.Use(p.Handler(
		pipeline.Authenticate(g.verifier),
		pipeline.RequireRole(authz.RoleAdmin),
		pipeline.RateLimit(g.limiter, config.ClassStrict),
	))

	group.GET("/users", g.adminListUsers)
	group.GET("/users/:id", p.Handler(pipeline.Validate(g.validator, validation.IDParamSchema)), g.adminGetUser)
	group.PUT("/users/:id/permissions",
		p.Handler(pipeline.Validate(g.validator, validation.UpdatePermissionsSchema)), g.adminUpdatePermissions)
	group.DELETE("/users/:id", p.Handler(pipeline.Validate(g.validator, validation.IDParamSchema)), g.adminDeleteUser)

	group.GET("/services", g.adminListServices)
	group.POST("/services", p.Handler(pipeline.Validate(g.validator, validation.AddServiceSchema)), g.adminAddService)
	group.DELETE("/services/:name",
		p.Handler(pipeline.Validate(g.validator, validation.ServiceNameSchema)), g.adminRemoveService)

	group.GET("/stats", g.adminStats)
}
