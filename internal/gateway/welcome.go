package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/indyzai/api-gateway/internal/response"
)

const (
	gatewayName      = "IndyzAI API Gateway"
	documentationURL = "https://docs.indyzai.com/api-gateway"
)

func (g *Gateway) welcome(c *gin.Context) {
	g.pipeline.Reply(c, http.StatusOK, "Welcome to "+gatewayName, gin.H{
		"name":        gatewayName,
		"version":     g.version,
		"description": "API Gateway with authentication, rate limiting, and proxy capabilities",
		"endpoints": gin.H{
			"auth":   APIPrefix + "/auth",
			"proxy":  APIPrefix + "/proxy",
			"admin":  APIPrefix + "/admin",
			"health": APIPrefix + "/health",
		},
		"documentation": documentationURL,
		"timestamp":     response.Timestamp(response.Clock()),
	})
}

func (g *Gateway) ping(c *gin.Context) {
	g.pipeline.Reply(c, http.StatusOK, "pong", nil)
}

// internalServices lists service names for callers holding the internal
// API key.
func (g *Gateway) internalServices(c *gin.Context) {
	g.pipeline.Reply(c, http.StatusOK, "Services retrieved", g.registry.Names())
}
