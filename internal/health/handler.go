package health

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/indyzai/api-gateway/internal/pipeline"
	"github.com/indyzai/api-gateway/internal/response"
)

// Handler serves the health endpoints.
type Handler struct {
	checker *Checker
	p       *pipeline.Pipeline
}

// NewHandler creates a handler replying through p.
func NewHandler(checker *Checker, p *pipeline.Pipeline) *Handler {
	return &Handler{checker: checker, p: p}
}

// RegisterRoutesOnGroup mounts the group root, /detailed, /ready and /live on group.
func (h *Handler) RegisterRoutesOnGroup(group *gin.RouterGroup) {
	group.GET("", h.Health)
	group.GET("/", h.Health)
	group.GET("/detailed", h.Detailed)
	group.GET("/ready", h.Readiness)
	group.GET("/live", h.Liveness)
}

// Health reports the process state.
func (h *Handler) Health(c *gin.Context) {
	h.p.Reply(c, http.StatusOK, "Service is healthy", h.checker.Snapshot())
}

// Detailed probes every backend. A degraded report is answered with 503.
func (h *Handler) Detailed(c *gin.Context) {
	report := h.checker.Check(c.Request.Context())

	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	h.p.Reply(c, status, "Detailed health check completed", report)
}

// Readiness reports whether the gateway accepts traffic.
func (h *Handler) Readiness(c *gin.Context) {
	if h.checker.Ready() {
		h.p.Reply(c, http.StatusOK, "Service is ready", gin.H{"ready": true})
		return
	}

	env := response.Failure("Service is not ready", "NOT_READY", pipeline.RequestFrom(c).CorrelationID)
	env.Data = gin.H{"ready": false}
	c.JSON(http.StatusServiceUnavailable, env)
}

// Liveness always answers while the process runs.
func (h *Handler) Liveness(c *gin.Context) {
	h.p.Reply(c, http.StatusOK, "Service is alive", gin.H{"alive": true})
}
