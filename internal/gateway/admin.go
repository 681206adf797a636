package gateway

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/indyzai/api-gateway/internal/observability"
	"github.com/indyzai/api-gateway/internal/pipeline"
	"github.com/indyzai/api-gateway/internal/registry"
	"github.com/indyzai/api-gateway/internal/validation"
)

func (g *Gateway) adminListUsers(c *gin.Context) {
	req := pipeline.RequestFrom(c)
	list, err := g.users.List(req.Context())
	if err != nil {
		g.pipeline.Abort(c, err)
		return
	}
	g.pipeline.Reply(c, http.StatusOK, "Users retrieved", list)
}

func (g *Gateway) adminGetUser(c *gin.Context) {
	req := pipeline.RequestFrom(c)
	params := req.Input.Params.(*validation.IDParams)

	user, err := g.users.Get(req.Context(), params.ID)
	if err != nil {
		g.pipeline.Abort(c, err)
		return
	}
	g.pipeline.Reply(c, http.StatusOK, "User retrieved", user)
}

func (g *Gateway) adminUpdatePermissions(c *gin.Context) {
	req := pipeline.RequestFrom(c)
	params := req.Input.Params.(*validation.IDParams)
	body := req.Input.Body.(*validation.PermissionsRequest)

	if err := g.users.UpdatePermissions(req.Context(), params.ID, body.Permissions); err != nil {
		g.pipeline.Abort(c, err)
		return
	}
	g.logger.WithContext(req.Context()).Info("user permissions updated",
		observability.String("user_id", params.ID),
		observability.Strings("permissions", body.Permissions),
		observability.String("updated_by", req.Identity.ID),
	)
	g.pipeline.Reply(c, http.StatusOK, "User permissions updated", nil)
}

func (g *Gateway) adminDeleteUser(c *gin.Context) {
	req := pipeline.RequestFrom(c)
	params := req.Input.Params.(*validation.IDParams)

	if err := g.users.DeleteAs(req.Context(), req.Identity, params.ID); err != nil {
		g.pipeline.Abort(c, err)
		return
	}
	g.logger.WithContext(req.Context()).Info("user deleted",
		observability.String("user_id", params.ID),
		observability.String("deleted_by", req.Identity.ID),
	)
	g.pipeline.Reply(c, http.StatusOK, "User deleted", nil)
}

func (g *Gateway) adminListServices(c *gin.Context) {
	g.pipeline.Reply(c, http.StatusOK, "Services retrieved", g.serviceViews())
}

func (g *Gateway) adminAddService(c *gin.Context) {
	req := pipeline.RequestFrom(c)
	body := req.Input.Body.(*validation.AddServiceRequest)

	svc := registry.ServiceConfig{
		Name:       body.Name,
		BaseURL:    body.BaseURL,
		Timeout:    time.Duration(body.Timeout) * time.Millisecond,
		MaxRetries: *body.Retries,
		Headers:    body.Headers,
	}
	g.registry.Add(svc)

	g.pipeline.Reply(c, http.StatusCreated, "Service added", viewOf(svc))
}

func (g *Gateway) adminRemoveService(c *gin.Context) {
	req := pipeline.RequestFrom(c)
	params := req.Input.Params.(*validation.NameParams)

	if !g.registry.Remove(params.Name) {
		g.pipeline.Abort(c, pipeline.NewStatusError(http.StatusNotFound, "SERVICE_NOT_FOUND", "Service not found"))
		return
	}
	g.pipeline.Reply(c, http.StatusOK, "Service removed", nil)
}

type serviceSummary struct {
	Name    string `json:"name"`
	BaseURL string `json:"baseUrl"`
}

type systemStats struct {
	Users    any `json:"users"`
	Services struct {
		Total int              `json:"total"`
		List  []serviceSummary `json:"list"`
	} `json:"services"`
	System struct {
		Uptime      float64 `json:"uptime"`
		Memory      any     `json:"memory"`
		GoVersion   string  `json:"goVersion"`
		Environment string  `json:"environment"`
	} `json:"system"`
}

func (g *Gateway) adminStats(c *gin.Context) {
	req := pipeline.RequestFrom(c)
	userStats, err := g.users.Stats(req.Context())
	if err != nil {
		g.pipeline.Abort(c, err)
		return
	}

	var stats systemStats
	stats.Users = userStats

	services := g.registry.List()
	stats.Services.Total = len(services)
	stats.Services.List = make([]serviceSummary, 0, len(services))
	for _, svc := range services {
		stats.Services.List = append(stats.Services.List, serviceSummary{Name: svc.Name, BaseURL: svc.BaseURL})
	}

	snapshot := g.checker.Snapshot()
	stats.System.Uptime = snapshot.Uptime
	stats.System.Memory = snapshot.Memory
	stats.System.GoVersion = runtime.Version()
	stats.System.Environment = g.cfg.Environment

	g.pipeline.Reply(c, http.StatusOK, "System statistics retrieved", stats)
}
