package gateway

import (
	"maps"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/indyzai/api-gateway/internal/auth"
	"github.com/indyzai/api-gateway/internal/observability"
	"github.com/indyzai/api-gateway/internal/pipeline"
	"github.com/indyzai/api-gateway/internal/proxy"
	"github.com/indyzai/api-gateway/internal/registry"
)

// Upstream paths of the enriched routes.
const (
	chargePath       = "/v1/charges"
	mailSendPath     = "/v3/mail/send"
	defaultMailFrom  = "noreply@indyzai.com"
	proxyFailureCode = "PROXY_REQUEST_FAILED"
)

// versionPrefixes maps services whose APIs are versioned by path to the
// prefix every generic proxied path is rewritten under.
var versionPrefixes = map[string]string{
	"payments":      "/v1",
	"notifications": "/v3",
}

// upstreamPath returns the path a generic proxy request is forwarded to.
func upstreamPath(service, path string) string {
	if path == "" {
		path = "/"
	}
	prefix, ok := versionPrefixes[service]
	if !ok {
		return path
	}
	if path == "/" {
		return prefix
	}
	return prefix + path
}

// serviceView is the public description of a registered service. Headers
// are left out since they carry upstream credentials.
type serviceView struct {
	Name    string `json:"name"`
	BaseURL string `json:"baseUrl"`
	Timeout int64  `json:"timeout"`
	Retries int    `json:"retries"`
}

func viewOf(svc registry.ServiceConfig) serviceView {
	return serviceView{
		Name:    svc.Name,
		BaseURL: svc.BaseURL,
		Timeout: svc.Timeout.Milliseconds(),
		Retries: svc.MaxRetries,
	}
}

func (g *Gateway) serviceViews() []serviceView {
	services := g.registry.List()
	views := make([]serviceView, 0, len(services))
	for _, svc := range services {
		views = append(views, viewOf(svc))
	}
	return views
}

func (g *Gateway) proxyServices(c *gin.Context) {
	g.pipeline.Reply(c, http.StatusOK, "Services retrieved", g.serviceViews())
}

func (g *Gateway) proxyUser(c *gin.Context) {
	req := pipeline.RequestFrom(c)
	g.forward(c, proxy.Call{
		Service: "users",
		Path:    "/users/" + req.Param("id"),
		Method:  http.MethodGet,
	})
}

func (g *Gateway) proxyCharge(c *gin.Context) {
	req := pipeline.RequestFrom(c)
	g.forward(c, proxy.Call{
		Service:   "payments",
		Path:      chargePath,
		Method:    http.MethodPost,
		Body:      req.Body,
		Transform: chargeEnricher(req.Identity),
	})
}

func (g *Gateway) proxyNotification(c *gin.Context) {
	req := pipeline.RequestFrom(c)
	g.forward(c, proxy.Call{
		Service:   "notifications",
		Path:      mailSendPath,
		Method:    http.MethodPost,
		Body:      req.Body,
		Transform: notificationEnricher(req.Identity),
	})
}

func (g *Gateway) proxyGeneric(c *gin.Context) {
	req := pipeline.RequestFrom(c)
	service := req.Param("service")
	g.forward(c, proxy.Call{
		Service: service,
		Path:    upstreamPath(service, req.Param("path")),
		Method:  c.Request.Method,
		Query:   req.Query,
		Body:    req.Body,
	})
}

// forward dispatches call with the caller's forwarding headers and writes
// the upstream answer. Upstream error statuses are passed through.
func (g *Gateway) forward(c *gin.Context, call proxy.Call) {
	req := pipeline.RequestFrom(c)

	call.RequestID = req.CorrelationID
	call.Headers = http.Header{}
	call.Headers.Set("X-Forwarded-For", req.ClientAddress)
	call.Headers.Set("User-Agent", c.Request.UserAgent())

	resp, err := g.dispatcher.Forward(req.Context(), call)
	if err != nil {
		g.pipeline.Abort(c, err)
		return
	}

	if resp.Successful() {
		g.pipeline.Reply(c, resp.Status, "Request successful", resp.Body)
		return
	}

	message := resp.Message()
	if message == "" {
		message = "Request failed with status code " + strconv.Itoa(resp.Status)
	}
	g.logger.WithContext(req.Context()).Warn("proxied request failed",
		observability.String("service", call.Service),
		observability.String("path", call.Path),
		observability.Int("status", resp.Status),
	)

	statusErr := pipeline.NewStatusError(resp.Status, proxyFailureCode, message)
	statusErr.Details = resp.Body
	g.pipeline.Abort(c, statusErr)
}

// chargeEnricher attaches the caller as the payment's customer. Metadata
// sent by the caller is kept and may override the defaults.
func chargeEnricher(identity *auth.Identity) func(any) any {
	return func(body any) any {
		out := objectOf(body)
		metadata := map[string]any{
			"user_id":    identity.ID,
			"user_email": identity.Email,
		}
		if m, ok := out["metadata"].(map[string]any); ok {
			maps.Copy(metadata, m)
		}
		out["customer_id"] = identity.ID
		out["metadata"] = metadata
		return out
	}
}

// notificationEnricher addresses the mail to the caller unless the first
// personalization says otherwise.
func notificationEnricher(identity *auth.Identity) func(any) any {
	return func(body any) any {
		out := objectOf(body)
		if from, ok := out["from"]; !ok || isBlank(from) {
			out["from"] = defaultMailFrom
		}

		personalization := map[string]any{
			"to":      []any{map[string]any{"email": identity.Email}},
			"subject": out["subject"],
		}
		if list, ok := out["personalizations"].([]any); ok && len(list) > 0 {
			if first, ok := list[0].(map[string]any); ok {
				maps.Copy(personalization, first)
			}
		}
		out["personalizations"] = []any{personalization}
		return out
	}
}

func objectOf(body any) map[string]any {
	out := make(map[string]any)
	if m, ok := body.(map[string]any); ok {
		maps.Copy(out, m)
	}
	return out
}

func isBlank(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	case bool:
		return !s
	}
	return false
}
