package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/indyzai/api-gateway/internal/pipeline"
	"github.com/indyzai/api-gateway/internal/validation"
)

func (g *Gateway) register(c *gin.Context) {
	req := pipeline.RequestFrom(c)
	body := req.Input.Body.(*validation.RegisterRequest)

	result, err := g.users.Register(req.Context(), body.Email, body.Password, body.Role)
	if err != nil {
		g.pipeline.Abort(c, err)
		return
	}
	g.pipeline.Reply(c, http.StatusCreated, "User registered successfully", result)
}

func (g *Gateway) login(c *gin.Context) {
	req := pipeline.RequestFrom(c)
	body := req.Input.Body.(*validation.LoginRequest)

	result, err := g.users.Login(req.Context(), body.Email, body.Password)
	if err != nil {
		g.pipeline.Abort(c, err)
		return
	}
	g.pipeline.Reply(c, http.StatusOK, "Login successful", result)
}

func (g *Gateway) me(c *gin.Context) {
	req := pipeline.RequestFrom(c)
	g.pipeline.Reply(c, http.StatusOK, "User profile retrieved", req.Identity)
}

// verifyToken checks a token passed in the body rather than the
// Authorization header, for services validating tokens they received.
func (g *Gateway) verifyToken(c *gin.Context) {
	req := pipeline.RequestFrom(c)

	var token string
	if m, ok := req.Body.(map[string]any); ok {
		token, _ = m["token"].(string)
	}
	if token == "" {
		g.pipeline.Abort(c, pipeline.NewStatusError(http.StatusBadRequest, "MISSING_TOKEN", "Token is required"))
		return
	}

	claims, err := g.verifier.VerifyClaims(req.Context(), token)
	if err != nil {
		g.pipeline.Abort(c, pipeline.NewStatusError(http.StatusUnauthorized, "INVALID_TOKEN", "Invalid token"))
		return
	}

	user, err := g.users.Get(req.Context(), claims.ID)
	if err != nil {
		g.pipeline.Abort(c, err)
		return
	}

	g.pipeline.Reply(c, http.StatusOK, "Token is valid", gin.H{
		"user":    user,
		"decoded": claims,
	})
}
