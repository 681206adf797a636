package pipeline

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/indyzai/api-gateway/internal/auth"
	"github.com/indyzai/api-gateway/internal/authz"
	"github.com/indyzai/api-gateway/internal/observability"
	"github.com/indyzai/api-gateway/internal/proxy"
	"github.com/indyzai/api-gateway/internal/ratelimit"
	"github.com/indyzai/api-gateway/internal/registry"
	"github.com/indyzai/api-gateway/internal/response"
	"github.com/indyzai/api-gateway/internal/users"
	"github.com/indyzai/api-gateway/internal/validation"
)

// Request-level failures raised by the pipeline itself.
var (
	ErrInvalidJSON     = errors.New("invalid JSON payload")
	ErrPayloadTooLarge = errors.New("request body too large")
	ErrRouteNotFound   = errors.New("route not found")
)

// StatusError is a failure whose HTTP rendering is decided by the raiser.
type StatusError struct {
	Status  int
	Code    string
	Message string
	Details any
}

// NewStatusError creates a StatusError.
func NewStatusError(status int, code, message string) *StatusError {
	return &StatusError{Status: status, Code: code, Message: message}
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Problem is the HTTP rendering of an error.
type Problem struct {
	Status  int
	Code    string
	Message string
	Details any
}

type authRendering struct {
	status  int
	code    string
	message string
}

var authProblems = map[auth.ErrorKind]authRendering{
	auth.KindMissingToken:  {http.StatusUnauthorized, "MISSING_TOKEN", "Access token required"},
	auth.KindInvalidToken:  {http.StatusForbidden, "INVALID_TOKEN", "Invalid or expired token"},
	auth.KindExpiredToken:  {http.StatusForbidden, "TOKEN_EXPIRED", "Invalid or expired token"},
	auth.KindMissingAPIKey: {http.StatusUnauthorized, "MISSING_API_KEY", "API key required"},
	auth.KindInvalidAPIKey: {http.StatusForbidden, "INVALID_API_KEY", "Invalid API key"},
}

// Resolve maps err to its HTTP rendering. Unknown errors become a 500.
func Resolve(err error) Problem {
	var (
		statusErr   *StatusError
		authErr     *auth.AuthError
		authzErr    *authz.Error
		validErr    *validation.Error
		limitErr    *ratelimit.ExceededError
		dispatchErr *proxy.DispatchError
		notFoundErr *registry.NotFoundError
	)

	switch {
	case errors.As(err, &statusErr):
		return Problem{statusErr.Status, statusErr.Code, statusErr.Message, statusErr.Details}
	case errors.As(err, &authErr):
		if r, ok := authProblems[authErr.Kind]; ok {
			return Problem{Status: r.status, Code: r.code, Message: r.message}
		}
	case errors.As(err, &authzErr):
		switch authzErr.Kind {
		case authz.KindAuthRequired:
			return Problem{Status: http.StatusUnauthorized, Code: "AUTH_REQUIRED", Message: "Authentication required"}
		case authz.KindInsufficientRole:
			return Problem{Status: http.StatusForbidden, Code: "INSUFFICIENT_PERMISSIONS", Message: "Insufficient permissions"}
		case authz.KindMissingPermission:
			return Problem{
				Status:  http.StatusForbidden,
				Code:    "MISSING_PERMISSION",
				Message: fmt.Sprintf("Permission '%s' required", authzErr.Permission),
			}
		}
	case errors.As(err, &validErr):
		return Problem{
			Status:  http.StatusUnprocessableEntity,
			Code:    "VALIDATION_ERROR",
			Message: "Validation failed",
			Details: validErr.Details(),
		}
	case errors.As(err, &limitErr):
		return Problem{Status: http.StatusTooManyRequests, Code: limitErr.Code, Message: "Rate limit exceeded"}
	case errors.As(err, &dispatchErr):
		return dispatchProblem(dispatchErr)
	case errors.As(err, &notFoundErr):
		return serviceNotFound(notFoundErr.Name)
	case errors.Is(err, users.ErrUserExists):
		return Problem{Status: http.StatusBadRequest, Code: "REGISTRATION_FAILED", Message: "User already exists"}
	case errors.Is(err, users.ErrInvalidCredentials):
		return Problem{Status: http.StatusUnauthorized, Code: "LOGIN_FAILED", Message: "Invalid credentials"}
	case errors.Is(err, users.ErrUserNotFound):
		return Problem{Status: http.StatusNotFound, Code: "USER_NOT_FOUND", Message: "User not found"}
	case errors.Is(err, users.ErrSelfDelete):
		return Problem{Status: http.StatusBadRequest, Code: "SELF_DELETE_FORBIDDEN", Message: "Cannot delete your own account"}
	case errors.Is(err, ErrInvalidJSON):
		return Problem{Status: http.StatusBadRequest, Code: "INVALID_JSON", Message: "Invalid JSON payload"}
	case errors.Is(err, ErrPayloadTooLarge):
		return Problem{Status: http.StatusRequestEntityTooLarge, Code: "PAYLOAD_TOO_LARGE", Message: "Request body too large"}
	case errors.Is(err, ErrRouteNotFound):
		return Problem{Status: http.StatusNotFound, Code: "ROUTE_NOT_FOUND", Message: "Route not found"}
	}

	return Problem{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: "Internal server error"}
}

func dispatchProblem(err *proxy.DispatchError) Problem {
	switch err.Kind {
	case proxy.KindServiceNotFound:
		return serviceNotFound(err.Service)
	case proxy.KindUpstreamTimeout:
		return Problem{Status: http.StatusGatewayTimeout, Code: "GATEWAY_TIMEOUT", Message: "Gateway timeout"}
	default:
		return Problem{Status: http.StatusBadGateway, Code: "SERVICE_UNAVAILABLE", Message: "Service unavailable"}
	}
}

func serviceNotFound(name string) Problem {
	return Problem{
		Status:  http.StatusNotFound,
		Code:    "SERVICE_NOT_FOUND",
		Message: fmt.Sprintf("Service '%s' not found", name),
	}
}

// ErrorHandler renders errors as failure envelopes. It is the only place
// errors become HTTP statuses.
type ErrorHandler struct {
	production bool
	logger     observability.Logger
}

// Render writes err as the response of c and aborts the chain. Outside
// production, 5xx responses carry the error text as their stack.
func (h *ErrorHandler) Render(c *gin.Context, req *Request, err error) {
	p := Resolve(err)

	env := response.Failure(p.Message, p.Code, req.CorrelationID)
	if p.Details != nil {
		env = env.WithDetails(p.Details)
	}

	logger := h.logger.WithContext(req.Context())
	if p.Status >= http.StatusInternalServerError {
		if !h.production {
			env = env.WithStack(err.Error())
		}
		logger.Error("request failed",
			observability.String("code", p.Code),
			observability.Int("status", p.Status),
			observability.Error(err),
		)
	} else {
		logger.Debug("request rejected",
			observability.String("code", p.Code),
			observability.Int("status", p.Status),
			observability.Error(err),
		)
	}

	if c.Writer.Written() {
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(p.Status, env)
}

// NotFound is the terminal handler for unmatched routes.
func (p *Pipeline) NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		p.Abort(c, ErrRouteNotFound)
	}
}
