package pipeline

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/indyzai/api-gateway/internal/observability"
	"github.com/indyzai/api-gateway/internal/response"
)

// Recovery converts a panic anywhere downstream into a 500 envelope.
func (p *Pipeline) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				stack := debug.Stack()
				req := RequestFrom(c)

				p.logger.WithContext(c.Request.Context()).Error("panic recovered",
					observability.Any("error", rec),
					observability.String("method", c.Request.Method),
					observability.String("path", c.Request.URL.Path),
					observability.String("client_ip", req.ClientAddress),
					observability.String("stack", string(stack)),
				)

				if c.Writer.Written() {
					c.Abort()
					return
				}

				env := response.Failure("Internal server error", "INTERNAL_ERROR", req.CorrelationID)
				if !p.errors.production {
					env = env.WithStack(fmt.Sprintf("panic: %v\n%s", rec, stack))
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, env)
			}
		}()

		c.Next()
	}
}
