package pipeline

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/indyzai/api-gateway/internal/auth"
	"github.com/indyzai/api-gateway/internal/validation"
)

const requestKey = "pipeline.request"

// Request is the per-request state shared by stages and handlers.
type Request struct {
	CorrelationID string
	Method        string
	Path          string
	ClientAddress string

	// Identity is set by Authenticate or OptionalAuthenticate.
	Identity *auth.Identity

	// Body is the decoded JSON body, nil when absent.
	Body any
	// Query holds every value of every query key. Sanitize cleans it in
	// place and writes it back to the request URL.
	Query  url.Values
	Params map[string]string

	// Input holds the typed values produced by Validate.
	Input *validation.Result

	c       *gin.Context
	limited []limitedClass
}

type limitedClass struct {
	class string
	key   string
}

// RequestFrom returns the pipeline request of c, creating it on first use.
func RequestFrom(c *gin.Context) *Request {
	if v, ok := c.Get(requestKey); ok {
		if req, ok := v.(*Request); ok {
			return req
		}
	}

	req := &Request{
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		ClientAddress: c.ClientIP(),
		Query:         c.Request.URL.Query(),
		Params:        make(map[string]string, len(c.Params)),
		c:             c,
	}
	for _, p := range c.Params {
		req.Params[p.Key] = p.Value
	}
	c.Set(requestKey, req)
	return req
}

// Context returns the context of the underlying HTTP request.
func (r *Request) Context() context.Context {
	return r.c.Request.Context()
}

// SetContext replaces the context of the underlying HTTP request.
func (r *Request) SetContext(ctx context.Context) {
	r.c.Request = r.c.Request.WithContext(ctx)
}

// Header returns the header of the incoming request.
func (r *Request) Header() http.Header {
	return r.c.Request.Header
}

// ResponseHeader returns the header map that will be written.
func (r *Request) ResponseHeader() http.Header {
	return r.c.Writer.Header()
}

// Param returns a path parameter, preferring the sanitized copy.
func (r *Request) Param(name string) string {
	if v, ok := r.Params[name]; ok {
		return v
	}
	return r.c.Param(name)
}

func firstValues(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
