package pipeline

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/indyzai/api-gateway/internal/observability"
)

func TestTrace(t *testing.T) {
	tracer, err := observability.NewTracer(context.Background(), observability.TracerConfig{
		ServiceName:  "pipeline-test",
		Enabled:      true,
		SamplingRate: 1.0,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	var seen trace.SpanContext
	p := New()
	engine := gin.New()
	engine.Use(p.Handler(RequestID(), Trace(tracer)))
	engine.GET("/x", func(c *gin.Context) {
		seen = trace.SpanContextFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	t.Run("starts a new trace", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/x", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, seen.IsValid())
		assert.True(t, seen.IsSampled())
	})

	t.Run("continues the caller's trace", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/x", "", map[string]string{
			"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", seen.TraceID().String())
		assert.NotEqual(t, "00f067aa0ba902b7", seen.SpanID().String())
	})
}

func TestTrace_DisabledTracer(t *testing.T) {
	tracer, err := observability.NewTracer(context.Background(), observability.TracerConfig{})
	require.NoError(t, err)

	p := New()
	engine := gin.New()
	engine.Use(p.Handler(Trace(tracer)))

	w := serve(engine, http.MethodGet, "/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
