package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	for _, namespace := range []string{"custom", ""} {
		m := NewMetrics(namespace)
		require.NotNil(t, m)
		assert.NotNil(t, m.Registry())
	}
}

func TestMetrics_Recorders(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test")

	m.RecordRequest("GET", "/api/health", 200, 10*time.Millisecond)
	m.RecordRequest("GET", "", 404, time.Millisecond)
	m.RecordRateLimitDenied("api")
	m.RecordRateLimitDenied("api")
	m.RecordUpstreamAttempt("users")
	m.RecordUpstreamResult("users", "success", time.Second)
	m.RecordRegistryChange("added", 4)
	m.SetCircuitState("users", 2)
	m.SetBuildInfo("1.0.0", "abc")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/api/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", unmatchedRoute, "404")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rateLimitDenied.WithLabelValues("api")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamAttempts.WithLabelValues("users")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamResults.WithLabelValues("users", "success")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.registrySize))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.circuitState.WithLabelValues("users")))
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("GET", "/", 200, time.Millisecond)
		m.RecordRateLimitDenied("global")
		m.RecordUpstreamAttempt("users")
		m.RecordUpstreamResult("users", "timeout", time.Second)
		m.RecordRegistryChange("removed", 0)
		m.SetCircuitState("users", 0)
		m.SetBuildInfo("dev", "none")
	})
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics("gw")
	m.RecordRateLimitDenied("strict")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `gw_ratelimit_denied_total{class="strict"} 1`)
}
