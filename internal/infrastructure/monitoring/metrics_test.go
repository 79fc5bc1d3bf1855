package monitoring

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordLogEvent("log")
	a.RecordLogEvent("unknown")
	b.RecordLogEvent("log")

	assert.Equal(t, float64(1), testutil.ToFloat64(a.LogEvents.WithLabelValues("unknown")))
	assert.Equal(t, int64(2), a.Snapshot().LogEvents)
	assert.Equal(t, int64(1), b.Snapshot().LogEvents)
}

func TestRecordNavigation(t *testing.T) {
	m := NewMetrics()

	m.RecordNavigation("idle", "loading")
	m.RecordNavigation("loading", "loaded")
	m.RecordNavigation("loaded", "failed")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.NavigationTransitions.WithLabelValues("loaded", "failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NavigationFailures))
	assert.Equal(t, int64(1), m.Snapshot().NavigationFailures)
}

func TestRecordBridgeMessage(t *testing.T) {
	m := NewMetrics()
	m.RecordBridgeMessage("log-to-main", "ok")
	m.RecordBridgeMessage("invalid", "decode_error")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.BridgeMessages.WithLabelValues("invalid", "decode_error")))
	assert.Equal(t, int64(2), m.Snapshot().BridgeMessages)
}

func TestTimer(t *testing.T) {
	m := NewMetrics()

	NewTimer(m, "execute").Stop(nil)
	NewTimer(m, "click").Stop(errors.New("boom"))
	NewTimer(nil, "noop").Stop(nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ScriptErrors.WithLabelValues("click")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ScriptErrors.WithLabelValues("execute")))
}

func TestWSConnections(t *testing.T) {
	m := NewMetrics()
	m.IncWSConnections()
	m.IncWSConnections()
	m.DecWSConnections()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.WSConnections))
	assert.Equal(t, int64(1), m.Snapshot().ActiveConnections)
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/fixtures/*path", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	for _, path := range []string{"/fixtures/a.html", "/fixtures/b.html", "/missing"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/fixtures/*path", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "harness_http_requests_total")
	assert.Contains(t, string(body), "harness_uptime_seconds")
}

func TestUptime(t *testing.T) {
	m := NewMetrics()
	time.Sleep(time.Millisecond)
	assert.Positive(t, m.Uptime())
}
