package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mfduar8766/browserautomation/internal/api/ws"
	"github.com/mfduar8766/browserautomation/internal/infrastructure/config"
	"github.com/mfduar8766/browserautomation/internal/infrastructure/fixtures"
	"github.com/mfduar8766/browserautomation/internal/infrastructure/monitoring"
)

var largePage = "<!DOCTYPE html><html><body>" + strings.Repeat("<p>row</p>", 300) + "</body></html>"

func newStore(t *testing.T) *fixtures.Store {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"index.html":       "<!DOCTYPE html><html><body>home</body></html>",
		"large.html":       largePage,
		"secret/key.pem":   "-----BEGIN-----",
		"pages/about.html": "<html><body>about</body></html>",
	}
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	store, err := fixtures.NewStore(root, []string{"**/*.html"})
	require.NoError(t, err)
	return store
}

func newServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	opts.Development = true
	srv, err := New(opts)
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewRequiresAddr(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	metrics := monitoring.NewMetrics()
	metrics.RecordLogEvent("log")
	srv := newServer(t, Options{Metrics: metrics, Hub: ws.NewHub()})

	w := get(t, srv.Handler(), "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["observers"])
	assert.Equal(t, float64(1), body["metrics"].(map[string]interface{})["log_events"])
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := monitoring.NewMetrics()
	metrics.RecordNavigation("loading", "failed")
	srv := newServer(t, Options{Metrics: metrics})

	w := get(t, srv.Handler(), "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "harness_navigation_failures_total 1")
}

func TestOptionalRoutes(t *testing.T) {
	srv := newServer(t, Options{})

	for _, path := range []string{"/", "/events", "/fixtures/index.html", "/api/fixtures", "/api/log/level"} {
		t.Run(path, func(t *testing.T) {
			w := get(t, srv.Handler(), path, nil)
			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	}
}

func TestLogLevelRoute(t *testing.T) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	srv := newServer(t, Options{LogLevel: level})

	req := httptest.NewRequest(http.MethodPut, "/api/log/level", strings.NewReader(`{"level":"debug"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, zap.DebugLevel, level.Level())

	w = get(t, srv.Handler(), "/api/log/level", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"level":"debug"}`, w.Body.String())
}

func TestFixtures(t *testing.T) {
	srv := newServer(t, Options{Fixtures: newStore(t)})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
		wantType   string
	}{
		{name: "root index", path: "/", wantStatus: http.StatusOK, wantBody: "home", wantType: "text/html"},
		{name: "fixtures index", path: "/fixtures/", wantStatus: http.StatusOK, wantBody: "home", wantType: "text/html"},
		{name: "nested page", path: "/fixtures/pages/about.html", wantStatus: http.StatusOK, wantBody: "about", wantType: "text/html"},
		{name: "not allowed", path: "/fixtures/secret/key.pem", wantStatus: http.StatusForbidden},
		{name: "missing", path: "/fixtures/pages/none.html", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, srv.Handler(), tt.path, nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
				assert.Contains(t, w.Header().Get("Content-Type"), tt.wantType)
				assert.NotEmpty(t, w.Header().Get("Last-Modified"))
			}
		})
	}
}

func TestFixtureGzip(t *testing.T) {
	srv := newServer(t, Options{Fixtures: newStore(t)})

	tests := []struct {
		name     string
		path     string
		encoding string
		wantGzip bool
	}{
		{name: "large with gzip", path: "/fixtures/large.html", encoding: "br, gzip;q=0.8", wantGzip: true},
		{name: "large without gzip", path: "/fixtures/large.html", encoding: "identity"},
		{name: "small with gzip", path: "/fixtures/index.html", encoding: "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, srv.Handler(), tt.path, http.Header{"Accept-Encoding": {tt.encoding}})
			require.Equal(t, http.StatusOK, w.Code)

			if !tt.wantGzip {
				assert.Empty(t, w.Header().Get("Content-Encoding"))
				return
			}
			assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
			zr, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
			require.NoError(t, err)
			body, err := io.ReadAll(zr)
			require.NoError(t, err)
			assert.Equal(t, largePage, string(body))
		})
	}
}

func TestFixtureListing(t *testing.T) {
	srv := newServer(t, Options{Fixtures: newStore(t)})

	w := get(t, srv.Handler(), "/api/fixtures", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Fixtures []fixtures.Entry `json:"fixtures"`
		Count    int              `json:"count"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Count)

	var paths []string
	for _, e := range body.Fixtures {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"index.html", "large.html", "pages/about.html"}, paths)
}

func TestRateLimitEnabled(t *testing.T) {
	srv := newServer(t, Options{
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 1},
	})

	assert.Equal(t, http.StatusOK, get(t, srv.Handler(), "/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, srv.Handler(), "/health", nil).Code)
}

func TestServeShutdown(t *testing.T) {
	srv := newServer(t, Options{Fixtures: newStore(t), Hub: ws.NewHub()})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunListenError(t *testing.T) {
	srv := newServer(t, Options{Addr: "256.0.0.1:bad"})
	err := srv.Run(context.Background())
	assert.Error(t, err)
}
