package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mfduar8766/browserautomation/internal/api/middleware"
	"github.com/mfduar8766/browserautomation/internal/api/ws"
	"github.com/mfduar8766/browserautomation/internal/infrastructure/config"
	"github.com/mfduar8766/browserautomation/internal/infrastructure/fixtures"
	"github.com/mfduar8766/browserautomation/internal/infrastructure/monitoring"
)

const (
	shutdownTimeout = 5 * time.Second
	// Bodies below this size are sent uncompressed.
	gzipMinSize = 1024

	// Observer upgrades are capped across all clients.
	eventsUpgradesPerSecond = 10
	eventsUpgradeBurst      = 20
)

// Options holds the server dependencies. Hub, Fixtures and LogLevel are
// optional; their routes are only registered when set.
type Options struct {
	Addr        string
	RateLimit   config.RateLimitConfig
	Development bool
	Logger      *zap.Logger
	Metrics     *monitoring.Metrics
	Hub         *ws.Hub
	Fixtures    *fixtures.Store
	LogLevel    http.Handler
}

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	addr     string
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	hub      *ws.Hub
	fixtures *fixtures.Store
	logLevel http.Handler
}

// New creates a new server instance
func New(opts Options) (*Server, error) {
	if opts.Addr == "" {
		return nil, errors.New("server: empty listen address")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("server")

	metrics := opts.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	if !opts.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if opts.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", opts.RateLimit.RequestsPerSecond),
			zap.Int("burst", opts.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: opts.RateLimit.RequestsPerSecond,
			Burst:             opts.RateLimit.Burst,
		}))
	}

	s := &Server{
		router:   router,
		addr:     opts.Addr,
		logger:   logger,
		metrics:  metrics,
		hub:      opts.Hub,
		fixtures: opts.Fixtures,
		logLevel: opts.LogLevel,
	}
	s.routes()

	logger.Info("Server initialized",
		zap.String("addr", opts.Addr),
		zap.Bool("events", s.hub != nil),
		zap.Bool("fixtures", s.fixtures != nil),
	)
	return s, nil
}

func (s *Server) routes() {
	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	if s.hub != nil {
		s.router.GET("/events", middleware.GlobalRateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: eventsUpgradesPerSecond,
			Burst:             eventsUpgradeBurst,
		}), s.hub.Handle)
	}

	if s.logLevel != nil {
		level := gin.WrapH(s.logLevel)
		s.router.GET("/api/log/level", level)
		s.router.PUT("/api/log/level", level)
	}

	if s.fixtures != nil {
		s.router.GET("/", s.serveFixture)
		s.router.GET("/api/fixtures", s.listFixtures)
		s.router.GET("/fixtures/*path", s.serveFixture)
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// It closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	if s.hub != nil {
		// Hijacked websocket connections are not tracked by Shutdown.
		s.hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"uptime":  s.metrics.Uptime().Round(time.Second).String(),
		"metrics": s.metrics.Snapshot(),
	}
	if s.hub != nil {
		body["observers"] = s.hub.Clients()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) listFixtures(c *gin.Context) {
	entries, err := s.fixtures.List(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to list fixtures", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list fixtures"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fixtures": entries, "count": len(entries)})
}

func (s *Server) serveFixture(c *gin.Context) {
	f, err := s.fixtures.Open(c.Param("path"))
	switch {
	case errors.Is(err, fixtures.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	case errors.Is(err, fixtures.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	case err != nil:
		s.logger.Error("Failed to open fixture", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read fixture"})
		return
	}

	c.Header("Last-Modified", f.Modified.UTC().Format(http.TimeFormat))
	c.Header("Vary", "Accept-Encoding")

	if len(f.Data) >= gzipMinSize && acceptsGzip(c.Request) {
		compressed, err := fixtures.Gzip(f.Data)
		if err == nil {
			c.Header("Content-Encoding", "gzip")
			c.Data(http.StatusOK, f.ContentType, compressed)
			return
		}
		s.logger.Warn("Failed to compress fixture", zap.String("path", f.Path), zap.Error(err))
	}
	c.Data(http.StatusOK, f.ContentType, f.Data)
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		coding, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(coding, "gzip") {
			return true
		}
	}
	return false
}
