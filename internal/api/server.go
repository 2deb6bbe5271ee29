// Package api exposes the SOH gateway over HTTP: read access to the cache,
// the acknowledge and quiet commands, historical queries and a websocket
// feed of published views.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"soh-gateway/internal/events"
	"soh-gateway/internal/history"
	"soh-gateway/internal/publisher"
	"soh-gateway/internal/settings"
	"soh-gateway/internal/workflow"
	"soh-gateway/pkg/metrics"
)

// ShutdownTimeout bounds graceful shutdown of the HTTP server.
const ShutdownTimeout = 10 * time.Second

// SohReader serves the current cache contents.
type SohReader interface {
	CurrentView() events.StationAndGroupSoh
	StationDetail(stationName string) events.StationDetail
}

// Commands runs the acknowledge and quiet workflows.
type Commands interface {
	Acknowledge(ctx context.Context, actor string, stationNames []string, comment *string) (workflow.Receipt, error)
	Quiet(ctx context.Context, actor string, requests []events.ChannelMonitorInput) (workflow.Receipt, error)
}

// HistoryQuerier answers historical SOH queries.
type HistoryQuerier interface {
	GetHistoricalSoh(ctx context.Context, input *history.HistoricalSohInput) (*history.HistoricalSoh, error)
	GetHistoricalAcei(ctx context.Context, input *history.HistoricalAceiInput) ([]history.HistoricalAcei, error)
}

// Feed registers subscribers for published views.
type Feed interface {
	Subscribe(s publisher.Subscriber) func()
}

// MetricsRecorder defines the metrics operations used by the HTTP layer.
type MetricsRecorder interface {
	IncrementCustom(name string)
	GetSnapshot() *metrics.ServiceMetrics
}

// Deps holds everything the server reads from or dispatches to.
// Metrics and Gatherer are optional.
type Deps struct {
	Soh      SohReader
	Commands Commands
	History  HistoryQuerier
	Feed     Feed
	Settings *settings.Settings
	Metrics  MetricsRecorder
	Gatherer prometheus.Gatherer
}

// Server bundles the router and its dependencies.
type Server struct {
	addr   string
	deps   Deps
	engine *gin.Engine

	// mu orders feeds.Add against Close so no feed is added once
	// shutdown has started waiting.
	mu      sync.Mutex
	closed  bool
	closing chan struct{}
	feeds   sync.WaitGroup
}

// New constructs a server with routes and middleware.
func New(addr string, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())
	engine.Use(corsMiddleware())
	if deps.Metrics != nil {
		engine.Use(metricsMiddleware(deps.Metrics))
	}
	if deps.Settings == nil {
		deps.Settings = settings.Default()
	}

	s := &Server{
		addr:    addr,
		deps:    deps,
		engine:  engine,
		closing: make(chan struct{}),
	}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// listener fails. Open feed connections are closed on shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
		slog.Info("Shutting down HTTP server")
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.feeds.Wait()
		return err
	}
}

// Close ends all open feed connections.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.closing)
	}
}

// trackFeed registers a feed connection. Reports false once Close was called.
func (s *Server) trackFeed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.feeds.Add(1)
	return true
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.deps.Gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.engine.Group("/api/v1/soh")
	v1.GET("/stations", s.handleListStations)
	v1.GET("/stations/:station", s.handleGetStation)
	v1.POST("/acknowledge", s.handleAcknowledge)
	v1.POST("/quiet", s.handleQuiet)
	v1.POST("/history", s.handleHistoricalSoh)
	v1.POST("/history/acei", s.handleHistoricalAcei)
	v1.GET("/settings", s.handleSettings)
	v1.GET("/subscribe", s.handleSubscribe)
	v1.GET("/service-metrics", s.handleServiceMetrics)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+actorHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// metricsMiddleware counts requests by method and failed requests.
func metricsMiddleware(m MetricsRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip scrape endpoints to avoid counting the observers
		switch c.Request.URL.Path {
		case "/metrics", "/healthz", "/api/v1/soh/service-metrics":
			c.Next()
			return
		}

		c.Next()

		m.IncrementCustom("http_" + c.Request.Method)
		if c.Writer.Status() >= http.StatusBadRequest {
			m.IncrementCustom("http_errors")
		}
	}
}
