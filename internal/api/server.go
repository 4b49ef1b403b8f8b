// Package api exposes the impact queries over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/efebarandurmaz/impactgraph/internal/graph"
	"github.com/efebarandurmaz/impactgraph/internal/query"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Querier is the subset of query.Service the handlers call.
type Querier interface {
	ListSystems(ctx context.Context) (*query.SystemsResult, error)
	FullGraph(ctx context.Context) (*graph.Graph, error)
	Affected(ctx context.Context, startID string, maxDepth int) (*query.AffectedResult, error)
	Downstream(ctx context.Context, startID string, maxDepth int) (*graph.Graph, error)
}

// Config holds API server configuration.
type Config struct {
	ListenAddr   string // e.g. ":3001"
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ServiceName names the otelgin server spans.
	ServiceName string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:   ":3001",
		CORSOrigins:  []string{"*"},
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		ServiceName:  "impactgraph",
	}
}

// Server is the impact graph HTTP server.
type Server struct {
	config  *Config
	queries Querier
	router  *gin.Engine
	server  *http.Server
}

// Option mounts an extra handler on the router.
type Option func(r *gin.Engine)

// WithHealth mounts the probe endpoints of h.
func WithHealth(h http.Handler) Option {
	return func(r *gin.Engine) {
		for _, p := range []string{"/healthz", "/readyz", "/livez"} {
			r.GET(p, gin.WrapH(h))
		}
	}
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(r *gin.Engine) {
		r.GET("/metrics", gin.WrapH(h))
	}
}

// NewServer creates a new API server.
func NewServer(config *Config, queries Querier, opts ...Option) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Server{
		config:  config,
		queries: queries,
		router:  gin.New(),
	}

	s.router.Use(gin.Recovery(), requestLogger())
	if config.ServiceName != "" {
		s.router.Use(otelgin.Middleware(config.ServiceName))
	}
	s.router.Use(cors.New(corsConfig(config.CORSOrigins)))

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	g := s.router.Group("/api/graph")
	g.GET("/systems", s.handleSystems)
	g.GET("/full", s.handleFull)
	g.GET("/affected/:systemId", s.handleAffected)
	g.GET("/downstream/:systemId", s.handleDownstream)

	for _, opt := range opts {
		opt(s.router)
	}

	s.server = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	slog.Info("Starting impact graph server", "addr", s.config.ListenAddr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("Stopping impact graph server")
	return s.server.Shutdown(ctx)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
