// Package server exposes the evaluation engine over HTTP: job submission and
// inspection, report retrieval, rule set discovery, health, and metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"guardrail/internal/jobs"
	"guardrail/internal/logging"
	"guardrail/internal/ruleset"
)

// Config configures the HTTP server.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	Debug           bool
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
		MaxUploadBytes:  64 << 20,
	}
}

// Server is the HTTP front end over the job runner and store.
type Server struct {
	runner *jobs.Runner
	store  jobs.Store
	rules  ruleset.Provider
	audit  *jobs.AuditLog

	engine     *gin.Engine
	httpServer *http.Server
	cfg        Config
	logger     logging.Logger
}

// New wires the HTTP server. audit may be nil, which disables /api/audit
// content but not the route.
func New(runner *jobs.Runner, store jobs.Store, rules ruleset.Provider, audit *jobs.AuditLog,
	cfg Config, logger logging.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 64 << 20
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	engine.Use(cors.New(corsConfig))

	s := &Server{
		runner: runner,
		store:  store,
		rules:  rules,
		audit:  audit,
		engine: engine,
		cfg:    cfg,
		logger: logging.OrNop(logger),
	}
	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: engine,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")
	{
		api.POST("/jobs", s.handleSubmitJob)
		api.GET("/jobs", s.handleListJobs)
		api.GET("/jobs/:id", s.handleGetJob)
		api.GET("/jobs/:id/report", s.handleGetReport)
		api.DELETE("/jobs/:id", s.handleDeleteJob)
		api.GET("/rulesets", s.handleListRuleSets)
		api.POST("/rulesets/reload", s.handleReloadRuleSets)
		api.GET("/audit", s.handleAudit)
	}

	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks serving HTTP until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("http server listening on %s", s.cfg.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
