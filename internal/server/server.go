// Package server exposes the solver over HTTP.
//
// Endpoints:
//
//	GET  /healthz                      liveness
//	GET  /metrics                      Prometheus metrics
//	GET  /v1/puzzle?date=YYYY-MM-DD    the generated puzzle for a date
//	POST /v1/solve                     search within a time budget and record the run
//	GET  /v1/runs?limit=N              recorded runs, newest first
//	GET  /v1/runs/:id                  one recorded run
//	GET  /v1/runs/:id/solutions        the improving solutions of a run
//	DELETE /v1/runs/:id                remove a recorded run
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"goalreach/internal/model"
	"goalreach/internal/puzzle"
	"goalreach/pkg/goalreach"
)

const (
	DefaultAddr    = ":8080"
	DefaultTimeout = 10 * time.Second
	MaxTimeout     = time.Minute
)

// Service is the part of the goalreach client the server drives.
type Service interface {
	Puzzle(req goalreach.SolveRequest) (puzzle.Puzzle, error)
	Solve(ctx context.Context, req goalreach.SolveRequest) (goalreach.SolveSummary, error)
	Runs(ctx context.Context, req goalreach.RunsRequest) ([]goalreach.RunItem, error)
	Run(ctx context.Context, req goalreach.RunRequest) (model.SolveRun, error)
	Solutions(ctx context.Context, req goalreach.SolutionsRequest) ([]goalreach.SolutionItem, error)
	DeleteRun(ctx context.Context, req goalreach.RunRequest) (string, error)
}

type Config struct {
	Addr string
	// DefaultTimeout applies when a solve request names no budget.
	DefaultTimeout time.Duration
	// MaxTimeout caps every solve request.
	MaxTimeout time.Duration
	Logger     *slog.Logger
}

type Server struct {
	svc    Service
	cfg    Config
	logger *slog.Logger
}

func New(svc Service, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = MaxTimeout
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.DefaultTimeout > cfg.MaxTimeout {
		cfg.DefaultTimeout = cfg.MaxTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, cfg: cfg, logger: logger.With("component", "server")}
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), s.observe())

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.GET("/puzzle", s.handlePuzzle)
	v1.POST("/solve", s.handleSolve)
	v1.GET("/runs", s.handleRuns)
	v1.GET("/runs/:id", s.handleRun)
	v1.GET("/runs/:id/solutions", s.handleSolutions)
	v1.DELETE("/runs/:id", s.handleDeleteRun)
	return router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.MaxTimeout+5*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		observeRequest(route, c.Request.Method, status, time.Since(start))
		s.logger.Debug("request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"elapsed", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
