package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jaki95/slsk-fetcher/config"
	"github.com/jaki95/slsk-fetcher/internal/domain"
	"github.com/jaki95/slsk-fetcher/internal/job"
	"github.com/jaki95/slsk-fetcher/internal/service"
)

// runTimeout keeps a run from hanging indefinitely.
const runTimeout = 6 * time.Hour

// Runner executes one pipeline run. service.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, tracks []*domain.TrackRequest, opts service.RunOptions) (service.Outcome, error)
}

// Server handles HTTP requests for pipeline runs
type Server struct {
	cfg        *config.Config
	router     *gin.Engine
	httpServer *http.Server
	runManager *job.Manager
	runner     Runner
	gatherer   prometheus.Gatherer
}

// New creates a new HTTP server instance
func New(cfg *config.Config, runner Runner, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:        cfg,
		router:     gin.New(),
		runManager: job.NewManager(),
		runner:     runner,
		gatherer:   gatherer,
	}
	s.router.Use(gin.Recovery(), requestLogger())
	s.setupRoutes(s.router)
	return s
}

func (s *Server) setupRoutes(router *gin.Engine) {
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		api.POST("/runs", s.startRun)
		api.GET("/runs", s.listRuns)
		api.GET("/runs/:id", s.getRun)
		api.DELETE("/runs/:id", s.cancelRun)
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
			"took", time.Since(start))
	}
}

// Start serves on port until Shutdown is called.
func (s *Server) Start(port string) error {
	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("Starting HTTP server", "port", port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and cancels every active run.
func (s *Server) Shutdown(ctx context.Context) error {
	for page := 1; ; page++ {
		resp := s.runManager.ListRuns(page, job.MaxPageSize)
		for _, run := range resp.Runs {
			if run.Status == job.RunPending || run.Status == job.RunRunning {
				_ = s.runManager.CancelRun(run.ID)
			}
		}
		if page >= resp.TotalPages {
			break
		}
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
