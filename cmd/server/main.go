package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	flag "github.com/spf13/pflag"

	"github.com/jaki95/slsk-fetcher/config"
	"github.com/jaki95/slsk-fetcher/internal/metrics"
	"github.com/jaki95/slsk-fetcher/internal/server"
	"github.com/jaki95/slsk-fetcher/internal/service"
)

func main() {
	port := flag.StringP("port", "p", "", "server port (defaults to server.port)")
	configPath := flag.StringP("config", "c", "./config/config.yaml", "path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *port == "" {
		*port = cfg.Server.Port
	}

	// Setup logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.Level(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		slog.Error("Failed to register metrics", "error", err)
		os.Exit(1)
	}

	pipeline, err := service.New(ctx, cfg, service.WithMetrics(m))
	if err != nil {
		slog.Error("Failed to create pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	if err := pipeline.Check(ctx); err != nil {
		slog.Warn("slskd is not reachable yet, runs will fail until it is", "error", err)
	}

	srv := server.New(cfg, pipeline, registry)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	if err := srv.Start(*port); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
