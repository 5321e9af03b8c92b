package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trafficdist/engine/config"
	"github.com/trafficdist/engine/internal/engine"
	"github.com/trafficdist/engine/internal/healthcheck"
	"github.com/trafficdist/engine/internal/httpserver"
	"github.com/trafficdist/engine/internal/metrics"
	"github.com/trafficdist/engine/internal/pool"
	"github.com/trafficdist/engine/internal/server"
	"github.com/trafficdist/engine/internal/strategy"
	"github.com/trafficdist/engine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Admin.Environment == config.EnvDev, cfg.Admin.Environment)

	registry := prometheus.NewRegistry()

	lb, err := buildEngine(cfg, log, registry)
	if err != nil {
		log.Error("failed to build engine", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := metrics.NewCollector(metrics.NewMetrics(nil), 1024, log)
	collector.Start(ctx)

	interval, err := time.ParseDuration(cfg.HealthCheck.Interval)
	if err != nil {
		log.Error("invalid health check interval", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthcheck.Start(ctx, lb, interval, collector.EventChannel(), log)

	srv, err := httpserver.New(cfg.Admin.Address, setupRouter(lb, registry))
	if err != nil {
		log.Error("failed to create admin server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	go func() {
		log.Info("admin server listening", slog.String("address", cfg.Admin.Address))
		if err := srv.Start(); err != nil {
			log.Error("admin server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info("shutting down", slog.String("signal", s.String()))
	case <-ctx.Done():
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error("shutdown failed", slog.String("error", err.Error()))
	}
}

// buildEngine constructs the load balancer and registers every
// configured pool and server.
func buildEngine(cfg *config.Config, log *slog.Logger, registry *prometheus.Registry) (*engine.LoadBalancer, error) {
	resetTimeout, err := time.ParseDuration(cfg.CircuitBreaker.ResetTimeout)
	if err != nil {
		resetTimeout = engine.DefaultBreakerTimeout
	}

	lb := engine.New(engine.Options{
		Logger:           log,
		Registry:         registry,
		BreakerThreshold: cfg.CircuitBreaker.Threshold,
		BreakerTimeout:   resetTimeout,
	})

	for _, pc := range cfg.Pools {
		var sessionTTL time.Duration
		if pc.SessionTTL != "" {
			if sessionTTL, err = time.ParseDuration(pc.SessionTTL); err != nil {
				return nil, err
			}
		}

		if _, err := lb.AddPool(pool.Config{
			Name:           pc.Name,
			Algorithm:      strategy.Algorithm(pc.Algorithm),
			VirtualNodes:   pc.VirtualNodes,
			StickySessions: pc.StickySessions,
			SessionTTL:     sessionTTL,
			FailoverPools:  pc.FailoverPools,
			HealthCheck:    pc.HealthCheck,
			CircuitBreaker: pc.CircuitBreaker,
		}); err != nil {
			return nil, err
		}

		for _, sc := range pc.Servers {
			srv, err := server.New(sc.ID, sc.Host, sc.Port, sc.Weight, sc.MaxConnections)
			if err != nil {
				return nil, err
			}
			if err := lb.AddServer(pc.Name, srv); err != nil {
				return nil, err
			}
		}
	}

	return lb, nil
}
