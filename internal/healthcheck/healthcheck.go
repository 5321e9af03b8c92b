package healthcheck

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/trafficdist/engine/internal/engine"
	"github.com/trafficdist/engine/internal/metrics"
	"github.com/trafficdist/engine/internal/server"
)

const probeTimeout = 5 * time.Second

// Probe periodically issues HTTP GET /health against one server and
// feeds the result into the load balancer's health feed. Draining and
// disabled servers are left alone; the probe only toggles between
// HEALTHY and UNHEALTHY.
func Probe(
	ctx context.Context,
	lb *engine.LoadBalancer,
	poolName string,
	srv *server.Server,
	interval time.Duration,
	events chan<- metrics.Event,
	logger *slog.Logger,
) {
	client := &http.Client{
		Timeout: probeTimeout,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthURL := fmt.Sprintf("http://%s/health", srv.Address())

	for {
		select {
		case <-ctx.Done():
			logger.Info("health probe stopped",
				slog.String("pool", poolName),
				slog.String("server", srv.ID()))
			return

		case <-ticker.C:
			switch srv.State() {
			case server.StateDraining, server.StateDisabled:
				continue
			}

			state := server.StateUnhealthy

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
			if err != nil {
				continue
			}

			res, err := client.Do(req)
			if err == nil {
				if res.StatusCode == http.StatusOK {
					state = server.StateHealthy
				}
				res.Body.Close()
			}

			before := srv.State()
			if uerr := lb.UpdateServerHealth(poolName, srv.ID(), state, srv.CPUUsage(), srv.MemoryUsage()); uerr != nil {
				// Server was removed between probes.
				return
			}

			if before != state {
				if state == server.StateHealthy {
					logger.Info("server is back up",
						slog.String("pool", poolName),
						slog.String("server", srv.ID()))
				} else {
					logger.Warn("server is down",
						slog.String("pool", poolName),
						slog.String("server", srv.ID()))
				}

				if events != nil {
					select {
					case events <- metrics.Event{
						Type:      metrics.EventHealthChanged,
						Timestamp: time.Now(),
						Pool:      poolName,
						Server:    srv.ID(),
						Healthy:   state == server.StateHealthy,
					}:
					default:
					}
				}
			}
		}
	}
}

// Start launches one probe goroutine per server of every pool that has
// health checking enabled.
func Start(ctx context.Context, lb *engine.LoadBalancer, interval time.Duration, events chan<- metrics.Event, logger *slog.Logger) {
	for _, name := range lb.PoolNames() {
		p, err := lb.Pool(name)
		if err != nil || !p.HealthCheckEnabled() {
			continue
		}
		for _, srv := range p.Servers() {
			go Probe(ctx, lb, name, srv, interval, events, logger)
		}
	}
}
