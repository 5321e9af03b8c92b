package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trafficdist/engine/internal/breaker"
	"github.com/trafficdist/engine/internal/metrics"
	"github.com/trafficdist/engine/internal/pool"
	"github.com/trafficdist/engine/internal/server"
	"github.com/trafficdist/engine/internal/strategy"
)

// Circuit breaker defaults for pools that opt in without tuning.
const (
	DefaultBreakerThreshold = 5
	DefaultBreakerTimeout   = 30 * time.Second
)

// Options configures a LoadBalancer.
type Options struct {
	Logger           *slog.Logger
	Registry         *prometheus.Registry // optional Prometheus mirror
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

// LoadBalancer owns every pool by name, resolves selections across
// failover chains, executes caller-supplied requests with bounded retry,
// and aggregates metrics. It is safe for concurrent use; pools guard
// their own state with fine-grained locks, the balancer only guards the
// pool registry.
type LoadBalancer struct {
	mutex    sync.RWMutex
	pools    map[string]*pool.Pool
	metrics  *metrics.Metrics
	breakers *breaker.Registry
	logger   *slog.Logger
}

// New creates an empty LoadBalancer.
func New(opts Options) *LoadBalancer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	threshold := opts.BreakerThreshold
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	timeout := opts.BreakerTimeout
	if timeout <= 0 {
		timeout = DefaultBreakerTimeout
	}

	return &LoadBalancer{
		pools:    make(map[string]*pool.Pool),
		metrics:  metrics.NewMetrics(opts.Registry),
		breakers: breaker.NewRegistry(threshold, timeout),
		logger:   logger,
	}
}

// AddPool registers a new pool built from the configuration. The name
// must be unused.
func (lb *LoadBalancer) AddPool(cfg pool.Config) (*pool.Pool, error) {
	p, err := pool.New(cfg, lb.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	if _, exists := lb.pools[cfg.Name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrPoolAlreadyExists, cfg.Name)
	}

	if cfg.CircuitBreaker {
		name := cfg.Name
		p.SetGate(func(serverID string) bool {
			return lb.breakers.Get(name, serverID).Allow()
		})
	}

	lb.pools[cfg.Name] = p
	lb.logger.Info("pool registered",
		slog.String("pool", cfg.Name),
		slog.String("algorithm", string(cfg.Algorithm)))
	return p, nil
}

// Pool returns the registered pool with the given name.
func (lb *LoadBalancer) Pool(name string) (*pool.Pool, error) {
	lb.mutex.RLock()
	defer lb.mutex.RUnlock()

	p, exists := lb.pools[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrPoolNotFound, name)
	}
	return p, nil
}

// PoolNames returns the registered pool names in sorted order.
func (lb *LoadBalancer) PoolNames() []string {
	lb.mutex.RLock()
	defer lb.mutex.RUnlock()

	names := make([]string, 0, len(lb.pools))
	for name := range lb.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddServer adds a server to the named pool.
func (lb *LoadBalancer) AddServer(poolName string, srv *server.Server) error {
	p, err := lb.Pool(poolName)
	if err != nil {
		return err
	}
	return p.AddServer(srv)
}

// RemoveServer removes a server from the named pool, gracefully or hard.
// A hard removal also drops the server's circuit breaker.
func (lb *LoadBalancer) RemoveServer(poolName, serverID string, graceful bool) error {
	p, err := lb.Pool(poolName)
	if err != nil {
		return err
	}
	if err := p.RemoveServer(serverID, graceful); err != nil {
		return err
	}
	if !graceful {
		lb.breakers.Forget(poolName, serverID)
	}
	return nil
}

// UpdateServerHealth applies a health-feed report to the named server.
// Idempotent: re-reporting the same state has no additional effect.
func (lb *LoadBalancer) UpdateServerHealth(poolName, serverID string, state server.State, cpu, memory float64) error {
	p, err := lb.Pool(poolName)
	if err != nil {
		return err
	}
	return p.UpdateHealth(serverID, state, cpu, memory)
}

// SelectServer picks a server from the named pool, walking its failover
// chain in order when the pool itself has no eligible server.
func (lb *LoadBalancer) SelectServer(poolName string, req strategy.Request) (*server.Server, error) {
	srv, servingPool, err := lb.selectFrom(poolName, req, nil, make(map[string]struct{}))
	if err != nil {
		return nil, err
	}

	lb.metrics.RecordSelection(servingPool.Name(), srv.ID())
	return srv, nil
}

// selectFrom resolves a selection against a pool and, recursively, its
// failover chain. The visited set breaks failover cycles; the exclude
// set removes servers already tried within one Execute call.
func (lb *LoadBalancer) selectFrom(poolName string, req strategy.Request, exclude map[string]struct{}, visited map[string]struct{}) (*server.Server, *pool.Pool, error) {
	p, err := lb.Pool(poolName)
	if err != nil {
		return nil, nil, err
	}

	visited[poolName] = struct{}{}

	srv, err := p.Select(req, exclude)
	if err == nil {
		return srv, p, nil
	}
	if !errors.Is(err, pool.ErrNoHealthyServer) {
		return nil, nil, err
	}

	for _, next := range p.FailoverPools() {
		if _, seen := visited[next]; seen {
			continue
		}
		if srv, fp, ferr := lb.selectFrom(next, req, exclude, visited); ferr == nil {
			return srv, fp, nil
		}
	}

	return nil, nil, fmt.Errorf("pool %q (failover chain exhausted): %w", poolName, pool.ErrNoHealthyServer)
}

// PoolStatus snapshots the named pool.
func (lb *LoadBalancer) PoolStatus(name string) (pool.Status, error) {
	p, err := lb.Pool(name)
	if err != nil {
		return pool.Status{}, err
	}
	return p.Status(), nil
}

// Metrics snapshots the aggregate counters.
func (lb *LoadBalancer) Metrics() metrics.Snapshot {
	return lb.metrics.Snapshot()
}

// BreakerStates snapshots every tracked circuit breaker.
func (lb *LoadBalancer) BreakerStates() map[string]breaker.State {
	return lb.breakers.States()
}
