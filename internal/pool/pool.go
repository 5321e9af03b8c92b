package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trafficdist/engine/internal/hashring"
	"github.com/trafficdist/engine/internal/server"
	"github.com/trafficdist/engine/internal/strategy"
)

// DefaultSessionTTL applies when sticky sessions are enabled without an
// explicit TTL.
const DefaultSessionTTL = 30 * time.Minute

var (
	// ErrNoHealthyServer is returned by Select when no eligible server
	// remains after filtering.
	ErrNoHealthyServer = errors.New("no healthy server")

	// ErrServerExists is returned when adding a duplicate server ID.
	ErrServerExists = errors.New("server already exists")

	// ErrServerNotFound is returned for operations on an unknown server ID.
	ErrServerNotFound = errors.New("server not found")
)

// Config describes a pool at construction time.
type Config struct {
	Name           string
	Algorithm      strategy.Algorithm
	VirtualNodes   int
	StickySessions bool
	SessionTTL     time.Duration
	FailoverPools  []string
	HealthCheck    bool
	CircuitBreaker bool
}

type sessionEntry struct {
	serverID string
	expires  time.Time
}

// Pool is a named set of servers with a selection strategy,
// sticky-session state, and a failover chain. The pool exclusively owns
// its servers; the ring and the session table reference them by ID only.
type Pool struct {
	name           string
	algorithm      strategy.Algorithm
	strat          strategy.Strategy
	ring           *hashring.Ring
	stickySessions bool
	sessionTTL     time.Duration
	failoverPools  []string
	healthCheck    bool
	circuitBreaker bool
	logger         *slog.Logger

	mutex    sync.Mutex
	servers  []*server.Server // insertion order
	byID     map[string]*server.Server
	sessions map[string]sessionEntry
	gate     func(serverID string) bool
}

// New creates an empty pool for the given configuration.
func New(cfg Config, logger *slog.Logger) (*Pool, error) {
	if cfg.Name == "" {
		return nil, errors.New("pool name must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var ring *hashring.Ring
	if cfg.Algorithm.HashBased() {
		ring = hashring.New(cfg.VirtualNodes)
	}

	strat, err := strategy.New(cfg.Algorithm, ring)
	if err != nil {
		return nil, fmt.Errorf("pool %q: %w", cfg.Name, err)
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	return &Pool{
		name:           cfg.Name,
		algorithm:      cfg.Algorithm,
		strat:          strat,
		ring:           ring,
		stickySessions: cfg.StickySessions,
		sessionTTL:     ttl,
		failoverPools:  append([]string(nil), cfg.FailoverPools...),
		healthCheck:    cfg.HealthCheck,
		circuitBreaker: cfg.CircuitBreaker,
		logger:         logger.With(slog.String("pool", cfg.Name)),
		byID:           make(map[string]*server.Server),
		sessions:       make(map[string]sessionEntry),
	}, nil
}

// Name returns the pool's name, unique across the load balancer.
func (p *Pool) Name() string {
	return p.name
}

// Algorithm returns the pool's selection algorithm.
func (p *Pool) Algorithm() strategy.Algorithm {
	return p.algorithm
}

// FailoverPools returns the ordered failover chain.
func (p *Pool) FailoverPools() []string {
	return append([]string(nil), p.failoverPools...)
}

// HealthCheckEnabled reports whether the pool opted into active probing.
func (p *Pool) HealthCheckEnabled() bool {
	return p.healthCheck
}

// CircuitBreakerEnabled reports whether per-server breakers gate selection.
func (p *Pool) CircuitBreakerEnabled() bool {
	return p.circuitBreaker
}

// SetGate installs an additional selection filter consulted per server
// ID, used by the engine to wire circuit breakers in. A nil gate admits
// every server.
func (p *Pool) SetGate(gate func(serverID string) bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.gate = gate
}

// AddServer takes ownership of the server. The ID must be unique within
// the pool. Hash-based pools extend their ring with the new member.
func (p *Pool) AddServer(srv *server.Server) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, exists := p.byID[srv.ID()]; exists {
		return fmt.Errorf("pool %q: %w: %s", p.name, ErrServerExists, srv.ID())
	}

	p.servers = append(p.servers, srv)
	p.byID[srv.ID()] = srv
	if p.ring != nil {
		p.ring.Add(srv.ID(), srv.Weight())
	}

	p.logger.Info("server added",
		slog.String("server", srv.ID()),
		slog.String("address", srv.Address()))
	return nil
}

// RemoveServer removes a server. Graceful removal marks it DRAINING and
// keeps it listed so existing sticky mappings continue to resolve; hard
// removal deletes it from the pool, the ring, and the session table.
func (p *Pool) RemoveServer(id string, graceful bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	srv, exists := p.byID[id]
	if !exists {
		return fmt.Errorf("pool %q: %w: %s", p.name, ErrServerNotFound, id)
	}

	if p.ring != nil {
		p.ring.Remove(id)
	}

	if graceful {
		srv.SetState(server.StateDraining)
		p.logger.Info("server draining", slog.String("server", id))
		return nil
	}

	delete(p.byID, id)
	for i, s := range p.servers {
		if s.ID() == id {
			p.servers = append(p.servers[:i], p.servers[i+1:]...)
			break
		}
	}
	for sessionID, entry := range p.sessions {
		if entry.serverID == id {
			delete(p.sessions, sessionID)
		}
	}

	p.logger.Info("server removed", slog.String("server", id))
	return nil
}

// Server returns the server with the given ID, if present.
func (p *Pool) Server(id string) (*server.Server, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	srv, ok := p.byID[id]
	return srv, ok
}

// Servers returns the pool's members in insertion order.
func (p *Pool) Servers() []*server.Server {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]*server.Server(nil), p.servers...)
}

// Len returns the number of member servers, draining ones included.
func (p *Pool) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.servers)
}

// UpdateHealth applies a health-feed report. Re-reporting the current
// state only refreshes the usage figures.
func (p *Pool) UpdateHealth(id string, state server.State, cpu, memory float64) error {
	p.mutex.Lock()
	srv, exists := p.byID[id]
	p.mutex.Unlock()

	if !exists {
		return fmt.Errorf("pool %q: %w: %s", p.name, ErrServerNotFound, id)
	}

	srv.SetUsage(cpu, memory)
	if srv.SetState(state) {
		p.logger.Info("server state changed",
			slog.String("server", id),
			slog.String("state", state.String()))
	}
	return nil
}

// Select picks a server for the request. Sticky sessions are honored
// first; otherwise the pool's algorithm runs over the servers that are
// HEALTHY, not excluded, and admitted by the gate. A successful
// non-sticky selection records the session binding.
//
// Failover across pools is the engine's concern; an empty eligible set
// surfaces as ErrNoHealthyServer.
func (p *Pool) Select(req strategy.Request, exclude map[string]struct{}) (*server.Server, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	now := time.Now()

	if p.stickySessions && req.SessionID != "" {
		if srv := p.lookupSession(req.SessionID, exclude, now); srv != nil {
			return srv, nil
		}
	}

	candidates := p.eligible(exclude)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("pool %q: %w", p.name, ErrNoHealthyServer)
	}

	chosen := p.strat.Select(candidates, req)
	if chosen == nil {
		return nil, fmt.Errorf("pool %q: %w", p.name, ErrNoHealthyServer)
	}

	if p.stickySessions && req.SessionID != "" {
		p.sessions[req.SessionID] = sessionEntry{
			serverID: chosen.ID(),
			expires:  now.Add(p.sessionTTL),
		}
	}

	return chosen, nil
}

// lookupSession resolves an unexpired session binding. Draining servers
// keep receiving their bound sessions until the TTL runs out or the
// server is hard-removed.
func (p *Pool) lookupSession(sessionID string, exclude map[string]struct{}, now time.Time) *server.Server {
	entry, ok := p.sessions[sessionID]
	if !ok {
		return nil
	}
	if now.After(entry.expires) {
		delete(p.sessions, sessionID)
		return nil
	}
	if _, excluded := exclude[entry.serverID]; excluded {
		return nil
	}

	srv, ok := p.byID[entry.serverID]
	if !ok {
		delete(p.sessions, sessionID)
		return nil
	}

	switch srv.State() {
	case server.StateHealthy, server.StateDraining:
		return srv
	default:
		return nil
	}
}

func (p *Pool) eligible(exclude map[string]struct{}) []*server.Server {
	candidates := make([]*server.Server, 0, len(p.servers))
	for _, srv := range p.servers {
		if srv.State() != server.StateHealthy {
			continue
		}
		if _, excluded := exclude[srv.ID()]; excluded {
			continue
		}
		if p.gate != nil && !p.gate(srv.ID()) {
			continue
		}
		candidates = append(candidates, srv)
	}
	return candidates
}

// SessionCount returns the number of tracked session bindings, expired
// entries included until their lazy removal.
func (p *Pool) SessionCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.sessions)
}

// PurgeExpiredSessions drops expired session bindings eagerly. Expiry is
// already checked at lookup time; this only bounds table growth.
func (p *Pool) PurgeExpiredSessions() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	now := time.Now()
	purged := 0
	for sessionID, entry := range p.sessions {
		if now.After(entry.expires) {
			delete(p.sessions, sessionID)
			purged++
		}
	}
	return purged
}
