package breaker

import (
	"sync"
	"time"
)

// Registry lazily creates one breaker per (pool, server) pair.
type Registry struct {
	mutex     sync.RWMutex
	breakers  map[string]*Breaker
	threshold int
	timeout   time.Duration
}

// NewRegistry creates a registry whose breakers share the given
// threshold and reset timeout.
func NewRegistry(threshold int, timeout time.Duration) *Registry {
	return &Registry{
		breakers:  make(map[string]*Breaker),
		threshold: threshold,
		timeout:   timeout,
	}
}

func key(poolName, serverID string) string {
	return poolName + "/" + serverID
}

// Get returns the breaker for the server, creating it on first use.
func (r *Registry) Get(poolName, serverID string) *Breaker {
	k := key(poolName, serverID)

	r.mutex.RLock()
	b, exists := r.breakers[k]
	r.mutex.RUnlock()

	if exists {
		return b
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if b, exists = r.breakers[k]; exists {
		return b
	}

	b = NewBreaker(r.threshold, r.timeout)
	r.breakers[k] = b
	return b
}

// Forget drops the breaker for a removed server.
func (r *Registry) Forget(poolName, serverID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.breakers, key(poolName, serverID))
}

// Reset discards every breaker.
func (r *Registry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.breakers = make(map[string]*Breaker)
}

// States snapshots the state of every tracked breaker, keyed by
// pool/server.
func (r *Registry) States() map[string]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	states := make(map[string]State, len(r.breakers))
	for k, b := range r.breakers {
		states[k] = b.State()
	}
	return states
}
