package strategy

import (
	"sync/atomic"

	"github.com/trafficdist/engine/internal/server"
)

type roundRobinStrategy struct {
	current uint64
}

// Select advances the cursor atomically and indexes the candidates
// modulo their count, so a membership change shifts but never resets
// the rotation.
func (rb *roundRobinStrategy) Select(candidates []*server.Server, _ Request) *server.Server {
	if len(candidates) == 0 {
		return nil
	}

	n := atomic.AddUint64(&rb.current, 1)

	index := (n - 1) % uint64(len(candidates))

	return candidates[index]
}

func NewRoundRobinStrategy() Strategy {
	return &roundRobinStrategy{
		current: 0,
	}
}
