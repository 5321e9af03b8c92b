package strategy

import (
	"sync"

	"github.com/trafficdist/engine/internal/server"
)

// weightedRoundRobinStrategy implements smooth weighted round-robin.
// Uses the Nginx algorithm: each server accumulates its weight per
// selection cycle, the highest current value is chosen, then reduced by
// the sum of all weights. This interleaves turns instead of bursting.
type weightedRoundRobinStrategy struct {
	mutex   sync.Mutex
	current map[string]int // Accumulated weight per server ID
}

// NewWeightedRoundRobinStrategy creates a weighted round-robin strategy instance.
func NewWeightedRoundRobinStrategy() Strategy {
	return &weightedRoundRobinStrategy{
		current: make(map[string]int),
	}
}

// Select picks the candidate with the highest accumulated weight.
func (w *weightedRoundRobinStrategy) Select(candidates []*server.Server, _ Request) *server.Server {
	if len(candidates) == 0 {
		return nil
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.cleanup(candidates)

	totalWeight := 0
	var chosen *server.Server

	for _, candidate := range candidates {
		weight := candidate.Weight()
		if weight <= 0 {
			continue
		}

		w.current[candidate.ID()] += weight
		totalWeight += weight

		if chosen == nil || w.current[candidate.ID()] > w.current[chosen.ID()] {
			chosen = candidate
		}
	}

	if chosen == nil || totalWeight == 0 {
		return nil
	}

	w.current[chosen.ID()] -= totalWeight
	return chosen
}

// cleanup removes accumulator entries for servers no longer among the
// candidates, preventing unbounded map growth on membership churn.
func (w *weightedRoundRobinStrategy) cleanup(candidates []*server.Server) {
	alive := make(map[string]struct{}, len(candidates))

	for _, candidate := range candidates {
		alive[candidate.ID()] = struct{}{}
	}

	for id := range w.current {
		if _, ok := alive[id]; !ok {
			delete(w.current, id)
		}
	}
}
