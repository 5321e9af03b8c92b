package strategy

import (
	"github.com/trafficdist/engine/internal/server"
)

type leastConnStrategy struct {
}

// Select returns the candidate with the fewest in-flight connections.
// Ties resolve to the earliest candidate in insertion order.
func (l *leastConnStrategy) Select(candidates []*server.Server, _ Request) *server.Server {
	if len(candidates) == 0 {
		return nil
	}

	best := candidates[0]
	bestConns := best.CurrentConnections()

	for _, candidate := range candidates[1:] {
		conns := candidate.CurrentConnections()
		if conns < bestConns {
			bestConns = conns
			best = candidate
		}
	}

	return best
}

func NewLeastConnStrategy() Strategy {
	return &leastConnStrategy{}
}
