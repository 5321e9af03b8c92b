package strategy

import (
	"github.com/trafficdist/engine/internal/server"
)

type resourceBasedStrategy struct{}

// Select returns the candidate with the lowest load score. Ties resolve
// to the earliest candidate in insertion order.
func (r *resourceBasedStrategy) Select(candidates []*server.Server, _ Request) *server.Server {
	if len(candidates) == 0 {
		return nil
	}

	best := candidates[0]
	bestScore := best.LoadScore()

	for _, candidate := range candidates[1:] {
		score := candidate.LoadScore()
		if score < bestScore {
			bestScore = score
			best = candidate
		}
	}

	return best
}

func NewResourceBasedStrategy() Strategy {
	return &resourceBasedStrategy{}
}
