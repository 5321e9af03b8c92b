package strategy

import (
	"math/rand/v2"

	"github.com/trafficdist/engine/internal/server"
)

type weightedRandomStrategy struct{}

// Select draws a candidate with probability proportional to its weight
// via cumulative-weight sampling.
func (w *weightedRandomStrategy) Select(candidates []*server.Server, _ Request) *server.Server {
	if len(candidates) == 0 {
		return nil
	}

	totalWeight := 0
	for _, candidate := range candidates {
		totalWeight += candidate.Weight()
	}
	if totalWeight <= 0 {
		return nil
	}

	draw := rand.IntN(totalWeight)
	for _, candidate := range candidates {
		draw -= candidate.Weight()
		if draw < 0 {
			return candidate
		}
	}

	return candidates[len(candidates)-1]
}

func NewWeightedRandomStrategy() Strategy {
	return &weightedRandomStrategy{}
}
