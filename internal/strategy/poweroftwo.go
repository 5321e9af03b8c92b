package strategy

import (
	"math/rand/v2"

	"github.com/trafficdist/engine/internal/server"
)

type powerOfTwoStrategy struct{}

// Select samples two distinct candidates uniformly and returns the one
// with fewer in-flight connections. A tie resolves to the first sample.
func (p *powerOfTwoStrategy) Select(candidates []*server.Server, _ Request) *server.Server {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	first := rand.IntN(len(candidates))
	second := rand.IntN(len(candidates) - 1)
	if second >= first {
		second++
	}

	a, b := candidates[first], candidates[second]
	if b.CurrentConnections() < a.CurrentConnections() {
		return b
	}
	return a
}

func NewPowerOfTwoStrategy() Strategy {
	return &powerOfTwoStrategy{}
}
