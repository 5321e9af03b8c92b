package strategy

import (
	"math/rand/v2"

	"github.com/trafficdist/engine/internal/server"
)

type randomStrategy struct{}

func (r *randomStrategy) Select(candidates []*server.Server, _ Request) *server.Server {
	if len(candidates) == 0 {
		return nil
	}

	index := rand.IntN(len(candidates))
	return candidates[index]
}

func NewRandomStrategy() Strategy {
	return &randomStrategy{}
}
