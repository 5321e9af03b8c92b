package strategy

import (
	"github.com/trafficdist/engine/internal/hashring"
	"github.com/trafficdist/engine/internal/server"
)

// consistentHashStrategy delegates to the pool's hash ring. The ring
// holds server IDs only; the chosen ID is resolved against the candidate
// set so a selection never escapes it. When the ring's first choice for
// the key is not a candidate (for example still present but unhealthy),
// the walk continues clockwise to the next owner that is.
type consistentHashStrategy struct {
	ring *hashring.Ring
}

// NewConsistentHashStrategy creates a strategy reading from the given
// ring. The owning pool keeps the ring in sync with its membership.
func NewConsistentHashStrategy(ring *hashring.Ring) Strategy {
	return &consistentHashStrategy{ring: ring}
}

func (s *consistentHashStrategy) Select(candidates []*server.Server, req Request) *server.Server {
	if len(candidates) == 0 || s.ring == nil {
		return nil
	}

	byID := make(map[string]*server.Server, len(candidates))
	for _, candidate := range candidates {
		byID[candidate.ID()] = candidate
	}

	id := s.ring.LookupFunc(req.HashKey(), func(id string) bool {
		_, ok := byID[id]
		return ok
	})
	if id == "" {
		return nil
	}

	return byID[id]
}
