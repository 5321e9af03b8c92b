package strategy

import (
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/trafficdist/engine/internal/server"
)

type ipHashStrategy struct{}

// Select hashes the client IP into a bucket over the candidates ordered
// by server ID. The ID ordering makes the choice a pure function of the
// candidate set and the IP, independent of insertion order churn.
func (i *ipHashStrategy) Select(candidates []*server.Server, req Request) *server.Server {
	if len(candidates) == 0 {
		return nil
	}

	ordered := make([]*server.Server, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(a, b int) bool { return ordered[a].ID() < ordered[b].ID() })

	index := xxhash.Sum64String(req.ClientIP) % uint64(len(ordered))
	return ordered[index]
}

func NewIPHashStrategy() Strategy {
	return &ipHashStrategy{}
}
