package strategy

import (
	"errors"
	"fmt"

	"github.com/trafficdist/engine/internal/hashring"
	"github.com/trafficdist/engine/internal/server"
)

// Algorithm names the selection algorithm of a pool. The set is closed;
// extending it means adding a variant here and a case to New.
type Algorithm string

const (
	RoundRobin         Algorithm = "round_robin"
	LeastConnections   Algorithm = "least_connections"
	WeightedRandom     Algorithm = "weighted_random"
	Random             Algorithm = "random"
	IPHash             Algorithm = "ip_hash"
	PowerOfTwoChoices  Algorithm = "power_of_two_choices"
	ResourceBased      Algorithm = "resource_based"
	ConsistentHash     Algorithm = "consistent_hash"
	WeightedRoundRobin Algorithm = "weighted_round_robin"
)

// ErrUnknownAlgorithm is returned by New for a name outside the closed set.
var ErrUnknownAlgorithm = errors.New("unknown selection algorithm")

// Algorithms lists every supported algorithm name.
func Algorithms() []Algorithm {
	return []Algorithm{
		RoundRobin,
		LeastConnections,
		WeightedRandom,
		Random,
		IPHash,
		PowerOfTwoChoices,
		ResourceBased,
		ConsistentHash,
		WeightedRoundRobin,
	}
}

// HashBased reports whether the algorithm selects through the pool's
// consistent-hash ring.
func (a Algorithm) HashBased() bool {
	return a == ConsistentHash
}

// Request carries the per-request attributes a strategy may key on.
type Request struct {
	ClientIP  string
	SessionID string
	Metadata  map[string]string
}

// HashKey returns the affinity key for hash-based selection: the client
// IP when present, the session ID otherwise.
func (r Request) HashKey() string {
	if r.ClientIP != "" {
		return r.ClientIP
	}
	return r.SessionID
}

// Strategy selects one server from the candidate set. Candidates arrive
// already filtered to eligible servers, in pool insertion order.
// Implementations return nil only when no candidate can be chosen.
type Strategy interface {
	Select(candidates []*server.Server, req Request) *server.Server
}

// New creates the strategy for the given algorithm. Hash-based
// algorithms receive the pool's ring; the others ignore it.
func New(algorithm Algorithm, ring *hashring.Ring) (Strategy, error) {
	switch algorithm {
	case RoundRobin:
		return NewRoundRobinStrategy(), nil
	case LeastConnections:
		return NewLeastConnStrategy(), nil
	case WeightedRandom:
		return NewWeightedRandomStrategy(), nil
	case Random:
		return NewRandomStrategy(), nil
	case IPHash:
		return NewIPHashStrategy(), nil
	case PowerOfTwoChoices:
		return NewPowerOfTwoStrategy(), nil
	case ResourceBased:
		return NewResourceBasedStrategy(), nil
	case ConsistentHash:
		return NewConsistentHashStrategy(ring), nil
	case WeightedRoundRobin:
		return NewWeightedRoundRobinStrategy(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
}
