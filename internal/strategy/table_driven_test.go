package strategy_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/trafficdist/engine/internal/hashring"
	"github.com/trafficdist/engine/internal/strategy"
)

var _ = Describe("Algorithm factory", func() {
	DescribeTable("every algorithm in the closed set can be constructed",
		func(algorithm strategy.Algorithm) {
			ring := hashring.New(100)
			strat, err := strategy.New(algorithm, ring)
			Expect(err).NotTo(HaveOccurred())
			Expect(strat).NotTo(BeNil())
		},
		Entry("round robin", strategy.RoundRobin),
		Entry("least connections", strategy.LeastConnections),
		Entry("weighted random", strategy.WeightedRandom),
		Entry("random", strategy.Random),
		Entry("ip hash", strategy.IPHash),
		Entry("power of two choices", strategy.PowerOfTwoChoices),
		Entry("resource based", strategy.ResourceBased),
		Entry("consistent hash", strategy.ConsistentHash),
		Entry("weighted round robin", strategy.WeightedRoundRobin),
	)

	It("should reject an unknown algorithm", func() {
		_, err := strategy.New("fastest_ever", nil)
		Expect(err).To(MatchError(strategy.ErrUnknownAlgorithm))
	})

	DescribeTable("every strategy selects from the candidate set",
		func(algorithm strategy.Algorithm) {
			servers := makeServers("a", "b", "c")

			ring := hashring.New(100)
			for _, srv := range servers {
				ring.Add(srv.ID(), srv.Weight())
			}

			strat, err := strategy.New(algorithm, ring)
			Expect(err).NotTo(HaveOccurred())

			selected := strat.Select(servers, strategy.Request{ClientIP: "10.8.0.1"})
			Expect(selected).NotTo(BeNil())
			Expect(servers).To(ContainElement(selected))
		},
		Entry("round robin", strategy.RoundRobin),
		Entry("least connections", strategy.LeastConnections),
		Entry("weighted random", strategy.WeightedRandom),
		Entry("random", strategy.Random),
		Entry("ip hash", strategy.IPHash),
		Entry("power of two choices", strategy.PowerOfTwoChoices),
		Entry("resource based", strategy.ResourceBased),
		Entry("consistent hash", strategy.ConsistentHash),
		Entry("weighted round robin", strategy.WeightedRoundRobin),
	)
})
