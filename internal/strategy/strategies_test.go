package strategy_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/trafficdist/engine/internal/server"
	"github.com/trafficdist/engine/internal/strategy"
)

func acquireN(srv *server.Server, n int) {
	for i := 0; i < n; i++ {
		Expect(srv.TryAcquire()).To(BeTrue())
	}
}

var _ = Describe("LeastConnections", func() {
	var (
		strat   strategy.Strategy
		servers []*server.Server
	)

	BeforeEach(func() {
		strat = strategy.NewLeastConnStrategy()
		servers = makeServers("a", "b", "c")
	})

	It("should select the candidate with the fewest connections", func() {
		acquireN(servers[0], 50)
		acquireN(servers[1], 20)
		acquireN(servers[2], 30)

		for i := 0; i < 10; i++ {
			Expect(strat.Select(servers, strategy.Request{}).ID()).To(Equal("b"))
		}
	})

	It("should follow the connection count as it changes", func() {
		acquireN(servers[0], 50)
		acquireN(servers[1], 20)
		acquireN(servers[2], 30)

		Expect(strat.Select(servers, strategy.Request{}).ID()).To(Equal("b"))

		acquireN(servers[1], 15)
		Expect(strat.Select(servers, strategy.Request{}).ID()).To(Equal("c"))
	})

	It("should break ties by insertion order", func() {
		Expect(strat.Select(servers, strategy.Request{})).To(Equal(servers[0]))
	})

	It("should return nil for an empty candidate set", func() {
		Expect(strat.Select(nil, strategy.Request{})).To(BeNil())
	})
})

var _ = Describe("Random", func() {
	var (
		strat   strategy.Strategy
		servers []*server.Server
	)

	BeforeEach(func() {
		strat = strategy.NewRandomStrategy()
		servers = makeServers("a", "b", "c")
	})

	It("should select a candidate", func() {
		selected := strat.Select(servers, strategy.Request{})
		Expect(selected).NotTo(BeNil())
		Expect(servers).To(ContainElement(selected))
	})

	It("should reach every candidate over many draws", func() {
		seen := make(map[string]bool)
		for i := 0; i < 300; i++ {
			seen[strat.Select(servers, strategy.Request{}).ID()] = true
		}
		Expect(seen).To(HaveLen(3))
	})
})

var _ = Describe("WeightedRandom", func() {
	var strat strategy.Strategy

	BeforeEach(func() {
		strat = strategy.NewWeightedRandomStrategy()
	})

	It("should favor the heavier candidate proportionally", func() {
		servers := []*server.Server{
			makeWeightedServer("heavy", 2),
			makeWeightedServer("light", 1),
		}

		counts := make(map[string]int)
		for i := 0; i < 1000; i++ {
			counts[strat.Select(servers, strategy.Request{}).ID()]++
		}

		// Expected share is 2/3; assert a broad statistical band.
		Expect(counts["heavy"]).To(BeNumerically(">=", 550))
		Expect(counts["heavy"]).To(BeNumerically("<=", 780))
	})

	It("should return nil for an empty candidate set", func() {
		Expect(strat.Select(nil, strategy.Request{})).To(BeNil())
	})
})

var _ = Describe("IPHash", func() {
	var (
		strat   strategy.Strategy
		servers []*server.Server
	)

	BeforeEach(func() {
		strat = strategy.NewIPHashStrategy()
		servers = makeServers("a", "b", "c")
	})

	It("should return the identical server for the identical client IP", func() {
		first := strat.Select(servers, strategy.Request{ClientIP: "10.1.2.3"})
		Expect(first).NotTo(BeNil())

		for i := 0; i < 100; i++ {
			Expect(strat.Select(servers, strategy.Request{ClientIP: "10.1.2.3"})).To(Equal(first))
		}
	})

	It("should not depend on candidate ordering", func() {
		reversed := []*server.Server{servers[2], servers[1], servers[0]}

		for _, ip := range []string{"10.0.0.1", "10.0.0.2", "192.168.7.9"} {
			a := strat.Select(servers, strategy.Request{ClientIP: ip})
			b := strat.Select(reversed, strategy.Request{ClientIP: ip})
			Expect(a.ID()).To(Equal(b.ID()))
		}
	})

	It("should spread distinct IPs across candidates", func() {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			req := strategy.Request{ClientIP: "10.0.1." + string(rune('0'+i%10)) + string(rune('0'+i/10))}
			seen[strat.Select(servers, req).ID()] = true
		}
		Expect(len(seen)).To(BeNumerically(">", 1))
	})
})

var _ = Describe("PowerOfTwoChoices", func() {
	var (
		strat   strategy.Strategy
		servers []*server.Server
	)

	BeforeEach(func() {
		strat = strategy.NewPowerOfTwoStrategy()
		servers = makeServers("a", "b", "c")
	})

	It("should select from the candidate set", func() {
		for i := 0; i < 50; i++ {
			Expect(servers).To(ContainElement(strat.Select(servers, strategy.Request{})))
		}
	})

	It("should prefer the lightly loaded server over many draws", func() {
		acquireN(servers[0], 100)
		acquireN(servers[1], 100)

		counts := make(map[string]int)
		for i := 0; i < 300; i++ {
			counts[strat.Select(servers, strategy.Request{}).ID()]++
		}
		Expect(counts["c"]).To(BeNumerically(">", counts["a"]))
		Expect(counts["c"]).To(BeNumerically(">", counts["b"]))
	})

	It("should handle a single candidate", func() {
		one := servers[:1]
		Expect(strat.Select(one, strategy.Request{})).To(Equal(one[0]))
	})
})

var _ = Describe("ResourceBased", func() {
	var (
		strat   strategy.Strategy
		servers []*server.Server
	)

	BeforeEach(func() {
		strat = strategy.NewResourceBasedStrategy()
		servers = makeServers("a", "b", "c")
	})

	It("should select the candidate with the lowest load score", func() {
		servers[0].SetUsage(0.9, 0.8)
		servers[1].SetUsage(0.1, 0.1)
		servers[2].SetUsage(0.5, 0.5)

		Expect(strat.Select(servers, strategy.Request{}).ID()).To(Equal("b"))
	})

	It("should break ties by insertion order", func() {
		Expect(strat.Select(servers, strategy.Request{})).To(Equal(servers[0]))
	})
})

var _ = Describe("WeightedRoundRobin", func() {
	var strat strategy.Strategy

	BeforeEach(func() {
		strat = strategy.NewWeightedRoundRobinStrategy()
	})

	It("should give each candidate turns proportional to its weight", func() {
		servers := []*server.Server{
			makeWeightedServer("heavy", 3),
			makeWeightedServer("light", 1),
		}

		counts := make(map[string]int)
		for i := 0; i < 400; i++ {
			counts[strat.Select(servers, strategy.Request{}).ID()]++
		}
		Expect(counts["heavy"]).To(Equal(300))
		Expect(counts["light"]).To(Equal(100))
	})

	It("should interleave instead of bursting", func() {
		servers := []*server.Server{
			makeWeightedServer("a", 2),
			makeWeightedServer("b", 1),
		}

		var order []string
		for i := 0; i < 3; i++ {
			order = append(order, strat.Select(servers, strategy.Request{}).ID())
		}
		// Smooth rotation: a, b, a rather than a, a, b.
		Expect(order).To(Equal([]string{"a", "b", "a"}))
	})

	It("should drop accumulator state for removed candidates", func() {
		servers := []*server.Server{
			makeWeightedServer("a", 1),
			makeWeightedServer("b", 1),
		}

		strat.Select(servers, strategy.Request{})
		strat.Select(servers[:1], strategy.Request{})
		Expect(strat.Select(servers[:1], strategy.Request{}).ID()).To(Equal("a"))
	})
})
