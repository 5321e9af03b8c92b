package strategy_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/trafficdist/engine/internal/hashring"
	"github.com/trafficdist/engine/internal/server"
	"github.com/trafficdist/engine/internal/strategy"
)

var _ = Describe("ConsistentHash", func() {
	var (
		ring    *hashring.Ring
		strat   strategy.Strategy
		servers []*server.Server
	)

	BeforeEach(func() {
		ring = hashring.New(100)
		servers = makeServers("a", "b", "c")
		for _, srv := range servers {
			ring.Add(srv.ID(), srv.Weight())
		}
		strat = strategy.NewConsistentHashStrategy(ring)
	})

	It("should be deterministic for a fixed ring and key", func() {
		first := strat.Select(servers, strategy.Request{ClientIP: "172.16.0.9"})
		Expect(first).NotTo(BeNil())

		for i := 0; i < 100; i++ {
			Expect(strat.Select(servers, strategy.Request{ClientIP: "172.16.0.9"})).To(Equal(first))
		}
	})

	It("should fall back to the session ID when no client IP is present", func() {
		bySession := strat.Select(servers, strategy.Request{SessionID: "sess-42"})
		Expect(bySession).NotTo(BeNil())
		Expect(strat.Select(servers, strategy.Request{SessionID: "sess-42"})).To(Equal(bySession))
	})

	It("should never select outside the candidate set", func() {
		// The ring still knows all three servers, but only two are candidates.
		candidates := servers[:2]

		for i := 0; i < 200; i++ {
			selected := strat.Select(candidates, strategy.Request{ClientIP: "10.0.0." + string(rune('0'+i%10))})
			Expect(candidates).To(ContainElement(selected))
		}
	})

	It("should return nil for an empty candidate set", func() {
		Expect(strat.Select(nil, strategy.Request{ClientIP: "1.2.3.4"})).To(BeNil())
	})

	It("should return nil on an empty ring", func() {
		empty := strategy.NewConsistentHashStrategy(hashring.New(100))
		Expect(empty.Select(servers, strategy.Request{ClientIP: "1.2.3.4"})).To(BeNil())
	})
})
