package engine_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/trafficdist/engine/internal/engine"
	"github.com/trafficdist/engine/internal/pool"
	"github.com/trafficdist/engine/internal/server"
	"github.com/trafficdist/engine/internal/strategy"
)

var _ = Describe("Execute", func() {
	var (
		lb  *engine.LoadBalancer
		ctx context.Context
	)

	BeforeEach(func() {
		lb = engine.New(engine.Options{})
		ctx = context.Background()

		_, err := lb.AddPool(pool.Config{Name: "web", Algorithm: strategy.RoundRobin})
		Expect(err).NotTo(HaveOccurred())
		Expect(lb.AddServer("web", newServer("a"))).To(Succeed())
		Expect(lb.AddServer("web", newServer("b"))).To(Succeed())
	})

	It("should return the request function's value on success", func() {
		result, err := lb.Execute(ctx, "web",
			strategy.Request{},
			func(ctx context.Context, srv *server.Server) (any, error) {
				return "payload from " + srv.ID(), nil
			},
			engine.ExecuteOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Attempts).To(Equal(1))
		Expect(result.Value).To(HavePrefix("payload from "))
		Expect(result.PoolName).To(Equal("web"))
	})

	It("should succeed on the second attempt when the first dispatch fails", func() {
		calls := 0
		result, err := lb.Execute(ctx, "web",
			strategy.Request{},
			func(ctx context.Context, srv *server.Server) (any, error) {
				calls++
				if calls == 1 {
					return nil, errors.New("connection reset")
				}
				return "ok", nil
			},
			engine.ExecuteOptions{RetryOnFailure: true, MaxRetries: 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Attempts).To(Equal(2))
		Expect(result.Value).To(Equal("ok"))
	})

	It("should retry against a different server", func() {
		var tried []string
		result, err := lb.Execute(ctx, "web",
			strategy.Request{},
			func(ctx context.Context, srv *server.Server) (any, error) {
				tried = append(tried, srv.ID())
				if len(tried) == 1 {
					return nil, errors.New("boom")
				}
				return "ok", nil
			},
			engine.ExecuteOptions{RetryOnFailure: true, MaxRetries: 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Attempts).To(Equal(2))
		Expect(tried).To(HaveLen(2))
		Expect(tried[0]).NotTo(Equal(tried[1]))
	})

	It("should propagate immediately without retry enabled", func() {
		calls := 0
		_, err := lb.Execute(ctx, "web",
			strategy.Request{},
			func(ctx context.Context, srv *server.Server) (any, error) {
				calls++
				return nil, errors.New("boom")
			},
			engine.ExecuteOptions{RetryOnFailure: false, MaxRetries: 5})
		Expect(err).To(HaveOccurred())
		Expect(calls).To(Equal(1))

		var execErr *engine.RequestExecutionError
		Expect(errors.As(err, &execErr)).To(BeTrue())
		Expect(execErr.Attempts).To(Equal(1))
	})

	It("should wrap the last failure and attempt count on exhaustion", func() {
		_, err := lb.Execute(ctx, "web",
			strategy.Request{},
			func(ctx context.Context, srv *server.Server) (any, error) {
				return nil, errors.New("always failing")
			},
			engine.ExecuteOptions{RetryOnFailure: true, MaxRetries: 5})
		Expect(err).To(HaveOccurred())

		var execErr *engine.RequestExecutionError
		Expect(errors.As(err, &execErr)).To(BeTrue())
		// Two servers, each excluded after its failure; selection runs
		// dry before MaxRetries does.
		Expect(execErr.Attempts).To(Equal(2))
	})

	It("should not retry selection failures", func() {
		empty := engine.New(engine.Options{})
		_, err := empty.AddPool(pool.Config{Name: "empty", Algorithm: strategy.RoundRobin})
		Expect(err).NotTo(HaveOccurred())

		calls := 0
		_, err = empty.Execute(ctx, "empty",
			strategy.Request{},
			func(ctx context.Context, srv *server.Server) (any, error) {
				calls++
				return nil, nil
			},
			engine.ExecuteOptions{RetryOnFailure: true, MaxRetries: 5})
		Expect(err).To(MatchError(engine.ErrNoHealthyServer))
		Expect(calls).To(BeZero())
	})

	It("should release the connection slot on every path", func() {
		p, err := lb.Pool("web")
		Expect(err).NotTo(HaveOccurred())

		_, _ = lb.Execute(ctx, "web",
			strategy.Request{},
			func(ctx context.Context, srv *server.Server) (any, error) {
				Expect(srv.CurrentConnections()).To(Equal(int64(1)))
				return nil, errors.New("boom")
			},
			engine.ExecuteOptions{RetryOnFailure: true, MaxRetries: 2})

		for _, srv := range p.Servers() {
			Expect(srv.CurrentConnections()).To(BeZero())
		}
	})

	It("should recover a panicking request function", func() {
		calls := 0
		result, err := lb.Execute(ctx, "web",
			strategy.Request{},
			func(ctx context.Context, srv *server.Server) (any, error) {
				calls++
				if calls == 1 {
					panic("request handler blew up")
				}
				return "recovered path", nil
			},
			engine.ExecuteOptions{RetryOnFailure: true, MaxRetries: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Attempts).To(Equal(2))
		Expect(result.Value).To(Equal("recovered path"))
	})

	It("should update server counters and response times", func() {
		result, err := lb.Execute(ctx, "web",
			strategy.Request{},
			func(ctx context.Context, srv *server.Server) (any, error) {
				time.Sleep(time.Millisecond)
				return "ok", nil
			},
			engine.ExecuteOptions{})
		Expect(err).NotTo(HaveOccurred())

		p, _ := lb.Pool("web")
		served, ok := p.Server(result.ServerID)
		Expect(ok).To(BeTrue())
		Expect(served.TotalRequests()).To(Equal(int64(1)))
		Expect(served.FailedRequests()).To(BeZero())
		Expect(served.AvgResponseTime()).To(BeNumerically(">", 0))
	})

	It("should aggregate metrics across calls", func() {
		for i := 0; i < 5; i++ {
			_, err := lb.Execute(ctx, "web",
				strategy.Request{},
				func(ctx context.Context, srv *server.Server) (any, error) {
					return "ok", nil
				},
				engine.ExecuteOptions{})
			Expect(err).NotTo(HaveOccurred())
		}
		_, _ = lb.Execute(ctx, "web",
			strategy.Request{},
			func(ctx context.Context, srv *server.Server) (any, error) {
				return nil, errors.New("boom")
			},
			engine.ExecuteOptions{})

		snap := lb.Metrics()
		Expect(snap.TotalRequests).To(Equal(int64(6)))
		Expect(snap.TotalSuccess).To(Equal(int64(5)))
		Expect(snap.TotalFailed).To(Equal(int64(1)))
		Expect(snap.Pools).To(HaveKey("web"))
	})

	Context("with circuit breakers enabled", func() {
		var gated *engine.LoadBalancer

		BeforeEach(func() {
			gated = engine.New(engine.Options{
				BreakerThreshold: 1,
				BreakerTimeout:   time.Hour,
			})

			_, err := gated.AddPool(pool.Config{
				Name:           "cb",
				Algorithm:      strategy.RoundRobin,
				CircuitBreaker: true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(gated.AddServer("cb", newServer("a"))).To(Succeed())
			Expect(gated.AddServer("cb", newServer("b"))).To(Succeed())
		})

		It("should shed a server once its breaker opens", func() {
			var failed string
			_, err := gated.Execute(ctx, "cb",
				strategy.Request{},
				func(ctx context.Context, srv *server.Server) (any, error) {
					failed = srv.ID()
					return nil, errors.New("boom")
				},
				engine.ExecuteOptions{})
			Expect(err).To(HaveOccurred())

			for i := 0; i < 10; i++ {
				srv, err := gated.SelectServer("cb", strategy.Request{})
				Expect(err).NotTo(HaveOccurred())
				Expect(srv.ID()).NotTo(Equal(failed))
			}
		})
	})
})
