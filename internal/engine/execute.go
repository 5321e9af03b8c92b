package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/trafficdist/engine/internal/server"
	"github.com/trafficdist/engine/internal/strategy"
)

// RequestFunc performs the actual call against a selected server. The
// engine performs no network I/O itself; transports supply this closure.
type RequestFunc func(ctx context.Context, srv *server.Server) (any, error)

// ExecuteOptions controls the retry policy of Execute.
type ExecuteOptions struct {
	RetryOnFailure bool
	MaxRetries     int // additional attempts after the first
}

// Result reports a successful Execute: the request function's return
// value, the server and pool that served it, and how many dispatch
// attempts it took.
type Result struct {
	Value    any
	Attempts int
	ServerID string
	PoolName string
}

// Execute selects a server from the named pool (including its failover
// chain), reserves a connection slot, invokes fn, and records counters
// and response time on every exit path. A failing fn marks the server
// failed and, under RetryOnFailure, is retried against a different
// server up to MaxRetries times. Selection exhaustion is terminal and
// never retried.
func (lb *LoadBalancer) Execute(ctx context.Context, poolName string, req strategy.Request, fn RequestFunc, opts ExecuteOptions) (*Result, error) {
	exclude := make(map[string]struct{})
	result := &Result{}
	attempts := 0

	operation := func() error {
		srv, servingPool, err := lb.selectFrom(poolName, req, exclude, make(map[string]struct{}))
		if err != nil {
			// No server anywhere in the chain: terminal.
			return backoff.Permanent(err)
		}

		if !srv.TryAcquire() {
			exclude[srv.ID()] = struct{}{}
			err := fmt.Errorf("server %q at connection capacity", srv.ID())
			if !opts.RetryOnFailure {
				return backoff.Permanent(err)
			}
			return err
		}

		attempts++
		lb.metrics.RecordSelection(servingPool.Name(), srv.ID())

		start := time.Now()
		value, err := invoke(ctx, fn, srv)
		duration := time.Since(start)

		srv.Release()
		srv.RecordResponse(duration, err == nil)
		lb.metrics.RecordCompletion(servingPool.Name(), srv.ID(), duration, err == nil)

		if servingPool.CircuitBreakerEnabled() {
			b := lb.breakers.Get(servingPool.Name(), srv.ID())
			if err == nil {
				b.RecordSuccess()
			} else {
				b.RecordFailure()
			}
		}

		if err != nil {
			exclude[srv.ID()] = struct{}{}
			if !opts.RetryOnFailure {
				return backoff.Permanent(err)
			}
			return err
		}

		result.Value = value
		result.ServerID = srv.ID()
		result.PoolName = servingPool.Name()
		return nil
	}

	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(maxRetries)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		if attempts == 0 {
			return nil, err
		}
		return nil, &RequestExecutionError{PoolName: poolName, Attempts: attempts, Err: err}
	}

	result.Attempts = attempts
	return result, nil
}

// invoke shields the dispatch path from a panicking request function so
// the connection slot is always released.
func invoke(ctx context.Context, fn RequestFunc, srv *server.Server) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("request function panicked: %v", r)
		}
	}()
	return fn(ctx, srv)
}
