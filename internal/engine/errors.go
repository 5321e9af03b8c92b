package engine

import (
	"errors"
	"fmt"

	"github.com/trafficdist/engine/internal/pool"
)

var (
	// ErrPoolNotFound is returned for operations on an unregistered pool.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrPoolAlreadyExists is returned when registering a duplicate pool name.
	ErrPoolAlreadyExists = errors.New("pool already exists")

	// ErrNoHealthyServer is returned when selection exhausts a pool and
	// its entire failover chain.
	ErrNoHealthyServer = pool.ErrNoHealthyServer

	// ErrInvalidConfiguration covers structurally invalid pool or server
	// definitions, including unknown algorithms.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// RequestExecutionError reports that Execute exhausted its retries. It
// wraps the last failure and carries the number of dispatch attempts.
type RequestExecutionError struct {
	PoolName string
	Attempts int
	Err      error
}

func (e *RequestExecutionError) Error() string {
	return fmt.Sprintf("request against pool %q failed after %d attempt(s): %v", e.PoolName, e.Attempts, e.Err)
}

func (e *RequestExecutionError) Unwrap() error {
	return e.Err
}
