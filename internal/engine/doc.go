// Package engine implements the load balancer core: the pool registry,
// selection with failover chains, request execution with bounded retry,
// the health feed entry point, and aggregate metrics. Transports supply
// the request function; the engine never opens a socket itself.
package engine
