// Package healthcheck provides the optional active probing subsystem:
// one goroutine per server issuing GET /health on an interval and
// reporting HEALTHY or UNHEALTHY through the engine's health feed.
package healthcheck
