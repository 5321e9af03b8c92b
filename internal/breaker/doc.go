// Package breaker provides per-server circuit breakers that shed a
// repeatedly failing server from selection until a reset timeout allows
// traffic to probe it again. Pools opt in; breakers never override the
// health state reported by the health feed.
package breaker
