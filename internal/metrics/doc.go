// Package metrics accumulates request totals with per-pool and
// per-server breakdowns, exposes JSON snapshots with response-time
// percentiles, and optionally mirrors observations into a Prometheus
// registry. A channel-based collector lets collaborators emit events
// without touching the metrics lock inline.
package metrics
