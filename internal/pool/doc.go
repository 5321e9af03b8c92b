// Package pool implements the server pool: ordered membership, the
// configured selection strategy, sticky-session bindings with TTL, and
// graceful versus hard removal. A pool exclusively owns its servers; one
// fine-grained lock guards membership, the session table, and selection.
package pool
