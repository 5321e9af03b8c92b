// Package strategy defines the selection strategy interface and
// implements the supported algorithms:
//
//   - Round Robin: cyclic rotation in insertion order
//   - Least Connections: fewest in-flight connections, insertion-order ties
//   - Weighted Random: draw proportional to server weight
//   - Random: uniform draw
//   - IP Hash: deterministic bucket of the client IP over servers ordered by ID
//   - Power of Two Choices: two uniform samples, fewer connections wins
//   - Resource Based: lowest combined connection/CPU/memory load score
//   - Consistent Hash: lookup through the pool's hash ring
//   - Weighted Round Robin: smooth interleaved rotation proportional to weight
//
// Strategies operate on a pre-filtered candidate set and never select
// outside it.
package strategy
