// Package server defines the backend server data model: identity,
// lifecycle state, connection tracking, and the derived load statistics
// (success rate, average response time, load score) used by the
// selection strategies.
package server
