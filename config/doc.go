// Package config loads and validates the engine configuration: admin
// endpoint, logging, health checking, circuit breaking, and the pool
// declarations with their servers, algorithms, and failover chains.
// Values come from config.yaml with environment variable overrides.
package config
