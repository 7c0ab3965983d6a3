// Package monitor provides recognition analytics: Prometheus metrics, a
// durable SQLite log with per-intent summaries, and a fan-out combinator.
package monitor
