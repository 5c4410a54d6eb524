// Package metrics provides Prometheus instrumentation for the agent and
// the catalog server.
//
// All metrics are prefixed with "medialib_" to avoid naming collisions
// with other applications. The agent exports HTTP, scan pipeline, and
// sync client metrics; the catalog server exports HTTP, database,
// ingestion, and catalog population metrics.
//
// Call InitializeMetrics once at startup to pre-populate expected label
// combinations so every series is visible from the first scrape, and use
// Collector to periodically refresh catalog population gauges from the
// database.
package metrics
