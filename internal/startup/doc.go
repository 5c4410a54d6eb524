// Package startup handles catalog server initialization, configuration
// loading, and startup/shutdown logging.
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - DATA_DIR: Path to the data directory holding catalog.db (default: /data)
//   - PORT: HTTP server port (default: 8765)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - LOG_HEALTH_CHECKS: Whether to log health check requests (default: true)
//   - LOG_LEVEL: Logging level (DEBUG, INFO, WARN, ERROR)
//   - HASH_ALGO: Hash algorithm served to agents (default: xxhash64)
//   - HASH_SAMPLE_SIZE: Sampled-hash chunk size in bytes (default: 4194304)
//   - DO_FULL_HASH: Whether agents compute full-file hashes (default: false)
//   - AGENT_BATCH_SIZE: Records per upload batch (default: 500)
//   - AGENT_MAX_WORKERS: Agent worker ceiling (default: 4)
//   - AGENT_GZIP: Gzip-compress agent uploads (default: true)
//   - AGENT_ADAPTIVE: Enable adaptive agent concurrency (default: true)
//   - AGENT_OFFPEAK_START, AGENT_OFFPEAK_END: Full-hash window hours (default: 1, 6)
//   - FOLLOW_SYMLINKS: Whether agents follow symlinks while walking (default: false)
//
// Version information is injected at build time via -ldflags:
//
//	go build -ldflags "-X medialib/internal/startup.Version=1.0.0 ..."
package startup
