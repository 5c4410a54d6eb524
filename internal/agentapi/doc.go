// Package agentapi implements the agent's local control API.
//
// The API runs alongside the scan loop and lets the catalog server's
// operator browse the agent's filesystem when picking remote roots,
// inspect scan progress and cache state, and trigger maintenance
// actions (scan now, clear or compact the cache). The agent's
// Prometheus metrics are exported on the same listener at /metrics.
package agentapi
