// Package middleware provides HTTP middleware shared by the agent control
// API and the catalog server.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics
//   - Response compression (gzip) for JSON payloads
package middleware
