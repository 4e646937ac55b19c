// Package middleware provides HTTP middleware for the indexer's API server.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics with path normalization
//   - Response compression (gzip)
//   - Configurable filtering for health check endpoints
package middleware
