// Package handlers provides HTTP request handlers for the indexer API.
//
// It includes handlers for:
//   - Health, liveness, and readiness probes
//   - Triggering indexing runs and reporting run statistics
//   - Version and build information
//   - Prometheus metrics exposition
//
// Handlers talk to the indexer through the IndexerService interface so
// tests can substitute a mock without running a real indexing pass.
package handlers
