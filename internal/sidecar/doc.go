// Package sidecar resolves JSON sidecar metadata for data files
// according to the inheritance principle: sidecars apply to every file
// whose entities they are a subset of, and sidecars closer to a file
// override sidecars higher up the tree.
//
// A [Resolver] is scoped to one dataset and caches directory listings
// and decoded sidecar contents, so resolving a whole dataset reads each
// sidecar once. Resolvers are single-threaded on purpose; parallel
// workers each hold their own, trading a few redundant reads for zero
// cross-worker coordination.
package sidecar
