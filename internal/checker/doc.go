// Package checker implements the canonical-URL audit pipeline: sitemap
// resolution, cached canonical lookups, and bounded-parallel mismatch
// aggregation. Storage, transport, and reporting live behind the ports in
// interfaces.go.
package checker
