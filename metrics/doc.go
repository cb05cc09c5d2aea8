// Package metrics exposes Prometheus collectors for recorded authentication
// events, lockouts, suspicious activity and flow latency.
//
// Collectors are registered on a caller-supplied registry, never the global
// one; mount [Metrics.Handler] to serve them.
package metrics
