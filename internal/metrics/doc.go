// Package metrics defines the Prometheus metrics exported by the daemon.
// All metrics carry the photovault_ prefix and are registered via promauto
// at package load time.
package metrics
