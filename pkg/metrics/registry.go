// Package metrics provides Prometheus-backed observability for the PSX
// connector: sequence number gauges, heartbeat/test-request counters,
// reconnect counters, and frame error counters. Metrics collection is
// optional - when not enabled, all recorder methods are safe no-ops.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry creates and installs the Prometheus registry used by every
// metrics recorder in this package. Calling it again replaces the prior
// registry, which tests rely on to get a clean collector namespace per run.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// Disable turns metrics collection off; GetRegistry becomes unusable and
// every recorder constructed afterward returns nil (zero overhead).
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	registry = nil
	enabled = false
}

// IsEnabled reports whether InitRegistry has been called without a
// subsequent Disable.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// GetRegistry returns the active Prometheus registry. Callers must check
// IsEnabled first; GetRegistry panics if metrics were never initialized.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	if registry == nil {
		panic("metrics: GetRegistry called before InitRegistry")
	}
	return registry
}
