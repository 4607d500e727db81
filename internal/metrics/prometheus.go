// Package metrics exposes Prometheus metrics for the gateway.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all gateway metrics.
type Registry struct {
	// Port lease metrics
	LeaseOperations *prometheus.CounterVec
	LeasedPort      prometheus.Gauge
	HistorySize     prometheus.Gauge
	ReloadTotal     *prometheus.CounterVec

	// Session metrics
	LoginAttempts *prometheus.CounterVec
	Logouts       prometheus.Counter

	// API metrics
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.LeaseOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wg_gateway_lease_operations_total",
		Help: "Port lease operations by kind and outcome",
	}, []string{"operation", "result"})

	r.LeasedPort = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wg_gateway_leased_port",
		Help: "Currently leased tunnel port (0 when released)",
	})

	r.HistorySize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wg_gateway_port_history_size",
		Help: "Number of ports recorded in the lease history",
	})

	r.ReloadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wg_gateway_reload_total",
		Help: "WireGuard reload notifications by outcome",
	}, []string{"result"})

	r.LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wg_gateway_login_attempts_total",
		Help: "Admin login attempts by outcome",
	}, []string{"result"})

	r.Logouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wg_gateway_logouts_total",
		Help: "Admin sessions destroyed by logout",
	})

	r.APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wg_gateway_api_requests_total",
		Help: "API requests by method, route and status",
	}, []string{"method", "route", "status"})

	r.APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wg_gateway_api_request_duration_seconds",
		Help:    "API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	return r
}

// ObserveLease records the outcome of a lease operation.
func (r *Registry) ObserveLease(operation, result string) {
	r.LeaseOperations.WithLabelValues(operation, result).Inc()
}

// SetLease records the current lease state.
func (r *Registry) SetLease(port, historySize int) {
	r.LeasedPort.Set(float64(port))
	r.HistorySize.Set(float64(historySize))
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
