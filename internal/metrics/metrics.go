package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Allocations counts allocation runs by resource type or failure reason
	Allocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "allocations_total", Help: "Allocation outcomes by result."},
		[]string{"outcome"},
	)
	// RoutesPlanned counts routes produced by optimizer runs
	RoutesPlanned = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "routes_planned_total", Help: "Routes produced by optimizer runs."},
	)
	// RoutesPersisted counts routes written to the store
	RoutesPersisted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "routes_persisted_total", Help: "Routes persisted to the store."},
	)
	// UncoveredPlans reports plans left pending by the last optimizer run
	UncoveredPlans = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "optimizer_uncovered_plans", Help: "Plans left pending by the most recent optimizer run."},
	)
	// RouteEfficiency tracks the efficiency score distribution of planned routes
	RouteEfficiency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "route_efficiency_score", Help: "Efficiency score of planned routes.", Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Allocations)
		Registry.MustRegister(RoutesPlanned)
		Registry.MustRegister(RoutesPersisted)
		Registry.MustRegister(UncoveredPlans)
		Registry.MustRegister(RouteEfficiency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
