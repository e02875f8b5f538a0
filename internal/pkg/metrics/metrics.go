// Package metrics holds the Prometheus collectors shared by the HTTP layer
// and the farm services.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts finished requests by route template.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartfarm_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartfarm_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartfarm_http_active_requests",
			Help: "Number of in-flight HTTP requests",
		},
	)

	// CycleTransitions counts planting cycle state changes by target status.
	CycleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartfarm_cycle_transitions_total",
			Help: "Planting cycle transitions by resulting status",
		},
		[]string{"status"},
	)

	ActivitiesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartfarm_activities_recorded_total",
			Help: "Activities appended to planting cycles by type",
		},
		[]string{"type"},
	)

	ImagesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartfarm_images_stored_total",
			Help: "Image store writes by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	CatalogCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartfarm_catalog_cache_lookups_total",
			Help: "Catalog read cache lookups by result",
		},
		[]string{"result"},
	)
)

// PoolOccupancy is one worker pool's goroutine usage at scrape time.
type PoolOccupancy struct {
	Pool    string
	Running int
	Free    int
	Cap     int
}

var (
	workerPoolDesc = prometheus.NewDesc(
		"smartfarm_worker_pool_goroutines",
		"Worker pool goroutines by pool and state",
		[]string{"pool", "state"}, nil,
	)
	poolSource atomic.Value
)

func init() {
	prometheus.MustRegister(poolCollector{})
}

// ObservePools samples src on every scrape. A later call replaces the
// earlier source.
func ObservePools(src func() []PoolOccupancy) {
	poolSource.Store(src)
}

type poolCollector struct{}

func (poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- workerPoolDesc
}

func (poolCollector) Collect(ch chan<- prometheus.Metric) {
	src, _ := poolSource.Load().(func() []PoolOccupancy)
	if src == nil {
		return
	}
	for _, o := range src() {
		ch <- prometheus.MustNewConstMetric(workerPoolDesc, prometheus.GaugeValue, float64(o.Running), o.Pool, "running")
		ch <- prometheus.MustNewConstMetric(workerPoolDesc, prometheus.GaugeValue, float64(o.Free), o.Pool, "free")
		ch <- prometheus.MustNewConstMetric(workerPoolDesc, prometheus.GaugeValue, float64(o.Cap), o.Pool, "capacity")
	}
}
