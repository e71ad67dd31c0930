package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Controller API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nsx_api_requests_total",
			Help: "Total number of controller API calls by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nsx_api_request_duration_seconds",
			Help:    "Controller API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Resource lifecycle metrics
	ResourcesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nsx_resources_created_total",
			Help: "Total number of controller objects created by kind",
		},
		[]string{"kind"},
	)

	ResourcesDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nsx_resources_deleted_total",
			Help: "Total number of controller objects deleted by kind",
		},
		[]string{"kind"},
	)

	// Teardown metrics
	TeardownPolls = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nsx_teardown_polls_total",
			Help: "Total number of dependent-count polls while waiting to delete a parent object",
		},
	)

	TeardownExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nsx_teardown_exhausted_total",
			Help: "Total number of teardowns abandoned with dependents still attached",
		},
	)

	TeardownWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nsx_teardown_wait_seconds",
			Help:    "Time spent waiting for dependents to detach",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		},
	)
)

func init() {
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(ResourcesCreated)
	prometheus.MustRegister(ResourcesDeleted)
	prometheus.MustRegister(TeardownPolls)
	prometheus.MustRegister(TeardownExhausted)
	prometheus.MustRegister(TeardownWait)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
