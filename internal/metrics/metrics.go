// Registers:
//
//	#salesflow_cycles_total{state}
//	#salesflow_cycle_duration_seconds
//	#salesflow_sales_fetched
//	#salesflow_marketplace_requests_total{endpoint,status}
//	#salesflow_marketplace_limited_total{endpoint,kind}
//	#go_* and process_* system metrics
//
// Exposed through Handler, mounted by the dashboard at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once             sync.Once
	registry         *prometheus.Registry
	cyclesTotal      *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	salesFetched     prometheus.Gauge
	requestsTotal    *prometheus.CounterVec
	limitedTotal     *prometheus.CounterVec
	requestDurations *prometheus.HistogramVec
)

func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		cyclesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salesflow_cycles_total",
				Help: "Number of finished poll cycles by final state",
			},
			[]string{"state"},
		)

		cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "salesflow_cycle_duration_seconds",
			Help:    "Wall time of a poll cycle",
			Buckets: prometheus.DefBuckets,
		})

		salesFetched = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "salesflow_sales_fetched",
			Help: "Sales held by the latest successful cycle",
		})

		requestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salesflow_marketplace_requests_total",
				Help: "Marketplace API requests by endpoint and HTTP status (0 = transport failure)",
			},
			[]string{"endpoint", "status"},
		)

		requestDurations = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "salesflow_marketplace_request_duration_seconds",
				Help:    "Marketplace API request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		)

		limitedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salesflow_marketplace_limited_total",
				Help: "Responses signalling rate limiting or a ban",
			},
			[]string{"endpoint", "kind"},
		)

		registry.MustRegister(
			cyclesTotal,
			cycleDuration,
			salesFetched,
			requestsTotal,
			requestDurations,
			limitedTotal,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests and embedding.
func Gatherer() prometheus.Gatherer {
	Init()
	return registry
}

// ObserveCycle records one finished poll cycle.
func ObserveCycle(state string, duration time.Duration, sales int) {
	Init()
	cyclesTotal.WithLabelValues(state).Inc()
	cycleDuration.Observe(duration.Seconds())
	if state == "success" {
		salesFetched.Set(float64(sales))
	}
}

// ObserveRequest records one marketplace request.
func ObserveRequest(endpoint string, status int, duration time.Duration) {
	Init()
	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	requestDurations.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func incLimited(endpoint, kind string) {
	Init()
	limitedTotal.WithLabelValues(endpoint, kind).Inc()
}
