package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	EndpointLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "patternlab",
			Subsystem: "api",
			Name:      "compute_seconds",
			Help:      "Time spent computing an API result, excluding binding and encoding",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"endpoint"},
	)

	EndpointErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patternlab",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by API endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(EndpointLatency, EndpointErrors)
	})
}

// Observe records latency since start and counts err against endpoint.
func Observe(endpoint string, start time.Time, err error) {
	EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		EndpointErrors.WithLabelValues(endpoint).Inc()
	}
}
