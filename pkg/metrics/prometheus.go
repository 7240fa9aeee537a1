package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"PatternLab/internal/domain/repository"
)

// Recorder implements repository.Metrics on Prometheus.
type Recorder struct {
	rejected    *prometheus.CounterVec
	oracleFails prometheus.Counter
	fallbacks   prometheus.Counter
	degenerate  *prometheus.CounterVec
	patterns    *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

var _ repository.Metrics = (*Recorder)(nil)

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		rejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternlab_rejected_proposals_total",
				Help: "Strategy proposals discarded by the simulator",
			},
			[]string{"reason"},
		),
		oracleFails: f.NewCounter(prometheus.CounterOpts{
			Name: "patternlab_oracle_failures_total",
			Help: "Strategy oracle calls that failed and counted as no proposal",
		}),
		fallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "patternlab_classifier_fallbacks_total",
			Help: "Patterns scored with structural confidence only",
		}),
		degenerate: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternlab_degenerate_ratios_total",
				Help: "Ratios left undefined because of a zero denominator",
			},
			[]string{"kind"},
		),
		patterns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternlab_patterns_detected_total",
				Help: "Patterns emitted by the detector scan",
			},
			[]string{"type"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternlab_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "patternlab_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordRejectedProposal(reason string) {
	r.rejected.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordOracleFailure() { r.oracleFails.Inc() }

func (r *Recorder) RecordClassifierFallback() { r.fallbacks.Inc() }

func (r *Recorder) RecordDegenerateRatio(kind string) {
	r.degenerate.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordPatternsDetected(patternType string, n int) {
	r.patterns.WithLabelValues(patternType).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
