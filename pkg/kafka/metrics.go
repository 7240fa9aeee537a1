package kafka

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type producerMetrics struct {
	messages *prometheus.CounterVec
	errors   *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newProducerMetrics(reg prometheus.Registerer) *producerMetrics {
	f := promauto.With(reg)
	return &producerMetrics{
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "patternlab_kafka_producer_messages_total",
			Help: "Total messages published to Kafka",
		}, []string{"topic", "result"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "patternlab_kafka_producer_errors_total",
			Help: "Total producer errors",
		}, []string{"topic"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "patternlab_kafka_producer_bytes_total",
			Help: "Total payload bytes published",
		}, []string{"topic"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "patternlab_kafka_producer_publish_seconds",
			Help:    "Publish latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

func (m *producerMetrics) observe(topic string, bytes int64, count int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		m.errors.WithLabelValues(topic).Inc()
	}
	m.messages.WithLabelValues(topic, result).Add(float64(count))
	m.bytes.WithLabelValues(topic).Add(float64(bytes))
	m.latency.WithLabelValues(topic).Observe(dur.Seconds())
}

type consumerMetrics struct {
	queueDepth *prometheus.GaugeVec
	handled    *prometheus.CounterVec
	dlq        *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	f := promauto.With(reg)
	return &consumerMetrics{
		queueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "patternlab_kafka_consumer_queue_depth",
			Help: "Messages waiting in the consumer queue",
		}, []string{"topic"}),
		handled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "patternlab_kafka_consumer_messages_total",
			Help: "Messages handled by result",
		}, []string{"topic", "result"}),
		dlq: f.NewCounterVec(prometheus.CounterOpts{
			Name: "patternlab_kafka_consumer_dlq_total",
			Help: "Messages routed to the dead letter topic",
		}, []string{"topic"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "patternlab_kafka_consumer_handle_seconds",
			Help:    "Handling time per message",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

// The default registry accepts each collector once per process.
var (
	defaultProducerMetrics = sync.OnceValue(func() *producerMetrics {
		return newProducerMetrics(prometheus.DefaultRegisterer)
	})
	defaultConsumerMetrics = sync.OnceValue(func() *consumerMetrics {
		return newConsumerMetrics(prometheus.DefaultRegisterer)
	})
)
