package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"PatternLab/pkg/logger"
)

// ErrNoBrokers is returned when a producer or consumer is built without brokers.
var ErrNoBrokers = errors.New("kafka: brokers are required")

// Message is one record to publish. Value is sent as-is when it is []byte or string,
// otherwise JSON encoded.
type Message struct {
	Key     []byte
	Value   interface{}
	Headers map[string]string
}

// Producer wraps a kafka-go writer.
type Producer struct {
	writer  *kafka.Writer
	metrics *producerMetrics
	log     *logger.Logger
}

// NewProducer creates a new Kafka producer.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}

	bal := kafka.Balancer(&kafka.LeastBytes{})
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     bal,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
	}

	m := defaultProducerMetrics()
	if cfg.Registerer != nil {
		m = newProducerMetrics(cfg.Registerer)
	}
	return &Producer{writer: writer, metrics: m, log: cfg.Logger.With("kafka_producer")}, nil
}

// Publish sends one message to topic.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value}})
}

// PublishBatch sends messages to topic in a single write.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	start := time.Now()
	msgs, size, err := buildMessages(topic, messages, start)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, msgs...)
	p.metrics.observe(topic, size, len(msgs), time.Since(start), err)
	if err != nil {
		p.log.Error("publish failed", logger.String("topic", topic), logger.Int("messages", len(msgs)), logger.Error(err))
		return fmt.Errorf("kafka publish %s: %w", topic, err)
	}
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func buildMessages(topic string, messages []Message, now time.Time) ([]kafka.Message, int64, error) {
	out := make([]kafka.Message, 0, len(messages))
	var size int64
	for _, m := range messages {
		v, err := encodeValue(m.Value)
		if err != nil {
			return nil, 0, err
		}
		km := kafka.Message{Topic: topic, Key: m.Key, Value: v, Time: now}
		for k, hv := range m.Headers {
			km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(hv)})
		}
		out = append(out, km)
		size += int64(len(v))
	}
	return out, size, nil
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return b, nil
	}
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}
