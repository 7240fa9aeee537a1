package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"PatternLab/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Permanent marks a handler error as not worth retrying. The message goes
// straight to the error hooks and the dead letter topic.
func Permanent(err error) error { return backoff.Permanent(err) }

// Consumer reads registered topics and fans messages out to a worker pool.
// Messages of one partition are handled one at a time, in order.
type Consumer struct {
	cfg      *ConsumerConfig
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	msgs     chan *message
	dlq      *kafka.Writer
	hook     ConsumerHook
	metrics  *consumerMetrics
	log      *logger.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	mu        sync.Mutex
	partLocks map[string]*sync.Mutex
}

type message struct {
	topic string
	km    kafka.Message
}

// NewConsumer creates a new Kafka consumer. No connection is made until Start.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}

	m := defaultConsumerMetrics()
	if cfg.Registerer != nil {
		m = newConsumerMetrics(cfg.Registerer)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		cfg:       cfg,
		readers:   make(map[string]*kafka.Reader),
		handlers:  make(map[string]MessageHandler),
		msgs:      make(chan *message, cfg.BufferSize),
		hook:      NoopHook{},
		metrics:   m,
		log:       cfg.Logger.With("kafka_consumer"),
		ctx:       ctx,
		cancel:    cancel,
		partLocks: make(map[string]*sync.Mutex),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler registers a message handler for its topic. The first handler wins.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start opens one reader per registered topic and launches the workers.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("kafka consumer: no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			StartOffset: c.cfg.StartOffset,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
		})
		c.log.Info("topic registered", logger.String("topic", topic), logger.String("group", c.cfg.GroupID))
	}

	var workers sync.WaitGroup
	for i := 0; i < c.cfg.WorkerCount; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			c.worker()
		}()
	}
	var fetchers sync.WaitGroup
	for topic, reader := range c.readers {
		fetchers.Add(1)
		go func(topic string, r *kafka.Reader) {
			defer fetchers.Done()
			c.fetch(topic, r)
		}(topic, reader)
	}
	// Workers drain the queue after every fetcher has returned.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fetchers.Wait()
		close(c.msgs)
		workers.Wait()
	}()

	c.log.Info("consumer started", logger.Int("workers", c.cfg.WorkerCount), logger.Int("topics", len(c.readers)))
	return nil
}

// Stop signals every goroutine, waits for them within ctx and closes the readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		c.log.Info("consumer stopping")
		c.cancel()

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		case <-done:
		}

		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.log.Error("close reader", logger.String("topic", topic), logger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Error("close dlq writer", logger.Error(err))
			}
		}
		if stopErr == nil {
			c.log.Info("consumer stopped")
		}
	})
	return stopErr
}

func (c *Consumer) fetch(topic string, r *kafka.Reader) {
	for {
		km, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Error("fetch message", logger.String("topic", topic), logger.Error(err))
			select {
			case <-time.After(c.cfg.BackoffMin):
			case <-c.ctx.Done():
				return
			}
			continue
		}
		select {
		case c.msgs <- &message{topic: topic, km: km}:
			c.metrics.queueDepth.WithLabelValues(topic).Set(float64(len(c.msgs)))
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) worker() {
	for msg := range c.msgs {
		c.metrics.queueDepth.WithLabelValues(msg.topic).Set(float64(len(c.msgs)))
		lock := c.partitionLock(msg.topic, msg.km.Partition)
		lock.Lock()
		commit := c.process(msg.topic, msg.km)
		if commit {
			if r := c.readers[msg.topic]; r != nil {
				_ = c.commit(r, msg.km)
			}
		}
		lock.Unlock()
	}
}

// process runs the handler with retries and returns whether the offset may be committed.
// Failures are committed once they reach the dead letter topic so a poison message
// cannot block its partition.
func (c *Consumer) process(topic string, km kafka.Message) (commit bool) {
	handler, ok := c.handlers[topic]
	if !ok {
		return true
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic in message handler", logger.String("topic", topic), logger.Any("panic", r))
			commit = c.deadLetter(topic, km, fmt.Errorf("panic: %v", r))
		}
		c.metrics.latency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	}()

	attempts := 0
	op := func() error {
		attempts++
		hctx, hmsg, data, err := c.hook.BeforeHandle(c.ctx, topic, km, km.Value)
		if err != nil {
			return backoff.Permanent(err)
		}
		err = handler.Handle(hctx, data)
		c.hook.AfterHandle(hctx, topic, hmsg, data, err)
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.hook.OnError(c.ctx, topic, km, km.Value, err)
		c.log.Warn("handler failed, retrying",
			logger.String("topic", topic), logger.Int("attempt", attempts), logger.Duration("backoff_ms", wait), logger.Error(err))
	}
	err := backoff.RetryNotify(op, c.retryPolicy(), notify)
	if err == nil {
		c.metrics.handled.WithLabelValues(topic, "ok").Inc()
		return true
	}
	if errors.Is(err, context.Canceled) && c.ctx.Err() != nil {
		return false
	}
	c.hook.OnError(c.ctx, topic, km, km.Value, err)
	c.metrics.handled.WithLabelValues(topic, "error").Inc()
	c.log.Error("handler gave up", logger.String("topic", topic), logger.Int("attempts", attempts), logger.Error(err))
	return c.deadLetter(topic, km, err)
}

func (c *Consumer) retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BackoffMin
	b.MaxInterval = c.cfg.BackoffMax
	b.MaxElapsedTime = 0
	retries := c.cfg.RetryMax
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), c.ctx)
}

func (c *Consumer) deadLetter(topic string, km kafka.Message, cause error) bool {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Topic: c.cfg.DLQTopic,
		Key:   km.Key,
		Value: km.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(topic)},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
	if err != nil {
		c.log.Error("write dead letter", logger.String("dlq", c.cfg.DLQTopic), logger.Error(err))
		return false
	}
	c.metrics.dlq.WithLabelValues(topic).Inc()
	return true
}

func (c *Consumer) commit(r *kafka.Reader, km kafka.Message) error {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(100*time.Millisecond), 2)
	err := backoff.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return r.CommitMessages(ctx, km)
	}, b)
	if err != nil {
		c.log.Error("commit offset", logger.String("topic", km.Topic), logger.Int64("offset", km.Offset), logger.Error(err))
	}
	return err
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	key := fmt.Sprintf("%s/%d", topic, partition)
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.partLocks[key]
	if !ok {
		l = &sync.Mutex{}
		c.partLocks[key] = l
	}
	return l
}
