package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"PatternLab/pkg/logger"
)

// RedisQueue is a list-backed job queue with a sorted-set retry schedule and a
// dead letter list. Enqueue works without Start; workers only run after Start.
type RedisQueue struct {
	log       *logger.Logger
	cfg       Config
	client    *redis.Client
	keyPrefix string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Option func(*RedisQueue)

func WithKeyPrefix(prefix string) Option {
	return func(r *RedisQueue) { r.keyPrefix = prefix }
}

func NewRedisQueue(l *logger.Logger, cfg Config, client *redis.Client, opts ...Option) *RedisQueue {
	cfg.setDefaults()
	r := &RedisQueue{
		log:       l.With("queue"),
		cfg:       cfg,
		client:    client,
		keyPrefix: "patternlab:queue",
		jobs:      make(map[string]Job),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterJob must be called before Start.
func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Type()]; exists {
		r.log.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.log.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Enqueue pushes payload as a msgType message and returns its id.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	msg := Message{ID: uuid.NewString(), Type: msgType, Payload: raw, Timestamp: time.Now().UTC()}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.queueKey(), data).Err(); err != nil {
		return "", fmt.Errorf("lpush: %w", err)
	}
	return msg.ID, nil
}

// Start pings Redis and launches the workers and the retry mover.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("queue already running")
	}
	if len(r.jobs) == 0 {
		return fmt.Errorf("no jobs registered")
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.running = true
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.retryLoop()
	r.log.Info("redis queue started", logger.Int("workers", r.cfg.Workers), logger.String("addr", r.client.Options().Addr))
	return nil
}

// Stop cancels in-flight handlers and waits for workers until ctx expires.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for queue workers: %w", ctx.Err())
	case <-done:
		r.log.Info("redis queue stopped")
		return nil
	}
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}
		res, err := r.client.BRPop(r.ctx, r.cfg.PollTimeout, r.queueKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			r.log.Error("brpop error", logger.Int("worker_id", id), logger.Error(err))
			select {
			case <-r.ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if len(res) < 2 {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			r.log.Error("unmarshal message", logger.Error(err))
			continue
		}
		r.process(msg)
	}
}

func (r *RedisQueue) process(msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.log.Error("no job for message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.push(r.deadLetterKey(), msg)
		return
	}

	start := time.Now()
	err := job.Handle(r.ctx, msg.Payload)
	msg.Attempts++
	switch decide(msg, err, r.cfg.RetryLimit+1) {
	case outcomeDone:
		r.log.Debug("job done", logger.String("id", msg.ID), logger.Duration("took_ms", time.Since(start)))
	case outcomeDropped:
		r.log.Warn("job cancelled", logger.String("id", msg.ID), logger.String("job", job.Name()))
	case outcomeRetry:
		at := retryAt(time.Now(), msg.Attempts, r.cfg.RetryDelay)
		r.log.Warn("job failed, retry scheduled",
			logger.String("id", msg.ID), logger.String("job", job.Name()),
			logger.Int("attempt", msg.Attempts), logger.String("retry_at", at.Format(time.RFC3339)), logger.Error(err))
		r.schedule(msg, at)
	case outcomeDead:
		r.log.Error("job dead-lettered", logger.String("id", msg.ID), logger.String("job", job.Name()),
			logger.Int("attempt", msg.Attempts), logger.Error(err))
		r.push(r.deadLetterKey(), msg)
	}
}

func (r *RedisQueue) schedule(msg Message, at time.Time) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal retry", logger.Error(err))
		return
	}
	if err := r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{Score: float64(at.Unix()), Member: data}).Err(); err != nil {
		r.log.Error("zadd retry", logger.Error(err))
	}
}

func (r *RedisQueue) push(key string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal message", logger.Error(err))
		return
	}
	if err := r.client.LPush(context.Background(), key, data).Err(); err != nil {
		r.log.Error("lpush", logger.String("key", key), logger.Error(err))
	}
}

func (r *RedisQueue) retryLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.moveDue()
		}
	}
}

// moveDue requeues every retry whose time has come.
func (r *RedisQueue) moveDue() {
	due, err := r.client.ZRangeByScore(r.ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Error("fetch retries", logger.Error(err))
		}
		return
	}
	for _, m := range due {
		pipe := r.client.TxPipeline()
		pipe.ZRem(r.ctx, r.retryKey(), m)
		pipe.LPush(r.ctx, r.queueKey(), m)
		if _, err := pipe.Exec(r.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.log.Error("requeue retry", logger.Error(err))
		}
	}
}

func (r *RedisQueue) queueKey() string      { return r.keyPrefix + ":messages" }
func (r *RedisQueue) retryKey() string      { return r.keyPrefix + ":retry" }
func (r *RedisQueue) deadLetterKey() string { return r.keyPrefix + ":dlq" }
