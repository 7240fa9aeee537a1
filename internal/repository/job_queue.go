package repository

import (
	"context"

	"github.com/google/uuid"

	"PatternLab/internal/domain/models"
	pkgkafka "PatternLab/pkg/kafka"
	"PatternLab/pkg/queue"
)

// KafkaJobQueue enqueues backtest requests for the job consumer. The job id
// travels as the trace_id header so worker logs can be joined to the submission.
type KafkaJobQueue struct {
	producer *pkgkafka.Producer
	topic    string
	newID    func() string
}

func NewKafkaJobQueue(producer *pkgkafka.Producer, topic string) *KafkaJobQueue {
	return &KafkaJobQueue{producer: producer, topic: topic, newID: uuid.NewString}
}

func (q *KafkaJobQueue) SubmitBacktest(ctx context.Context, req models.BacktestRequest) (string, error) {
	id := q.newID()
	err := q.producer.PublishBatch(ctx, q.topic, []pkgkafka.Message{{
		Key:     []byte(req.Symbol),
		Value:   req,
		Headers: map[string]string{"trace_id": id},
	}})
	if err != nil {
		return "", err
	}
	return id, nil
}

// RedisJobQueue enqueues backtest requests on the Redis list queue. Used when
// Kafka is disabled but Redis is available.
type RedisJobQueue struct {
	q       *queue.RedisQueue
	jobType string
}

func NewRedisJobQueue(q *queue.RedisQueue, jobType string) *RedisJobQueue {
	return &RedisJobQueue{q: q, jobType: jobType}
}

func (q *RedisJobQueue) SubmitBacktest(ctx context.Context, req models.BacktestRequest) (string, error) {
	return q.q.Enqueue(ctx, q.jobType, req)
}
