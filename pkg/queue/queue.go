package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Job handles one message type. Returning an error wrapped with backoff.Permanent
// skips the remaining retries.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload []byte) error
}

// Config tunes the worker pool and retry schedule.
type Config struct {
	Workers    int
	RetryLimit int
	RetryDelay time.Duration
	// PollTimeout bounds each blocking pop so workers notice Stop.
	PollTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = time.Second
	}
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// outcome is what happens to a message after its handler returned.
type outcome int

const (
	outcomeDone outcome = iota
	outcomeRetry
	outcomeDead
	outcomeDropped
)

// decide maps a handler result to the next step for msg.
func decide(msg Message, err error, retryLimit int) outcome {
	switch {
	case err == nil:
		return outcomeDone
	case errors.Is(err, context.Canceled):
		return outcomeDropped
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) || msg.Attempts >= retryLimit {
		return outcomeDead
	}
	return outcomeRetry
}

// retryAt doubles the delay per attempt, capped at 32x.
func retryAt(now time.Time, attempts int, base time.Duration) time.Time {
	shift := attempts - 1
	if shift < 0 {
		shift = 0
	}
	if shift > 5 {
		shift = 5
	}
	return now.Add(base << shift)
}
