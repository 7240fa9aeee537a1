package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func TestDecide(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name     string
		attempts int
		err      error
		want     outcome
	}{
		{"success", 1, nil, outcomeDone},
		{"transient", 1, boom, outcomeRetry},
		{"exhausted", 4, boom, outcomeDead},
		{"permanent", 1, backoff.Permanent(boom), outcomeDead},
		{"wrapped permanent", 1, fmt.Errorf("job: %w", backoff.Permanent(boom)), outcomeDead},
		{"cancelled", 1, fmt.Errorf("run: %w", context.Canceled), outcomeDropped},
	}
	for _, tc := range cases {
		if got := decide(Message{Attempts: tc.attempts}, tc.err, 4); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestRetryAtDoublesAndCaps(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := time.Second
	if got := retryAt(now, 1, base).Sub(now); got != time.Second {
		t.Fatalf("first retry after %v", got)
	}
	if got := retryAt(now, 3, base).Sub(now); got != 4*time.Second {
		t.Fatalf("third retry after %v", got)
	}
	if got := retryAt(now, 20, base).Sub(now); got != 32*time.Second {
		t.Fatalf("cap not applied: %v", got)
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.setDefaults()
	if c.Workers != 1 || c.RetryDelay != 10*time.Second || c.PollTimeout != time.Second {
		t.Fatalf("unexpected defaults %+v", c)
	}
}
