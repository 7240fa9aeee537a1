package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	xhttp "PatternLab/pkg/http"
)

// ErrNotConfigured is returned when no base URL was given.
var ErrNotConfigured = errors.New("remote service not configured")

// HTTPServiceBase posts JSON to one remote capability service.
type HTTPServiceBase struct {
	baseURL  string
	client   *xhttp.Client
	attempts int
	minWait  time.Duration
}

type Option func(*HTTPServiceBase)

// WithAttempts bounds PostJSONWithRetry. Values below 1 mean a single try.
func WithAttempts(n int) Option { return func(b *HTTPServiceBase) { b.attempts = n } }

// WithInitialBackoff sets the first retry delay.
func WithInitialBackoff(d time.Duration) Option { return func(b *HTTPServiceBase) { b.minWait = d } }

func NewHTTPServiceBase(baseURL string, timeout time.Duration, opts ...Option) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	b := &HTTPServiceBase{
		baseURL:  baseURL,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		attempts: 3,
		minWait:  50 * time.Millisecond,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// PostJSON posts the given payload to path under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b == nil || b.baseURL == "" {
		return ErrNotConfigured
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     b.baseURL + path,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry retries PostJSON with exponential backoff. Client errors (4xx)
// are not retried.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b == nil || b.baseURL == "" {
		return ErrNotConfigured
	}
	if b.attempts <= 1 {
		return b.PostJSON(ctx, path, payload, dest)
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.minWait
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(b.attempts-1)), ctx)

	return backoff.Retry(func() error {
		err := b.PostJSON(ctx, path, payload, dest)
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
