package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"PatternLab/internal/domain/models"
)

func newBase(t *testing.T, h http.HandlerFunc, attempts int) *HTTPServiceBase {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPServiceBase(srv.URL, time.Second, WithAttempts(attempts), WithInitialBackoff(time.Millisecond))
}

func TestOracleDecodesProposal(t *testing.T) {
	base := newBase(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != proposePath || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var snap models.MarketSnapshot
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil || snap.Symbol != "BTC" {
			t.Errorf("bad snapshot %+v: %v", snap, err)
		}
		_, _ = w.Write([]byte(`{"proposal":{"action":"BUY","entry_price":100,"stop_loss":95,"take_profit":110,"position_size_pct":0.02}}`))
	}, 1)

	p, err := NewHTTPStrategyOracle(base).Propose(context.Background(), models.MarketSnapshot{Symbol: "BTC"})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if p == nil || p.Action != models.Buy || p.StopLoss != 95 {
		t.Fatalf("unexpected proposal %+v", p)
	}
}

func TestOracleNullProposal(t *testing.T) {
	base := newBase(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"proposal":null}`))
	}, 1)
	p, err := NewHTTPStrategyOracle(base).Propose(context.Background(), models.MarketSnapshot{})
	if err != nil || p != nil {
		t.Fatalf("expected no proposal, got %+v, %v", p, err)
	}
}

func TestClassifierRetriesServerErrors(t *testing.T) {
	var calls int32
	base := newBase(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"probability":0.8}`))
	}, 3)

	score, err := NewHTTPPatternClassifier(base).Score(context.Background(), models.FeatureWindow{Type: models.DoubleTop})
	if err != nil || score != 0.8 {
		t.Fatalf("score = %v, %v", score, err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestClassifierDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	base := newBase(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}, 5)

	_, err := NewHTTPPatternClassifier(base).Score(context.Background(), models.FeatureWindow{})
	if !errors.Is(err, models.ErrClassifierUnavailable) {
		t.Fatalf("expected classifier unavailable, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx should not be retried, got %d calls", calls)
	}
}

func TestUnconfiguredBase(t *testing.T) {
	var b *HTTPServiceBase
	if err := b.PostJSONWithRetry(context.Background(), "/x", nil, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
