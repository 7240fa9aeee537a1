package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"PatternLab/internal/domain/models"
	domrepo "PatternLab/internal/domain/repository"
	"PatternLab/internal/repository"
	"PatternLab/internal/services/backtest"
	"PatternLab/internal/services/indicators"
	"PatternLab/internal/services/patterns"
	"PatternLab/internal/services/regime"
	"PatternLab/internal/services/strategy"
	"PatternLab/internal/services/validation"
	"PatternLab/pkg/cache"
	"PatternLab/pkg/logger"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeBarStore struct {
	bars []models.Bar
}

func (s *fakeBarStore) GetBars(_ context.Context, _ string, from, to time.Time, _ domrepo.Timeframe) ([]models.Bar, error) {
	var out []models.Bar
	for _, b := range s.bars {
		if !b.Timestamp.Before(from) && !b.Timestamp.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeBarStore) GetOptionsChains(context.Context, string, time.Time, time.Time, domrepo.Timeframe) (map[int64]*models.OptionsChain, error) {
	return nil, nil
}

type fakeExporter struct{ calls int }

func (e *fakeExporter) ExportTrades(_ context.Context, r *models.BacktestResult) (string, error) {
	e.calls++
	return "/tmp/" + r.RunID + "_trades.parquet", nil
}

type fakePublisher struct {
	mu       sync.Mutex
	results  []string
	patterns int
	err      error
}

func (p *fakePublisher) PublishResult(_ context.Context, r *models.BacktestResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.results = append(p.results, r.RunID)
	return nil
}

func (p *fakePublisher) PublishPatterns(_ context.Context, _ string, ps []models.Pattern) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.patterns += len(ps)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

func waveBars(n int) []models.Bar {
	out := make([]models.Bar, n)
	prev := 100.0
	for i := range out {
		c := 100 + 8*math.Sin(float64(i)/7) + 0.01*float64(i)
		out[i] = models.Bar{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      prev,
			High:      math.Max(prev, c) + 0.4,
			Low:       math.Min(prev, c) - 0.4,
			Close:     c,
			Volume:    1000 + float64(i%13)*50,
		}
		prev = c
	}
	return out
}

type fixture struct {
	store     *repository.MemoryResultStore
	exporter  *fakeExporter
	publisher *fakePublisher
	cache     *cache.MemoryCache
	backtests *BacktestUseCase
	patterns  *PatternUseCase
	analysis  *AnalysisUseCase
}

func newFixture(t *testing.T, bars []models.Bar) *fixture {
	t.Helper()
	data := NewMarketDataUseCase(&fakeBarStore{bars: bars})
	f := &fixture{
		store:     repository.NewMemoryResultStore(),
		exporter:  &fakeExporter{},
		publisher: &fakePublisher{},
		cache:     cache.NewMemoryCache(),
	}
	t.Cleanup(func() { _ = f.cache.Close() })

	f.backtests = NewBacktestUseCase(data, f.store, f.exporter, f.publisher, f.cache, nil, BacktestSettings{
		Simulator:  backtest.DefaultConfig(),
		Indicators: indicators.DefaultConfig(),
		Regime:     regime.DefaultConfig(),
		Rule:       strategy.DefaultRuleConfig(),
		RiskPct:    0.01,
		ResultTTL:  time.Minute,
	}, nil, logger.Nop())
	f.patterns = NewPatternUseCase(data, nil, f.publisher, PatternSettings{
		Detector:     patterns.DefaultConfig(),
		Validation:   validation.DefaultConfig(),
		Regime:       regime.DefaultConfig(),
		GapTolerance: 1.5,
	}, nil, logger.Nop())
	f.analysis = NewAnalysisUseCase(data, indicators.New(indicators.DefaultConfig()), regime.New(regime.DefaultConfig()))
	return f
}

func backtestRequest() models.BacktestRequest {
	return models.BacktestRequest{
		Symbol:          "btcusdt",
		TF:              "1h",
		From:            t0.Format(time.RFC3339),
		To:              t0.Add(399 * time.Hour).Format(time.RFC3339),
		InitialCapital:  100000,
		MaxPositionPct:  0.05,
		ExitPolicy:      "stop_target",
		Horizon:         10,
		Oracle:          "rule",
		Sizer:           "fixed",
		PositionSizePct: 0.02,
	}
}

func TestBacktestRunPersistsAndExports(t *testing.T) {
	f := newFixture(t, waveBars(400))
	ctx := context.Background()

	req := backtestRequest()
	req.Publish = true
	report, err := f.backtests.Run(ctx, req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	r := report.Result
	if r.Symbol != "BTCUSDT" || r.RunID == "" {
		t.Fatalf("unexpected result header %+v", r.Summary())
	}
	if f.exporter.calls != 1 || report.TradesArtifact == "" {
		t.Fatalf("trades not exported: calls=%d artifact=%q", f.exporter.calls, report.TradesArtifact)
	}
	if !report.Published || len(f.publisher.results) != 1 {
		t.Fatalf("result not published")
	}

	got, err := f.backtests.Get(ctx, r.RunID)
	if err != nil || got.RunID != r.RunID {
		t.Fatalf("Get: %v %+v", err, got)
	}
	list, err := f.backtests.List(ctx, "btcusdt", 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("List: %v %d", err, len(list))
	}
}

func TestBacktestPublishFailureKeepsResult(t *testing.T) {
	f := newFixture(t, waveBars(200))
	f.publisher.err = errors.New("broker down")
	req := backtestRequest()
	req.To = t0.Add(199 * time.Hour).Format(time.RFC3339)
	req.Publish = true
	report, err := f.backtests.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("publish failure must not fail the run: %v", err)
	}
	if report.Published {
		t.Fatalf("report should not claim publication")
	}
	if _, err := f.store.GetResult(context.Background(), report.Result.RunID); err != nil {
		t.Fatalf("result not stored: %v", err)
	}
}

func TestBacktestRemoteOracleMissing(t *testing.T) {
	f := newFixture(t, waveBars(50))
	req := backtestRequest()
	req.Oracle = "remote"
	if _, err := f.backtests.Run(context.Background(), req); !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}
}

func TestBacktestGetUnknown(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.backtests.Get(context.Background(), "missing"); !errors.Is(err, domrepo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadSeriesErrors(t *testing.T) {
	ctx := context.Background()
	data := NewMarketDataUseCase(&fakeBarStore{})
	if _, err := data.LoadSeries(ctx, NewSeriesQuery("BTC", "1h", "2024-01-01", "2024-01-02", false)); !errors.Is(err, models.ErrDataInsufficient) {
		t.Fatalf("expected ErrDataInsufficient, got %v", err)
	}
	if _, err := data.LoadSeries(ctx, NewSeriesQuery("BTC", "1h", "2024-02-01", "2024-01-01", false)); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams for inverted range, got %v", err)
	}
	if _, err := data.LoadSeries(ctx, NewSeriesQuery("", "1h", "", "", false)); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams for empty symbol, got %v", err)
	}
}

func TestPatternScanRejectsGappySeries(t *testing.T) {
	bars := waveBars(120)
	bars = append(bars[:60], bars[70:]...)
	f := newFixture(t, bars)
	_, err := f.patterns.Scan(context.Background(), models.PatternScanRequest{
		Symbol: "BTC", TF: "1h",
		From: t0.Format(time.RFC3339), To: t0.Add(119 * time.Hour).Format(time.RFC3339),
		Threshold: 0.7,
	})
	if !errors.Is(err, models.ErrDataQuality) {
		t.Fatalf("expected ErrDataQuality, got %v", err)
	}
}

func TestPatternScanAndEvaluate(t *testing.T) {
	f := newFixture(t, waveBars(300))
	ctx := context.Background()
	from, to := t0.Format(time.RFC3339), t0.Add(299*time.Hour).Format(time.RFC3339)

	raw, err := f.patterns.Scan(ctx, models.PatternScanRequest{Symbol: "BTC", TF: "1h", From: from, To: to, SkipValidation: true, Publish: true})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if raw.Bars != 300 || raw.Patterns == nil || raw.Detected != len(raw.Patterns) {
		t.Fatalf("unexpected scan %+v", raw)
	}
	if f.publisher.patterns != len(raw.Patterns) {
		t.Fatalf("published %d of %d patterns", f.publisher.patterns, len(raw.Patterns))
	}

	strict, err := f.patterns.Scan(ctx, models.PatternScanRequest{Symbol: "BTC", TF: "1h", From: from, To: to, Threshold: 1})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(strict.Patterns) > len(raw.Patterns) {
		t.Fatalf("validation cannot add patterns: %d > %d", len(strict.Patterns), len(raw.Patterns))
	}

	ev, err := f.patterns.Evaluate(ctx, models.PatternEvaluateRequest{Symbol: "BTC", TF: "1h", From: from, To: to, Horizon: 20})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.Accuracy < 0 || ev.Accuracy > 1 {
		t.Fatalf("accuracy out of range: %v", ev.Accuracy)
	}
}

func TestAnalysisIndicatorsLastRows(t *testing.T) {
	f := newFixture(t, waveBars(100))
	rep, err := f.analysis.Indicators(context.Background(), models.IndicatorRequest{
		Symbol: "BTC", TF: "1h", From: t0.Format(time.RFC3339), To: t0.Add(99 * time.Hour).Format(time.RFC3339), Last: 3,
	})
	if err != nil {
		t.Fatalf("Indicators: %v", err)
	}
	if len(rep.Rows) != 3 || !rep.Rows[2].Timestamp.Equal(t0.Add(99*time.Hour)) {
		t.Fatalf("unexpected rows %+v", rep.Rows)
	}
	if _, ok := rep.Rows[2].Indicators.Get(indicators.EMAName(9)); !ok {
		t.Fatalf("ema_9 should be defined after warm-up")
	}
}

func TestAnalysisRegimes(t *testing.T) {
	f := newFixture(t, waveBars(200))
	rep, err := f.analysis.Regimes(context.Background(), models.RegimeRequest{
		Symbol: "BTC", TF: "1h", From: t0.Format(time.RFC3339), To: t0.Add(199 * time.Hour).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("Regimes: %v", err)
	}
	if rep.Bars != 200 || rep.Regimes == nil {
		t.Fatalf("unexpected report %+v", rep)
	}
	for _, r := range rep.Regimes {
		if r.End.Before(r.Start) {
			t.Fatalf("regime ends before it starts: %+v", r)
		}
	}
}

func TestBacktestJobHandler(t *testing.T) {
	f := newFixture(t, waveBars(200))
	h := NewBacktestJobHandler("backtest.jobs", f.backtests, f.cache, time.Minute, nil, logger.Nop())
	ctx := context.Background()

	err := h.Handle(ctx, []byte("{not json"))
	var perm *backoff.PermanentError
	if !errors.As(err, &perm) {
		t.Fatalf("bad payload should be permanent, got %v", err)
	}
	if err := h.Handle(ctx, []byte(`{"tf":"1h"}`)); !errors.As(err, &perm) {
		t.Fatalf("missing symbol should be permanent, got %v", err)
	}

	job := []byte(`{"symbol":"BTC","tf":"1h","from":"2024-01-01T00:00:00Z","to":"2024-01-09T07:00:00Z"}`)
	if err := h.Handle(ctx, job); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := h.Handle(ctx, job); err != nil {
		t.Fatalf("duplicate Handle: %v", err)
	}
	if len(f.publisher.results) != 1 {
		t.Fatalf("duplicate job ran twice: %d publications", len(f.publisher.results))
	}
	if list, _ := f.store.ListResults(ctx, "", 10); len(list) != 1 {
		t.Fatalf("expected one stored run, got %d", len(list))
	}
}

type failingSetCache struct{ *cache.MemoryCache }

func (failingSetCache) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("cache down")
}

type errorCounter struct {
	domrepo.NopMetrics
	mu     sync.Mutex
	errors map[string]int
}

func (m *errorCounter) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func TestBacktestCacheWriteFailureIsCounted(t *testing.T) {
	f := newFixture(t, waveBars(200))
	metrics := &errorCounter{errors: make(map[string]int)}
	uc := NewBacktestUseCase(f.backtests.data, f.store, f.exporter, f.publisher, failingSetCache{f.cache}, nil,
		f.backtests.settings, metrics, logger.Nop())

	req := backtestRequest()
	req.To = t0.Add(199 * time.Hour).Format(time.RFC3339)
	report, err := uc.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("cache failure must not fail the run: %v", err)
	}
	if metrics.errors["result_cache"] != 1 {
		t.Fatalf("errors %v", metrics.errors)
	}
	if _, err := f.store.GetResult(context.Background(), report.Result.RunID); err != nil {
		t.Fatalf("result not stored: %v", err)
	}
}
