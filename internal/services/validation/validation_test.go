package validation

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"PatternLab/internal/domain/models"
	"PatternLab/internal/domain/repository"
	"PatternLab/pkg/cache"
)

type fixedClassifier struct {
	score float64
	err   error
	mu    sync.Mutex
	calls int
}

func (f *fixedClassifier) Score(_ context.Context, _ models.FeatureWindow) (float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.score, f.err
}

type countingMetrics struct {
	repository.NopMetrics
	fallbacks int
}

func (m *countingMetrics) RecordClassifierFallback() { m.fallbacks++ }

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func flatBars(n int, price float64) []models.Bar {
	out := make([]models.Bar, n)
	for i := range out {
		out[i] = models.Bar{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      price, High: price + 1, Low: price - 1, Close: price, Volume: 100,
		}
	}
	return out
}

func bearish(bars []models.Bar, start, end int, conf float64) models.Pattern {
	return models.Pattern{
		Type:                 models.DoubleTop,
		Bias:                 models.Bearish,
		WindowStart:          start,
		WindowEnd:            end,
		StructuralConfidence: conf,
		BlendedConfidence:    conf,
		ConfidenceSource:     models.SourceStructural,
		PriceTarget:          90,
		StopLoss:             110,
		FormationPoints: []models.FormationPoint{
			{Index: start, Price: 101, Time: bars[start].Timestamp},
			{Index: end, Price: 100, Time: bars[end].Timestamp},
		},
		Detail: map[string]string{"neckline": "95"},
	}
}

func TestValidateBlends(t *testing.T) {
	bars := flatBars(30, 100)
	v := NewValidator(DefaultConfig(), &fixedClassifier{score: 0.6})
	p := bearish(bars, 5, 20, 0.8)
	got := v.Validate(context.Background(), p, bars)
	if math.Abs(got.BlendedConfidence-0.7) > 1e-12 {
		t.Fatalf("blended = %v, want 0.7", got.BlendedConfidence)
	}
	if got.ConfidenceSource != models.SourceBlended {
		t.Fatalf("source = %s", got.ConfidenceSource)
	}
	if got.StructuralConfidence != 0.8 || got.PriceTarget != 90 || got.StopLoss != 110 || got.Detail["neckline"] != "95" || len(got.Detail) != 1 {
		t.Fatalf("validation changed non-confidence fields: %+v", got)
	}
}

func TestValidateFallsBack(t *testing.T) {
	bars := flatBars(30, 100)
	cases := map[string]*Validator{
		"error": NewValidator(DefaultConfig(), &fixedClassifier{err: errors.New("down")}),
		"nan":   NewValidator(DefaultConfig(), &fixedClassifier{score: math.NaN()}),
		"range": NewValidator(DefaultConfig(), &fixedClassifier{score: 1.5}),
		"nil":   NewValidator(DefaultConfig(), nil),
	}
	for name, v := range cases {
		m := &countingMetrics{}
		WithMetrics(m)(v)
		got := v.Validate(context.Background(), bearish(bars, 5, 20, 0.8), bars)
		if got.BlendedConfidence != 0.8 || got.ConfidenceSource != models.SourceStructural {
			t.Fatalf("%s: got %v/%s, want structural 0.8", name, got.BlendedConfidence, got.ConfidenceSource)
		}
		if m.fallbacks != 1 {
			t.Fatalf("%s: fallbacks = %d", name, m.fallbacks)
		}
	}
}

func TestValidateAllThreshold(t *testing.T) {
	bars := flatBars(30, 100)
	v := NewValidator(DefaultConfig(), &fixedClassifier{score: 0.6})
	in := []models.Pattern{
		bearish(bars, 0, 10, 0.9),  // 0.75
		bearish(bars, 5, 15, 0.7),  // 0.65
		bearish(bars, 9, 20, 0.78), // 0.69
	}
	out := v.ValidateAll(context.Background(), in, bars, nil)
	if len(out) != 1 || out[0].WindowEnd != 10 {
		t.Fatalf("kept %+v", out)
	}
}

func TestValidateAllExcludesRegime(t *testing.T) {
	bars := flatBars(30, 100)
	cfg := DefaultConfig()
	cfg.ExcludedRegimes = []models.RegimeLabel{models.HighVolatility}
	v := NewValidator(cfg, &fixedClassifier{score: 1})
	regimes := []models.Regime{{
		Label: models.HighVolatility, Start: bars[10].Timestamp, End: bars[20].Timestamp, StartIndex: 10, EndIndex: 20,
	}}
	in := []models.Pattern{
		bearish(bars, 0, 12, 0.9),
		bearish(bars, 0, 20, 0.9),
	}
	out := v.ValidateAll(context.Background(), in, bars, regimes)
	if len(out) != 1 || out[0].WindowEnd != 20 {
		t.Fatalf("kept %+v", out)
	}
}

func TestCachedClassifier(t *testing.T) {
	bars := flatBars(30, 100)
	inner := &fixedClassifier{score: 0.4}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	v := NewValidator(DefaultConfig(), NewCachedClassifier(inner, mc, time.Minute))
	p := bearish(bars, 5, 20, 0.8)
	first := v.Validate(context.Background(), p, bars)
	second := v.Validate(context.Background(), p, bars)
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
	if first.BlendedConfidence != second.BlendedConfidence || math.Abs(first.BlendedConfidence-0.6) > 1e-12 {
		t.Fatalf("blended %v / %v", first.BlendedConfidence, second.BlendedConfidence)
	}
}

func TestHarnessOutcome(t *testing.T) {
	bars := flatBars(40, 100)
	bars[25].Low = 89
	h := NewHarness(100)
	o, ok := h.Outcome(bearish(bars, 5, 20, 0.8), bars)
	if !ok || !o.TargetHit || o.StopHit || !o.Success {
		t.Fatalf("outcome %+v", o)
	}
	if o.Profit != 10 || o.FutureBars != 19 {
		t.Fatalf("profit %v bars %d", o.Profit, o.FutureBars)
	}

	bars[22].High = 111
	o, _ = h.Outcome(bearish(bars, 5, 20, 0.8), bars)
	if o.Success || !o.StopHit || o.Profit != 0 {
		t.Fatalf("stop outcome %+v", o)
	}
}

func TestHarnessEvaluate(t *testing.T) {
	bars := flatBars(40, 100)
	bars[35].Low = 85
	h := NewHarness(10)
	patterns := []models.Pattern{
		bearish(bars, 5, 30, 0.9),  // sees bar 35
		bearish(bars, 5, 20, 0.75), // horizon ends at 30
		bearish(bars, 5, 39, 0.8),  // nothing after the window
	}
	ev := h.Evaluate(patterns, bars)
	if ev.Skipped != 1 || len(ev.Outcomes) != 2 {
		t.Fatalf("skipped %d outcomes %d", ev.Skipped, len(ev.Outcomes))
	}
	if ev.Accuracy != 0.5 || ev.AverageProfit != 5 {
		t.Fatalf("accuracy %v profit %v", ev.Accuracy, ev.AverageProfit)
	}
	if math.Abs(ev.ConfidenceCorrelation-1) > 1e-9 {
		t.Fatalf("correlation %v", ev.ConfidenceCorrelation)
	}
	if ev.Distribution[models.DoubleTop] != 3 {
		t.Fatalf("distribution %v", ev.Distribution)
	}
}
