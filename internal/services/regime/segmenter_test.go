package regime

import (
	"math"
	"testing"
	"time"

	"PatternLab/internal/domain/models"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func fromCloses(closes []float64) []models.Bar {
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{Timestamp: t0.Add(time.Duration(i) * time.Hour), Open: c, High: c, Low: c, Close: c}
	}
	return bars
}

func TestFlatSeriesHasNoRegimes(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	bars := fromCloses(closes)
	s := New(DefaultConfig())
	for i, v := range s.RollingVol(bars) {
		if !math.IsNaN(v) && v != 0 {
			t.Fatalf("rolling vol at %d = %f, want 0", i, v)
		}
	}
	if got := s.Segment(bars); len(got) != 0 {
		t.Fatalf("flat series produced regimes: %+v", got)
	}
}

// calm, then a violent stretch, then calm again
func regimeSeries() []models.Bar {
	closes := make([]float64, 240)
	p := 100.0
	for i := range closes {
		amp := 0.002
		if i >= 100 && i < 140 {
			amp = 0.03
		}
		if i%2 == 0 {
			p *= 1 + amp
		} else {
			p *= 1 - amp
		}
		closes[i] = p
	}
	return fromCloses(closes)
}

func TestHighVolatilityDetected(t *testing.T) {
	bars := regimeSeries()
	got := New(DefaultConfig()).Segment(bars)
	var high []models.Regime
	for _, r := range got {
		if r.Label == models.HighVolatility {
			high = append(high, r)
		}
	}
	if len(high) == 0 {
		t.Fatalf("no high_volatility regime in %+v", got)
	}
	if high[0].StartIndex < 100 || high[0].StartIndex > 140 {
		t.Fatalf("high vol starts at %d", high[0].StartIndex)
	}
}

func TestRegimesOfSameLabelDoNotOverlap(t *testing.T) {
	bars := regimeSeries()
	s := New(DefaultConfig())
	all := s.SegmentAll(bars)
	for i := range all {
		if !all[i].End.After(all[i].Start) && all[i].StartIndex != all[i].EndIndex {
			t.Fatalf("empty interval %+v", all[i])
		}
		for j := range all {
			if i == j || all[i].Label != all[j].Label {
				continue
			}
			a, b := all[i], all[j]
			if a.Start.Before(b.End) && b.Start.Before(a.End) {
				t.Fatalf("overlap: %+v %+v", a, b)
			}
		}
	}
}

func TestIntervalsOpenAtEnd(t *testing.T) {
	bars := fromCloses([]float64{1, 2, 3, 4, 5})
	got := Intervals(bars, []bool{false, true, false, true, true}, models.Trending)
	if len(got) != 2 {
		t.Fatalf("want 2 intervals, got %d", len(got))
	}
	if got[0].StartIndex != 1 || got[0].EndIndex != 2 {
		t.Fatalf("first interval %+v", got[0])
	}
	if got[1].StartIndex != 3 || !got[1].End.Equal(bars[4].Timestamp) {
		t.Fatalf("open run should close at the final timestamp: %+v", got[1])
	}
}

func TestTrendSegments(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	got := New(DefaultConfig()).SegmentTrend(fromCloses(closes))
	if len(got) != 1 || got[0].Label != models.Trending || got[0].StartIndex != 30 {
		t.Fatalf("straight line should trend from bar 30: %+v", got)
	}
}

func TestLabelAt(t *testing.T) {
	bars := fromCloses([]float64{1, 2, 3, 4})
	rs := Intervals(bars, []bool{false, true, true, false}, models.HighVolatility)
	if LabelAt(rs, bars[1].Timestamp) != models.HighVolatility {
		t.Fatalf("bar 1 should be high vol")
	}
	if LabelAt(rs, bars[3].Timestamp) != models.Unclassified {
		t.Fatalf("end is exclusive")
	}
}

func TestLabelAtPrefersVolatility(t *testing.T) {
	bars := fromCloses([]float64{1, 2, 3, 4, 5, 6})
	rs := append(
		Intervals(bars, []bool{true, true, true, true, false, false}, models.Trending),
		Intervals(bars, []bool{false, false, true, true, false, false}, models.LowVolatility)...,
	)
	sortRegimes(rs)
	if got := LabelAt(rs, bars[1].Timestamp); got != models.Trending {
		t.Fatalf("bar 1: %s", got)
	}
	if got := LabelAt(rs, bars[2].Timestamp); got != models.LowVolatility {
		t.Fatalf("bar 2: %s, volatility should win over trend", got)
	}
	if got := LabelsAt(rs, bars[2].Timestamp); len(got) != 2 {
		t.Fatalf("labels at bar 2: %v", got)
	}
}
