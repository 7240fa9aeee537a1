package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PatternLab/internal/domain/models"
	domrepo "PatternLab/internal/domain/repository"
	"PatternLab/internal/services/features"
	"PatternLab/pkg/util"
)

// ErrInvalidParams marks caller mistakes such as an inverted time range.
var ErrInvalidParams = errors.New("invalid parameters")

const (
	defaultLookbackBars = 1000
	maxSeriesBars       = 50000
)

// SeriesQuery selects one symbol/timeframe range.
type SeriesQuery struct {
	Symbol      string
	Timeframe   domrepo.Timeframe
	From        time.Time
	To          time.Time
	WithOptions bool
}

// NewSeriesQuery parses raw request values. Empty bounds default to the last
// defaultLookbackBars bars before now.
func NewSeriesQuery(symbol, tf, from, to string, withOptions bool) SeriesQuery {
	return SeriesQuery{
		Symbol:      util.NormalizeSymbol(symbol),
		Timeframe:   domrepo.NormalizeTimeframe(tf),
		From:        util.ParseTimeDefault(from, time.Time{}),
		To:          util.ParseTimeDefault(to, time.Time{}),
		WithOptions: withOptions,
	}
}

// MarketDataUseCase loads validated-shape series from the configured BarStore.
type MarketDataUseCase struct {
	store domrepo.BarStore
	now   func() time.Time
}

func NewMarketDataUseCase(store domrepo.BarStore) *MarketDataUseCase {
	return &MarketDataUseCase{store: store, now: time.Now}
}

// LoadSeries fetches bars, and options snapshots when asked, aligned by bar index.
// Bar ordering and gaps are checked by the consumers, not here.
func (uc *MarketDataUseCase) LoadSeries(ctx context.Context, q SeriesQuery) (models.Series, error) {
	if q.Symbol == "" {
		return models.Series{}, fmt.Errorf("%w: symbol required", ErrInvalidParams)
	}
	from, to, err := uc.window(q)
	if err != nil {
		return models.Series{}, err
	}

	bars, err := uc.store.GetBars(ctx, q.Symbol, from, to, q.Timeframe)
	if err != nil {
		return models.Series{}, fmt.Errorf("get bars: %w", err)
	}
	if len(bars) == 0 {
		return models.Series{}, fmt.Errorf("%w: no bars for %s %s in [%s, %s]", models.ErrDataInsufficient,
			q.Symbol, q.Timeframe, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	series := models.Series{Symbol: q.Symbol, Timeframe: string(q.Timeframe), Bars: bars}
	if q.WithOptions {
		chains, err := uc.store.GetOptionsChains(ctx, q.Symbol, from, to, q.Timeframe)
		if err != nil {
			return models.Series{}, fmt.Errorf("get options chains: %w", err)
		}
		series.Options = models.AlignOptions(bars, chains)
	}
	return series, nil
}

func (uc *MarketDataUseCase) window(q SeriesQuery) (time.Time, time.Time, error) {
	step := q.Timeframe.Duration()
	to := q.To
	if to.IsZero() {
		to = uc.now().UTC()
	}
	from := q.From
	if from.IsZero() {
		from = to.Add(-defaultLookbackBars * step)
	}
	from, to = features.AlignFromTo(from, to, q.Timeframe)
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from must be <= to", ErrInvalidParams)
	}
	if to.Sub(from) > maxSeriesBars*step {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: range exceeds %d bars", ErrInvalidParams, maxSeriesBars)
	}
	return from, to, nil
}
