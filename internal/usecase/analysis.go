package usecase

import (
	"context"
	"time"

	"PatternLab/internal/domain/models"
	"PatternLab/internal/services/indicators"
	"PatternLab/internal/services/regime"
)

// IndicatorRow is the indicator state of one bar.
type IndicatorRow struct {
	Timestamp  time.Time              `json:"t"`
	Close      float64                `json:"close"`
	Indicators models.IndicatorSet    `json:"indicators"`
	Options    *models.OptionsContext `json:"options,omitempty"`
}

type IndicatorReport struct {
	Symbol    string         `json:"symbol"`
	Timeframe string         `json:"timeframe"`
	Rows      []IndicatorRow `json:"rows"`
}

type RegimeReport struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Bars      int             `json:"bars"`
	Regimes   []models.Regime `json:"regimes"`
}

// AnalysisUseCase exposes the indicator engine and regime segmenter directly.
type AnalysisUseCase struct {
	data      *MarketDataUseCase
	engine    *indicators.Engine
	segmenter *regime.Segmenter
}

func NewAnalysisUseCase(data *MarketDataUseCase, engine *indicators.Engine, segmenter *regime.Segmenter) *AnalysisUseCase {
	return &AnalysisUseCase{data: data, engine: engine, segmenter: segmenter}
}

// Indicators computes over the whole range and returns the last req.Last rows.
// Warm-up uses every loaded bar, so earlier bounds give defined values sooner.
func (uc *AnalysisUseCase) Indicators(ctx context.Context, req models.IndicatorRequest) (*IndicatorReport, error) {
	series, err := uc.data.LoadSeries(ctx, NewSeriesQuery(req.Symbol, req.TF, req.From, req.To, true))
	if err != nil {
		return nil, err
	}
	sets := uc.engine.Compute(series.Bars)
	opts := uc.engine.Options(series.Bars, series.Options)

	start := len(series.Bars) - req.Last
	if start < 0 {
		start = 0
	}
	rows := make([]IndicatorRow, 0, len(series.Bars)-start)
	for i := start; i < len(series.Bars); i++ {
		rows = append(rows, IndicatorRow{
			Timestamp:  series.Bars[i].Timestamp,
			Close:      series.Bars[i].Close,
			Indicators: sets[i],
			Options:    opts[i],
		})
	}
	return &IndicatorReport{Symbol: series.Symbol, Timeframe: series.Timeframe, Rows: rows}, nil
}

// Regimes segments by volatility, adding trend/range labels when req.Trend is set.
func (uc *AnalysisUseCase) Regimes(ctx context.Context, req models.RegimeRequest) (*RegimeReport, error) {
	series, err := uc.data.LoadSeries(ctx, NewSeriesQuery(req.Symbol, req.TF, req.From, req.To, false))
	if err != nil {
		return nil, err
	}
	var regimes []models.Regime
	if req.Trend {
		regimes = uc.segmenter.SegmentAll(series.Bars)
	} else {
		regimes = uc.segmenter.Segment(series.Bars)
	}
	if regimes == nil {
		regimes = []models.Regime{}
	}
	return &RegimeReport{Symbol: series.Symbol, Timeframe: series.Timeframe, Bars: len(series.Bars), Regimes: regimes}, nil
}
