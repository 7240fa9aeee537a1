package usecase

import (
	"context"
	"time"

	"PatternLab/internal/domain/models"
	domrepo "PatternLab/internal/domain/repository"
	"PatternLab/internal/domain/service"
	"PatternLab/internal/services/features"
	"PatternLab/internal/services/patterns"
	"PatternLab/internal/services/regime"
	"PatternLab/internal/services/validation"
	"PatternLab/pkg/logger"
)

const realizedVolWindow = 30

// PatternSettings are the server-side detector and validator defaults.
type PatternSettings struct {
	Detector     patterns.Config
	Validation   validation.Config
	Regime       regime.Config
	GapTolerance float64
}

// PatternScan is the response of a detection run.
type PatternScan struct {
	Symbol             string           `json:"symbol"`
	Timeframe          string           `json:"timeframe"`
	Bars               int              `json:"bars"`
	From               time.Time        `json:"from"`
	To                 time.Time        `json:"to"`
	Detected           int              `json:"detected"`
	Patterns           []models.Pattern `json:"patterns"`
	Regimes            []models.Regime  `json:"regimes"`
	RealizedVolatility float64          `json:"realized_volatility"`
}

type PatternUseCase struct {
	data       *MarketDataUseCase
	classifier service.PatternClassifier
	publisher  domrepo.ResultPublisher
	settings   PatternSettings
	metrics    domrepo.Metrics
	log        *logger.Logger
}

// NewPatternUseCase accepts a nil classifier; validation then keeps structural confidence.
func NewPatternUseCase(
	data *MarketDataUseCase,
	classifier service.PatternClassifier,
	publisher domrepo.ResultPublisher,
	settings PatternSettings,
	metrics domrepo.Metrics,
	l *logger.Logger,
) *PatternUseCase {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	return &PatternUseCase{
		data:       data,
		classifier: classifier,
		publisher:  publisher,
		settings:   settings,
		metrics:    metrics,
		log:        l.With("patterns"),
	}
}

// Scan detects, segments and validates patterns over the requested range.
func (uc *PatternUseCase) Scan(ctx context.Context, req models.PatternScanRequest) (*PatternScan, error) {
	series, err := uc.load(ctx, req.Symbol, req.TF, req.From, req.To)
	if err != nil {
		return nil, err
	}
	types := make([]models.PatternType, 0, len(req.Types))
	for _, t := range req.Types {
		types = append(types, models.PatternType(t))
	}
	found, err := uc.scanner(types...).ScanSeries(ctx, series)
	if err != nil {
		return nil, err
	}

	bars := series.Bars
	regimes := regime.New(uc.settings.Regime).SegmentAll(bars)
	out := &PatternScan{
		Symbol:             series.Symbol,
		Timeframe:          series.Timeframe,
		Bars:               len(bars),
		From:               bars[0].Timestamp,
		To:                 bars[len(bars)-1].Timestamp,
		Detected:           len(found),
		Regimes:            regimes,
		RealizedVolatility: realizedVol(bars, domrepo.Timeframe(series.Timeframe)),
	}
	if req.SkipValidation {
		out.Patterns = found
	} else {
		cfg := uc.settings.Validation
		cfg.Threshold = req.Threshold
		out.Patterns = uc.validator(cfg).ValidateAll(ctx, found, bars, regimes)
	}
	if out.Patterns == nil {
		out.Patterns = []models.Pattern{}
	}

	if req.Publish {
		if err := uc.publisher.PublishPatterns(ctx, series.Symbol, out.Patterns); err != nil {
			uc.metrics.RecordError("pattern_publish")
			uc.log.Warn("pattern publish failed", logger.String("symbol", series.Symbol), logger.Error(err))
		}
	}
	return out, nil
}

// Evaluate scores every detected pattern against the bars that followed it. The
// blended confidence is computed without the threshold so the correlation sees
// the full range.
func (uc *PatternUseCase) Evaluate(ctx context.Context, req models.PatternEvaluateRequest) (*models.PatternEvaluation, error) {
	series, err := uc.load(ctx, req.Symbol, req.TF, req.From, req.To)
	if err != nil {
		return nil, err
	}
	found, err := uc.scanner().ScanSeries(ctx, series)
	if err != nil {
		return nil, err
	}
	v := uc.validator(uc.settings.Validation)
	scored := make([]models.Pattern, len(found))
	for i, p := range found {
		scored[i] = v.Validate(ctx, p, series.Bars)
	}
	ev := validation.NewHarness(req.Horizon).Evaluate(scored, series.Bars)
	return &ev, nil
}

func (uc *PatternUseCase) load(ctx context.Context, symbol, tf, from, to string) (models.Series, error) {
	q := NewSeriesQuery(symbol, tf, from, to, true)
	series, err := uc.data.LoadSeries(ctx, q)
	if err != nil {
		return series, err
	}
	if err := models.ValidateSeries(series.Bars, q.Timeframe.Duration(), uc.settings.GapTolerance); err != nil {
		uc.metrics.RecordError("data_quality")
		return series, err
	}
	return series, nil
}

func (uc *PatternUseCase) scanner(types ...models.PatternType) *patterns.Scanner {
	return patterns.NewScanner(uc.settings.Detector,
		patterns.WithTypes(types...),
		patterns.WithLogger(uc.log),
		patterns.WithMetrics(uc.metrics),
	)
}

func (uc *PatternUseCase) validator(cfg validation.Config) *validation.Validator {
	return validation.NewValidator(cfg, uc.classifier,
		validation.WithMetrics(uc.metrics),
		validation.WithLogger(uc.log),
	)
}

func realizedVol(bars []models.Bar, tf domrepo.Timeframe) float64 {
	rets := features.ComputeLogReturns(bars)
	w := realizedVolWindow
	if len(rets) < w {
		w = len(rets)
	}
	return features.RealizedVolatility(rets, w, features.BarsPerYearForTF(tf))
}
