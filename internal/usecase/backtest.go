package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PatternLab/internal/domain/models"
	domrepo "PatternLab/internal/domain/repository"
	"PatternLab/internal/domain/service"
	"PatternLab/internal/services/backtest"
	"PatternLab/internal/services/indicators"
	"PatternLab/internal/services/regime"
	"PatternLab/internal/services/strategy"
	"PatternLab/pkg/cache"
	"PatternLab/pkg/logger"
	"PatternLab/pkg/util"
)

// ErrOracleUnavailable is returned when a run asks for the remote oracle and none is configured.
var ErrOracleUnavailable = errors.New("remote strategy oracle not configured")

// BacktestSettings are the server-side defaults a request may override.
type BacktestSettings struct {
	Simulator  backtest.Config
	Indicators indicators.Config
	Regime     regime.Config
	Rule       strategy.RuleConfig
	RiskPct    float64
	ResultTTL  time.Duration
}

// BacktestReport is a finished run plus where its trade log was exported.
type BacktestReport struct {
	Result         *models.BacktestResult `json:"result"`
	TradesArtifact string                 `json:"trades_artifact,omitempty"`
	Published      bool                   `json:"published"`
}

type BacktestUseCase struct {
	data      *MarketDataUseCase
	store     domrepo.ResultStore
	exporter  domrepo.TradeExporter
	publisher domrepo.ResultPublisher
	cache     cache.Service
	oracle    service.StrategyOracle
	settings  BacktestSettings
	metrics   domrepo.Metrics
	log       *logger.Logger
}

// NewBacktestUseCase wires the run pipeline. remoteOracle may be nil.
func NewBacktestUseCase(
	data *MarketDataUseCase,
	store domrepo.ResultStore,
	exporter domrepo.TradeExporter,
	publisher domrepo.ResultPublisher,
	c cache.Service,
	remoteOracle service.StrategyOracle,
	settings BacktestSettings,
	metrics domrepo.Metrics,
	l *logger.Logger,
) *BacktestUseCase {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	return &BacktestUseCase{
		data:      data,
		store:     store,
		exporter:  exporter,
		publisher: publisher,
		cache:     c,
		oracle:    remoteOracle,
		settings:  settings,
		metrics:   metrics,
		log:       l.With("backtest"),
	}
}

// Run loads the series, replays it and persists the result. Export and publish
// failures are logged and counted; they never discard a finished run.
func (uc *BacktestUseCase) Run(ctx context.Context, req models.BacktestRequest) (*BacktestReport, error) {
	cfg, err := uc.simulatorConfig(req)
	if err != nil {
		return nil, err
	}
	oracle, err := uc.pickOracle(req)
	if err != nil {
		return nil, err
	}
	sizer := uc.pickSizer(req)

	series, err := uc.data.LoadSeries(ctx, NewSeriesQuery(req.Symbol, req.TF, req.From, req.To, true))
	if err != nil {
		return nil, err
	}

	sim, err := backtest.NewSimulator(cfg, oracle, sizer,
		backtest.WithEngine(indicators.New(uc.settings.Indicators, indicators.WithMetrics(uc.metrics))),
		backtest.WithSegmenter(regime.New(uc.settings.Regime)),
		backtest.WithMetrics(uc.metrics),
		backtest.WithLogger(uc.log),
	)
	if err != nil {
		return nil, err
	}
	result, err := sim.Run(ctx, series)
	if err != nil {
		return nil, err
	}

	if err := uc.store.SaveResult(ctx, result); err != nil {
		uc.metrics.RecordError("result_store")
		return nil, fmt.Errorf("save result: %w", err)
	}
	if err := uc.cache.Set(ctx, resultKey(result.RunID), result, uc.settings.ResultTTL); err != nil {
		uc.metrics.RecordError("result_cache")
		uc.log.Debug("result cache write failed", logger.String("run_id", result.RunID), logger.Error(err))
	}

	report := &BacktestReport{Result: result}
	if path, err := uc.exporter.ExportTrades(ctx, result); err != nil {
		uc.metrics.RecordError("trade_export")
		uc.log.Warn("trade export failed", logger.String("run_id", result.RunID), logger.Error(err))
	} else {
		report.TradesArtifact = path
	}
	if req.Publish {
		if err := uc.publisher.PublishResult(ctx, result); err != nil {
			uc.metrics.RecordError("result_publish")
			uc.log.Warn("result publish failed", logger.String("run_id", result.RunID), logger.Error(err))
		} else {
			report.Published = true
		}
	}
	return report, nil
}

// Get returns a stored result, served from cache when possible.
func (uc *BacktestUseCase) Get(ctx context.Context, runID string) (*models.BacktestResult, error) {
	r, _, err := cache.Remember(ctx, uc.cache, resultKey(runID), uc.settings.ResultTTL, func() (*models.BacktestResult, error) {
		return uc.store.GetResult(ctx, runID)
	})
	return r, err
}

// List returns the newest summaries, optionally for one symbol.
func (uc *BacktestUseCase) List(ctx context.Context, symbol string, limit int) ([]models.BacktestSummary, error) {
	if symbol != "" {
		symbol = util.NormalizeSymbol(symbol)
	}
	return uc.store.ListResults(ctx, symbol, limit)
}

func (uc *BacktestUseCase) simulatorConfig(req models.BacktestRequest) (backtest.Config, error) {
	cfg := uc.settings.Simulator
	cfg.InitialCapital = req.InitialCapital
	cfg.MaxPositionPct = req.MaxPositionPct
	cfg.ExitPolicy = backtest.ExitPolicy(req.ExitPolicy)
	cfg.Horizon = req.Horizon
	cfg.FeeBps = req.FeeBps
	cfg.SlippageBps = req.SlippageBps
	cfg.Interval = domrepo.NormalizeTimeframe(req.TF).Duration()
	cfg.Start = util.ParseTimeDefault(req.Start, time.Time{})
	cfg.End = util.ParseTimeDefault(req.End, time.Time{})
	if !cfg.Start.IsZero() && !cfg.End.IsZero() && cfg.End.Before(cfg.Start) {
		return cfg, fmt.Errorf("%w: end before start", ErrInvalidParams)
	}
	return cfg, nil
}

// pickOracle builds a fresh rule oracle per run because it keeps per-symbol state.
func (uc *BacktestUseCase) pickOracle(req models.BacktestRequest) (service.StrategyOracle, error) {
	if req.Oracle == "remote" {
		if uc.oracle == nil {
			return nil, ErrOracleUnavailable
		}
		return uc.oracle, nil
	}
	rule := uc.settings.Rule
	if req.PositionSizePct > 0 {
		rule.PositionSizePct = req.PositionSizePct
	}
	return strategy.NewRuleOracle(rule), nil
}

func (uc *BacktestUseCase) pickSizer(req models.BacktestRequest) service.RiskSizer {
	if req.Sizer == "risk" {
		return strategy.RiskBudgetSizer{RiskPct: uc.settings.RiskPct}
	}
	return strategy.FixedFractionSizer{}
}

func resultKey(runID string) string { return cache.GenerateKey("backtest", runID) }
