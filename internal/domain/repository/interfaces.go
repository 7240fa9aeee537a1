package repository

import (
	"context"
	"errors"

	"PatternLab/internal/domain/models"
)

// ErrNotFound is returned by stores when a lookup has no match.
var ErrNotFound = errors.New("not found")

// ResultPublisher announces finished backtests and pattern scans to downstream consumers.
type ResultPublisher interface {
	PublishResult(ctx context.Context, r *models.BacktestResult) error
	PublishPatterns(ctx context.Context, symbol string, patterns []models.Pattern) error
	Close() error
}

// JobQueue hands backtest requests to background workers and returns a job id.
type JobQueue interface {
	SubmitBacktest(ctx context.Context, req models.BacktestRequest) (string, error)
}

// ResultStore persists backtest results.
type ResultStore interface {
	Init(ctx context.Context) error // ensure tables
	SaveResult(ctx context.Context, r *models.BacktestResult) error
	GetResult(ctx context.Context, runID string) (*models.BacktestResult, error)
	ListResults(ctx context.Context, symbol string, limit int) ([]models.BacktestSummary, error)
	Health(ctx context.Context) error
	Close() error
}

// TradeExporter writes the trade log of a run to a columnar artifact and returns its location.
type TradeExporter interface {
	ExportTrades(ctx context.Context, r *models.BacktestResult) (string, error)
}

// Metrics counts degraded paths so they stay observable.
type Metrics interface {
	RecordRejectedProposal(reason string)
	RecordOracleFailure()
	RecordClassifierFallback()
	RecordDegenerateRatio(kind string)
	RecordPatternsDetected(patternType string, n int)
	RecordLatency(op string, seconds float64)
	RecordError(kind string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordRejectedProposal(string)      {}
func (NopMetrics) RecordOracleFailure()               {}
func (NopMetrics) RecordClassifierFallback()          {}
func (NopMetrics) RecordDegenerateRatio(string)       {}
func (NopMetrics) RecordPatternsDetected(string, int) {}
func (NopMetrics) RecordLatency(string, float64)      {}
func (NopMetrics) RecordError(string)                 {}
