package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"PatternLab/internal/domain/models"
	"PatternLab/internal/domain/repository"
	"PatternLab/internal/domain/service"
	"PatternLab/internal/services/indicators"
	"PatternLab/internal/services/performance"
	"PatternLab/internal/services/regime"
	"PatternLab/pkg/logger"
)

var bps = decimal.NewFromInt(10000)

// ErrInvalidConfig wraps every configuration error returned by NewSimulator.
var ErrInvalidConfig = errors.New("invalid backtest config")

// Simulator replays a series tick by tick. It owns capital and the equity curve
// for the duration of Run and never shares them.
type Simulator struct {
	cfg       Config
	oracle    service.StrategyOracle
	sizer     service.RiskSizer
	engine    *indicators.Engine
	segmenter *regime.Segmenter
	metrics   repository.Metrics
	log       *logger.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*Simulator)

func WithEngine(e *indicators.Engine) Option { return func(s *Simulator) { s.engine = e } }
func WithSegmenter(r *regime.Segmenter) Option { return func(s *Simulator) { s.segmenter = r } }
func WithLogger(l *logger.Logger) Option { return func(s *Simulator) { s.log = l } }
func WithClock(now func() time.Time) Option { return func(s *Simulator) { s.now = now } }
func WithRunID(newID func() string) Option { return func(s *Simulator) { s.newID = newID } }
func WithMetrics(m repository.Metrics) Option {
	return func(s *Simulator) {
		if m != nil {
			s.metrics = m
		}
	}
}

func NewSimulator(cfg Config, oracle service.StrategyOracle, sizer service.RiskSizer, opts ...Option) (*Simulator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if oracle == nil || sizer == nil {
		return nil, fmt.Errorf("%w: oracle and sizer are required", ErrInvalidConfig)
	}
	s := &Simulator{
		cfg:       cfg,
		oracle:    oracle,
		sizer:     sizer,
		engine:    indicators.New(indicators.DefaultConfig()),
		segmenter: regime.New(regime.DefaultConfig()),
		metrics:   repository.NopMetrics{},
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Simulator) Config() Config { return s.cfg }

// run is the mutable state of one pass.
type run struct {
	bars       []models.Bar
	indicators []models.IndicatorSet
	options    []*models.OptionsContext
	regimes    []models.Regime
	capital    decimal.Decimal
	result     *models.BacktestResult
}

// Run replays series. A DataQuality error aborts before the first tick. On
// cancellation the result holds every tick committed so far and ctx.Err() is returned.
func (s *Simulator) Run(ctx context.Context, series models.Series) (*models.BacktestResult, error) {
	started := time.Now()
	if err := models.ValidateSeries(series.Bars, s.cfg.Interval, s.cfg.GapTolerance); err != nil {
		s.metrics.RecordError("data_quality")
		return nil, err
	}
	if len(series.Bars) == 0 {
		return nil, fmt.Errorf("%w: empty series", models.ErrDataInsufficient)
	}

	r := &run{
		bars:       series.Bars,
		indicators: s.engine.Compute(series.Bars),
		options:    s.engine.Options(series.Bars, series.Options),
		regimes:    s.regimes(series.Bars),
		capital:    decimal.NewFromFloat(s.cfg.InitialCapital),
	}
	r.result = &models.BacktestResult{
		RunID:     s.newID(),
		Symbol:    series.Symbol,
		Timeframe: series.Timeframe,
		CreatedAt: s.now().UTC(),
		Config:    s.snapshot(),
		Trades:    []models.SimulatedTrade{},
		Regimes:   r.regimes,
	}

	var runErr error
	for i, bar := range r.bars {
		if !s.cfg.inWindow(bar.Timestamp) {
			continue
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := s.tick(ctx, r, series.Symbol, i); err != nil {
			runErr = err
			break
		}
	}

	s.finish(r)
	s.metrics.RecordLatency("backtest", time.Since(started).Seconds())
	s.log.Info("backtest finished",
		logger.String("run_id", r.result.RunID),
		logger.String("symbol", series.Symbol),
		logger.Int("ticks", r.result.Ticks),
		logger.Int("trades", len(r.result.Trades)),
		logger.Int("rejected", r.result.RejectedProposals),
		logger.Int("oracle_failures", r.result.OracleFailures),
		logger.Float64("final_capital", r.result.Stats.FinalCapital),
	)
	return r.result, runErr
}

// tick commits at most one trade and exactly one equity point. Nothing is
// appended when the oracle or sizer call is cancelled.
func (s *Simulator) tick(ctx context.Context, r *run, symbol string, i int) error {
	bar := r.bars[i]
	snap := models.MarketSnapshot{
		Symbol:     symbol,
		Index:      i,
		Timestamp:  bar.Timestamp,
		Bar:        bar,
		Indicators: r.indicators[i],
		Options:    r.options[i],
	}

	trade, err := s.propose(ctx, r, snap)
	if err != nil {
		return err
	}
	if trade != nil {
		trade.Seq = len(r.result.Trades) + 1
		r.capital = r.capital.Add(decimal.NewFromFloat(trade.PnL))
		r.result.Trades = append(r.result.Trades, *trade)
	}
	r.result.EquityCurve = append(r.result.EquityCurve, models.EquityPoint{
		Timestamp: bar.Timestamp,
		Capital:   r.capital.InexactFloat64(),
	})
	r.result.Ticks++
	return nil
}

// propose returns nil when the tick produces no trade. Only cancellation is an error.
func (s *Simulator) propose(ctx context.Context, r *run, snap models.MarketSnapshot) (*models.SimulatedTrade, error) {
	p, err := s.oracle.Propose(ctx, snap)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.result.OracleFailures++
		s.metrics.RecordOracleFailure()
		s.log.Debug("oracle failed", logger.Int("index", snap.Index), logger.Error(err))
		return nil, nil
	}
	if p == nil {
		return nil, nil
	}
	if err := p.Validate(s.cfg.MaxPositionPct); err != nil {
		s.reject(r, snap.Index, "invalid", err)
		return nil, nil
	}

	capital := r.capital.InexactFloat64()
	size, err := s.sizer.Size(ctx, *p, capital)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.reject(r, snap.Index, "sizer", err)
		return nil, nil
	}
	if !(size > 0) || size > capital {
		s.reject(r, snap.Index, "size", fmt.Errorf("%w: size %.2f outside (0, %.2f]", models.ErrProposalInvalid, size, capital))
		return nil, nil
	}
	notional := decimal.NewFromFloat(size).Round(2)
	if !notional.IsPositive() || notional.GreaterThan(r.capital) {
		s.reject(r, snap.Index, "size", fmt.Errorf("%w: size %s rounds outside (0, %s]", models.ErrProposalInvalid, notional, r.capital.StringFixed(2)))
		return nil, nil
	}

	t := s.fill(r, snap.Index, *p, notional)
	return &t, nil
}

func (s *Simulator) reject(r *run, index int, reason string, err error) {
	r.result.RejectedProposals++
	s.metrics.RecordRejectedProposal(reason)
	s.log.Debug("proposal rejected",
		logger.Int("index", index),
		logger.String("reason", reason),
		logger.Error(err),
	)
}

// fill enters at the bar close, resolves the exit and books pnl on the entry tick.
// Positions are unlevered: a loss beyond the notional is capped and marked liquidated.
func (s *Simulator) fill(r *run, i int, p models.StrategyProposal, notional decimal.Decimal) models.SimulatedTrade {
	bar := r.bars[i]
	exitIdx, exitPx, reason := s.exit(r.bars, i, p)

	dir := decimal.NewFromInt(1)
	if p.Action == models.Sell {
		dir = dir.Neg()
	}
	slip := decimal.NewFromFloat(s.cfg.SlippageBps).Div(bps)
	fee := decimal.NewFromFloat(s.cfg.FeeBps).Div(bps)

	// Slippage moves both fills against the position.
	entry := decimal.NewFromFloat(bar.Close).Mul(decimal.NewFromInt(1).Add(slip.Mul(dir)))
	exit := decimal.NewFromFloat(exitPx).Mul(decimal.NewFromInt(1).Sub(slip.Mul(dir)))

	qty := notional.Div(entry)
	fees := notional.Add(qty.Mul(exit)).Mul(fee)
	pnl := exit.Sub(entry).Mul(qty).Mul(dir).Sub(fees)
	if maxLoss := notional.Neg(); pnl.LessThan(maxLoss) {
		pnl = maxLoss
		reason = models.ExitLiquidated
	}

	return models.SimulatedTrade{
		Action:       p.Action,
		EntryTime:    bar.Timestamp,
		ExitTime:     r.bars[exitIdx].Timestamp,
		EntryPrice:   entry.InexactFloat64(),
		ExitPrice:    exit.InexactFloat64(),
		Quantity:     qty.Round(8).InexactFloat64(),
		PositionSize: notional.InexactFloat64(),
		PnL:          pnl.Round(2).InexactFloat64(),
		Fees:         fees.Round(2).InexactFloat64(),
		ExitReason:   reason,
		Regime:       regime.LabelAt(r.regimes, bar.Timestamp),
		Options:      r.options[i],
	}
}

// exit resolves the exit bar and price under the configured policy. A trade opened
// on the last bar exits at its own close.
func (s *Simulator) exit(bars []models.Bar, i int, p models.StrategyProposal) (int, float64, models.ExitReason) {
	last := i + s.cfg.Horizon
	reason := models.ExitHorizon
	if last >= len(bars) {
		last = len(bars) - 1
		reason = models.ExitEnd
	}
	if last == i {
		return i, bars[i].Close, models.ExitEnd
	}
	if s.cfg.ExitPolicy == StopTarget {
		for j := i + 1; j <= last; j++ {
			b := bars[j]
			if p.Action == models.Buy {
				if b.Low <= p.StopLoss {
					return j, p.StopLoss, models.ExitStop
				}
				if b.High >= p.TakeProfit {
					return j, p.TakeProfit, models.ExitTarget
				}
				continue
			}
			if b.High >= p.StopLoss {
				return j, p.StopLoss, models.ExitStop
			}
			if b.Low <= p.TakeProfit {
				return j, p.TakeProfit, models.ExitTarget
			}
		}
	}
	return last, bars[last].Close, reason
}

func (s *Simulator) regimes(bars []models.Bar) []models.Regime {
	if s.cfg.TrendRegimes {
		return s.segmenter.SegmentAll(bars)
	}
	return s.segmenter.Segment(bars)
}

func (s *Simulator) finish(r *run) {
	if r.result.EquityCurve == nil {
		r.result.EquityCurve = []models.EquityPoint{}
	}
	rep := performance.Analyze(r.result.Trades, r.result.EquityCurve, r.regimes, s.cfg.InitialCapital)
	r.result.Stats = rep.Stats
	r.result.PerformanceByRegime = rep.ByRegime
	r.result.OptionsMetrics = rep.Options
}

func (s *Simulator) snapshot() models.BacktestConfigSnapshot {
	return models.BacktestConfigSnapshot{
		InitialCapital: s.cfg.InitialCapital,
		MaxPositionPct: s.cfg.MaxPositionPct,
		ExitPolicy:     string(s.cfg.ExitPolicy),
		Horizon:        s.cfg.Horizon,
		FeeBps:         s.cfg.FeeBps,
		SlippageBps:    s.cfg.SlippageBps,
		Start:          s.cfg.Start,
		End:            s.cfg.End,
	}
}
