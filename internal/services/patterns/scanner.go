package patterns

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"PatternLab/internal/domain/models"
	"PatternLab/internal/domain/repository"
	"PatternLab/internal/services/indicators"
	"PatternLab/pkg/logger"
)

const atrPeriod = 14

// Scanner slides every enabled detector over a series. Windows are evaluated in
// parallel and merged by (window start, type name), so output does not depend on scheduling.
type Scanner struct {
	cfg       Config
	detectors []Detector
	enabled   map[models.PatternType]bool
	log       *logger.Logger
	metrics   repository.Metrics
}

type Option func(*Scanner)

// WithWindow overrides the window of the family t belongs to.
func WithWindow(t models.PatternType, w int) Option {
	return func(s *Scanner) {
		s.cfg.Windows[family(t)] = w
	}
}

func WithWorkers(n int) Option {
	return func(s *Scanner) { s.cfg.Workers = n }
}

// WithTypes limits output to the given types. Empty means all.
func WithTypes(types ...models.PatternType) Option {
	return func(s *Scanner) {
		if len(types) == 0 {
			s.enabled = nil
			return
		}
		s.enabled = make(map[models.PatternType]bool, len(types))
		for _, t := range types {
			s.enabled[t] = true
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Scanner) { s.log = l }
}

func WithMetrics(m repository.Metrics) Option {
	return func(s *Scanner) {
		if m != nil {
			s.metrics = m
		}
	}
}

func NewScanner(cfg Config, opts ...Option) *Scanner {
	windows := make(map[models.PatternType]int, len(cfg.Windows))
	for k, v := range cfg.Windows {
		windows[k] = v
	}
	cfg.Windows = windows
	s := &Scanner{cfg: cfg, metrics: repository.NopMetrics{}}
	for _, o := range opts {
		o(s)
	}
	if s.cfg.Workers < 1 {
		s.cfg.Workers = 1
	}
	s.detectors = []Detector{
		NewDoubleDetector(s.cfg),
		NewHeadShouldersDetector(s.cfg),
		NewWyckoffDetector(s.cfg),
		NewOrderblockDetector(s.cfg),
		NewLiquidityDetector(s.cfg),
		NewLiquidationDetector(s.cfg),
		NewVolumeProfileDetector(s.cfg),
	}
	return s
}

func (s *Scanner) wants(d Detector) bool {
	if s.enabled == nil {
		return true
	}
	for _, t := range d.Types() {
		if s.enabled[t] {
			return true
		}
	}
	return false
}

type job struct {
	det Detector
	pos int
}

// Scan runs the detectors over bars with no external levels.
func (s *Scanner) Scan(ctx context.Context, bars []models.Bar) ([]models.Pattern, error) {
	return s.scan(ctx, bars, nil)
}

// ScanSeries also feeds open interest from the last options chain to the liquidation detector.
func (s *Scanner) ScanSeries(ctx context.Context, series models.Series) ([]models.Pattern, error) {
	var levels []Level
	for i := len(series.Options) - 1; i >= 0; i-- {
		if ch := series.Options[i]; ch != nil {
			for _, p := range ch.Positions {
				levels = append(levels, Level{Price: p.Strike, Weight: p.OpenInterest})
			}
			break
		}
	}
	return s.scan(ctx, series.Bars, levels)
}

func (s *Scanner) scan(ctx context.Context, bars []models.Bar, levels []Level) ([]models.Pattern, error) {
	started := time.Now()
	atr := indicators.ATR(bars, atrPeriod)

	var jobs []job
	for _, d := range s.detectors {
		if !s.wants(d) {
			continue
		}
		w := d.Window()
		if w == 0 {
			if len(bars) > 0 {
				jobs = append(jobs, job{det: d, pos: len(bars) - 1})
			}
			continue
		}
		for pos := w - 1; pos < len(bars); pos++ {
			jobs = append(jobs, job{det: d, pos: pos})
		}
	}

	results := make([][]models.Pattern, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			in := Input{Bars: bars[: j.pos+1 : j.pos+1], ATR: atr[: j.pos+1 : j.pos+1]}
			if j.det.Window() == 0 {
				in.Levels = levels
			}
			results[i] = j.det.Detect(in)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pattern scan: %w", err)
	}

	var out []models.Pattern
	for _, r := range results {
		for _, p := range r {
			if s.enabled == nil || s.enabled[p.Type] {
				out = append(out, p)
			}
		}
	}
	Sort(out)

	counts := make(map[models.PatternType]int)
	for _, p := range out {
		counts[p.Type]++
	}
	for t, n := range counts {
		s.metrics.RecordPatternsDetected(string(t), n)
	}
	s.metrics.RecordLatency("pattern_scan", time.Since(started).Seconds())
	s.log.Debug("pattern scan finished",
		logger.Int("bars", len(bars)),
		logger.Int("windows", len(jobs)),
		logger.Int("patterns", len(out)),
		logger.Duration("took_ms", time.Since(started)),
	)
	return out, nil
}

// DetectAt runs the trailing-window detectors whose window ends exactly at pos.
// Only bars[0..pos] are visible to them.
func (s *Scanner) DetectAt(bars []models.Bar, pos int) []models.Pattern {
	if pos < 0 || pos >= len(bars) {
		return nil
	}
	view := bars[: pos+1 : pos+1]
	in := Input{Bars: view, ATR: indicators.ATR(view, atrPeriod)}
	var out []models.Pattern
	for _, d := range s.detectors {
		if d.Window() == 0 || !s.wants(d) {
			continue
		}
		for _, p := range d.Detect(in) {
			if s.enabled == nil || s.enabled[p.Type] {
				out = append(out, p)
			}
		}
	}
	Sort(out)
	return out
}

// Sort orders patterns by window start then type name, keeping the relative order of equal keys.
func Sort(ps []models.Pattern) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].WindowStart != ps[j].WindowStart {
			return ps[i].WindowStart < ps[j].WindowStart
		}
		return ps[i].Type < ps[j].Type
	})
}
