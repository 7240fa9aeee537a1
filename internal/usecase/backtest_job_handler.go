package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"PatternLab/internal/domain/models"
	domrepo "PatternLab/internal/domain/repository"
	"PatternLab/internal/services/backtest"
	"PatternLab/pkg/cache"
	pkghttp "PatternLab/pkg/http"
	pkgkafka "PatternLab/pkg/kafka"
	"PatternLab/pkg/logger"
	"PatternLab/pkg/queue"
)

// BacktestJobType names backtest messages on the Redis queue.
const BacktestJobType = "backtest"

// BacktestJobHandler runs queued backtest requests from either the Kafka jobs topic
// or the Redis queue. Results are always published since nobody waits on the response.
type BacktestJobHandler struct {
	topic   string
	runs    *BacktestUseCase
	locks   cache.Service
	lockTTL time.Duration
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewBacktestJobHandler(topic string, runs *BacktestUseCase, locks cache.Service, lockTTL time.Duration, metrics domrepo.Metrics, l *logger.Logger) *BacktestJobHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	return &BacktestJobHandler{topic: topic, runs: runs, locks: locks, lockTTL: lockTTL, metrics: metrics, log: l.With("backtest_jobs")}
}

func (h *BacktestJobHandler) Topic() string { return h.topic }

func (h *BacktestJobHandler) Name() string { return "backtest_job" }

func (h *BacktestJobHandler) Type() string { return BacktestJobType }

// Handle decodes one job. Identical payloads seen within the lock TTL are skipped,
// so a redelivered message does not produce a second run.
func (h *BacktestJobHandler) Handle(ctx context.Context, b []byte) error {
	var req models.BacktestRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("job_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode job: %w", err))
	}
	if err := pkghttp.ValidateStruct(ctx, &req); err != nil {
		h.metrics.RecordError("job_invalid")
		return pkgkafka.Permanent(fmt.Errorf("invalid job: %w", err))
	}
	req.Publish = true

	key := cache.GenerateKey("job", cache.HashBytes(b))
	ok, err := h.locks.TryLock(ctx, key, h.lockTTL)
	if err != nil {
		return fmt.Errorf("job lock: %w", err)
	}
	if !ok {
		h.log.Debug("duplicate job skipped", logger.String("trace_id", pkgkafka.TraceIDFrom(ctx)), logger.String("symbol", req.Symbol))
		return nil
	}

	start := time.Now()
	report, err := h.runs.Run(ctx, req)
	h.metrics.RecordLatency("backtest_job_seconds", time.Since(start).Seconds())
	if err != nil {
		_ = h.locks.Unlock(ctx, key)
		if isPermanentRunError(err) {
			return pkgkafka.Permanent(err)
		}
		return err
	}
	h.log.Info("backtest job done",
		logger.String("trace_id", pkgkafka.TraceIDFrom(ctx)),
		logger.String("run_id", report.Result.RunID),
		logger.String("symbol", report.Result.Symbol),
		logger.Int("trades", len(report.Result.Trades)),
	)
	return nil
}

// isPermanentRunError reports failures that a retry of the same job cannot fix.
func isPermanentRunError(err error) bool {
	return errors.Is(err, models.ErrDataQuality) ||
		errors.Is(err, models.ErrDataInsufficient) ||
		errors.Is(err, ErrInvalidParams) ||
		errors.Is(err, ErrOracleUnavailable) ||
		errors.Is(err, backtest.ErrInvalidConfig)
}

var (
	_ pkgkafka.MessageHandler = (*BacktestJobHandler)(nil)
	_ queue.Job               = (*BacktestJobHandler)(nil)
)
