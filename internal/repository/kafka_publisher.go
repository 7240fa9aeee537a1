package repository

import (
	"context"

	"PatternLab/internal/domain/models"
	pkgkafka "PatternLab/pkg/kafka"
)

// KafkaResultPublisher emits run summaries and detected patterns keyed by symbol.
type KafkaResultPublisher struct {
	producer      *pkgkafka.Producer
	resultsTopic  string
	patternsTopic string
}

func NewKafkaResultPublisher(producer *pkgkafka.Producer, resultsTopic, patternsTopic string) *KafkaResultPublisher {
	return &KafkaResultPublisher{producer: producer, resultsTopic: resultsTopic, patternsTopic: patternsTopic}
}

// ResultEvent is the message published when a backtest finishes. Consumers fetch
// the full result from the store by run id.
type ResultEvent struct {
	models.BacktestSummary
	WinRate           float64                                   `json:"win_rate"`
	ProfitFactor      float64                                   `json:"profit_factor"`
	RejectedProposals int                                       `json:"rejected_proposals"`
	OracleFailures    int                                       `json:"oracle_failures"`
	ByRegime          map[models.RegimeLabel]models.RegimeStats `json:"performance_by_regime"`
}

func (p *KafkaResultPublisher) PublishResult(ctx context.Context, r *models.BacktestResult) error {
	ev := ResultEvent{
		BacktestSummary:   r.Summary(),
		WinRate:           r.Stats.WinRate,
		ProfitFactor:      r.Stats.ProfitFactor,
		RejectedProposals: r.RejectedProposals,
		OracleFailures:    r.OracleFailures,
		ByRegime:          r.PerformanceByRegime,
	}
	return p.producer.PublishBatch(ctx, p.resultsTopic, []pkgkafka.Message{{
		Key:     []byte(r.Symbol),
		Value:   ev,
		Headers: map[string]string{"run_id": r.RunID},
	}})
}

// PatternEvent carries one validated pattern.
type PatternEvent struct {
	Symbol  string         `json:"symbol"`
	Pattern models.Pattern `json:"pattern"`
}

func (p *KafkaResultPublisher) PublishPatterns(ctx context.Context, symbol string, patterns []models.Pattern) error {
	if len(patterns) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(patterns))
	for i, pt := range patterns {
		msgs[i] = pkgkafka.Message{Key: []byte(symbol), Value: PatternEvent{Symbol: symbol, Pattern: pt}}
	}
	return p.producer.PublishBatch(ctx, p.patternsTopic, msgs)
}

func (p *KafkaResultPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher drops everything. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishResult(context.Context, *models.BacktestResult) error { return nil }

func (NopPublisher) PublishPatterns(context.Context, string, []models.Pattern) error { return nil }

func (NopPublisher) Close() error { return nil }
