package di

import (
	"context"
	"fmt"
	"time"

	"github.com/google/wire"

	"PatternLab/internal/domain/models"
	"PatternLab/internal/domain/repository"
	"PatternLab/internal/domain/service"
	"PatternLab/internal/handler/api"
	internalrepo "PatternLab/internal/repository"
	"PatternLab/internal/service/ratelimit"
	"PatternLab/internal/services/backtest"
	"PatternLab/internal/services/indicators"
	"PatternLab/internal/services/patterns"
	"PatternLab/internal/services/regime"
	"PatternLab/internal/services/remote"
	"PatternLab/internal/services/strategy"
	"PatternLab/internal/services/validation"
	"PatternLab/internal/usecase"
	"PatternLab/pkg/cache"
	pkgch "PatternLab/pkg/clickhouse"
	"PatternLab/pkg/config"
	xhttp "PatternLab/pkg/http"
	pkgkafka "PatternLab/pkg/kafka"
	applogger "PatternLab/pkg/logger"
	"PatternLab/pkg/metrics"
	"PatternLab/pkg/queue"
	"PatternLab/pkg/server"
)

// ProviderSet lists every provider InitializeApp draws from.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideBarStore,
	ProvideResultStore,
	ProvideTradeExporter,
	ProvideKafkaProducer,
	ProvideResultPublisher,
	ProvideRedisCache,
	ProvideCache,
	ProvideStrategyOracle,
	ProvidePatternClassifier,
	ProvideIndicatorEngine,
	ProvideSegmenter,
	ProvideBacktestSettings,
	ProvidePatternSettings,
	usecase.NewMarketDataUseCase,
	ProvideBacktestUseCase,
	ProvidePatternUseCase,
	usecase.NewAnalysisUseCase,
	ProvideBacktestJobHandler,
	ProvideKafkaConsumer,
	ProvideRedisQueue,
	ProvideJobQueue,
	ProvideHandlers,
	ProvideHTTPServer,
	ProvideApp,
)

func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideClickHouseClient connects and ensures the schema. Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready", applogger.String("database", cfg.ClickHouse.Database))
	return client, nil
}

func ProvideBarStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) repository.BarStore {
	if cfg.Data.Source == "parquet" {
		return internalrepo.NewParquetBarStore(cfg.Data.ParquetDir)
	}
	return internalrepo.NewCHBarStore(ch, cfg.ClickHouse.Database, l)
}

// ProvideResultStore falls back to process memory when ClickHouse is disabled.
func ProvideResultStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) repository.ResultStore {
	if ch == nil {
		l.Warn("clickhouse disabled, backtest results kept in memory")
		return internalrepo.NewMemoryResultStore()
	}
	return internalrepo.NewCHResultStore(ch, cfg.ClickHouse.Database, l)
}

func ProvideTradeExporter(cfg *config.Config) repository.TradeExporter {
	return internalrepo.NewParquetTradeExporter(cfg.Export.ParquetDir)
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatch(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func ProvideResultPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ResultPublisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.Topics.Results, cfg.Kafka.Topics.Patterns)
}

// ProvideRedisCache returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisPool(cfg.Redis.PoolSize, 0, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache layers memory over Redis when Redis is available.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemorySize))
	}
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Cache.MemorySize),
		cache.WithLayeredMemoryTTL(cfg.Cache.LocalTTL),
	)
}

// ProvideStrategyOracle returns a nil interface when no oracle URL is configured.
func ProvideStrategyOracle(cfg *config.Config) service.StrategyOracle {
	if cfg.Remote.OracleURL == "" {
		return nil
	}
	return remote.NewHTTPStrategyOracle(remoteBase(cfg, cfg.Remote.OracleURL))
}

// ProvidePatternClassifier returns a nil interface when no classifier URL is configured.
func ProvidePatternClassifier(cfg *config.Config, c cache.Service) service.PatternClassifier {
	if cfg.Remote.ClassifierURL == "" {
		return nil
	}
	inner := remote.NewHTTPPatternClassifier(remoteBase(cfg, cfg.Remote.ClassifierURL))
	return validation.NewCachedClassifier(inner, c, cfg.Cache.ClassifierTTL)
}

func remoteBase(cfg *config.Config, url string) *remote.HTTPServiceBase {
	return remote.NewHTTPServiceBase(url, cfg.Remote.Timeout, remote.WithAttempts(cfg.Remote.Retries))
}

func indicatorConfig(cfg *config.Config) indicators.Config {
	c := cfg.Indicators
	return indicators.Config{
		Trend: c.Trend, Momentum: c.Momentum, Volatility: c.Volatility, Volume: c.Volume, Candles: c.Candles, Options: c.Options,
		SMAPeriods:      c.SMAPeriods,
		EMAPeriods:      c.EMAPeriods,
		RSIPeriod:       c.RSIPeriod,
		MACDFast:        c.MACDFast,
		MACDSlow:        c.MACDSlow,
		MACDSignal:      c.MACDSignal,
		BollingerPeriod: c.BollingerPeriod,
		BollingerMult:   c.BollingerMult,
		ATRPeriod:       c.ATRPeriod,
		HVPeriod:        c.HVPeriod,
		StochK:          c.StochK,
		StochD:          c.StochD,
	}
}

func regimeConfig(cfg *config.Config) regime.Config {
	rc := regime.DefaultConfig()
	rc.VolWindow = cfg.Regime.VolWindow
	rc.TrendWindow = cfg.Regime.TrendWindow
	return rc
}

func ProvideIndicatorEngine(cfg *config.Config, m repository.Metrics) *indicators.Engine {
	return indicators.New(indicatorConfig(cfg), indicators.WithMetrics(m))
}

func ProvideSegmenter(cfg *config.Config) *regime.Segmenter {
	return regime.New(regimeConfig(cfg))
}

func ProvideBacktestSettings(cfg *config.Config) usecase.BacktestSettings {
	b := cfg.Backtest
	sim := backtest.DefaultConfig()
	sim.InitialCapital = b.InitialCapital
	sim.MaxPositionPct = b.MaxPositionPct
	sim.ExitPolicy = backtest.ExitPolicy(b.ExitPolicy)
	sim.Horizon = b.Horizon
	sim.FeeBps = b.FeeBps
	sim.SlippageBps = b.SlippageBps
	sim.GapTolerance = b.GapTolerance
	sim.TrendRegimes = b.TrendRegimes
	return usecase.BacktestSettings{
		Simulator:  sim,
		Indicators: indicatorConfig(cfg),
		Regime:     regimeConfig(cfg),
		Rule:       strategy.DefaultRuleConfig(),
		RiskPct:    b.RiskPct,
		ResultTTL:  cfg.Cache.ResultTTL,
	}
}

func ProvidePatternSettings(cfg *config.Config) usecase.PatternSettings {
	det := patterns.DefaultConfig()
	for name, w := range cfg.Patterns.Windows {
		det.Windows[models.PatternType(name)] = w
	}
	det.Workers = cfg.Patterns.Workers

	val := validation.DefaultConfig()
	val.Threshold = cfg.Validation.Threshold
	for _, r := range cfg.Validation.ExcludedRegimes {
		val.ExcludedRegimes = append(val.ExcludedRegimes, models.RegimeLabel(r))
	}
	return usecase.PatternSettings{
		Detector:     det,
		Validation:   val,
		Regime:       regimeConfig(cfg),
		GapTolerance: cfg.Backtest.GapTolerance,
	}
}

func ProvideBacktestUseCase(
	data *usecase.MarketDataUseCase,
	store repository.ResultStore,
	exporter repository.TradeExporter,
	publisher repository.ResultPublisher,
	c cache.Service,
	oracle service.StrategyOracle,
	settings usecase.BacktestSettings,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.BacktestUseCase {
	return usecase.NewBacktestUseCase(data, store, exporter, publisher, c, oracle, settings, m, l)
}

func ProvidePatternUseCase(
	data *usecase.MarketDataUseCase,
	classifier service.PatternClassifier,
	publisher repository.ResultPublisher,
	settings usecase.PatternSettings,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.PatternUseCase {
	return usecase.NewPatternUseCase(data, classifier, publisher, settings, m, l)
}

func ProvideBacktestJobHandler(cfg *config.Config, bt *usecase.BacktestUseCase, c cache.Service, m repository.Metrics, l *applogger.Logger) *usecase.BacktestJobHandler {
	return usecase.NewBacktestJobHandler(cfg.Kafka.Topics.Jobs, bt, c, cfg.Cache.JobLockTTL, m, l)
}

// ProvideKafkaConsumer consumes the jobs topic. Returns nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, h *usecase.BacktestJobHandler, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook(l)))
	consumer.RegisterHandler(h)
	return consumer, nil
}

// ProvideRedisQueue runs backtest jobs off Redis when Kafka is disabled and Redis is on.
func ProvideRedisQueue(cfg *config.Config, rc *cache.RedisCache, h *usecase.BacktestJobHandler, l *applogger.Logger) *queue.RedisQueue {
	if cfg.Kafka.Enabled || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, queue.Config{
		Workers:    cfg.Kafka.Consumer.Workers,
		RetryLimit: cfg.Kafka.Consumer.RetryMax,
		RetryDelay: cfg.Kafka.Consumer.BackoffMax,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Redis.Prefix+":jobs"))
	q.RegisterJob(h)
	return q
}

// ProvideJobQueue returns a nil interface when neither Kafka nor Redis is available.
func ProvideJobQueue(cfg *config.Config, producer *pkgkafka.Producer, rq *queue.RedisQueue) repository.JobQueue {
	switch {
	case producer != nil:
		return internalrepo.NewKafkaJobQueue(producer, cfg.Kafka.Topics.Jobs)
	case rq != nil:
		return internalrepo.NewRedisJobQueue(rq, usecase.BacktestJobType)
	}
	return nil
}

func ProvideHandlers(
	l *applogger.Logger,
	bt *usecase.BacktestUseCase,
	pt *usecase.PatternUseCase,
	an *usecase.AnalysisUseCase,
	jobs repository.JobQueue,
) []xhttp.Handler {
	return []xhttp.Handler{
		api.NewBacktestHandler(l, bt, jobs),
		api.NewAnalysisHandler(l, pt, an),
	}
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, handlers []xhttp.Handler) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	if cfg.Server.RateLimit.RPS > 0 {
		opts = append(opts, xhttp.WithMiddleware(ratelimit.Middleware(ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst))))
	}
	return xhttp.NewServer(handlers, opts...)
}

// ProvideApp assembles the lifecycle. Closers run in reverse registration order.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	rq *queue.RedisQueue,
	ch *pkgch.Client,
	rc *cache.RedisCache,
	publisher repository.ResultPublisher,
	store repository.ResultStore,
) *server.App {
	opts := []server.Option{server.WithShutdownTimeout(cfg.Server.ShutdownTimeout)}
	if ch != nil {
		opts = append(opts, server.WithCloser("clickhouse", ch))
	}
	if rc != nil {
		opts = append(opts, server.WithCloser("redis", rc))
	}
	opts = append(opts,
		server.WithCloser("result_store", store),
		server.WithCloser("publisher", publisher),
	)
	if consumer != nil {
		opts = append(opts, server.WithKafkaConsumer(consumer))
	}
	if rq != nil {
		opts = append(opts, server.WithJobQueue(rq))
	}
	return server.New(l, httpServer, opts...)
}
