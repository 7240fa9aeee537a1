package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps" default:"20" validate:"gte=0"`
			Burst int     `yaml:"burst" default:"40" validate:"gte=0"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Data struct {
		Source     string `yaml:"source" default:"clickhouse" validate:"oneof=clickhouse parquet"`
		ParquetDir string `yaml:"parquet_dir" default:"data/bars"`
	} `yaml:"data"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled" default:"true"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"patternlab"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			Results  string `yaml:"results" default:"patternlab.backtest.results"`
			Patterns string `yaml:"patterns" default:"patternlab.patterns"`
			Jobs     string `yaml:"jobs" default:"patternlab.backtest.jobs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"patternlab-backtests"`
			Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"patternlab.backtest.jobs.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"patternlab"`
		PoolSize int    `yaml:"pool_size" default:"10" validate:"gte=1"`
	} `yaml:"redis"`
	Cache struct {
		MemorySize    int           `yaml:"memory_size" default:"10000"`
		LocalTTL      time.Duration `yaml:"local_ttl" default:"5m"`
		ClassifierTTL time.Duration `yaml:"classifier_ttl" default:"1h"`
		ResultTTL     time.Duration `yaml:"result_ttl" default:"24h"`
		JobLockTTL    time.Duration `yaml:"job_lock_ttl" default:"10m"`
	} `yaml:"cache"`
	Remote struct {
		OracleURL     string        `yaml:"oracle_url"`
		ClassifierURL string        `yaml:"classifier_url"`
		Timeout       time.Duration `yaml:"timeout" default:"3s"`
		Retries       int           `yaml:"retries" default:"3" validate:"gte=1"`
	} `yaml:"remote"`
	Indicators struct {
		Trend           bool    `yaml:"trend" default:"true"`
		Momentum        bool    `yaml:"momentum" default:"true"`
		Volatility      bool    `yaml:"volatility" default:"true"`
		Volume          bool    `yaml:"volume" default:"true"`
		Candles         bool    `yaml:"candles" default:"true"`
		Options         bool    `yaml:"options" default:"true"`
		SMAPeriods      []int   `yaml:"sma_periods" default:"[20,50,200]"`
		EMAPeriods      []int   `yaml:"ema_periods" default:"[9,21,55]"`
		RSIPeriod       int     `yaml:"rsi_period" default:"14"`
		MACDFast        int     `yaml:"macd_fast" default:"12"`
		MACDSlow        int     `yaml:"macd_slow" default:"26"`
		MACDSignal      int     `yaml:"macd_signal" default:"9"`
		BollingerPeriod int     `yaml:"bollinger_period" default:"20"`
		BollingerMult   float64 `yaml:"bollinger_mult" default:"2"`
		ATRPeriod       int     `yaml:"atr_period" default:"14"`
		HVPeriod        int     `yaml:"hv_period" default:"30"`
		StochK          int     `yaml:"stoch_k" default:"14"`
		StochD          int     `yaml:"stoch_d" default:"3"`
	} `yaml:"indicators"`
	Patterns struct {
		Windows map[string]int `yaml:"windows"`
		Workers int            `yaml:"workers" default:"4" validate:"gte=1"`
	} `yaml:"patterns"`
	Validation struct {
		Threshold       float64  `yaml:"threshold" default:"0.7" validate:"gte=0,lte=1"`
		ExcludedRegimes []string `yaml:"excluded_regimes" validate:"dive,oneof=high_volatility low_volatility trending ranging"`
		EvaluateHorizon int      `yaml:"evaluate_horizon" default:"100"`
	} `yaml:"validation"`
	Regime struct {
		VolWindow   int `yaml:"vol_window" default:"30" validate:"gte=2"`
		TrendWindow int `yaml:"trend_window" default:"30" validate:"gte=2"`
	} `yaml:"regime"`
	Backtest struct {
		InitialCapital float64 `yaml:"initial_capital" default:"100000" validate:"gt=0"`
		MaxPositionPct float64 `yaml:"max_position_pct" default:"0.05" validate:"gt=0,lte=1"`
		ExitPolicy     string  `yaml:"exit_policy" default:"stop_target" validate:"oneof=fixed_horizon stop_target"`
		Horizon        int     `yaml:"horizon" default:"10" validate:"gte=1"`
		FeeBps         float64 `yaml:"fee_bps" validate:"gte=0"`
		SlippageBps    float64 `yaml:"slippage_bps" validate:"gte=0"`
		GapTolerance   float64 `yaml:"gap_tolerance" default:"1.5" validate:"gte=1"`
		RiskPct        float64 `yaml:"risk_pct" default:"0.01" validate:"gt=0,lte=1"`
		TrendRegimes   bool    `yaml:"trend_regimes"`
	} `yaml:"backtest"`
	Export struct {
		ParquetDir string `yaml:"parquet_dir" default:"data/exports"`
	} `yaml:"export"`
}

var validate = validator.New()

// Load reads a YAML file, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse is Load without the file read.
func Parse(b []byte) (*Config, error) {
	var c Config
	// defaults first so explicit zero values in the file survive
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if p, err := strconv.Atoi(port); ok && err == nil {
			c.Redis.Port = p
		}
		c.Redis.Enabled = true
	}
	if v := getenv("ORACLE_URL"); v != "" {
		c.Remote.OracleURL = v
	}
	if v := getenv("CLASSIFIER_URL"); v != "" {
		c.Remote.ClassifierURL = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Data.Source == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("data.source clickhouse requires clickhouse.enabled")
	}
	return nil
}
