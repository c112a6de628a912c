package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"marketregime/internal/domain/regime"
	"marketregime/pkg/errors"
)

type Config struct {
	App           AppConfig
	Classifier    ClassifierConfig
	Input         InputConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Metrics       MetricsConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"marketregime"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

// ClassifierConfig holds the classification parameters. SlopeEpsilon 0 selects
// AutoEpsilonFraction * median(close).
type ClassifierConfig struct {
	SMAShortWindow      int     `envconfig:"REGIME_SMA_SHORT" default:"50"`
	SMALongWindow       int     `envconfig:"REGIME_SMA_LONG" default:"200"`
	SlopeLookback       int     `envconfig:"REGIME_SLOPE_LOOKBACK" default:"3"`
	SlopeEpsilon        float64 `envconfig:"REGIME_SLOPE_EPSILON" default:"0"`
	ATRLength           int     `envconfig:"REGIME_ATR_LENGTH" default:"14"`
	MinConfirmationBars int     `envconfig:"REGIME_MIN_CONFIRMATION_BARS" default:"10"`
	VolQuantileLow      float64 `envconfig:"REGIME_VOL_QUANTILE_LOW" default:"0.3"`
	VolQuantileHigh     float64 `envconfig:"REGIME_VOL_QUANTILE_HIGH" default:"0.7"`
	ConfirmationRatio   float64 `envconfig:"REGIME_CONFIRMATION_RATIO" default:"0.6"`
	AutoEpsilonFraction float64 `envconfig:"REGIME_AUTO_EPSILON_FRACTION" default:"0.0002"`
}

// Params converts the config into classifier parameters
func (c ClassifierConfig) Params() regime.Params {
	return regime.Params{
		SMAShortWindow:      c.SMAShortWindow,
		SMALongWindow:       c.SMALongWindow,
		SlopeLookback:       c.SlopeLookback,
		SlopeEpsilon:        c.SlopeEpsilon,
		ATRLength:           c.ATRLength,
		MinConfirmationBars: c.MinConfirmationBars,
		VolQuantileLow:      c.VolQuantileLow,
		VolQuantileHigh:     c.VolQuantileHigh,
		ConfirmationRatio:   c.ConfirmationRatio,
		AutoEpsilonFraction: c.AutoEpsilonFraction,
	}
}

// InputConfig selects where bar histories come from
type InputConfig struct {
	Source       string        `envconfig:"INPUT_SOURCE" default:"csv"` // csv | clickhouse
	Dir          string        `envconfig:"INPUT_DIR" default:"."`
	Delimiter    string        `envconfig:"INPUT_DELIMITER" default:","`
	DecimalComma bool          `envconfig:"INPUT_DECIMAL_COMMA" default:"false"`
	TimeLayout   string        `envconfig:"INPUT_TIME_LAYOUT"`
	Exchange     string        `envconfig:"INPUT_EXCHANGE" default:"binance"`
	Symbols      []string      `envconfig:"INPUT_SYMBOLS"`
	Timeframe    string        `envconfig:"INPUT_TIMEFRAME" default:"1h"`
	Lookback     time.Duration `envconfig:"INPUT_LOOKBACK" default:"0"`
	Limit        int           `envconfig:"INPUT_LIMIT" default:"0"`
}

type PostgresConfig struct {
	Enabled  bool   `envconfig:"POSTGRES_ENABLED" default:"false"`
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"postgres"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"marketregime"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"trading"`
}

type RedisConfig struct {
	Enabled  bool          `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int           `envconfig:"REDIS_PORT" default:"6379"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"REDIS_SNAPSHOT_TTL" default:"24h"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"KAFKA_REGIME_TOPIC" default:"market.regime_change"`
}

// MetricsConfig controls the Prometheus text file written after a run
type MetricsConfig struct {
	Enabled  bool   `envconfig:"METRICS_ENABLED" default:"false"`
	Textfile string `envconfig:"METRICS_TEXTFILE" default:"marketregime.prom"`
	Listen   string `envconfig:"METRICS_LISTEN"` // serves /metrics and /health in scheduled mode, e.g. ":9102"
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig bounds how many instruments are classified at once
type WorkerConfig struct {
	Concurrency int           `envconfig:"WORKER_CONCURRENCY" default:"4"`
	Timeout     time.Duration `envconfig:"WORKER_TIMEOUT" default:"2m"` // per instrument, load + classify + store
	// ConnectRetries is how often a backend connection is retried at startup
	ConnectRetries int `envconfig:"CONNECT_RETRIES" default:"3"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
