package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

const (
	SourceIndexer  = "indexer"
	SourcePostgres = "postgres"

	BlockTimeInterpolation = "interpolation"
	BlockTimeDirect        = "direct"

	MinCacheTTL = 15 * time.Minute
	MaxCacheTTL = 10 * time.Hour

	DefaultIndexerURL = "https://indexer-grants-stack.gitcoin.co/data"
)

type Config struct {
	Server    ServerConfig
	Source    SourceConfig
	DB        DBConfig
	Redis     RedisConfig
	Indexer   IndexerConfig
	Catalog   CatalogConfig
	Tokens    TokenConfig
	BlockTime BlockTimeConfig
	Cache     CacheConfig
	Pipeline  PipelineConfig
	Aggregate AggregateConfig
	Export    ExportConfig
	Alert     AlertConfig
	Log       LogConfig
	Tracing   TracingConfig
}

type ServerConfig struct {
	Port            int
	RateLimitRPS    float64
	RateLimitBurst  int
	ShutdownTimeout time.Duration
}

// SourceConfig selects where donations, applications and rounds are read.
type SourceConfig struct {
	Kind string
}

type DBConfig struct {
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	StatementTimeoutMS int
	PoolStatsInterval  time.Duration
	MigrationsDir      string
}

// RedisConfig enables the shared report cache when URL is set.
type RedisConfig struct {
	URL       string
	KeyPrefix string
}

type IndexerConfig struct {
	BaseURL            string
	Timeout            time.Duration
	RPS                float64
	Burst              int
	Concurrency        int
	MaxAttempts        int
	ScoreTTL           time.Duration
	BreakerFailures    int
	BreakerOpenTimeout time.Duration
}

type CatalogConfig struct {
	Path string
}

type TokenConfig struct {
	Path string
	TTL  time.Duration
}

type BlockTimeConfig struct {
	Strategy    string
	RPCURLs     map[model.ChainID]string
	BlockTimes  map[model.ChainID]time.Duration
	RPS         float64
	Concurrency int
}

type CacheConfig struct {
	TTL      time.Duration
	Capacity int
}

type PipelineConfig struct {
	RunTimeout time.Duration
}

type AggregateConfig struct {
	TopK               int
	SpotlightN         int
	LeaderboardN       int
	TrendingWindow     time.Duration
	MinDisplayTotalUSD decimal.Decimal
	EdgeCap            int
	EdgeSeed           int64
	QualityAlertRatio  float64
}

type ExportConfig struct {
	BucketURL string
	Prefix    string
}

type AlertConfig struct {
	SlackWebhookURL    string
	WebhookURL         string
	Cooldown           time.Duration
	UnhealthyThreshold int
}

type LogConfig struct {
	Level string
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

// Load reads configuration from the environment. Variables already set take
// precedence over a .env file in the working directory, which is optional.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &model.ConfigurationError{Field: ".env", Err: err}
	}

	var errs []error
	record := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvInt("HTTP_PORT", 8080),
			RateLimitRPS:    getEnvFloat("API_RATE_LIMIT_RPS", 5),
			RateLimitBurst:  getEnvInt("API_RATE_LIMIT_BURST", 20),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Source: SourceConfig{
			Kind: strings.ToLower(getEnv("DATA_SOURCE", SourceIndexer)),
		},
		DB: DBConfig{
			URL:                getEnv("DB_URL", ""),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:    time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 30)) * time.Minute,
			StatementTimeoutMS: getEnvInt("DB_STATEMENT_TIMEOUT_MS", 30000),
			PoolStatsInterval:  getEnvDuration("DB_POOL_STATS_INTERVAL", 15*time.Second),
			MigrationsDir:      getEnv("DB_MIGRATIONS_DIR", "internal/store/postgres/migrations"),
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", ""),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "grants:report"),
		},
		Indexer: IndexerConfig{
			BaseURL:            strings.TrimRight(getEnv("INDEXER_URL", DefaultIndexerURL), "/"),
			Timeout:            getEnvDuration("INDEXER_TIMEOUT", 30*time.Second),
			RPS:                getEnvFloat("INDEXER_RPS", 5),
			Burst:              getEnvInt("INDEXER_BURST", 10),
			Concurrency:        getEnvInt("INDEXER_CONCURRENCY", 4),
			MaxAttempts:        getEnvInt("INDEXER_MAX_ATTEMPTS", 4),
			ScoreTTL:           getEnvDuration("INDEXER_SCORE_TTL", time.Hour),
			BreakerFailures:    getEnvInt("INDEXER_BREAKER_FAILURES", 5),
			BreakerOpenTimeout: getEnvDuration("INDEXER_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},
		Catalog: CatalogConfig{
			Path: getEnv("CATALOG_PATH", "data/all_rounds.csv"),
		},
		Tokens: TokenConfig{
			Path: getEnv("TOKENS_PATH", ""),
			TTL:  getEnvDuration("TOKENS_TTL", time.Hour),
		},
		BlockTime: BlockTimeConfig{
			Strategy:    strings.ToLower(getEnv("BLOCKTIME_STRATEGY", BlockTimeInterpolation)),
			RPS:         getEnvFloat("CHAIN_RPC_RPS", 10),
			Concurrency: getEnvInt("CHAIN_RPC_CONCURRENCY", 4),
		},
		Cache: CacheConfig{
			TTL:      getEnvDuration("CACHE_TTL", time.Hour),
			Capacity: getEnvInt("CACHE_CAPACITY", 32),
		},
		Pipeline: PipelineConfig{
			RunTimeout: getEnvDuration("PIPELINE_RUN_TIMEOUT", 5*time.Minute),
		},
		Aggregate: AggregateConfig{
			TopK:              getEnvInt("AGG_TOP_K", 10),
			SpotlightN:        getEnvInt("AGG_SPOTLIGHT_N", 10),
			LeaderboardN:      getEnvInt("AGG_LEADERBOARD_N", 100),
			TrendingWindow:    getEnvDuration("AGG_TRENDING_WINDOW", 24*time.Hour),
			EdgeCap:           getEnvInt("AGG_EDGE_CAP", 10000),
			EdgeSeed:          int64(getEnvInt("AGG_EDGE_SEED", 42)),
			QualityAlertRatio: getEnvFloat("AGG_QUALITY_ALERT_RATIO", 0.05),
		},
		Export: ExportConfig{
			BucketURL: getEnv("EXPORT_BUCKET_URL", "file://./export"),
			Prefix:    getEnv("EXPORT_PREFIX", ""),
		},
		Alert: AlertConfig{
			SlackWebhookURL:    getEnv("SLACK_WEBHOOK_URL", ""),
			WebhookURL:         getEnv("ALERT_WEBHOOK_URL", ""),
			Cooldown:           getEnvDuration("ALERT_COOLDOWN", 30*time.Minute),
			UnhealthyThreshold: getEnvInt("ALERT_UNHEALTHY_THRESHOLD", 1),
		},
		Log: LogConfig{
			Level: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio: getEnvFloat("TRACING_SAMPLE_RATIO", 1),
		},
	}

	minTotal, err := decimal.NewFromString(getEnv("AGG_MIN_DISPLAY_TOTAL_USD", "100"))
	if err != nil {
		record(&model.ConfigurationError{Field: "AGG_MIN_DISPLAY_TOTAL_USD", Err: err})
	}
	cfg.Aggregate.MinDisplayTotalUSD = minTotal

	cfg.BlockTime.RPCURLs, err = parseChainMap("CHAIN_RPC_URLS", func(v string) (string, error) {
		if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			return "", fmt.Errorf("%q is not an http(s) url", v)
		}
		return v, nil
	})
	record(err)

	cfg.BlockTime.BlockTimes, err = parseChainMap("CHAIN_BLOCK_TIMES", func(v string) (time.Duration, error) {
		d, err := time.ParseDuration(v)
		if err == nil && d <= 0 {
			err = fmt.Errorf("%q must be positive", v)
		}
		return d, err
	})
	record(err)

	record(cfg.validate())
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &model.ConfigurationError{Field: field, Err: fmt.Errorf(format, args...)})
	}

	switch c.Source.Kind {
	case SourceIndexer:
		if c.Indexer.BaseURL == "" {
			fail("INDEXER_URL", "is required for the indexer source")
		}
	case SourcePostgres:
		if c.DB.URL == "" {
			fail("DB_URL", "is required for the postgres source")
		}
	default:
		fail("DATA_SOURCE", "unsupported source %q (want %s or %s)", c.Source.Kind, SourceIndexer, SourcePostgres)
	}
	if c.Catalog.Path == "" {
		fail("CATALOG_PATH", "is required")
	}
	switch c.BlockTime.Strategy {
	case BlockTimeInterpolation:
	case BlockTimeDirect:
		if len(c.BlockTime.RPCURLs) == 0 && c.DB.URL == "" {
			fail("CHAIN_RPC_URLS", "the direct strategy needs DB_URL or at least one endpoint")
		}
	default:
		fail("BLOCKTIME_STRATEGY", "unsupported strategy %q", c.BlockTime.Strategy)
	}
	if c.Cache.TTL < MinCacheTTL || c.Cache.TTL > MaxCacheTTL {
		fail("CACHE_TTL", "%s outside [%s, %s]", c.Cache.TTL, MinCacheTTL, MaxCacheTTL)
	}
	if c.Pipeline.RunTimeout <= 0 {
		fail("PIPELINE_RUN_TIMEOUT", "must be positive")
	}
	if c.Cache.Capacity <= 0 {
		fail("CACHE_CAPACITY", "must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		fail("HTTP_PORT", "%d out of range", c.Server.Port)
	}
	if c.Aggregate.TopK <= 0 || c.Aggregate.LeaderboardN <= 0 || c.Aggregate.SpotlightN < 0 {
		fail("AGG_TOP_K", "ranking sizes must be positive")
	}
	if c.Aggregate.EdgeCap <= 0 {
		fail("AGG_EDGE_CAP", "must be positive")
	}
	if c.Aggregate.QualityAlertRatio < 0 || c.Aggregate.QualityAlertRatio > 1 {
		fail("AGG_QUALITY_ALERT_RATIO", "%v outside [0, 1]", c.Aggregate.QualityAlertRatio)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		fail("TRACING_SAMPLE_RATIO", "%v outside [0, 1]", c.Tracing.SampleRatio)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		fail("LOG_LEVEL", "unsupported level %q", c.Log.Level)
	}
	return errors.Join(errs...)
}

// parseChainMap reads "chain=value,chain=value" pairs from key.
func parseChainMap[V any](key string, parse func(string) (V, error)) (map[model.ChainID]V, error) {
	out := make(map[model.ChainID]V)
	raw := getEnv(key, "")
	if raw == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		chain, value, ok := strings.Cut(pair, "=")
		chain, value = strings.TrimSpace(chain), strings.TrimSpace(value)
		if !ok || chain == "" || value == "" {
			return nil, &model.ConfigurationError{Field: key, Err: fmt.Errorf("malformed pair %q", pair)}
		}
		v, err := parse(value)
		if err != nil {
			return nil, &model.ConfigurationError{Field: key, Err: fmt.Errorf("chain %s: %w", chain, err)}
		}
		out[model.ChainID(chain)] = v
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return fallback
}
