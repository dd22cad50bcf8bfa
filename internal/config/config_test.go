package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5.0, cfg.Server.RateLimitRPS)
	assert.Equal(t, 20, cfg.Server.RateLimitBurst)
	assert.Equal(t, SourceIndexer, cfg.Source.Kind)
	assert.Equal(t, DefaultIndexerURL, cfg.Indexer.BaseURL)
	assert.Equal(t, 4, cfg.Indexer.MaxAttempts)
	assert.Equal(t, "data/all_rounds.csv", cfg.Catalog.Path)
	assert.Equal(t, BlockTimeInterpolation, cfg.BlockTime.Strategy)
	assert.Empty(t, cfg.BlockTime.RPCURLs)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.RunTimeout)
	assert.Equal(t, 10, cfg.Aggregate.TopK)
	assert.Equal(t, 100, cfg.Aggregate.LeaderboardN)
	assert.Equal(t, 10000, cfg.Aggregate.EdgeCap)
	assert.Equal(t, int64(42), cfg.Aggregate.EdgeSeed)
	assert.True(t, decimal.NewFromInt(100).Equal(cfg.Aggregate.MinDisplayTotalUSD))
	assert.Equal(t, 24*time.Hour, cfg.Aggregate.TrendingWindow)
	assert.Equal(t, "file://./export", cfg.Export.BucketURL)
	assert.Equal(t, 30*time.Minute, cfg.Alert.Cooldown)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Empty(t, cfg.Redis.URL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DATA_SOURCE", "Postgres")
	t.Setenv("DB_URL", "postgres://grants:grants@db:5432/grants?sslmode=disable")
	t.Setenv("INDEXER_URL", "https://indexer.example/data/")
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("CHAIN_RPC_URLS", "1=https://eth.example, 10=https://op.example")
	t.Setenv("CHAIN_BLOCK_TIMES", "424=2s")
	t.Setenv("BLOCKTIME_STRATEGY", "direct")
	t.Setenv("AGG_MIN_DISPLAY_TOTAL_USD", "250.5")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("TRACING_SAMPLE_RATIO", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, SourcePostgres, cfg.Source.Kind)
	assert.Equal(t, "https://indexer.example/data", cfg.Indexer.BaseURL)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, map[model.ChainID]string{
		model.ChainEthereum: "https://eth.example",
		model.ChainOptimism: "https://op.example",
	}, cfg.BlockTime.RPCURLs)
	assert.Equal(t, map[model.ChainID]time.Duration{"424": 2 * time.Second}, cfg.BlockTime.BlockTimes)
	assert.Equal(t, BlockTimeDirect, cfg.BlockTime.Strategy)
	assert.True(t, decimal.RequireFromString("250.5").Equal(cfg.Aggregate.MinDisplayTotalUSD))
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRatio)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{name: "cache ttl too short", env: map[string]string{"CACHE_TTL": "5m"}, field: "CACHE_TTL"},
		{name: "cache ttl too long", env: map[string]string{"CACHE_TTL": "11h"}, field: "CACHE_TTL"},
		{name: "unknown source", env: map[string]string{"DATA_SOURCE": "bigquery"}, field: "DATA_SOURCE"},
		{name: "postgres without url", env: map[string]string{"DATA_SOURCE": "postgres"}, field: "DB_URL"},
		{name: "direct without rpc", env: map[string]string{"BLOCKTIME_STRATEGY": "direct"}, field: "CHAIN_RPC_URLS"},
		{name: "unknown strategy", env: map[string]string{"BLOCKTIME_STRATEGY": "guess"}, field: "BLOCKTIME_STRATEGY"},
		{name: "malformed rpc pair", env: map[string]string{"CHAIN_RPC_URLS": "10"}, field: "CHAIN_RPC_URLS"},
		{name: "rpc not http", env: map[string]string{"CHAIN_RPC_URLS": "10=ws://op"}, field: "CHAIN_RPC_URLS"},
		{name: "negative block time", env: map[string]string{"CHAIN_BLOCK_TIMES": "10=-2s"}, field: "CHAIN_BLOCK_TIMES"},
		{name: "bad min total", env: map[string]string{"AGG_MIN_DISPLAY_TOTAL_USD": "lots"}, field: "AGG_MIN_DISPLAY_TOTAL_USD"},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "trace"}, field: "LOG_LEVEL"},
		{name: "quality ratio above one", env: map[string]string{"AGG_QUALITY_ALERT_RATIO": "1.5"}, field: "AGG_QUALITY_ALERT_RATIO"},
		{name: "port out of range", env: map[string]string{"HTTP_PORT": "70000"}, field: "HTTP_PORT"},
		{name: "zero run timeout", env: map[string]string{"PIPELINE_RUN_TIMEOUT": "0s"}, field: "PIPELINE_RUN_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)

			var ce *model.ConfigurationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestLoad_DirectStrategyWithDatabaseOnly(t *testing.T) {
	t.Setenv("DATA_SOURCE", "postgres")
	t.Setenv("DB_URL", "postgres://grants@db:5432/grants?sslmode=disable")
	t.Setenv("BLOCKTIME_STRATEGY", "direct")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BlockTimeDirect, cfg.BlockTime.Strategy)
	assert.Empty(t, cfg.BlockTime.RPCURLs)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AGG_TOP_K=7\nHTTP_PORT=9090\n"), 0o600))
	t.Setenv("HTTP_PORT", "9191")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(wd)
		os.Unsetenv("AGG_TOP_K")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Aggregate.TopK)
	// process environment wins over the file
	assert.Equal(t, 9191, cfg.Server.Port)
}
