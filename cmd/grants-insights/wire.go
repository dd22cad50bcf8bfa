package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/aggregate"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/alert"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/catalog"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/chain/evm"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/circuitbreaker"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/config"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/metrics"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline/blocktime"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline/identity"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline/ingest"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline/retry"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline/token"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/ratelimit"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/source/indexer"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/store/postgres"
	redisstore "github.com/ufkhan97/gitcoin-grants-heroku/internal/store/redis"
)

// app holds the long-lived components shared by every command.
type app struct {
	pipeline  *pipeline.Pipeline
	aggregate aggregate.Options
	tokens    *token.StaticRegistry
	db        *postgres.DB
	redis     *goredis.Client
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// newBreaker publishes state transitions to the breaker gauge. Zero
// thresholds take the breaker defaults.
func newBreaker(name string, failures int, openTimeout time.Duration) *circuitbreaker.Breaker {
	return circuitbreaker.New(circuitbreaker.Config{
		Name:             name,
		FailureThreshold: failures,
		OpenTimeout:      openTimeout,
		OnStateChange: func(name string, _, to circuitbreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}

func aggregateOptions(cfg config.AggregateConfig) aggregate.Options {
	opts := aggregate.DefaultOptions()
	opts.TopK = cfg.TopK
	opts.SpotlightN = cfg.SpotlightN
	opts.LeaderboardN = cfg.LeaderboardN
	opts.TrendingWindow = cfg.TrendingWindow
	opts.MinDisplayTotalUSD = cfg.MinDisplayTotalUSD
	opts.Edges.Cap = cfg.EdgeCap
	opts.Edges.Seed = cfg.EdgeSeed
	return opts
}

func buildAlerter(cfg config.AlertConfig, logger *slog.Logger) alert.Alerter {
	var channels []alert.Alerter
	if cfg.SlackWebhookURL != "" {
		channels = append(channels, alert.NewSlackAlerter(cfg.SlackWebhookURL))
	}
	if cfg.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookAlerter(cfg.WebhookURL))
	}
	if len(channels) == 0 {
		return &alert.NoopAlerter{}
	}
	return alert.NewMultiAlerter(cfg.Cooldown, logger, channels...)
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{aggregate: aggregateOptions(cfg.Aggregate)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	cat, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load round catalog: %w", err)
	}

	if cfg.DB.URL != "" {
		a.db, err = postgres.New(postgres.Config{
			URL:                cfg.DB.URL,
			MaxOpenConns:       cfg.DB.MaxOpenConns,
			MaxIdleConns:       cfg.DB.MaxIdleConns,
			ConnMaxLifetime:    cfg.DB.ConnMaxLifetime,
			StatementTimeoutMS: cfg.DB.StatementTimeoutMS,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info("connected to database")
	}

	policy := retry.Policy{
		MaxAttempts:    cfg.Indexer.MaxAttempts,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}

	idx := indexer.NewClient(cfg.Indexer.BaseURL, logger,
		indexer.WithHTTPClient(&http.Client{Timeout: cfg.Indexer.Timeout}),
		indexer.WithLimiter(ratelimit.NewLimiter(cfg.Indexer.RPS, cfg.Indexer.Burst, "indexer")),
		indexer.WithBreaker(newBreaker("indexer", cfg.Indexer.BreakerFailures, cfg.Indexer.BreakerOpenTimeout)),
		indexer.WithScoreTTL(cfg.Indexer.ScoreTTL),
	)

	var (
		sourceName string
		rounds     catalog.RoundSource
		donations  ingest.DonationSource
	)
	switch cfg.Source.Kind {
	case config.SourcePostgres:
		sourceName = "postgres"
		rounds = postgres.NewRoundRepo(a.db)
		donations = postgres.NewDonationRepo(a.db)
	default:
		sourceName = idx.Name()
		rounds = idx
		donations = idx
	}

	a.tokens = token.NewStaticRegistry(token.DefaultTokens())
	if cfg.Tokens.Path != "" {
		if a.tokens, err = token.LoadFile(cfg.Tokens.Path); err != nil {
			return nil, &model.ConfigurationError{Field: "TOKENS_PATH", Err: err}
		}
	}
	tokenRegistries := []token.Registry{a.tokens}
	identityRegistries := []identity.Registry{idx}
	var calibrations blocktime.Calibrations
	var stored blocktime.Source
	if a.db != nil {
		tokenRegistries = append([]token.Registry{postgres.NewTokenRepo(a.db)}, tokenRegistries...)
		identityRegistries = append([]identity.Registry{postgres.NewIdentityRepo(a.db)}, identityRegistries...)
		blockTimes := postgres.NewBlockTimeRepo(a.db)
		calibrations = append(calibrations, blockTimes)
		stored = blockTimes
	}
	calibrations = append(calibrations, blocktime.FixedRateCalibration{BlockTimes: cfg.BlockTime.BlockTimes})

	strategy, err := buildBlockTimeStrategy(cfg, calibrations, stored, policy, logger)
	if err != nil {
		return nil, err
	}

	var cache pipeline.ReportCache = pipeline.NewMemoryCache(cfg.Cache.Capacity, cfg.Cache.TTL)
	if cfg.Redis.URL != "" {
		a.redis, err = redisstore.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		shared := redisstore.NewCache[pipeline.Key, *pipeline.Result](a.redis, cfg.Redis.KeyPrefix, cfg.Cache.TTL)
		cache = pipeline.NewTieredCache(cache, shared)
		logger.Info("redis report cache enabled", "prefix", cfg.Redis.KeyPrefix)
	}

	a.pipeline = pipeline.New(pipeline.Config{
		CacheTTL:           cfg.Cache.TTL,
		Aggregate:          a.aggregate,
		QualityAlertRatio:  cfg.Aggregate.QualityAlertRatio,
		UnhealthyThreshold: cfg.Alert.UnhealthyThreshold,
		Alerter:            buildAlerter(cfg.Alert, logger),
		RunTimeout:         cfg.Pipeline.RunTimeout,
	}, pipeline.Stages{
		Rounds: catalog.NewResolver(logger, cat, sourceName, rounds, catalog.WithRetryPolicy(policy)),
		Ingest: ingest.NewAdapter(logger, sourceName, donations,
			ingest.WithRetryPolicy(policy),
			ingest.WithConcurrency(cfg.Indexer.Concurrency)),
		Tokens:     token.NewNormalizer(logger, cfg.Tokens.TTL, tokenRegistries...),
		BlockTimes: strategy,
		Identities: identity.NewResolver(logger, identityRegistries...),
	}, cache, logger)

	return a, nil
}

// buildBlockTimeStrategy chains the stored block timestamps (nil without a
// database) ahead of one JSON-RPC client per CHAIN_RPC_URLS entry. The
// resulting lookup is the direct strategy or the interpolation fallback.
func buildBlockTimeStrategy(cfg *config.Config, cals blocktime.Calibrations, stored blocktime.Source, policy retry.Policy, logger *slog.Logger) (blocktime.Strategy, error) {
	var (
		sources blocktime.Sources
		names   []string
	)
	if stored != nil {
		sources = append(sources, stored)
		names = append(names, "postgres")
	}
	if len(cfg.BlockTime.RPCURLs) > 0 {
		clients := make(map[model.ChainID]*evm.Client, len(cfg.BlockTime.RPCURLs))
		for chain, url := range cfg.BlockTime.RPCURLs {
			name := "rpc-" + chain.Name()
			clients[chain] = evm.NewClient(url, name, logger,
				evm.WithLimiter(ratelimit.NewLimiter(cfg.BlockTime.RPS, int(cfg.BlockTime.RPS)+1, name)),
				evm.WithBreaker(newBreaker(name, cfg.Indexer.BreakerFailures, cfg.Indexer.BreakerOpenTimeout)),
			)
		}
		sources = append(sources, evm.NewSource(clients))
		names = append(names, "rpc")
	}

	var direct *blocktime.DirectLookup
	if len(sources) > 0 {
		direct = blocktime.NewDirectLookup(logger, strings.Join(names, "+"), sources, cfg.BlockTime.Concurrency).
			WithRetryPolicy(policy)
	}

	switch cfg.BlockTime.Strategy {
	case config.BlockTimeDirect:
		if direct == nil {
			return nil, &model.ConfigurationError{Field: "CHAIN_RPC_URLS", Err: errors.New("direct strategy needs DB_URL or at least one endpoint")}
		}
		return direct, nil
	default:
		return blocktime.NewInterpolator(logger, cals, direct), nil
	}
}
