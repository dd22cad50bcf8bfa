package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/api"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/config"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/export"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/store"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/store/postgres"
	"golang.org/x/sync/errgroup"
)

func serve(ctx context.Context, cfg *config.Config, a *app, logger *slog.Logger) error {
	if a.db != nil {
		a.db.StartPoolStats(ctx, cfg.DB.PoolStatsInterval)
	}

	srv := api.NewServer(a.pipeline, logger,
		api.WithHealthProvider(a.pipeline.Health()),
		api.WithAggregateOptions(a.aggregate),
	)
	limiter := api.NewRateLimitMiddleware(logger, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	defer limiter.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           limiter.Wrap(srv.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api server started", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api server shutdown error", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		warm(gCtx, a.pipeline, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("grants-insights shut down gracefully")
	return nil
}

// warm computes every program once so the first requests hit the cache.
// Failures are already logged and alerted by the pipeline.
func warm(ctx context.Context, p *pipeline.Pipeline, logger *slog.Logger) {
	for _, program := range p.Programs() {
		if ctx.Err() != nil {
			return
		}
		if _, err := p.Run(ctx, p.Current(program)); err != nil {
			logger.Warn("cache warmup failed", "program", program, "error", err)
		}
	}
}

func selectPrograms(p *pipeline.Pipeline, program string) []string {
	if program != "" {
		return []string{program}
	}
	return p.Programs()
}

func exportPrograms(ctx context.Context, cfg *config.Config, a *app, program string, logger *slog.Logger) error {
	exp, err := export.Open(ctx, cfg.Export.BucketURL, cfg.Export.Prefix, logger)
	if err != nil {
		return err
	}
	defer exp.Close()

	for _, program := range selectPrograms(a.pipeline, program) {
		res, err := a.pipeline.Run(ctx, a.pipeline.Current(program))
		if err != nil {
			return fmt.Errorf("run program %s: %w", program, err)
		}
		if _, err := exp.Export(ctx, res); err != nil {
			return fmt.Errorf("export program %s: %w", program, err)
		}
	}
	return nil
}

// syncPrograms recomputes each program from the indexer and replaces its
// rows in postgres, so later runs can read from DATA_SOURCE=postgres.
func syncPrograms(ctx context.Context, cfg *config.Config, a *app, program string, logger *slog.Logger) error {
	if a.db == nil {
		return &model.ConfigurationError{Field: "DB_URL", Err: errors.New("sync requires a database")}
	}
	if cfg.Source.Kind != config.SourceIndexer {
		return &model.ConfigurationError{Field: "DATA_SOURCE", Err: fmt.Errorf("sync reads from %s, got %s", config.SourceIndexer, cfg.Source.Kind)}
	}
	if err := a.db.RunMigrations(ctx, cfg.DB.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	writer := postgres.NewSnapshotWriter(a.db)
	for _, program := range selectPrograms(a.pipeline, program) {
		res, err := a.pipeline.Compute(ctx, a.pipeline.Current(program))
		if err != nil {
			return fmt.Errorf("run program %s: %w", program, err)
		}
		snap := snapshotFrom(res, a.tokens.All())
		if err := writer.WriteSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("write snapshot for %s: %w", program, err)
		}
		logger.Info("program synced",
			"program", program,
			"run_id", res.RunID,
			"rounds", len(snap.Rounds),
			"count", len(snap.Donations),
		)
	}
	return nil
}

// snapshotFrom collects the rows a run resolved. Block timestamps are taken
// from donations that carry one, one row per (chain, block).
func snapshotFrom(res *pipeline.Result, tokens []model.Token) store.Snapshot {
	type blockKey struct {
		chain model.ChainID
		block int64
	}
	seen := make(map[blockKey]struct{})
	var blocks []model.BlockTimestamp
	for _, d := range res.Donations {
		if d.BlockTimestamp == nil {
			continue
		}
		k := blockKey{d.ChainID, d.BlockNumber}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		blocks = append(blocks, model.BlockTimestamp{ChainID: d.ChainID, BlockNumber: d.BlockNumber, Timestamp: d.BlockTimestamp.UTC()})
	}
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].ChainID != blocks[j].ChainID {
			return blocks[i].ChainID < blocks[j].ChainID
		}
		return blocks[i].BlockNumber < blocks[j].BlockNumber
	})

	return store.Snapshot{
		Rounds:       res.Rounds,
		Donations:    res.Donations,
		Applications: res.Applications,
		Tokens:       tokens,
		BlockTimes:   blocks,
		Identities:   res.Identities,
	}
}
