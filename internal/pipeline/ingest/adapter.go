package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/metrics"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline/identity"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline/retry"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

// Batch is the merged result of one fetch. It is only returned whole.
type Batch struct {
	Donations    []model.Donation
	Applications []model.Application
}

// Adapter fetches every pair of a round set from one source. Any pair that
// still fails after retries aborts the whole batch with a FetchError.
type Adapter struct {
	source      DonationSource
	sourceName  string
	policy      retry.Policy
	concurrency int
	logger      *slog.Logger
}

type Option func(*Adapter)

func WithRetryPolicy(p retry.Policy) Option {
	return func(a *Adapter) { a.policy = p }
}

func WithConcurrency(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func NewAdapter(logger *slog.Logger, sourceName string, source DonationSource, opts ...Option) *Adapter {
	a := &Adapter{
		source:      source,
		sourceName:  sourceName,
		policy:      retry.DefaultPolicy(),
		concurrency: defaultConcurrency,
		logger:      logger.With("component", "ingest", "source", sourceName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) SourceName() string {
	return a.sourceName
}

type pairResult struct {
	donations    []model.Donation
	applications []model.Application
}

// Fetch returns donations and applications for rounds, each tagged with the
// round's id, chain and name. Applications missing a title or recipient are
// dropped and counted as skipped_application.
func (a *Adapter) Fetch(ctx context.Context, rounds []model.Round, dq *model.DataQuality) (*Batch, error) {
	started := time.Now()
	results := make([]pairResult, len(rounds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, round := range rounds {
		g.Go(func() error {
			res, err := a.fetchPair(gctx, round)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.logger.Error("fetch failed", "count", len(rounds), "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := &Batch{}
	var skipped int64
	for i, round := range rounds {
		for _, d := range results[i].donations {
			batch.Donations = append(batch.Donations, normalizeDonation(d, round))
		}
		for _, app := range results[i].applications {
			app = normalizeApplication(app, round)
			if app.Title == "" || app.GrantAddress == "" {
				skipped++
				continue
			}
			batch.Applications = append(batch.Applications, app)
		}
	}
	dq.Add(model.IssueSkippedApplication, skipped)

	a.logger.Info("fetch complete",
		"count", len(rounds),
		"donations", len(batch.Donations),
		"applications", len(batch.Applications),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return batch, nil
}

func (a *Adapter) fetchPair(ctx context.Context, round model.Round) (pairResult, error) {
	key := round.Key()
	var res pairResult

	err := a.withRetry(ctx, model.FetchDonations, func(ctx context.Context) error {
		var err error
		res.donations, err = a.source.Donations(ctx, key)
		return err
	})
	if err != nil {
		return res, &model.FetchError{Source: a.sourceName, Kind: model.FetchDonations, RoundID: key.RoundID, ChainID: key.ChainID, Err: err}
	}

	err = a.withRetry(ctx, model.FetchApplications, func(ctx context.Context) error {
		var err error
		res.applications, err = a.source.Applications(ctx, key)
		return err
	})
	if err != nil {
		return res, &model.FetchError{Source: a.sourceName, Kind: model.FetchApplications, RoundID: key.RoundID, ChainID: key.ChainID, Err: err}
	}
	return res, nil
}

func (a *Adapter) withRetry(ctx context.Context, kind model.FetchKind, fn func(ctx context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, a.policy, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.FetchRetriesTotal.WithLabelValues(a.sourceName, string(kind)).Inc()
		}
		return fn(ctx)
	})
}

func normalizeDonation(d model.Donation, round model.Round) model.Donation {
	d.RoundID = round.RoundID
	d.ChainID = round.ChainID
	d.RoundName = round.RoundName
	d.DonorAddress = identity.CanonicalAddress(d.DonorAddress)
	d.GrantAddress = identity.CanonicalAddress(d.GrantAddress)
	d.TokenAddress = identity.CanonicalAddress(d.TokenAddress)
	d.TransactionHash = identity.CanonicalHash(d.TransactionHash)
	if amount, err := identity.CanonicalAmount(d.RawAmount); err == nil {
		d.RawAmount = amount
	}
	if d.BlockTimestamp != nil {
		ts := d.BlockTimestamp.UTC()
		d.BlockTimestamp = &ts
	}
	return d
}

func normalizeApplication(app model.Application, round model.Round) model.Application {
	app.RoundID = round.RoundID
	app.ChainID = round.ChainID
	app.RoundName = round.RoundName
	app.GrantAddress = identity.CanonicalAddress(app.GrantAddress)
	app.Status = model.ProjectStatus(strings.ToUpper(string(app.Status)))
	app.Title = strings.TrimSpace(app.Title)
	return app
}
