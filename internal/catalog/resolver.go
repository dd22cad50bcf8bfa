package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline/retry"
)

// RoundSource returns round metadata published by the primary data source
// for one chain.
type RoundSource interface {
	Rounds(ctx context.Context, chain model.ChainID) ([]model.Round, error)
}

// Resolver turns a program name into its (round_id, chain_id) pairs merged
// with source metadata.
type Resolver struct {
	catalog    *Catalog
	source     RoundSource
	sourceName string
	policy     retry.Policy
	logger     *slog.Logger
}

type Option func(*Resolver)

func WithRetryPolicy(p retry.Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// NewResolver builds a resolver. source may be nil, in which case catalog
// metadata is used as is.
func NewResolver(logger *slog.Logger, catalog *Catalog, sourceName string, source RoundSource, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:    catalog,
		source:     source,
		sourceName: sourceName,
		policy:     retry.DefaultPolicy(),
		logger:     logger.With("component", "catalog_resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolution is the resolved round set of one program.
type Resolution struct {
	Program string
	Entries []model.CatalogEntry
	Rounds  []model.Round
}

// Keys returns the (round_id, chain_id) pairs in resolution order.
func (r *Resolution) Keys() []model.RoundKey {
	keys := make([]model.RoundKey, len(r.Rounds))
	for i, round := range r.Rounds {
		keys[i] = round.Key()
	}
	return keys
}

// Programs lists the catalog's programs.
func (r *Resolver) Programs() []string {
	return r.catalog.Programs()
}

// Resolve fails with a ConfigurationError wrapping model.ErrNotFound when
// the program has no catalog rows. The returned rounds are sorted by round
// type then round name, so identical inputs give identical order.
func (r *Resolver) Resolve(ctx context.Context, program string) (*Resolution, error) {
	entries := r.catalog.Program(program)
	if len(entries) == 0 {
		return nil, &model.ConfigurationError{
			Field: "program",
			Err:   fmt.Errorf("program %q: %w", program, model.ErrNotFound),
		}
	}

	meta, err := r.sourceMetadata(ctx, entries)
	if err != nil {
		return nil, err
	}

	rounds := make([]model.Round, 0, len(entries))
	seen := make(map[model.RoundKey]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Key()]; dup {
			r.logger.Warn("duplicate catalog row", "program", program, "round_id", e.RoundID, "chain_id", e.ChainID)
			continue
		}
		seen[e.Key()] = struct{}{}
		rounds = append(rounds, merge(e, meta[e.Key()]))
	}
	sortRounds(rounds)

	r.logger.Debug("program resolved", "program", program, "count", len(rounds))
	return &Resolution{Program: program, Entries: entries, Rounds: rounds}, nil
}

func (r *Resolver) sourceMetadata(ctx context.Context, entries []model.CatalogEntry) (map[model.RoundKey]model.Round, error) {
	meta := make(map[model.RoundKey]model.Round)
	if r.source == nil {
		return meta, nil
	}
	fetched := make(map[model.ChainID]bool)
	for _, e := range entries {
		if fetched[e.ChainID] {
			continue
		}
		fetched[e.ChainID] = true
		var rounds []model.Round
		err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
			var err error
			rounds, err = r.source.Rounds(ctx, e.ChainID)
			return err
		})
		if err != nil {
			return nil, &model.FetchError{Source: r.sourceName, Kind: model.FetchRounds, ChainID: e.ChainID, Err: err}
		}
		for _, round := range rounds {
			round.RoundID = strings.ToLower(round.RoundID)
			round.ChainID = e.ChainID
			meta[round.Key()] = round
		}
	}
	return meta, nil
}

// merge overlays source metadata on a catalog entry. The catalog decides
// the program, type and name; the source wins for amounts and times.
func merge(e model.CatalogEntry, src model.Round) model.Round {
	round := model.Round{
		RoundID:            e.RoundID,
		ChainID:            e.ChainID,
		RoundName:          e.RoundName,
		Program:            e.Program,
		RoundType:          e.RoundType,
		RoundNumber:        e.RoundNumber,
		DonationsStartTime: e.DonationsStartTime,
		DonationsEndTime:   e.DonationsEndTime,
		MatchAmountUSD:     e.MatchAmountUSD,
		AmountUSD:          e.AmountUSD,
		UniqueContributors: e.UniqueContributors,
	}
	if round.DonationsStartTime == nil {
		round.DonationsStartTime = e.StartingTime
	}
	if round.RoundName == "" {
		round.RoundName = src.RoundName
	}
	if src.DonationsStartTime != nil {
		round.DonationsStartTime = src.DonationsStartTime
	}
	if src.DonationsEndTime != nil {
		round.DonationsEndTime = src.DonationsEndTime
	}
	if !src.MatchAmountUSD.IsZero() {
		round.MatchAmountUSD = src.MatchAmountUSD
	}
	if !src.AmountUSD.IsZero() {
		round.AmountUSD = src.AmountUSD
	}
	if src.UniqueContributors > 0 {
		round.UniqueContributors = src.UniqueContributors
	}
	return round
}
