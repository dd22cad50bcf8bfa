package blocktime

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline/retry"
	"golang.org/x/sync/errgroup"
)

// DirectLookup joins donations to true block timestamps fetched per chain.
// Chains are looked up concurrently and independently.
type DirectLookup struct {
	source      Source
	sourceName  string
	concurrency int
	policy      retry.Policy
	logger      *slog.Logger
}

func NewDirectLookup(logger *slog.Logger, sourceName string, source Source, concurrency int) *DirectLookup {
	if concurrency < 1 {
		concurrency = 4
	}
	return &DirectLookup{
		source:      source,
		sourceName:  sourceName,
		concurrency: concurrency,
		policy:      retry.DefaultPolicy(),
		logger:      logger.With("component", "block_lookup"),
	}
}

// WithRetryPolicy replaces the retry policy used for source calls.
func (l *DirectLookup) WithRetryPolicy(p retry.Policy) *DirectLookup {
	l.policy = p
	return l
}

func (l *DirectLookup) Name() string { return "direct" }

func (l *DirectLookup) Resolve(ctx context.Context, donations []model.Donation, dq *model.DataQuality) ([]model.Donation, error) {
	out := prepare(donations)
	if err := l.fill(ctx, out, dq); err != nil {
		return nil, err
	}
	countMissing(out, dq)
	return out, nil
}

func (l *DirectLookup) fill(ctx context.Context, out []model.Donation, dq *model.DataQuality) error {
	wanted := make(map[model.ChainID]map[int64]struct{})
	for _, d := range out {
		if d.BlockTimestamp != nil {
			continue
		}
		if wanted[d.ChainID] == nil {
			wanted[d.ChainID] = make(map[int64]struct{})
		}
		wanted[d.ChainID][d.BlockNumber] = struct{}{}
	}
	if len(wanted) == 0 {
		return nil
	}

	var mu sync.Mutex
	found := make(map[model.ChainID]map[int64]time.Time, len(wanted))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for _, chain := range sortedChains(wanted) {
		blocks := make([]int64, 0, len(wanted[chain]))
		for b := range wanted[chain] {
			blocks = append(blocks, b)
		}
		sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })

		g.Go(func() error {
			var ts map[int64]time.Time
			err := retry.Do(gctx, l.policy, func(ctx context.Context) error {
				var err error
				ts, err = l.source.BlockTimestamps(ctx, chain, blocks)
				return err
			})
			if errors.Is(err, model.ErrNotFound) {
				l.logger.Warn("no block timestamp source for chain", "chain_id", chain)
				dq.Note(model.QualityNote{Issue: model.IssueUninterpolableChain, ChainID: chain, Detail: "no direct source"})
				return nil
			}
			if err != nil {
				return &model.FetchError{Source: l.sourceName, Kind: model.FetchBlockTimes, ChainID: chain, Err: err}
			}
			mu.Lock()
			found[chain] = ts
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range out {
		if out[i].BlockTimestamp != nil {
			continue
		}
		if ts, ok := found[out[i].ChainID][out[i].BlockNumber]; ok {
			utc := ts.UTC()
			out[i].BlockTimestamp = &utc
		}
	}
	return nil
}
