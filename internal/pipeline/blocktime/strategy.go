package blocktime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

// Strategy fills BlockTimestamp on donations that lack one. Implementations
// return a new slice of the same length; rows whose block cannot be resolved
// keep a nil timestamp and are counted as missing_timestamp.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, donations []model.Donation, dq *model.DataQuality) ([]model.Donation, error)
}

// Source returns true block timestamps for a chain. A source that does not
// cover the chain returns an error wrapping model.ErrNotFound.
type Source interface {
	BlockTimestamps(ctx context.Context, chain model.ChainID, blocks []int64) (map[int64]time.Time, error)
}

// CalibrationSource returns the interpolation tuple for the observed block
// range of a chain, or an error wrapping model.ErrNotFound.
type CalibrationSource interface {
	Calibration(ctx context.Context, chain model.ChainID, minBlock, maxBlock int64) (model.BlockCalibration, error)
}

type blockRange struct {
	min, max int64
}

// unresolved returns the observed block range per chain over rows that still
// need a timestamp.
func unresolved(donations []model.Donation) map[model.ChainID]blockRange {
	ranges := make(map[model.ChainID]blockRange)
	for _, d := range donations {
		if d.BlockTimestamp != nil {
			continue
		}
		r, ok := ranges[d.ChainID]
		if !ok {
			ranges[d.ChainID] = blockRange{min: d.BlockNumber, max: d.BlockNumber}
			continue
		}
		if d.BlockNumber < r.min {
			r.min = d.BlockNumber
		}
		if d.BlockNumber > r.max {
			r.max = d.BlockNumber
		}
		ranges[d.ChainID] = r
	}
	return ranges
}

func sortedChains[V any](m map[model.ChainID]V) []model.ChainID {
	chains := make([]model.ChainID, 0, len(m))
	for c := range m {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}

// prepare copies donations and normalises existing timestamps to UTC.
func prepare(donations []model.Donation) []model.Donation {
	out := make([]model.Donation, len(donations))
	copy(out, donations)
	for i := range out {
		if out[i].BlockTimestamp != nil {
			ts := out[i].BlockTimestamp.UTC()
			out[i].BlockTimestamp = &ts
		}
	}
	return out
}

func countMissing(donations []model.Donation, dq *model.DataQuality) {
	var missing int64
	for _, d := range donations {
		if d.BlockTimestamp == nil {
			missing++
		}
	}
	dq.Add(model.IssueMissingTimestamp, missing)
}

// Sources asks each source in order, passing on only the blocks the earlier
// ones did not return. A source answering ErrNotFound is skipped; the chain
// is ErrNotFound only when no source serves it.
type Sources []Source

func (s Sources) BlockTimestamps(ctx context.Context, chain model.ChainID, blocks []int64) (map[int64]time.Time, error) {
	found := make(map[int64]time.Time, len(blocks))
	pending := blocks
	served := false
	for _, src := range s {
		if len(pending) == 0 {
			break
		}
		got, err := src.BlockTimestamps(ctx, chain, pending)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		served = true
		rest := pending[:0:0]
		for _, b := range pending {
			if ts, ok := got[b]; ok {
				found[b] = ts
				continue
			}
			rest = append(rest, b)
		}
		pending = rest
	}
	if !served && len(blocks) > 0 {
		return nil, fmt.Errorf("block timestamps for chain %s: %w", chain, model.ErrNotFound)
	}
	return found, nil
}
