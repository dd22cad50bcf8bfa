package blocktime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

// Interpolator estimates timestamps from a per-chain calibration tuple:
// min_time + seconds_per_block * (block - min_block). Chains whose tuple is
// degenerate or unavailable are flagged and handed to the fallback lookup
// when one is configured.
type Interpolator struct {
	calibrations CalibrationSource
	fallback     *DirectLookup
	logger       *slog.Logger
}

func NewInterpolator(logger *slog.Logger, calibrations CalibrationSource, fallback *DirectLookup) *Interpolator {
	return &Interpolator{
		calibrations: calibrations,
		fallback:     fallback,
		logger:       logger.With("component", "block_interpolator"),
	}
}

func (i *Interpolator) Name() string { return "interpolation" }

func (i *Interpolator) Resolve(ctx context.Context, donations []model.Donation, dq *model.DataQuality) ([]model.Donation, error) {
	out := prepare(donations)
	if err := i.fill(ctx, out, dq); err != nil {
		return nil, err
	}
	countMissing(out, dq)
	return out, nil
}

func (i *Interpolator) fill(ctx context.Context, out []model.Donation, dq *model.DataQuality) error {
	ranges := unresolved(out)
	tables := make(map[model.ChainID][]model.BlockTimestamp, len(ranges))
	var uninterpolable []model.ChainID

	for _, chain := range sortedChains(ranges) {
		r := ranges[chain]
		cal, err := i.calibrations.Calibration(ctx, chain, r.min, r.max)
		switch {
		case errors.Is(err, model.ErrNotFound):
			uninterpolable = append(uninterpolable, chain)
			dq.Note(model.QualityNote{Issue: model.IssueUninterpolableChain, ChainID: chain, Detail: "no calibration"})
			continue
		case err != nil:
			return &model.FetchError{Source: "calibration", Kind: model.FetchBlockTimes, ChainID: chain, Err: err}
		case cal.Degenerate():
			uninterpolable = append(uninterpolable, chain)
			dq.Note(model.QualityNote{
				Issue:   model.IssueUninterpolableChain,
				ChainID: chain,
				Detail:  fmt.Sprintf("single block %d", cal.MinBlock),
			})
			continue
		}
		if rows := Table(cal, r.min, r.max); len(rows) > 0 {
			tables[chain] = rows
		}
	}

	for idx := range out {
		if out[idx].BlockTimestamp != nil {
			continue
		}
		rows, ok := tables[out[idx].ChainID]
		if !ok {
			continue
		}
		// rows is dense from rows[0].BlockNumber
		k := out[idx].BlockNumber - rows[0].BlockNumber
		if k < 0 || k >= int64(len(rows)) {
			continue
		}
		ts := rows[k].Timestamp
		out[idx].BlockTimestamp = &ts
	}

	if len(uninterpolable) == 0 {
		return nil
	}
	if i.fallback == nil {
		i.logger.Warn("chains cannot be interpolated and no direct lookup is configured",
			"chains", uninterpolable,
		)
		return nil
	}
	return i.fallback.fill(ctx, out, dq)
}

// Interpolate maps block to a UTC timestamp using cal. It reports false for
// a degenerate tuple or a block outside [MinBlock, MaxBlock].
func Interpolate(cal model.BlockCalibration, block int64) (time.Time, bool) {
	if cal.Degenerate() || block < cal.MinBlock || block > cal.MaxBlock {
		return time.Time{}, false
	}
	span := int64(cal.MaxTime.Sub(cal.MinTime))
	blocks := cal.MaxBlock - cal.MinBlock
	k := block - cal.MinBlock
	// split to keep span*k inside int64
	offset := (span/blocks)*k + (span%blocks)*k/blocks
	return cal.MinTime.Add(time.Duration(offset)).UTC(), true
}

// Table materialises the dense per-block timestamp table for cal over the
// blocks of [from, to] that the tuple covers, in ascending block order.
func Table(cal model.BlockCalibration, from, to int64) []model.BlockTimestamp {
	if cal.Degenerate() {
		return nil
	}
	from = max(from, cal.MinBlock)
	to = min(to, cal.MaxBlock)
	if from > to {
		return nil
	}
	out := make([]model.BlockTimestamp, 0, to-from+1)
	for b := from; b <= to; b++ {
		ts, _ := Interpolate(cal, b)
		out = append(out, model.BlockTimestamp{ChainID: cal.ChainID, BlockNumber: b, Timestamp: ts})
	}
	return out
}
