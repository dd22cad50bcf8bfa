package blocktime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

// StaticCalibrations serves pre-computed calibration tuples.
type StaticCalibrations map[model.ChainID]model.BlockCalibration

func (s StaticCalibrations) Calibration(_ context.Context, chain model.ChainID, _, _ int64) (model.BlockCalibration, error) {
	cal, ok := s[chain]
	if !ok {
		return model.BlockCalibration{}, fmt.Errorf("calibration for chain %s: %w", chain, model.ErrNotFound)
	}
	return cal, nil
}

// FixedRateCalibration anchors the lowest observed block of every chain to
// the program start and advances at a fixed block time per chain. A zero
// Start falls back to the start carried by the context.
type FixedRateCalibration struct {
	Start      time.Time
	BlockTimes map[model.ChainID]time.Duration
}

func (f FixedRateCalibration) Calibration(ctx context.Context, chain model.ChainID, minBlock, maxBlock int64) (model.BlockCalibration, error) {
	start := f.Start
	if start.IsZero() {
		start = programStartFrom(ctx)
	}
	if start.IsZero() {
		return model.BlockCalibration{}, fmt.Errorf("program start for chain %s: %w", chain, model.ErrNotFound)
	}
	blockTime, ok := f.BlockTimes[chain]
	if !ok || blockTime <= 0 {
		blockTime = chain.DefaultBlockTime()
	}
	return model.BlockCalibration{
		ChainID:  chain,
		MinBlock: minBlock,
		MinTime:  start.UTC(),
		MaxBlock: maxBlock,
		MaxTime:  start.UTC().Add(blockTime * time.Duration(maxBlock-minBlock)),
	}, nil
}

// ProgramStart returns the earliest start time across the catalog entries,
// or the zero time when none is set.
func ProgramStart(entries []model.CatalogEntry) time.Time {
	var start time.Time
	for _, e := range entries {
		ts := e.StartingTime
		if ts == nil {
			ts = e.DonationsStartTime
		}
		if ts == nil {
			continue
		}
		if start.IsZero() || ts.Before(start) {
			start = *ts
		}
	}
	return start
}

type programStartKey struct{}

// WithProgramStart attaches the start of the program being resolved.
func WithProgramStart(ctx context.Context, start time.Time) context.Context {
	return context.WithValue(ctx, programStartKey{}, start)
}

func programStartFrom(ctx context.Context) time.Time {
	t, _ := ctx.Value(programStartKey{}).(time.Time)
	return t
}

// Calibrations tries each source in order and returns the first tuple
// found. Only ErrNotFound moves on to the next source.
type Calibrations []CalibrationSource

func (c Calibrations) Calibration(ctx context.Context, chain model.ChainID, minBlock, maxBlock int64) (model.BlockCalibration, error) {
	for _, src := range c {
		cal, err := src.Calibration(ctx, chain, minBlock, maxBlock)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		return cal, err
	}
	return model.BlockCalibration{}, fmt.Errorf("calibration for chain %s: %w", chain, model.ErrNotFound)
}
