package model

import "time"

// BlockCalibration anchors block numbers to wall-clock time for one chain.
type BlockCalibration struct {
	ChainID  ChainID   `db:"chain_id" json:"chain_id"`
	MinBlock int64     `db:"min_block" json:"min_block"`
	MinTime  time.Time `db:"min_time" json:"min_time"`
	MaxBlock int64     `db:"max_block" json:"max_block"`
	MaxTime  time.Time `db:"max_time" json:"max_time"`
}

// Degenerate reports whether the tuple spans a single block, leaving the
// average block time undefined.
func (c BlockCalibration) Degenerate() bool {
	return c.MaxBlock <= c.MinBlock
}

// SecondsPerBlock is (max_time-min_time)/(max_block-min_block).
func (c BlockCalibration) SecondsPerBlock() float64 {
	if c.Degenerate() {
		return 0
	}
	return c.MaxTime.Sub(c.MinTime).Seconds() / float64(c.MaxBlock-c.MinBlock)
}

// BlockTimestamp is a stored block timestamp.
type BlockTimestamp struct {
	ChainID     ChainID   `db:"chain_id"`
	BlockNumber int64     `db:"block_number"`
	Timestamp   time.Time `db:"block_time"`
}
