package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/ratelimit"
)

// BlockTimeRepo stores true block timestamps per chain.
type BlockTimeRepo struct {
	db *DB
}

func NewBlockTimeRepo(db *DB) *BlockTimeRepo {
	return &BlockTimeRepo{db: db}
}

// BlockTimestamps implements blocktime.Source. Blocks without a stored row
// are absent from the result.
func (r *BlockTimeRepo) BlockTimestamps(ctx context.Context, chain model.ChainID, blocks []int64) (out map[int64]time.Time, err error) {
	started := time.Now()
	defer func() { ratelimit.RecordCall(sourceName, string(model.FetchBlockTimes), started, err) }()

	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT block_number, block_time
		FROM block_timestamps
		WHERE chain_id = $1 AND block_number = ANY($2)
	`, chain, pq.Array(blocks))
	if err != nil {
		return nil, fmt.Errorf("query block timestamps: %w", err)
	}
	defer rows.Close()

	out = make(map[int64]time.Time, len(blocks))
	for rows.Next() {
		var (
			block int64
			ts    time.Time
		)
		if err := rows.Scan(&block, &ts); err != nil {
			return nil, fmt.Errorf("scan block timestamp: %w", err)
		}
		out[block] = ts.UTC()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate block timestamps: %w", err)
	}
	return out, nil
}

// Calibration implements blocktime.CalibrationSource using the lowest and
// highest stored blocks of the chain. It returns model.ErrNotFound when the
// chain has no stored blocks.
func (r *BlockTimeRepo) Calibration(ctx context.Context, chain model.ChainID, _, _ int64) (model.BlockCalibration, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	cal := model.BlockCalibration{ChainID: chain}
	err := r.db.QueryRowContext(ctx, `
		SELECT lo.block_number, lo.block_time, hi.block_number, hi.block_time
		FROM (SELECT block_number, block_time FROM block_timestamps WHERE chain_id = $1 ORDER BY block_number ASC LIMIT 1) lo,
		     (SELECT block_number, block_time FROM block_timestamps WHERE chain_id = $1 ORDER BY block_number DESC LIMIT 1) hi
	`, chain).Scan(&cal.MinBlock, &cal.MinTime, &cal.MaxBlock, &cal.MaxTime)
	if errors.Is(err, sql.ErrNoRows) {
		return cal, fmt.Errorf("calibration for chain %s: %w", chain, model.ErrNotFound)
	}
	if err != nil {
		return cal, fmt.Errorf("query calibration: %w", err)
	}
	cal.MinTime = cal.MinTime.UTC()
	cal.MaxTime = cal.MaxTime.UTC()
	return cal, nil
}

func (r *BlockTimeRepo) UpsertTx(ctx context.Context, tx *sql.Tx, rows []model.BlockTimestamp) error {
	err := bulkInsert(ctx, tx, `INSERT INTO block_timestamps (chain_id, block_number, block_time)`,
		`ON CONFLICT (chain_id, block_number) DO UPDATE SET block_time = EXCLUDED.block_time`,
		3, len(rows), func(i int, args []any) []any {
			return append(args, rows[i].ChainID, rows[i].BlockNumber, rows[i].Timestamp.UTC())
		})
	if err != nil {
		return fmt.Errorf("upsert block timestamps: %w", err)
	}
	return nil
}
