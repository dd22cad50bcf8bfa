package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/ratelimit"
)

type RoundRepo struct {
	db *DB
}

func NewRoundRepo(db *DB) *RoundRepo {
	return &RoundRepo{db: db}
}

// Rounds implements catalog.RoundSource.
func (r *RoundRepo) Rounds(ctx context.Context, chain model.ChainID) (out []model.Round, err error) {
	started := time.Now()
	defer func() { ratelimit.RecordCall(sourceName, string(model.FetchRounds), started, err) }()

	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT round_id, chain_id, round_name, program, round_type, round_number,
		       donations_start_time, donations_end_time, match_amount_usd, amount_usd, unique_contributors
		FROM rounds
		WHERE chain_id = $1
		ORDER BY round_id
	`, chain)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			round      model.Round
			start, end sql.NullTime
		)
		if err := rows.Scan(
			&round.RoundID, &round.ChainID, &round.RoundName, &round.Program, &round.RoundType, &round.RoundNumber,
			&start, &end, &round.MatchAmountUSD, &round.AmountUSD, &round.UniqueContributors,
		); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		round.DonationsStartTime = nullTime(start)
		round.DonationsEndTime = nullTime(end)
		out = append(out, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	return out, nil
}

// UpsertTx writes rounds, replacing existing metadata.
func (r *RoundRepo) UpsertTx(ctx context.Context, tx *sql.Tx, rounds []model.Round) error {
	err := bulkInsert(ctx, tx, `
		INSERT INTO rounds (round_id, chain_id, round_name, program, round_type, round_number,
		                    donations_start_time, donations_end_time, match_amount_usd, amount_usd, unique_contributors)`, `
		ON CONFLICT (chain_id, round_id) DO UPDATE SET
			round_name = EXCLUDED.round_name,
			program = EXCLUDED.program,
			round_type = EXCLUDED.round_type,
			round_number = EXCLUDED.round_number,
			donations_start_time = EXCLUDED.donations_start_time,
			donations_end_time = EXCLUDED.donations_end_time,
			match_amount_usd = EXCLUDED.match_amount_usd,
			amount_usd = EXCLUDED.amount_usd,
			unique_contributors = EXCLUDED.unique_contributors,
			updated_at = now()`,
		11, len(rounds), func(i int, args []any) []any {
			rd := rounds[i]
			return append(args, rd.RoundID, rd.ChainID, rd.RoundName, rd.Program, rd.RoundType, rd.RoundNumber,
				rd.DonationsStartTime, rd.DonationsEndTime, rd.MatchAmountUSD, rd.AmountUSD, rd.UniqueContributors)
		})
	if err != nil {
		return fmt.Errorf("upsert rounds: %w", err)
	}
	return nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}
