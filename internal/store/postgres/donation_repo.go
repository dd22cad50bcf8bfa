package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/ratelimit"
)

// DonationRepo stores per-round donation and application snapshots.
type DonationRepo struct {
	db *DB
}

func NewDonationRepo(db *DB) *DonationRepo {
	return &DonationRepo{db: db}
}

// Donations implements ingest.DonationSource.
func (r *DonationRepo) Donations(ctx context.Context, key model.RoundKey) (out []model.Donation, err error) {
	started := time.Now()
	defer func() { ratelimit.RecordCall(sourceName, string(model.FetchDonations), started, err) }()

	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tx_hash, donor_address, project_id, application_id, grant_address,
		       token_address, raw_amount::text, amount_usd, block_number
		FROM donations
		WHERE chain_id = $1 AND round_id = $2
		ORDER BY block_number, id
	`, key.ChainID, key.RoundID)
	if err != nil {
		return nil, fmt.Errorf("query donations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		d := model.Donation{RoundID: key.RoundID, ChainID: key.ChainID}
		if err := rows.Scan(
			&d.ID, &d.TransactionHash, &d.DonorAddress, &d.ProjectID, &d.ApplicationID, &d.GrantAddress,
			&d.TokenAddress, &d.RawAmount, &d.AmountUSD, &d.BlockNumber,
		); err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donations: %w", err)
	}
	return out, nil
}

// Applications implements ingest.DonationSource.
func (r *DonationRepo) Applications(ctx context.Context, key model.RoundKey) (out []model.Application, err error) {
	started := time.Now()
	defer func() { ratelimit.RecordCall(sourceName, string(model.FetchApplications), started, err) }()

	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT project_id, application_id, title, description, grant_address, status,
		       amount_usd, donation_count, unique_donor_count
		FROM applications
		WHERE chain_id = $1 AND round_id = $2
		ORDER BY project_id
	`, key.ChainID, key.RoundID)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a := model.Application{RoundID: key.RoundID, ChainID: key.ChainID}
		if err := rows.Scan(
			&a.ProjectID, &a.ApplicationID, &a.Title, &a.Description, &a.GrantAddress, &a.Status,
			&a.AmountUSD, &a.DonationCount, &a.UniqueDonorCount,
		); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

// ReplaceRoundTx swaps the stored snapshot of one round for the given rows.
func (r *DonationRepo) ReplaceRoundTx(ctx context.Context, tx *sql.Tx, key model.RoundKey, donations []model.Donation, apps []model.Application) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM donations WHERE chain_id = $1 AND round_id = $2`, key.ChainID, key.RoundID); err != nil {
		return fmt.Errorf("clear donations %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM applications WHERE chain_id = $1 AND round_id = $2`, key.ChainID, key.RoundID); err != nil {
		return fmt.Errorf("clear applications %s: %w", key, err)
	}

	err := bulkInsert(ctx, tx, `
		INSERT INTO donations (id, round_id, chain_id, tx_hash, donor_address, project_id, application_id,
		                       grant_address, token_address, raw_amount, amount_usd, block_number)`,
		`ON CONFLICT (chain_id, round_id, id) DO NOTHING`,
		12, len(donations), func(i int, args []any) []any {
			d := donations[i]
			raw := d.RawAmount
			if raw == "" {
				raw = "0"
			}
			return append(args, d.ID, key.RoundID, key.ChainID, d.TransactionHash, d.DonorAddress, d.ProjectID,
				d.ApplicationID, d.GrantAddress, d.TokenAddress, raw, d.AmountUSD, d.BlockNumber)
		})
	if err != nil {
		return fmt.Errorf("insert donations %s: %w", key, err)
	}

	err = bulkInsert(ctx, tx, `
		INSERT INTO applications (round_id, chain_id, project_id, application_id, title, description,
		                          grant_address, status, amount_usd, donation_count, unique_donor_count)`,
		`ON CONFLICT (chain_id, round_id, project_id) DO NOTHING`,
		11, len(apps), func(i int, args []any) []any {
			a := apps[i]
			return append(args, key.RoundID, key.ChainID, a.ProjectID, a.ApplicationID, a.Title, a.Description,
				a.GrantAddress, a.Status, a.AmountUSD, a.DonationCount, a.UniqueDonorCount)
		})
	if err != nil {
		return fmt.Errorf("insert applications %s: %w", key, err)
	}
	return nil
}
