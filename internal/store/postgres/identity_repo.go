package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/ratelimit"
)

// IdentityRepo is the local address book of resolved names and scores.
type IdentityRepo struct {
	db *DB
}

func NewIdentityRepo(db *DB) *IdentityRepo {
	return &IdentityRepo{db: db}
}

// Identities implements identity.Registry.
func (r *IdentityRepo) Identities(ctx context.Context, addresses []string) (out map[string]model.Identity, err error) {
	started := time.Now()
	defer func() { ratelimit.RecordCall(sourceName, string(model.FetchIdentities), started, err) }()

	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT address, name, score
		FROM identities
		WHERE address = ANY($1)
	`, pq.Array(addresses))
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	out = make(map[string]model.Identity)
	for rows.Next() {
		var (
			id    model.Identity
			score sql.NullFloat64
		)
		if err := rows.Scan(&id.Address, &id.Name, &score); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		if score.Valid {
			v := score.Float64
			id.Score = &v
		}
		out[id.Address] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

func (r *IdentityRepo) UpsertTx(ctx context.Context, tx *sql.Tx, ids []model.Identity) error {
	err := bulkInsert(ctx, tx, `INSERT INTO identities (address, name, score)`, `
		ON CONFLICT (address) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE identities.name END,
			score = COALESCE(EXCLUDED.score, identities.score),
			updated_at = now()`,
		3, len(ids), func(i int, args []any) []any {
			return append(args, ids[i].Address, ids[i].Name, ids[i].Score)
		})
	if err != nil {
		return fmt.Errorf("upsert identities: %w", err)
	}
	return nil
}
