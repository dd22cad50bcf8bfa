package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/ratelimit"
)

type TokenRepo struct {
	db *DB
}

func NewTokenRepo(db *DB) *TokenRepo {
	return &TokenRepo{db: db}
}

// Tokens implements token.Registry. Rows with an empty chain_id apply to
// every chain.
func (r *TokenRepo) Tokens(ctx context.Context, chain model.ChainID) (out []model.Token, err error) {
	started := time.Now()
	defer func() { ratelimit.RecordCall(sourceName, string(model.FetchTokens), started, err) }()

	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT chain_id, token_address, token_code, decimals, price_usd
		FROM tokens
		WHERE chain_id = $1 OR chain_id = ''
		ORDER BY chain_id DESC, token_address
	`, chain)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t model.Token
		if err := rows.Scan(&t.ChainID, &t.Address, &t.Code, &t.Decimals, &t.PriceUSD); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return out, nil
}

func (r *TokenRepo) UpsertTx(ctx context.Context, tx *sql.Tx, tokens []model.Token) error {
	err := bulkInsert(ctx, tx, `INSERT INTO tokens (chain_id, token_address, token_code, decimals, price_usd)`, `
		ON CONFLICT (chain_id, token_address) DO UPDATE SET
			token_code = EXCLUDED.token_code,
			decimals = EXCLUDED.decimals,
			price_usd = EXCLUDED.price_usd,
			updated_at = now()`,
		5, len(tokens), func(i int, args []any) []any {
			t := tokens[i]
			return append(args, t.ChainID, t.Key(), t.Code, t.Decimals, t.PriceUSD)
		})
	if err != nil {
		return fmt.Errorf("upsert tokens: %w", err)
	}
	return nil
}
