package ingest

import (
	"context"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

//go:generate mockgen -source=source.go -destination=mocks/mock_source.go -package=mocks

// DonationSource fetches the raw records of one (round_id, chain_id) pair.
// The indexer HTTP client and the Postgres store both implement it.
type DonationSource interface {
	Donations(ctx context.Context, round model.RoundKey) ([]model.Donation, error)
	Applications(ctx context.Context, round model.RoundKey) ([]model.Application, error)
}
