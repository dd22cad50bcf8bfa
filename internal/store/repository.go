package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

// TxBeginner abstracts the ability to begin a database transaction.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// RoundRepository reads round metadata per chain.
type RoundRepository interface {
	Rounds(ctx context.Context, chain model.ChainID) ([]model.Round, error)
}

// DonationRepository reads the donations and applications of one round.
type DonationRepository interface {
	Donations(ctx context.Context, key model.RoundKey) ([]model.Donation, error)
	Applications(ctx context.Context, key model.RoundKey) ([]model.Application, error)
}

// TokenRepository reads the token table of a chain.
type TokenRepository interface {
	Tokens(ctx context.Context, chain model.ChainID) ([]model.Token, error)
}

// BlockTimeRepository serves true block timestamps and per-chain calibration.
type BlockTimeRepository interface {
	BlockTimestamps(ctx context.Context, chain model.ChainID, blocks []int64) (map[int64]time.Time, error)
	Calibration(ctx context.Context, chain model.ChainID, minBlock, maxBlock int64) (model.BlockCalibration, error)
}

// IdentityRepository resolves addresses to names and scores.
type IdentityRepository interface {
	Identities(ctx context.Context, addresses []string) (map[string]model.Identity, error)
}

// Snapshot is everything fetched for one program refresh.
type Snapshot struct {
	Rounds       []model.Round
	Donations    []model.Donation
	Applications []model.Application
	Tokens       []model.Token
	BlockTimes   []model.BlockTimestamp
	Identities   []model.Identity
}

// SnapshotWriter persists a snapshot atomically.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, snap Snapshot) error
}
