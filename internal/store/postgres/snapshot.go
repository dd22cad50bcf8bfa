package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/store"
)

// SnapshotWriter persists a fetched snapshot so later runs can read it back
// through the postgres source.
type SnapshotWriter struct {
	db         *DB
	rounds     *RoundRepo
	donations  *DonationRepo
	tokens     *TokenRepo
	blockTimes *BlockTimeRepo
	identities *IdentityRepo
}

func NewSnapshotWriter(db *DB) *SnapshotWriter {
	return &SnapshotWriter{
		db:         db,
		rounds:     NewRoundRepo(db),
		donations:  NewDonationRepo(db),
		tokens:     NewTokenRepo(db),
		blockTimes: NewBlockTimeRepo(db),
		identities: NewIdentityRepo(db),
	}
}

var _ store.SnapshotWriter = (*SnapshotWriter)(nil)

// WriteSnapshot replaces the rows of every round in snap in one transaction.
func (w *SnapshotWriter) WriteSnapshot(ctx context.Context, snap store.Snapshot) error {
	ctx, cancel := withTimeout(ctx, LongQueryTimeout)
	defer cancel()

	donationsByRound := make(map[model.RoundKey][]model.Donation)
	for _, d := range snap.Donations {
		donationsByRound[d.Round()] = append(donationsByRound[d.Round()], d)
	}
	appsByRound := make(map[model.RoundKey][]model.Application)
	for _, a := range snap.Applications {
		key := model.RoundKey{RoundID: a.RoundID, ChainID: a.ChainID}
		appsByRound[key] = append(appsByRound[key], a)
	}

	return w.db.inTx(ctx, func(tx *sql.Tx) error {
		if err := w.rounds.UpsertTx(ctx, tx, snap.Rounds); err != nil {
			return err
		}
		for _, round := range snap.Rounds {
			key := round.Key()
			if err := w.donations.ReplaceRoundTx(ctx, tx, key, donationsByRound[key], appsByRound[key]); err != nil {
				return err
			}
		}
		if err := w.tokens.UpsertTx(ctx, tx, snap.Tokens); err != nil {
			return err
		}
		if err := w.blockTimes.UpsertTx(ctx, tx, snap.BlockTimes); err != nil {
			return err
		}
		if err := w.identities.UpsertTx(ctx, tx, snap.Identities); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		return nil
	})
}

var (
	_ store.RoundRepository     = (*RoundRepo)(nil)
	_ store.DonationRepository  = (*DonationRepo)(nil)
	_ store.TokenRepository     = (*TokenRepo)(nil)
	_ store.BlockTimeRepository = (*BlockTimeRepo)(nil)
	_ store.IdentityRepository  = (*IdentityRepo)(nil)
)
