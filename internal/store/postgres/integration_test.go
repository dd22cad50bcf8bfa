//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/store"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/store/postgres"
)

func testSnapshot(roundID string) store.Snapshot {
	start := time.Date(2023, 8, 15, 12, 0, 0, 0, time.UTC)
	end := start.Add(14 * 24 * time.Hour)
	score := 21.5
	return store.Snapshot{
		Rounds: []model.Round{{
			RoundID:            roundID,
			ChainID:            model.ChainOptimism,
			RoundName:          "Climate",
			Program:            "GG18",
			RoundType:          model.RoundTypeProgram,
			RoundNumber:        18,
			DonationsStartTime: &start,
			DonationsEndTime:   &end,
			MatchAmountUSD:     decimal.NewFromInt(100000),
		}},
		Donations: []model.Donation{
			{ID: "d1", RoundID: roundID, ChainID: model.ChainOptimism, DonorAddress: "0xa", ProjectID: "p1",
				TokenAddress: model.NativeTokenAddress, RawAmount: "1000000000000000000",
				AmountUSD: decimal.NewNullDecimal(decimal.RequireFromString("1.5")), BlockNumber: 101},
			{ID: "d2", RoundID: roundID, ChainID: model.ChainOptimism, DonorAddress: "0xb", ProjectID: "p1",
				TokenAddress: model.NativeTokenAddress, RawAmount: "5", BlockNumber: 100},
		},
		Applications: []model.Application{
			{RoundID: roundID, ChainID: model.ChainOptimism, ProjectID: "p1", Title: "Trees", GrantAddress: "0xg",
				Status: model.ProjectStatusApproved, AmountUSD: decimal.RequireFromString("1.5"), DonationCount: 2},
		},
		Tokens: []model.Token{
			{ChainID: model.ChainOptimism, Address: "0xDAI", Code: "DAI", Decimals: 18},
			{Address: model.NativeTokenAddress, Code: "ETH", Decimals: 18},
		},
		BlockTimes: []model.BlockTimestamp{
			{ChainID: model.ChainOptimism, BlockNumber: 100, Timestamp: start},
			{ChainID: model.ChainOptimism, BlockNumber: 200, Timestamp: start.Add(200 * time.Second)},
		},
		Identities: []model.Identity{{Address: "0xa", Name: "alice.eth", Score: &score}},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	roundID := "0x" + uuid.NewString()[:8]

	require.NoError(t, postgres.NewSnapshotWriter(db).WriteSnapshot(ctx, testSnapshot(roundID)))
	key := model.RoundKey{RoundID: roundID, ChainID: model.ChainOptimism}

	t.Run("rounds", func(t *testing.T) {
		rounds, err := postgres.NewRoundRepo(db).Rounds(ctx, model.ChainOptimism)
		require.NoError(t, err)
		var found *model.Round
		for i := range rounds {
			if rounds[i].RoundID == roundID {
				found = &rounds[i]
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, "Climate", found.RoundName)
		assert.True(t, decimal.NewFromInt(100000).Equal(found.MatchAmountUSD))
		require.NotNil(t, found.DonationsStartTime)
		assert.Equal(t, time.UTC, found.DonationsStartTime.Location())
	})

	t.Run("donations ordered by block", func(t *testing.T) {
		donations, err := postgres.NewDonationRepo(db).Donations(ctx, key)
		require.NoError(t, err)
		require.Len(t, donations, 2)
		assert.Equal(t, "d2", donations[0].ID)
		assert.False(t, donations[0].AmountUSD.Valid)
		assert.Equal(t, "1000000000000000000", donations[1].RawAmount)
		assert.True(t, decimal.RequireFromString("1.5").Equal(donations[1].AmountUSD.Decimal))
	})

	t.Run("applications", func(t *testing.T) {
		apps, err := postgres.NewDonationRepo(db).Applications(ctx, key)
		require.NoError(t, err)
		require.Len(t, apps, 1)
		assert.Equal(t, model.ProjectStatusApproved, apps[0].Status)
		assert.Equal(t, int64(2), apps[0].DonationCount)
	})

	t.Run("tokens include wildcard rows", func(t *testing.T) {
		tokens, err := postgres.NewTokenRepo(db).Tokens(ctx, model.ChainOptimism)
		require.NoError(t, err)
		codes := map[string]bool{}
		for _, tok := range tokens {
			codes[tok.Code] = true
		}
		assert.True(t, codes["DAI"])
		assert.True(t, codes["ETH"])
	})

	t.Run("block timestamps", func(t *testing.T) {
		repo := postgres.NewBlockTimeRepo(db)
		got, err := repo.BlockTimestamps(ctx, model.ChainOptimism, []int64{100, 150})
		require.NoError(t, err)
		assert.Len(t, got, 1)
		assert.Equal(t, time.Date(2023, 8, 15, 12, 0, 0, 0, time.UTC), got[100])

		cal, err := repo.Calibration(ctx, model.ChainOptimism, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(100), cal.MinBlock)
		assert.Equal(t, int64(200), cal.MaxBlock)

		_, err = repo.Calibration(ctx, model.ChainID("999999"), 0, 0)
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("identities", func(t *testing.T) {
		ids, err := postgres.NewIdentityRepo(db).Identities(ctx, []string{"0xa", "0xmissing"})
		require.NoError(t, err)
		require.Len(t, ids, 1)
		assert.Equal(t, "alice.eth", ids["0xa"].Name)
		require.NotNil(t, ids["0xa"].Score)
		assert.InDelta(t, 21.5, *ids["0xa"].Score, 1e-9)
	})
}

func TestSnapshotReplacesRoundRows(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	roundID := "0x" + uuid.NewString()[:8]
	writer := postgres.NewSnapshotWriter(db)

	snap := testSnapshot(roundID)
	require.NoError(t, writer.WriteSnapshot(ctx, snap))

	snap.Donations = snap.Donations[:1]
	require.NoError(t, writer.WriteSnapshot(ctx, snap))

	donations, err := postgres.NewDonationRepo(db).Donations(ctx, model.RoundKey{RoundID: roundID, ChainID: model.ChainOptimism})
	require.NoError(t, err)
	require.Len(t, donations, 1)
	assert.Equal(t, "d1", donations[0].ID)
}
