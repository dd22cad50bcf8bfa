package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

func leaderboardDonations() []model.Donation {
	ds := []model.Donation{
		donation("0xa", "p1", "r1", "100", at(time.Hour)),
		donation("0xb", "p1", "r1", "5", at(0)),
		donation("0xb", "p2", "r1", "5", at(2*time.Hour)),
		donation("0xb", "p3", "r1", "5", nil),
		donation("0xc", "p2", "r1", "", at(0)),
	}
	for i := range ds {
		ds[i].GrantAddress = "0xgrant-" + ds[i].ProjectID
	}
	return ds
}

func TestDonorStats(t *testing.T) {
	stats := DonorStats(leaderboardDonations())
	require.Len(t, stats, 3)

	assert.Equal(t, "0xa", stats[0].Donor)
	assert.True(t, dec("100").Equal(stats[0].TotalUSD))

	b := stats[1]
	assert.Equal(t, "0xb", b.Donor)
	assert.True(t, dec("15").Equal(b.TotalUSD))
	assert.Equal(t, int64(3), b.DonationCount)
	assert.Equal(t, int64(3), b.ProjectCount)
	require.NotNil(t, b.FirstDonation)
	require.NotNil(t, b.LastDonation)
	assert.Equal(t, t0, *b.FirstDonation)
	assert.Equal(t, t0.Add(2*time.Hour), *b.LastDonation)

	assert.Equal(t, "0xc", stats[2].Donor)
	assert.True(t, stats[2].TotalUSD.IsZero())
}

func TestMostGenerousAndMostLoving(t *testing.T) {
	stats := DonorStats(leaderboardDonations())

	generous := MostGenerous(stats, 2)
	require.Len(t, generous, 2)
	assert.Equal(t, "0xa", generous[0].Donor)
	assert.Equal(t, "0xb", generous[1].Donor)

	loving := MostLoving(stats, 1)
	require.Len(t, loving, 1)
	assert.Equal(t, "0xb", loving[0].Donor)

	assert.Empty(t, MostLoving(stats, -1))
}

func TestDonorsFor(t *testing.T) {
	ds := leaderboardDonations()

	byProject := DonorsFor(ds, DonorFilter{ProjectID: "p2"})
	require.Len(t, byProject, 2)
	assert.Equal(t, "0xb", byProject[0].Donor)

	byGrant := DonorsFor(ds, DonorFilter{GrantAddress: "0xGRANT-P1"})
	require.Len(t, byGrant, 2)
	assert.Equal(t, "0xa", byGrant[0].Donor)

	assert.Len(t, DonorsFor(ds, DonorFilter{}), 3)
	assert.True(t, DonorFilter{}.Empty())
}

func TestTokenDistribution(t *testing.T) {
	a := donation("0xa", "p1", "r1", "75", nil)
	b := donation("0xb", "p1", "r1", "25", nil)
	b.TokenCode = "DAI"
	c := donation("0xc", "p1", "r1", "", nil)
	c.TokenCode = model.UnknownTokenCode

	got := TokenDistribution([]model.Donation{a, b, c})
	require.Len(t, got, 3)
	assert.Equal(t, "ETH", got[0].TokenCode)
	assert.InDelta(t, 75.0, got[0].Percent, 1e-9)
	assert.Equal(t, "DAI", got[1].TokenCode)
	assert.InDelta(t, 25.0, got[1].Percent, 1e-9)
	assert.Equal(t, model.UnknownTokenCode, got[2].TokenCode)
	assert.Equal(t, int64(1), got[2].DonationCount)
	assert.Zero(t, got[2].Percent)
}

func TestTokenDistributionZeroTotal(t *testing.T) {
	got := TokenDistribution([]model.Donation{donation("0xa", "p1", "r1", "0", nil)})
	require.Len(t, got, 1)
	assert.Zero(t, got[0].Percent)
}
