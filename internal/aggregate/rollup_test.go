package aggregate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

func TestMatchingRatio(t *testing.T) {
	tests := []struct {
		name     string
		matching string
		total    string
		want     string
	}{
		{"regular", "50000", "20000", "2.5"},
		{"zero total returns matching pool", "50000", "0", "50000"},
		{"zero both", "0", "0", "0"},
		{"no matching", "0", "10", "0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MatchingRatio(dec(tc.matching), dec(tc.total))
			assert.True(t, dec(tc.want).Equal(got), "got %s", got)
		})
	}
}

func TestRoundSummaries(t *testing.T) {
	rounds := []model.Round{
		{RoundID: "r1", ChainID: model.ChainOptimism, RoundName: "Climate", MatchAmountUSD: dec("10000")},
		{RoundID: "r2", ChainID: model.ChainOptimism, RoundName: "Open Source", MatchAmountUSD: dec("5000")},
	}
	apps := []model.Application{
		app("p1", "r1", "Trees", model.ProjectStatusApproved),
		app("p2", "r1", "Oceans", model.ProjectStatusApproved),
		app("p3", "r1", "Spam", model.ProjectStatusRejected),
		app("p4", "r2", "Lib", model.ProjectStatusApproved),
	}
	approved := ApprovedSet(apps)
	all := []model.Donation{
		donation("0xa", "p1", "r1", "100", at(0)),
		donation("0xa", "p2", "r1", "50", at(time.Hour)),
		donation("0xb", "p1", "r1", "", at(time.Hour)),
		donation("0xc", "p3", "r1", "999", at(0)),
		donation("0xd", "p2", "r1", "10", nil),
	}
	donations := FilterApproved(all, approved)
	require.Len(t, donations, 4)

	got := RoundSummaries(rounds, approved, donations)
	require.Len(t, got, 2)

	climate := got[0]
	assert.Equal(t, "Climate", climate.RoundName)
	assert.True(t, dec("160").Equal(climate.TotalDonated))
	assert.Equal(t, int64(4), climate.DonationCount)
	assert.Equal(t, int64(3), climate.UniqueDonors)
	assert.Equal(t, int64(2), climate.ProjectCount)
	assert.Equal(t, int64(1), climate.UntimedDonations)
	assert.True(t, dec("10000").Div(dec("160")).Equal(climate.CrowdfundingToMatchingRatio))
	assert.True(t, dec("150").Equal(climate.Hourly.Total()))

	lib := got[1]
	assert.Equal(t, "Open Source", lib.RoundName)
	assert.True(t, lib.TotalDonated.IsZero())
	assert.True(t, dec("5000").Equal(lib.CrowdfundingToMatchingRatio))
	assert.Equal(t, "5000.0x", lib.RatioLabel())
	assert.NotNil(t, lib.Hourly.Points)
}

func TestProjectSummaries(t *testing.T) {
	apps := []model.Application{
		app("p1", "r1", "Trees", model.ProjectStatusApproved),
		app("p2", "r1", "Quiet", model.ProjectStatusApproved),
		app("p1", "r2", "Trees", model.ProjectStatusApproved),
	}
	approved := ApprovedSet(apps)
	donations := []model.Donation{
		donation("0xa", "p1", "r1", "10", at(0)),
		donation("0xa", "p1", "r1", "20", at(0)),
		donation("0xb", "p1", "r1", "30", at(0)),
		donation("0xb", "p1", "r2", "5", at(0)),
	}

	got := ProjectSummaries(approved, donations, nil)
	require.Len(t, got, 3)

	first := got[0]
	assert.Equal(t, model.ProjectKey{ProjectID: "p1", RoundID: "r1", ChainID: model.ChainOptimism}, first.Key)
	assert.True(t, dec("60").Equal(first.TotalDonated))
	assert.Equal(t, int64(3), first.DonationCount)
	assert.Equal(t, int64(2), first.UniqueDonors)
	require.True(t, first.AverageDonation.Valid)
	assert.True(t, dec("20").Equal(first.AverageDonation.Decimal))

	second := got[1]
	assert.Equal(t, "r2", second.Key.RoundID, "same title in another round is a separate project")
	assert.True(t, dec("5").Equal(second.TotalDonated))

	quiet := got[2]
	assert.Equal(t, "Quiet", quiet.Title)
	assert.Zero(t, quiet.DonationCount)
	assert.False(t, quiet.AverageDonation.Valid)
}

func TestProjectTotalsMatchConstituentDonations(t *testing.T) {
	apps := []model.Application{
		app("p1", "r1", "A", model.ProjectStatusApproved),
		app("p2", "r1", "B", model.ProjectStatusApproved),
	}
	approved := ApprovedSet(apps)
	var donations []model.Donation
	for i := 0; i < 25; i++ {
		project := "p1"
		if i%2 == 0 {
			project = "p2"
		}
		donations = append(donations, donation("0xa", project, "r1", decimal.NewFromInt(int64(i)).String(), at(0)))
	}

	for _, p := range ProjectSummaries(approved, donations, nil) {
		var own []model.Donation
		for _, d := range donations {
			if d.Project() == p.Key {
				own = append(own, d)
			}
		}
		assert.True(t, sumDonations(own).Equal(p.TotalDonated), p.Title)
	}
}

func TestRatioLabelUsesDisplayedPool(t *testing.T) {
	tests := []struct {
		name        string
		pool        string
		total       string
		wantDisplay string
		wantLabel   string
	}{
		{"rounded down", "12400", "1000", "12000", "12.0x"},
		{"rounded up", "12600", "1000", "13000", "13.0x"},
		{"half to even down", "2500", "0", "2000", "2000.0x"},
		{"half to even up", "3500", "0", "4000", "4000.0x"},
		{"small pool", "400", "100", "0", "0.0x"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rounds := []model.Round{{RoundID: "r1", ChainID: model.ChainOptimism, RoundName: "Climate", MatchAmountUSD: dec(tc.pool)}}
			apps := []model.Application{app("p1", "r1", "Trees", model.ProjectStatusApproved)}
			var donations []model.Donation
			if !dec(tc.total).IsZero() {
				donations = append(donations, donation("0xa", "p1", "r1", tc.total, at(0)))
			}
			got := RoundSummaries(rounds, ApprovedSet(apps), donations)
			require.Len(t, got, 1)
			assert.True(t, dec(tc.pool).Equal(got[0].MatchingPool))
			assert.True(t, dec(tc.wantDisplay).Equal(got[0].DisplayMatchingPool), got[0].DisplayMatchingPool.String())
			assert.True(t, MatchingRatio(dec(tc.pool), dec(tc.total)).Equal(got[0].CrowdfundingToMatchingRatio))
			assert.Equal(t, tc.wantLabel, got[0].RatioLabel())
		})
	}
}
