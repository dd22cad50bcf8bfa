package aggregate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

func reportInput() Input {
	start := t0.Add(-time.Hour)
	end := t0.Add(14 * 24 * time.Hour)
	neg := donation("0xe", "p1", "r1", "-3", at(time.Hour))
	return Input{
		Program: "GG18",
		Rounds: []model.Round{
			{RoundID: "r1", ChainID: model.ChainOptimism, RoundName: "Round r1", MatchAmountUSD: dec("1000"), DonationsStartTime: &start, DonationsEndTime: &end},
			{RoundID: "r2", ChainID: model.ChainOptimism, RoundName: "Round r2", MatchAmountUSD: dec("500")},
		},
		Applications: []model.Application{
			app("p1", "r1", "Trees", model.ProjectStatusApproved),
			app("p2", "r1", "Oceans", model.ProjectStatusApproved),
			app("p3", "r1", "Pending", model.ProjectStatusPending),
			app("p9", "r2", "Lib", model.ProjectStatusApproved),
		},
		Donations: []model.Donation{
			donation("0xa", "p1", "r1", "10", at(0)),
			donation("0xb", "p1", "r1", "10", at(time.Hour)),
			donation("0xc", "p2", "r1", "", at(2*time.Hour)),
			donation("0xd", "p2", "r1", "30", nil),
			donation("0xa", "p3", "r1", "1000", at(0)),
			donation("0xz", "ghost", "r1", "7", at(0)),
			neg,
		},
		Scores: map[string]float64{"0xa": 30},
	}
}

func TestBuild(t *testing.T) {
	dq := model.NewDataQuality()
	r := Build(reportInput(), DefaultOptions(), dq)

	assert.Equal(t, "GG18", r.Summary.Program)
	assert.Equal(t, 2, r.Summary.RoundCount)
	assert.Equal(t, 3, r.Summary.ProjectCount)
	assert.True(t, dec("1500").Equal(r.Summary.MatchingPool))
	assert.True(t, dec("50").Equal(r.Summary.TotalDonated), r.Summary.TotalDonated.String())
	assert.Equal(t, int64(5), r.Summary.DonationCount)
	assert.Equal(t, int64(5), r.Summary.UniqueDonors)
	assert.False(t, r.Summary.HasData, "below default display threshold")

	assert.Equal(t, int64(1), dq.Count(model.IssueNullAmount))
	assert.Equal(t, int64(1), dq.Count(model.IssueNegativeAmount))
	assert.Equal(t, int64(1), dq.Count(model.IssueDonationWithoutProject))

	require.Len(t, r.Rounds, 2)
	assert.Equal(t, "r1", r.Rounds[0].RoundID)
	assert.True(t, dec("50").Equal(r.Rounds[0].TotalDonated))
	assert.Equal(t, int64(1), r.Rounds[0].UntimedDonations)

	require.Len(t, r.Projects, 3)
	assert.Equal(t, "Oceans", r.Projects[0].Title)

	require.Len(t, r.RoundHourly, 1)
	assert.True(t, dec("20").Equal(r.RoundHourly[0].Total()))
	require.Len(t, r.RoundCumulative, 1)
	assert.True(t, r.RoundHourly[0].Total().Equal(r.RoundCumulative[0].Last().AmountUSD))
	assert.True(t, dec("20").Equal(r.ProgramCumulative.Last().AmountUSD))
	assert.Equal(t, "all", r.ProgramHourly.Label)

	require.NotEmpty(t, r.Spotlight)
	assert.Equal(t, "Oceans", r.Spotlight[0].Label)

	require.Len(t, r.Tokens, 1)
	assert.True(t, dec("50").Equal(r.Tokens[0].AmountUSD))

	assert.Equal(t, 5, r.Network.Total)
	require.NotEmpty(t, r.MostGenerous)
	assert.Equal(t, "0xd", r.MostGenerous[0].Donor)
	assert.Equal(t, "Trees", r.TopTrending[0].Title)
}

func TestBuildHasDataAboveThreshold(t *testing.T) {
	opts := DefaultOptions()
	opts.MinDisplayTotalUSD = decimal.NewFromInt(10)
	r := Build(reportInput(), opts, model.NewDataQuality())
	assert.True(t, r.Summary.HasData)
}

func TestBuildEmptyInput(t *testing.T) {
	r := Build(Input{Program: "empty"}, DefaultOptions(), nil)
	assert.False(t, r.Summary.HasData)
	assert.Empty(t, r.Rounds)
	assert.Empty(t, r.Projects)
	assert.Empty(t, r.ProgramHourly.Points)
	assert.Empty(t, r.Network.Edges)
}

func TestBuildUsesScoresForNetworkFilter(t *testing.T) {
	opts := DefaultOptions()
	minScore := 20.0
	opts.Edges.MinDonorScore = &minScore
	r := Build(reportInput(), opts, nil)
	require.Len(t, r.Network.Edges, 1)
	assert.Equal(t, "0xa", r.Network.Edges[0].Donor)
}

func TestSummarizeProgramTimeLeft(t *testing.T) {
	in := reportInput()
	s := SummarizeProgram(in.Program, in.Rounds, ApprovedSet(in.Applications), nil, decimal.Zero)
	require.NotNil(t, s.EndTime)
	require.NotNil(t, s.StartTime)
	assert.Equal(t, 24*time.Hour, s.TimeLeft(s.EndTime.Add(-24*time.Hour)))
	assert.Zero(t, s.TimeLeft(s.EndTime.Add(time.Second)))
	assert.False(t, s.HasData)
}

func TestBuildTrendingWindowAnchoredOnAllDonations(t *testing.T) {
	in := Input{
		Program: "GG19",
		Rounds:  []model.Round{{RoundID: "r1", ChainID: model.ChainOptimism}},
		Applications: []model.Application{
			app("p1", "r1", "Trees", model.ProjectStatusApproved),
			app("p2", "r1", "Waiting", model.ProjectStatusPending),
		},
		Donations: []model.Donation{
			donation("0xa", "p1", "r1", "4", at(0)),
			donation("0xb", "p2", "r1", "9", at(48*time.Hour)),
		},
	}
	r := Build(in, DefaultOptions(), model.NewDataQuality())

	require.Len(t, r.Projects, 1)
	assert.Equal(t, "p1", r.Projects[0].Key.ProjectID)
	assert.Zero(t, r.Projects[0].TrendingRaw)
	assert.Zero(t, r.Projects[0].TrendingScore)
}
