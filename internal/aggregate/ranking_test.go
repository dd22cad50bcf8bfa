package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

func summaries() []ProjectSummary {
	mk := func(id, title, total string, donors int64, trending float64, avg string) ProjectSummary {
		p := ProjectSummary{
			Key:          model.ProjectKey{ProjectID: id, RoundID: "r1", ChainID: model.ChainOptimism},
			Title:        title,
			TotalDonated: dec(total),
			UniqueDonors: donors,
			TrendingRaw:  trending,
		}
		if avg != "" {
			p.AverageDonation = decimal.NewNullDecimal(dec(avg))
		}
		return p
	}
	return []ProjectSummary{
		mk("p1", "Alpha", "500", 3, 1, "100"),
		mk("p2", "Bravo", "100", 40, 0, "2.5"),
		mk("p3", "Charlie", "300", 12, 9, "25"),
		mk("p4", "Delta", "0", 0, 0, ""),
		mk("p5", "Echo", "300", 12, 4, "25"),
	}
}

func titles(ps []ProjectSummary) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Title
	}
	return out
}

func TestTopFunded(t *testing.T) {
	assert.Equal(t, []string{"Alpha", "Charlie", "Echo"}, titles(TopFunded(summaries(), 3)))
	assert.Len(t, TopFunded(summaries(), 10), 5)
	assert.Empty(t, TopFunded(summaries(), 0))
}

func TestTopByDonors(t *testing.T) {
	assert.Equal(t, []string{"Bravo", "Charlie", "Echo"}, titles(TopByDonors(summaries(), 3)))
}

func TestTopTrendingSkipsZeroScores(t *testing.T) {
	assert.Equal(t, []string{"Charlie", "Echo", "Alpha"}, titles(TopTrending(summaries(), 10)))
}

func TestTopByAverageExcludesUndefined(t *testing.T) {
	got := TopByAverage(summaries(), 10)
	require.Len(t, got, 4)
	assert.Equal(t, "Alpha", got[0].Title)
	assert.NotContains(t, titles(got), "Delta")
}

func TestRankingsDoNotMutateInput(t *testing.T) {
	in := summaries()
	_ = TopByDonors(in, 2)
	assert.Equal(t, "Alpha", in[0].Title)
}
