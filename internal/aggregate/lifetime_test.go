package aggregate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

func rollup(program string, number int, donated, matching string, donations int64, projects int, last *time.Time, pools ...string) ProgramRollup {
	rounds := make([]model.Round, 0, len(pools))
	for i, pool := range pools {
		rounds = append(rounds, model.Round{RoundID: program + "-" + string(rune('a'+i)), Program: program, RoundNumber: number, MatchAmountUSD: dec(pool)})
	}
	return ProgramRollup{
		Summary: ProgramSummary{
			Program:       program,
			ProjectCount:  projects,
			TotalDonated:  dec(donated),
			MatchingPool:  dec(matching),
			DonationCount: donations,
			LastDonation:  last,
		},
		Rounds: rounds,
	}
}

func TestBuildLifetime(t *testing.T) {
	programs := []ProgramRollup{
		rollup("GG19", 19, "300", "1000", 30, 4, at(48*time.Hour), "1000"),
		rollup("GG18", 18, "100", "500", 10, 2, at(0), "500", "0"),
		rollup("GG18-ext", 18, "50", "250", 5, 1, at(time.Hour), "250"),
		rollup("Citizens", 0, "20", "0", 2, 1, at(72*time.Hour)),
	}

	got := BuildLifetime(programs)

	assert.True(t, got.CrowdfundedUSD.Equal(dec("470")))
	assert.True(t, got.MatchingFunds.Equal(dec("1750")))
	assert.True(t, got.FundsDistributed.Equal(dec("2220")))
	assert.Equal(t, int64(47), got.TotalDonations)
	assert.Equal(t, 3, got.MatchingPools, "zero-funded rounds are not matching pools")
	require.NotNil(t, got.LastDonation)
	assert.True(t, got.LastDonation.Equal(t0.Add(72*time.Hour)))

	require.Len(t, got.Rows, 2, "programs without a round number only count toward totals")
	gg18 := got.Rows[0]
	assert.Equal(t, 18, gg18.RoundNumber)
	assert.Equal(t, []string{"GG18", "GG18-ext"}, gg18.Programs)
	assert.True(t, gg18.CrowdfundedUSD.Equal(dec("150")))
	assert.True(t, gg18.MatchingFunds.Equal(dec("750")))
	assert.Equal(t, int64(15), gg18.DonationCount)
	assert.Equal(t, 3, gg18.UniqueGrantees)
	assert.Equal(t, 2, gg18.MatchingPools)
	assert.True(t, gg18.LastDonation.Equal(t0.Add(time.Hour)))
	assert.Equal(t, 19, got.Rows[1].RoundNumber)
}

func TestBuildLifetimeEmpty(t *testing.T) {
	got := BuildLifetime(nil)
	assert.True(t, got.FundsDistributed.Equal(decimal.Zero))
	assert.Nil(t, got.LastDonation)
	assert.NotNil(t, got.Rows)
	assert.Empty(t, got.Rows)
}

func TestSummarizeProgramLastDonation(t *testing.T) {
	donations := []model.Donation{
		donation("0xa", "p1", "r1", "5", at(2*time.Hour)),
		donation("0xb", "p1", "r1", "5", nil),
		donation("0xc", "p1", "r1", "5", at(time.Hour)),
	}
	s := SummarizeProgram("GG18", nil, nil, donations, decimal.Zero)
	require.NotNil(t, s.LastDonation)
	assert.True(t, s.LastDonation.Equal(t0.Add(2*time.Hour)))

	assert.Nil(t, SummarizeProgram("GG18", nil, nil, nil, decimal.Zero).LastDonation)
}
