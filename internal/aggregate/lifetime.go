package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

// ProgramRollup is one program's contribution to the lifetime totals.
type ProgramRollup struct {
	Summary ProgramSummary
	Rounds  []model.Round
}

// LifetimeRow aggregates the programs sharing a round number.
type LifetimeRow struct {
	RoundNumber    int             `json:"round_number"`
	Programs       []string        `json:"programs"`
	CrowdfundedUSD decimal.Decimal `json:"crowdfunded_usd"`
	MatchingFunds  decimal.Decimal `json:"matching_funds"`
	DonationCount  int64           `json:"donation_count"`
	UniqueGrantees int             `json:"unique_grantees"`
	MatchingPools  int             `json:"matching_pools"`
	LastDonation   *time.Time      `json:"last_donation,omitempty"`
}

// Lifetime is the headline block across every catalogued program.
type Lifetime struct {
	// FundsDistributed is crowdfunding plus matching funds.
	FundsDistributed decimal.Decimal `json:"funds_distributed"`
	CrowdfundedUSD   decimal.Decimal `json:"crowdfunded_usd"`
	MatchingFunds    decimal.Decimal `json:"matching_funds"`
	TotalDonations   int64           `json:"total_donations"`
	MatchingPools    int             `json:"matching_pools"`
	LastDonation     *time.Time      `json:"last_donation,omitempty"`
	// Rows holds one entry per round number, ascending. Programs without a
	// round number count toward the totals only.
	Rows []LifetimeRow `json:"rows"`
}

// BuildLifetime totals programs and groups them by round number. A matching
// pool is a round with a positive match amount.
func BuildLifetime(programs []ProgramRollup) Lifetime {
	out := Lifetime{
		FundsDistributed: decimal.Zero,
		CrowdfundedUSD:   decimal.Zero,
		MatchingFunds:    decimal.Zero,
		Rows:             []LifetimeRow{},
	}
	rows := make(map[int]*LifetimeRow)
	for _, p := range programs {
		pools := 0
		number := 0
		for _, r := range p.Rounds {
			if r.MatchAmountUSD.IsPositive() {
				pools++
			}
			if number == 0 && r.RoundNumber > 0 {
				number = r.RoundNumber
			}
		}
		s := p.Summary
		out.CrowdfundedUSD = out.CrowdfundedUSD.Add(s.TotalDonated)
		out.MatchingFunds = out.MatchingFunds.Add(s.MatchingPool)
		out.TotalDonations += s.DonationCount
		out.MatchingPools += pools
		out.LastDonation = later(out.LastDonation, s.LastDonation)

		if number == 0 {
			continue
		}
		row, ok := rows[number]
		if !ok {
			row = &LifetimeRow{RoundNumber: number, CrowdfundedUSD: decimal.Zero, MatchingFunds: decimal.Zero}
			rows[number] = row
		}
		row.Programs = append(row.Programs, s.Program)
		row.CrowdfundedUSD = row.CrowdfundedUSD.Add(s.TotalDonated)
		row.MatchingFunds = row.MatchingFunds.Add(s.MatchingPool)
		row.DonationCount += s.DonationCount
		row.UniqueGrantees += s.ProjectCount
		row.MatchingPools += pools
		row.LastDonation = later(row.LastDonation, s.LastDonation)
	}
	out.FundsDistributed = out.CrowdfundedUSD.Add(out.MatchingFunds)

	for _, row := range rows {
		sort.Strings(row.Programs)
		out.Rows = append(out.Rows, *row)
	}
	sort.Slice(out.Rows, func(i, j int) bool { return out.Rows[i].RoundNumber < out.Rows[j].RoundNumber })
	return out
}

func later(a, b *time.Time) *time.Time {
	if b == nil || (a != nil && !b.After(*a)) {
		return a
	}
	return b
}
