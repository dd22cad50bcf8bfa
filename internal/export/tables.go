package export

import (
	"strconv"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/aggregate"
)

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func roundRows(rounds []aggregate.RoundSummary) [][]string {
	rows := [][]string{{
		"round_id", "chain_id", "round_name", "round_type", "total_donated_usd", "donation_count",
		"unique_donors", "matching_pool_usd", "project_count", "crowdfunding_to_matching_ratio", "untimed_donations",
		"matching_multiple",
	}}
	for _, r := range rounds {
		rows = append(rows, []string{
			r.RoundID, string(r.ChainID), r.RoundName, string(r.RoundType), r.TotalDonated.String(),
			itoa(r.DonationCount), itoa(r.UniqueDonors), r.MatchingPool.String(), itoa(r.ProjectCount),
			r.CrowdfundingToMatchingRatio.String(), itoa(r.UntimedDonations),
			r.RatioLabel(),
		})
	}
	return rows
}

func projectRows(projects []aggregate.ProjectSummary) [][]string {
	rows := [][]string{{
		"project_id", "round_id", "chain_id", "title", "round_name", "grant_address", "total_donated_usd",
		"unique_donors", "donation_count", "average_donation_usd", "trending_score",
	}}
	for _, p := range projects {
		avg := ""
		if p.AverageDonation.Valid {
			avg = p.AverageDonation.Decimal.String()
		}
		rows = append(rows, []string{
			p.Key.ProjectID, p.Key.RoundID, string(p.Key.ChainID), p.Title, p.RoundName, p.GrantAddress,
			p.TotalDonated.String(), itoa(p.UniqueDonors), itoa(p.DonationCount), avg, ftoa(p.TrendingScore),
		})
	}
	return rows
}

func tokenRows(tokens []aggregate.TokenShare) [][]string {
	rows := [][]string{{"token_code", "amount_usd", "donation_count", "percent"}}
	for _, t := range tokens {
		rows = append(rows, []string{t.TokenCode, t.AmountUSD.String(), itoa(t.DonationCount), ftoa(t.Percent)})
	}
	return rows
}

// leaderboardRows stacks both boards, tagged by board name.
func leaderboardRows(generous, loving []aggregate.DonorStat) [][]string {
	rows := [][]string{{"board", "rank", "donor", "total_usd", "donation_count", "project_count"}}
	add := func(board string, stats []aggregate.DonorStat) {
		for i, s := range stats {
			rows = append(rows, []string{
				board, strconv.Itoa(i + 1), s.Donor, s.TotalUSD.String(), itoa(s.DonationCount), itoa(s.ProjectCount),
			})
		}
	}
	add("most_generous", generous)
	add("most_loving", loving)
	return rows
}

func edgeRows(edges []aggregate.Edge) [][]string {
	rows := [][]string{{"donor", "project_title", "amount_usd"}}
	for _, e := range edges {
		rows = append(rows, []string{e.Donor, e.ProjectTitle, e.AmountUSD.String()})
	}
	return rows
}
