package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

// ApprovedSet indexes the approved applications by project key.
func ApprovedSet(applications []model.Application) map[model.ProjectKey]model.Application {
	out := make(map[model.ProjectKey]model.Application, len(applications))
	for _, a := range applications {
		if a.Approved() {
			out[a.Project()] = a
		}
	}
	return out
}

// FilterApproved keeps donations to approved projects.
func FilterApproved(donations []model.Donation, approved map[model.ProjectKey]model.Application) []model.Donation {
	out := make([]model.Donation, 0, len(donations))
	for _, d := range donations {
		if _, ok := approved[d.Project()]; ok {
			out = append(out, d)
		}
	}
	return out
}

// MatchingRatio is matching_pool / total_donated. When total_donated is
// exactly zero the matching pool itself is returned; this is a display
// contract, not a fallback.
func MatchingRatio(matchingPool, totalDonated decimal.Decimal) decimal.Decimal {
	if totalDonated.IsZero() {
		return matchingPool
	}
	return matchingPool.Div(totalDonated)
}

type RoundSummary struct {
	RoundID                     string          `json:"round_id"`
	ChainID                     model.ChainID   `json:"chain_id"`
	RoundName                   string          `json:"round_name"`
	RoundType                   model.RoundType `json:"round_type,omitempty"`
	TotalDonated                decimal.Decimal `json:"total_donated"`
	DonationCount               int64           `json:"donation_count"`
	UniqueDonors                int64           `json:"unique_donors"`
	MatchingPool                decimal.Decimal `json:"matching_pool"`
	DisplayMatchingPool         decimal.Decimal `json:"display_matching_pool"`
	ProjectCount                int64           `json:"project_count"`
	CrowdfundingToMatchingRatio decimal.Decimal `json:"crowdfunding_to_matching_ratio"`
	UntimedDonations            int64           `json:"untimed_donations"`
	Hourly                      Series          `json:"hourly"`
}

// RoundToThousand rounds a matching pool to the nearest thousand, half to
// even, as the round table displays it.
func RoundToThousand(v decimal.Decimal) decimal.Decimal {
	return v.RoundBank(-3)
}

// RatioLabel renders the ratio the way the round table shows it, e.g. "2.5x".
// The table divides the displayed (rounded) matching pool, so the label can
// differ from CrowdfundingToMatchingRatio.
func (s RoundSummary) RatioLabel() string {
	return MatchingRatio(s.DisplayMatchingPool, s.TotalDonated).StringFixed(1) + "x"
}

type roundAcc struct {
	total   decimal.Decimal
	count   int64
	untimed int64
	donors  map[string]struct{}
}

// RoundSummaries computes one row per round. Donations must already be
// restricted to approved projects. Rows are ordered by total donated,
// descending, then by round name.
func RoundSummaries(rounds []model.Round, approved map[model.ProjectKey]model.Application, donations []model.Donation) []RoundSummary {
	accs := make(map[model.RoundKey]*roundAcc, len(rounds))
	for _, r := range rounds {
		accs[r.Key()] = &roundAcc{total: decimal.Zero, donors: make(map[string]struct{})}
	}
	for _, d := range donations {
		acc, ok := accs[d.Round()]
		if !ok {
			continue
		}
		amount, _ := d.USD()
		acc.total = acc.total.Add(amount)
		acc.count++
		acc.donors[d.Donor()] = struct{}{}
		if d.BlockTimestamp == nil {
			acc.untimed++
		}
	}

	projects := make(map[model.RoundKey]int64)
	for k := range approved {
		projects[model.RoundKey{RoundID: k.RoundID, ChainID: k.ChainID}]++
	}

	hourly := make(map[SeriesKey]Series)
	for _, s := range HourlySeries(donations, GroupByRound) {
		hourly[s.Key] = s
	}

	out := make([]RoundSummary, 0, len(rounds))
	for _, r := range rounds {
		acc := accs[r.Key()]
		h, ok := hourly[SeriesKey{RoundID: r.RoundID, ChainID: r.ChainID}]
		if !ok {
			h = Series{Key: SeriesKey{RoundID: r.RoundID, ChainID: r.ChainID}, Label: r.RoundName, Points: []Point{}}
		}
		out = append(out, RoundSummary{
			RoundID:                     r.RoundID,
			ChainID:                     r.ChainID,
			RoundName:                   r.RoundName,
			RoundType:                   r.RoundType,
			TotalDonated:                acc.total,
			DonationCount:               acc.count,
			UniqueDonors:                int64(len(acc.donors)),
			MatchingPool:                r.MatchAmountUSD,
			DisplayMatchingPool:         RoundToThousand(r.MatchAmountUSD),
			ProjectCount:                projects[r.Key()],
			CrowdfundingToMatchingRatio: MatchingRatio(r.MatchAmountUSD, acc.total),
			UntimedDonations:            acc.untimed,
			Hourly:                      h,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].TotalDonated.Cmp(out[j].TotalDonated); c != 0 {
			return c > 0
		}
		return out[i].RoundName < out[j].RoundName
	})
	return out
}

type ProjectSummary struct {
	Key             model.ProjectKey    `json:"key"`
	Title           string              `json:"title"`
	RoundName       string              `json:"round_name,omitempty"`
	GrantAddress    string              `json:"grant_address,omitempty"`
	TotalDonated    decimal.Decimal     `json:"total_donated"`
	UniqueDonors    int64               `json:"unique_donors"`
	DonationCount   int64               `json:"donation_count"`
	AverageDonation decimal.NullDecimal `json:"average_donation"`
	TrendingRaw     float64             `json:"trending_raw"`
	TrendingScore   float64             `json:"trending_score"`
}

type projectAcc struct {
	total  decimal.Decimal
	count  int64
	donors map[string]struct{}
}

// ProjectSummaries computes one row per approved project. The average
// donation is left invalid when the project has no donations. Rows are
// ordered by total donated, descending.
func ProjectSummaries(approved map[model.ProjectKey]model.Application, donations []model.Donation, trending map[model.ProjectKey]Trending) []ProjectSummary {
	accs := make(map[model.ProjectKey]*projectAcc, len(approved))
	for k := range approved {
		accs[k] = &projectAcc{total: decimal.Zero, donors: make(map[string]struct{})}
	}
	for _, d := range donations {
		acc, ok := accs[d.Project()]
		if !ok {
			continue
		}
		amount, _ := d.USD()
		acc.total = acc.total.Add(amount)
		acc.count++
		acc.donors[d.Donor()] = struct{}{}
	}

	out := make([]ProjectSummary, 0, len(approved))
	for k, app := range approved {
		acc := accs[k]
		s := ProjectSummary{
			Key:           k,
			Title:         app.Title,
			RoundName:     app.RoundName,
			GrantAddress:  app.GrantAddress,
			TotalDonated:  acc.total,
			UniqueDonors:  int64(len(acc.donors)),
			DonationCount: acc.count,
			TrendingRaw:   trending[k].Raw,
			TrendingScore: trending[k].Score,
		}
		if acc.count > 0 {
			s.AverageDonation = decimal.NewNullDecimal(acc.total.Div(decimal.NewFromInt(acc.count)))
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalDonated.Cmp(out[j].TotalDonated); c != 0 {
			return c > 0
		}
		return lessProject(out[i], out[j])
	})
	return out
}

func lessProject(a, b ProjectSummary) bool {
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	if a.Key.ProjectID != b.Key.ProjectID {
		return a.Key.ProjectID < b.Key.ProjectID
	}
	if a.Key.ChainID != b.Key.ChainID {
		return a.Key.ChainID < b.Key.ChainID
	}
	return a.Key.RoundID < b.Key.RoundID
}
