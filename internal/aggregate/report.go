package aggregate

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

// Input is the resolved, deduplicated data a report is built from.
type Input struct {
	Program      string
	Rounds       []model.Round
	Applications []model.Application
	Donations    []model.Donation
	// Scores maps lowercase donor addresses to trust scores.
	Scores map[string]float64
}

type Options struct {
	TopK               int
	SpotlightN         int
	LeaderboardN       int
	TrendingWindow     time.Duration
	MinDisplayTotalUSD decimal.Decimal
	Edges              EdgeOptions
}

func DefaultOptions() Options {
	return Options{
		TopK:               10,
		SpotlightN:         10,
		LeaderboardN:       DefaultLeaderboardSize,
		TrendingWindow:     DefaultTrendingWindow,
		MinDisplayTotalUSD: decimal.NewFromInt(100),
		Edges:              DefaultEdgeOptions(),
	}
}

// Report holds every table derived for one program.
type Report struct {
	Summary           ProgramSummary   `json:"summary"`
	Rounds            []RoundSummary   `json:"rounds"`
	Projects          []ProjectSummary `json:"projects"`
	TopFunded         []ProjectSummary `json:"top_funded"`
	TopDonors         []ProjectSummary `json:"top_donors"`
	TopTrending       []ProjectSummary `json:"top_trending"`
	ProgramHourly     Series           `json:"program_hourly"`
	ProgramCumulative Series           `json:"program_cumulative"`
	RoundHourly       []Series         `json:"round_hourly"`
	RoundCumulative   []Series         `json:"round_cumulative"`
	TokenHourly       []Series         `json:"token_hourly"`
	Spotlight         []Series         `json:"spotlight"`
	Tokens            []TokenShare     `json:"tokens"`
	MostGenerous      []DonorStat      `json:"most_generous"`
	MostLoving        []DonorStat      `json:"most_loving"`
	Network           EdgeSet          `json:"network"`
}

// Build derives a Report from in. Only donations to approved projects
// participate. Amount problems are counted into dq; nothing is dropped
// from totals.
func Build(in Input, opts Options, dq *model.DataQuality) *Report {
	approved := ApprovedSet(in.Applications)
	known := make(map[model.ProjectKey]struct{}, len(in.Applications))
	for _, a := range in.Applications {
		known[a.Project()] = struct{}{}
	}
	for _, d := range in.Donations {
		if _, ok := known[d.Project()]; !ok {
			dq.Add(model.IssueDonationWithoutProject, 1)
		}
	}

	donations := FilterApproved(in.Donations, approved)
	CountAmountIssues(donations, dq)

	// The window is anchored on every donation, including those to projects
	// that are not approved.
	trending := make(map[model.ProjectKey]Trending)
	if latest, ok := LatestTimestamp(in.Donations); ok {
		trending = TrendingScoresAt(donations, latest, opts.TrendingWindow)
	}
	projects := ProjectSummaries(approved, donations, trending)

	edgeOpts := opts.Edges
	if edgeOpts.Scores == nil {
		edgeOpts.Scores = in.Scores
	}

	r := &Report{
		Summary:     SummarizeProgram(in.Program, in.Rounds, approved, donations, opts.MinDisplayTotalUSD),
		Rounds:      RoundSummaries(in.Rounds, approved, donations),
		Projects:    projects,
		TopFunded:   TopFunded(projects, opts.TopK),
		TopDonors:   TopByDonors(projects, opts.TopK),
		TopTrending: TopTrending(projects, opts.TopK),
		RoundHourly: HourlySeries(donations, GroupByRound),
		TokenHourly: HourlySeries(donations, GroupByRoundToken),
		Spotlight:   Spotlight(projects, donations, opts.SpotlightN),
		Tokens:      TokenDistribution(donations),
		Network:     DonorProjectEdges(donations, Titles(in.Applications), edgeOpts),
	}
	r.RoundCumulative = CumulativeAll(r.RoundHourly)
	r.ProgramHourly = Series{Label: "all", Points: []Point{}}
	if all := HourlySeries(donations, GroupByProgram); len(all) == 1 {
		r.ProgramHourly = all[0]
	}
	r.ProgramCumulative = Cumulative(r.ProgramHourly)

	stats := DonorStats(donations)
	r.MostGenerous = MostGenerous(stats, opts.LeaderboardN)
	r.MostLoving = MostLoving(stats, opts.LeaderboardN)
	return r
}

// CountAmountIssues records null and negative USD amounts.
func CountAmountIssues(donations []model.Donation, dq *model.DataQuality) {
	for _, d := range donations {
		switch {
		case !d.AmountUSD.Valid:
			dq.Add(model.IssueNullAmount, 1)
		case d.AmountUSD.Decimal.IsNegative():
			dq.Add(model.IssueNegativeAmount, 1)
		}
	}
}

// Titles maps project keys to application titles.
func Titles(applications []model.Application) map[model.ProjectKey]string {
	out := make(map[model.ProjectKey]string, len(applications))
	for _, a := range applications {
		out[a.Project()] = a.Title
	}
	return out
}

// Spotlight returns hourly series for the n best funded projects, labelled
// with the project title, in ranking order.
func Spotlight(projects []ProjectSummary, donations []model.Donation, n int) []Series {
	top := TopFunded(projects, n)
	if len(top) == 0 {
		return []Series{}
	}
	wanted := make(map[model.ProjectKey]struct{}, len(top))
	for _, p := range top {
		wanted[p.Key] = struct{}{}
	}
	subset := make([]model.Donation, 0)
	for _, d := range donations {
		if _, ok := wanted[d.Project()]; ok {
			subset = append(subset, d)
		}
	}
	byKey := make(map[SeriesKey]Series)
	for _, s := range HourlySeries(subset, GroupByProject) {
		byKey[s.Key] = s
	}
	out := make([]Series, 0, len(top))
	for _, p := range top {
		s, ok := byKey[SeriesKey{RoundID: p.Key.RoundID, ChainID: p.Key.ChainID, ProjectID: p.Key.ProjectID}]
		if !ok {
			continue
		}
		s.Label = p.Title
		out = append(out, s)
	}
	return out
}
