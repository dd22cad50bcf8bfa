package aggregate

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

// ProgramSummary is the headline block for a program.
type ProgramSummary struct {
	Program       string          `json:"program"`
	RoundCount    int             `json:"round_count"`
	ProjectCount  int             `json:"project_count"`
	MatchingPool  decimal.Decimal `json:"matching_pool"`
	TotalDonated  decimal.Decimal `json:"total_donated"`
	DonationCount int64           `json:"donation_count"`
	UniqueDonors  int64           `json:"unique_donors"`
	StartTime     *time.Time      `json:"start_time,omitempty"`
	EndTime       *time.Time      `json:"end_time,omitempty"`
	LastDonation  *time.Time      `json:"last_donation,omitempty"`
	// HasData is false while the total is below the display threshold; the
	// UI shows an "early / no data yet" state instead of charts.
	HasData bool `json:"has_data"`
}

// SummarizeProgram totals a program over its rounds and approved donations.
func SummarizeProgram(program string, rounds []model.Round, approved map[model.ProjectKey]model.Application, donations []model.Donation, minDisplayTotal decimal.Decimal) ProgramSummary {
	s := ProgramSummary{
		Program:      program,
		RoundCount:   len(rounds),
		ProjectCount: len(approved),
		MatchingPool: decimal.Zero,
		TotalDonated: decimal.Zero,
	}
	for _, r := range rounds {
		s.MatchingPool = s.MatchingPool.Add(r.MatchAmountUSD)
		if r.DonationsStartTime != nil && (s.StartTime == nil || r.DonationsStartTime.Before(*s.StartTime)) {
			t := r.DonationsStartTime.UTC()
			s.StartTime = &t
		}
		if r.DonationsEndTime != nil && (s.EndTime == nil || r.DonationsEndTime.After(*s.EndTime)) {
			t := r.DonationsEndTime.UTC()
			s.EndTime = &t
		}
	}

	donors := make(map[string]struct{})
	for _, d := range donations {
		amount, _ := d.USD()
		s.TotalDonated = s.TotalDonated.Add(amount)
		s.DonationCount++
		donors[d.Donor()] = struct{}{}
	}
	if latest, ok := LatestTimestamp(donations); ok {
		latest = latest.UTC()
		s.LastDonation = &latest
	}
	s.UniqueDonors = int64(len(donors))
	s.HasData = s.DonationCount > 0 && s.TotalDonated.Cmp(minDisplayTotal) >= 0
	return s
}

// TimeLeft reports the time remaining until the program's latest round ends,
// zero once it has ended or when no end time is known.
func (s ProgramSummary) TimeLeft(now time.Time) time.Duration {
	if s.EndTime == nil || !now.Before(*s.EndTime) {
		return 0
	}
	return s.EndTime.Sub(now)
}
