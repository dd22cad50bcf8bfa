package aggregate

import (
	"strings"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

// RoundFilter narrows views to one (round_id, chain_id) pair. The zero
// value matches everything.
type RoundFilter struct {
	RoundID string
	ChainID model.ChainID
}

func (f RoundFilter) Empty() bool { return f.RoundID == "" && f.ChainID == "" }

// Match reports whether the round identified by roundID on chain passes f.
// Round ids compare case-insensitively since they are contract addresses.
func (f RoundFilter) Match(roundID string, chain model.ChainID) bool {
	if f.Empty() {
		return true
	}
	return f.ChainID == chain && strings.EqualFold(f.RoundID, roundID)
}

// Known reports whether rounds contains the round f selects.
func (f RoundFilter) Known(rounds []model.Round) bool {
	if f.Empty() {
		return true
	}
	for _, r := range rounds {
		if f.Match(r.RoundID, r.ChainID) {
			return true
		}
	}
	return false
}

// SliceRound restricts in to the rounds, applications and donations f
// selects. The input slices are not modified.
func SliceRound(in Input, f RoundFilter) Input {
	if f.Empty() {
		return in
	}
	out := Input{Program: in.Program, Scores: in.Scores}
	for _, r := range in.Rounds {
		if f.Match(r.RoundID, r.ChainID) {
			out.Rounds = append(out.Rounds, r)
		}
	}
	for _, a := range in.Applications {
		if f.Match(a.RoundID, a.ChainID) {
			out.Applications = append(out.Applications, a)
		}
	}
	out.Donations = FilterRoundDonations(in.Donations, f)
	return out
}

// FilterRoundDonations keeps the donations made in the round f selects.
func FilterRoundDonations(donations []model.Donation, f RoundFilter) []model.Donation {
	if f.Empty() {
		return donations
	}
	out := make([]model.Donation, 0)
	for _, d := range donations {
		if f.Match(d.RoundID, d.ChainID) {
			out = append(out, d)
		}
	}
	return out
}

// FilterRoundProjects keeps the project rows of the round f selects,
// preserving order.
func FilterRoundProjects(projects []ProjectSummary, f RoundFilter) []ProjectSummary {
	if f.Empty() {
		return projects
	}
	out := make([]ProjectSummary, 0)
	for _, p := range projects {
		if f.Match(p.Key.RoundID, p.Key.ChainID) {
			out = append(out, p)
		}
	}
	return out
}

// FilterRoundSummaries keeps the round rows f selects.
func FilterRoundSummaries(rounds []RoundSummary, f RoundFilter) []RoundSummary {
	if f.Empty() {
		return rounds
	}
	out := make([]RoundSummary, 0, 1)
	for _, r := range rounds {
		if f.Match(r.RoundID, r.ChainID) {
			out = append(out, r)
		}
	}
	return out
}
