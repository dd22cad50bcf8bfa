package blocktime

import (
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

// ApplyRoundStart nulls timestamps that fall before their round's donation
// start. The rows are kept so rollups are unaffected; they drop out of the
// hourly series and are counted as pre_round_timestamp.
func ApplyRoundStart(donations []model.Donation, starts map[model.RoundKey]time.Time, dq *model.DataQuality) []model.Donation {
	out := make([]model.Donation, len(donations))
	copy(out, donations)
	var early int64
	for i, d := range out {
		if d.BlockTimestamp == nil {
			continue
		}
		start, ok := starts[d.Round()]
		if !ok || start.IsZero() {
			continue
		}
		if d.BlockTimestamp.Before(start) {
			out[i].BlockTimestamp = nil
			early++
		}
	}
	dq.Add(model.IssuePreRoundTimestamp, early)
	return out
}

// RoundStarts indexes the donation start time of every round that has one.
func RoundStarts(rounds []model.Round) map[model.RoundKey]time.Time {
	starts := make(map[model.RoundKey]time.Time, len(rounds))
	for _, r := range rounds {
		if r.DonationsStartTime != nil {
			starts[r.Key()] = r.DonationsStartTime.UTC()
		}
	}
	return starts
}
