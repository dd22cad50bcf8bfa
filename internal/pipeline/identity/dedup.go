package identity

import "github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"

// Dedup removes rows whose natural key repeats, keeping the first copy in
// input order. Must run after token and timestamp resolution so every key
// field is populated.
func Dedup(donations []model.Donation, dq *model.DataQuality) []model.Donation {
	seen := make(map[model.DedupKey]struct{}, len(donations))
	out := make([]model.Donation, 0, len(donations))
	var dropped int64
	for _, d := range donations {
		k := d.DedupKey()
		if _, ok := seen[k]; ok {
			dropped++
			continue
		}
		seen[k] = struct{}{}
		out = append(out, d)
	}
	dq.Add(model.IssueDuplicateRow, dropped)
	return out
}
