package aggregate

import (
	"math"
	"time"

	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

// DefaultTrendingWindow is the trailing window scored for trending.
const DefaultTrendingWindow = 24 * time.Hour

// QFScore is the quadratic funding estimator (Σ√amount)². Non-positive
// amounts contribute nothing.
func QFScore(amounts []float64) float64 {
	var sum float64
	for _, a := range amounts {
		if a > 0 {
			sum += math.Sqrt(a)
		}
	}
	return sum * sum
}

// Trending holds a project's raw QF score over the window and the score
// normalized by the batch maximum.
type Trending struct {
	Raw   float64 `json:"raw"`
	Score float64 `json:"score"`
}

// LatestTimestamp returns the maximum donation timestamp in the dataset.
func LatestTimestamp(donations []model.Donation) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, d := range donations {
		if d.BlockTimestamp == nil {
			continue
		}
		if !found || d.BlockTimestamp.After(latest) {
			latest = *d.BlockTimestamp
			found = true
		}
	}
	return latest, found
}

// TrendingScores scores each project over (latest-window, latest], where
// latest is the newest donation among donations rather than the wall clock.
func TrendingScores(donations []model.Donation, window time.Duration) map[model.ProjectKey]Trending {
	latest, ok := LatestTimestamp(donations)
	if !ok {
		return make(map[model.ProjectKey]Trending)
	}
	return TrendingScoresAt(donations, latest, window)
}

// TrendingScoresAt scores donations over (latest-window, latest]. latest is
// supplied by the caller so the window can be anchored on a wider dataset
// than the donations scored. Normalized scores are zero when the batch
// maximum is zero.
func TrendingScoresAt(donations []model.Donation, latest time.Time, window time.Duration) map[model.ProjectKey]Trending {
	out := make(map[model.ProjectKey]Trending)
	cutoff := latest.Add(-window)

	amounts := make(map[model.ProjectKey][]float64)
	for _, d := range donations {
		if d.BlockTimestamp == nil || !d.BlockTimestamp.After(cutoff) || d.BlockTimestamp.After(latest) {
			continue
		}
		amount, _ := d.USD()
		amounts[d.Project()] = append(amounts[d.Project()], amount.InexactFloat64())
	}

	var maxScore float64
	for k, a := range amounts {
		score := QFScore(a)
		out[k] = Trending{Raw: score}
		if score > maxScore {
			maxScore = score
		}
	}
	for k, t := range out {
		t.Score = Normalize(t.Raw, maxScore)
		out[k] = t
	}
	return out
}

// Normalize divides score by maxScore, returning 0 when maxScore is 0.
func Normalize(score, maxScore float64) float64 {
	if maxScore == 0 {
		return 0
	}
	return score / maxScore
}
