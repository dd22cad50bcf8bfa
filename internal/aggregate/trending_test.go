package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

func TestQFScore(t *testing.T) {
	assert.Equal(t, 16.0, QFScore([]float64{1, 1, 1, 1}))
	assert.Equal(t, 4.0, QFScore([]float64{4}))
	assert.Equal(t, 0.0, QFScore(nil))
	assert.Equal(t, 0.0, QFScore([]float64{0, -3}))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 0.0, Normalize(0, 0))
	assert.Equal(t, 0.0, Normalize(5, 0))
	assert.Equal(t, 0.25, Normalize(4, 16))
}

func TestTrendingScoresUseDatasetLatestNotWallClock(t *testing.T) {
	key1 := model.ProjectKey{ProjectID: "p1", RoundID: "r1", ChainID: model.ChainOptimism}
	key2 := model.ProjectKey{ProjectID: "p2", RoundID: "r1", ChainID: model.ChainOptimism}
	key3 := model.ProjectKey{ProjectID: "p3", RoundID: "r1", ChainID: model.ChainOptimism}

	donations := []model.Donation{
		// four small donations inside the window
		donation("0xa", "p1", "r1", "1", at(48*time.Hour)),
		donation("0xb", "p1", "r1", "1", at(47*time.Hour)),
		donation("0xc", "p1", "r1", "1", at(40*time.Hour)),
		donation("0xd", "p1", "r1", "1", at(30*time.Hour)),
		// one large donation inside the window
		donation("0xe", "p2", "r1", "4", at(25*time.Hour)),
		// exactly at the cutoff, excluded
		donation("0xf", "p3", "r1", "100", at(24*time.Hour)),
		donation("0xf", "p2", "r1", "100", at(0)),
		donation("0xg", "p2", "r1", "100", nil),
	}

	got := TrendingScores(donations, DefaultTrendingWindow)
	require.Contains(t, got, key1)
	require.Contains(t, got, key2)
	assert.NotContains(t, got, key3)

	assert.InDelta(t, 16.0, got[key1].Raw, 1e-9)
	assert.InDelta(t, 4.0, got[key2].Raw, 1e-9)
	assert.InDelta(t, 1.0, got[key1].Score, 1e-9)
	assert.InDelta(t, 0.25, got[key2].Score, 1e-9)
}

func TestTrendingScoresAllZero(t *testing.T) {
	donations := []model.Donation{
		donation("0xa", "p1", "r1", "0", at(0)),
		donation("0xb", "p2", "r1", "", at(0)),
	}
	got := TrendingScores(donations, DefaultTrendingWindow)
	for _, tr := range got {
		assert.Zero(t, tr.Raw)
		assert.Zero(t, tr.Score)
	}
}

func TestTrendingScoresNoTimestamps(t *testing.T) {
	got := TrendingScores([]model.Donation{donation("0xa", "p1", "r1", "3", nil)}, time.Hour)
	assert.Empty(t, got)
}

func TestTrendingScoresAt(t *testing.T) {
	donations := []model.Donation{
		donation("0xa", "p1", "r1", "4", at(0)),
		donation("0xb", "p2", "r1", "9", at(20*time.Hour)),
		donation("0xc", "p2", "r1", "16", at(30*time.Hour)),
	}
	tests := []struct {
		name   string
		latest time.Time
		want   map[string]float64
	}{
		{name: "window covers both", latest: t0.Add(20 * time.Hour), want: map[string]float64{"p1": 4, "p2": 9}},
		{name: "p1 slides out", latest: t0.Add(24 * time.Hour), want: map[string]float64{"p2": 9}},
		{name: "anchor past all", latest: t0.Add(72 * time.Hour), want: map[string]float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrendingScoresAt(donations, tt.latest, 24*time.Hour)
			require.Len(t, got, len(tt.want))
			for k, v := range got {
				assert.InDelta(t, tt.want[k.ProjectID], v.Raw, 1e-9, k.ProjectID)
			}
		})
	}
}
