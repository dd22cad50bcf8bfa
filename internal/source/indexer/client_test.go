package indexer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/circuitbreaker"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline/retry"
)

var pair = model.RoundKey{RoundID: "0xabc", ChainID: model.ChainPGN}

func newTestServer(t *testing.T, routes map[string]string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, ok := routes[r.URL.Path]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestDonations(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"/424/rounds/0xabc/votes.json": `[
			{"id":"v1","transaction":"0xT1","blockNumber":1234,"projectId":"p1","applicationId":"7","roundId":"0xabc",
			 "voter":"0xVoter","grantAddress":"0xGrant","token":"0x0000000000000000000000000000000000000000",
			 "amount":"1000000000000000","amountUSD":1.85},
			{"id":"v2","blockNumber":"0x10","projectId":"p2","voter":"0xV2","amount":5,"amountUSD":null}
		]`,
	})
	c := NewClient(srv.URL, slog.Default())

	got, err := c.Donations(context.Background(), pair)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "v1", got[0].ID)
	assert.Equal(t, int64(1234), got[0].BlockNumber)
	assert.Equal(t, "7", got[0].ApplicationID)
	assert.Equal(t, "1000000000000000", got[0].RawAmount)
	require.True(t, got[0].AmountUSD.Valid)
	assert.True(t, got[0].AmountUSD.Decimal.Equal(decimal.RequireFromString("1.85")))
	assert.Equal(t, pair, got[0].Round())

	assert.Equal(t, int64(16), got[1].BlockNumber)
	assert.Equal(t, "5", got[1].RawAmount)
	assert.False(t, got[1].AmountUSD.Valid)
}

func TestApplications(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"/424/rounds/0xabc/applications.json": `[
			{"id":"0","projectId":"p1","status":"APPROVED","amountUSD":120.5,"votes":4,"uniqueContributors":3,
			 "metadata":{"application":{"recipient":"0xR1","project":{"title":"Solar","description":"panels"}}}},
			{"id":1,"projectId":"p2","status":"PENDING","metadata":{}}
		]`,
	})
	c := NewClient(srv.URL, slog.Default())

	got, err := c.Applications(context.Background(), pair)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Solar", got[0].Title)
	assert.Equal(t, "0xR1", got[0].GrantAddress)
	assert.Equal(t, int64(4), got[0].DonationCount)
	assert.Equal(t, int64(3), got[0].UniqueDonorCount)
	assert.True(t, got[0].Approved())
	assert.Equal(t, "1", got[1].ApplicationID)
	assert.Empty(t, got[1].Title)
}

func TestRounds(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"/424/rounds.json": `[
			{"id":"0xABC","amountUSD":1000,"votes":10,"uniqueContributors":8,"matchAmountUSD":"50000",
			 "roundStartTime":"1692100800","roundEndTime":1693353540,"roundMetadata":{"name":"Climate"}}
		]`,
	})
	c := NewClient(srv.URL, slog.Default())

	got, err := c.Rounds(context.Background(), model.ChainPGN)
	require.NoError(t, err)
	require.Len(t, got, 1)
	r := got[0]
	assert.Equal(t, "0xabc", r.RoundID)
	assert.Equal(t, "Climate", r.RoundName)
	assert.True(t, r.MatchAmountUSD.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, int64(8), r.UniqueContributors)
	require.NotNil(t, r.DonationsStartTime)
	assert.True(t, r.DonationsStartTime.Equal(time.Date(2023, 8, 15, 12, 0, 0, 0, time.UTC)))
	require.NotNil(t, r.DonationsEndTime)
}

func TestIdentities_CachesScoreFile(t *testing.T) {
	srv, hits := newTestServer(t, map[string]string{
		"/passport_scores.json": `[
			{"address":"0xAAA","status":"DONE","evidence":{"rawScore":"22.5"}},
			{"address":"0xbbb","status":"DONE","evidence":null},
			{"status":"DONE"}
		]`,
	})
	c := NewClient(srv.URL, slog.Default(), WithScoreTTL(time.Minute))

	got, err := c.Identities(context.Background(), []string{"0xaaa", "0xBBB", "0xccc"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got["0xaaa"].Score)
	assert.InDelta(t, 22.5, *got["0xaaa"].Score, 1e-9)
	assert.InDelta(t, 0.0, *got["0xbbb"].Score, 1e-9)

	_, err = c.Identities(context.Background(), []string{"0xaaa"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"not found", http.StatusNotFound, false},
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, slog.Default()).Donations(context.Background(), pair)
			var statusErr *HTTPStatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tc.status, statusErr.StatusCode())
			assert.Equal(t, tc.transient, retry.Classify(err).IsTransient())
		})
	}
}

func TestMalformedJSONIsTerminal(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{"/424/rounds/0xabc/votes.json": `<html>`})

	_, err := NewClient(srv.URL, slog.Default()).Donations(context.Background(), pair)
	require.Error(t, err)
	assert.False(t, retry.Classify(err).IsTransient())
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	srv, hits := newTestServer(t, nil)
	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "indexer", FailureThreshold: 2, OpenTimeout: time.Hour})
	c := NewClient(srv.URL, slog.Default(), WithBreaker(breaker))

	for i := 0; i < 3; i++ {
		_, _ = c.Donations(context.Background(), pair)
	}
	_, err := c.Donations(context.Background(), pair)
	assert.True(t, errors.Is(err, circuitbreaker.ErrCircuitOpen))
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}
