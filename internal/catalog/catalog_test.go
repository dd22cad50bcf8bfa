package catalog

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

const roundsCSV = `program,round_type,round_number,round_id,chain_id,round_name,starting_time,donations_start_time,donations_end_time,match_amount_in_usd
GG18,program,1,0x12BB5BBBFE596DBC489D209299B8302C3300FA40,424.0,Web3 Open Source Software,2023-08-15 12:00:00,2023-08-15T12:00:00Z,2023-08-29T23:59:00Z,400000
GG18,ecosystem,2,0x8DE918F0163B2021839A8D84954DD7E8E151326D,10,Zuzalu,2023-08-15 12:00:00,,,50000

GG18,program,3,0xa8b3bbbd8f1e5cf8a5ba2b6ec5ea8a0c69bd4a3e,424,Climate Solutions,2023-08-15 12:00:00,,,350000
,program,9,0xdead,10,orphan,,,,
GG19,program,1,0x5eb890e41c8d2cff75ba77eb5d0fcb6c9a5ba58e,424,Web3 Community,2023-11-15,,,
`

func mustParse(t *testing.T) *Catalog {
	t.Helper()
	c, err := ParseCSV(strings.NewReader(roundsCSV))
	require.NoError(t, err)
	return c
}

func TestParseCSV(t *testing.T) {
	c := mustParse(t)

	entries := c.Entries()
	require.Len(t, entries, 4)
	first := entries[0]
	assert.Equal(t, "GG18", first.Program)
	assert.Equal(t, model.RoundTypeProgram, first.RoundType)
	assert.Equal(t, "0x12bb5bbbfe596dbc489d209299b8302c3300fa40", first.RoundID)
	assert.Equal(t, model.ChainPGN, first.ChainID)
	require.NotNil(t, first.StartingTime)
	assert.True(t, first.StartingTime.Equal(time.Date(2023, 8, 15, 12, 0, 0, 0, time.UTC)))
	assert.True(t, first.MatchAmountUSD.Equal(decimal.NewFromInt(400000)))
	assert.Nil(t, entries[1].DonationsStartTime)

	assert.Equal(t, []string{"GG18", "GG19"}, c.Programs())
}

func TestParseCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "empty catalog"},
		{"missing column", "program,round_id,chain_id\nGG18,0x1,10\n", `missing column "round_type"`},
		{"bad time", "program,round_type,round_number,round_id,chain_id,round_name,starting_time\nGG18,program,1,0x1,10,A,yesterday\n", "starting_time"},
		{"bad amount", "program,round_type,round_number,round_id,chain_id,round_name,match_amount_in_usd\nGG18,program,1,0x1,10,A,lots\n", "match_amount_in_usd"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tc.input))
			require.Error(t, err)
			var cfgErr *model.ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseYAML(t *testing.T) {
	doc := `
- program: GG20
  round_type: program
  round_number: 1
  round_id: "0xABC"
  chain_id: 42161
  round_name: Hackathon Alumni
  donations_start_time: 2024-04-23T12:00:00Z
  match_amount_in_usd: 100000
- program: ""
  round_id: "0xignored"
  chain_id: 10
`
	c, err := ParseYAML(strings.NewReader(doc))
	require.NoError(t, err)
	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "0xabc", entries[0].RoundID)
	assert.Equal(t, model.ChainArbitrum, entries[0].ChainID)
	assert.Equal(t, 1, entries[0].RoundNumber)
	require.NotNil(t, entries[0].DonationsStartTime)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "all_rounds.csv")
	require.NoError(t, os.WriteFile(path, []byte(roundsCSV), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 4)

	_, err = LoadFile(filepath.Join(dir, "missing.csv"))
	var cfgErr *model.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

type fakeRounds struct {
	rounds map[model.ChainID][]model.Round
	err    error
	calls  int
}

func (f *fakeRounds) Rounds(_ context.Context, chain model.ChainID) ([]model.Round, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rounds[chain], nil
}

func TestResolve_UnknownProgramIsNotFound(t *testing.T) {
	r := NewResolver(slog.Default(), mustParse(t), "indexer", nil)

	res, err := r.Resolve(context.Background(), "GG99")
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)
	var cfgErr *model.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "program", cfgErr.Field)
}

func TestResolve_SortsByTypeThenName(t *testing.T) {
	r := NewResolver(slog.Default(), mustParse(t), "indexer", nil)

	res, err := r.Resolve(context.Background(), "GG18")
	require.NoError(t, err)
	names := make([]string, 0, len(res.Rounds))
	for _, round := range res.Rounds {
		names = append(names, round.RoundName)
	}
	assert.Equal(t, []string{"Zuzalu", "Climate Solutions", "Web3 Open Source Software"}, names)
	assert.Len(t, res.Keys(), 3)
}

func TestResolve_IsIdempotent(t *testing.T) {
	r := NewResolver(slog.Default(), mustParse(t), "indexer", nil)

	first, err := r.Resolve(context.Background(), "GG18")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "GG18")
	require.NoError(t, err)
	assert.Equal(t, first.Keys(), second.Keys())
}

func TestResolve_MergesSourceMetadata(t *testing.T) {
	end := time.Date(2023, 8, 30, 0, 0, 0, 0, time.UTC)
	src := &fakeRounds{rounds: map[model.ChainID][]model.Round{
		model.ChainPGN: {{
			RoundID:            "0x12BB5BBBFE596DBC489D209299B8302C3300FA40",
			RoundName:          "OSS (indexer name)",
			DonationsEndTime:   &end,
			AmountUSD:          decimal.NewFromInt(1234),
			UniqueContributors: 77,
		}},
	}}
	r := NewResolver(slog.Default(), mustParse(t), "indexer", src)

	res, err := r.Resolve(context.Background(), "GG18")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "one metadata call per chain")

	var oss model.Round
	for _, round := range res.Rounds {
		if round.RoundID == "0x12bb5bbbfe596dbc489d209299b8302c3300fa40" {
			oss = round
		}
	}
	assert.Equal(t, "Web3 Open Source Software", oss.RoundName, "catalog name wins")
	assert.True(t, oss.MatchAmountUSD.Equal(decimal.NewFromInt(400000)))
	assert.True(t, oss.AmountUSD.Equal(decimal.NewFromInt(1234)))
	assert.Equal(t, int64(77), oss.UniqueContributors)
	require.NotNil(t, oss.DonationsEndTime)
	assert.True(t, oss.DonationsEndTime.Equal(end))
}

func TestResolve_SourceFailureIsFetchError(t *testing.T) {
	src := &fakeRounds{err: errors.New("decode rounds: invalid character '<'")}
	r := NewResolver(slog.Default(), mustParse(t), "indexer", src)

	_, err := r.Resolve(context.Background(), "GG19")
	var fe *model.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, model.FetchRounds, fe.Kind)
	assert.Equal(t, model.ChainPGN, fe.ChainID)
}
