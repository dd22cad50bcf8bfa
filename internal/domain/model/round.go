package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundKey is a (round_id, chain_id) pair.
type RoundKey struct {
	RoundID string  `json:"round_id"`
	ChainID ChainID `json:"chain_id"`
}

func (k RoundKey) String() string {
	return k.ChainID.String() + ":" + k.RoundID
}

// CatalogEntry is one row of the program/round catalog.
type CatalogEntry struct {
	Program            string          `json:"program"`
	RoundType          RoundType       `json:"round_type"`
	RoundNumber        int             `json:"round_number"`
	RoundID            string          `json:"round_id"`
	ChainID            ChainID         `json:"chain_id"`
	RoundName          string          `json:"round_name"`
	StartingTime       *time.Time      `json:"starting_time,omitempty"`
	DonationsStartTime *time.Time      `json:"donations_start_time,omitempty"`
	DonationsEndTime   *time.Time      `json:"donations_end_time,omitempty"`
	MatchAmountUSD     decimal.Decimal `json:"match_amount_usd"`
	AmountUSD          decimal.Decimal `json:"amount_usd"`
	UniqueContributors int64           `json:"unique_contributors"`
}

func (e CatalogEntry) Key() RoundKey {
	return RoundKey{RoundID: e.RoundID, ChainID: e.ChainID}
}

// Round is a catalog entry merged with metadata from the primary source.
type Round struct {
	RoundID            string          `db:"round_id" json:"round_id"`
	ChainID            ChainID         `db:"chain_id" json:"chain_id"`
	RoundName          string          `db:"round_name" json:"round_name"`
	Program            string          `db:"program" json:"program"`
	RoundType          RoundType       `db:"round_type" json:"round_type"`
	RoundNumber        int             `db:"round_number" json:"round_number"`
	DonationsStartTime *time.Time      `db:"donations_start_time" json:"donations_start_time,omitempty"`
	DonationsEndTime   *time.Time      `db:"donations_end_time" json:"donations_end_time,omitempty"`
	MatchAmountUSD     decimal.Decimal `db:"match_amount_usd" json:"match_amount_usd"`
	AmountUSD          decimal.Decimal `db:"amount_usd" json:"amount_usd"`
	UniqueContributors int64           `db:"unique_contributors" json:"unique_contributors"`
}

func (r Round) Key() RoundKey {
	return RoundKey{RoundID: r.RoundID, ChainID: r.ChainID}
}

// Label is the display option used by round pickers.
func (r Round) Label() string {
	return r.RoundName + " (" + r.ChainID.Name() + ")"
}
