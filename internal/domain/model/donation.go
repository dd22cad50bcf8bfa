package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Donation is a single on-chain contribution ("vote") to a project in a round.
// Stages never mutate a Donation they received; they copy and return new slices.
type Donation struct {
	ID              string              `db:"id" json:"id,omitempty"`
	TransactionHash string              `db:"tx_hash" json:"tx_hash,omitempty"`
	DonorAddress    string              `db:"donor_address" json:"donor_address"`
	DonorIdentity   string              `db:"-" json:"donor_identity,omitempty"`
	ProjectID       string              `db:"project_id" json:"project_id"`
	ApplicationID   string              `db:"application_id" json:"application_id,omitempty"`
	GrantAddress    string              `db:"grant_address" json:"grant_address,omitempty"`
	RoundID         string              `db:"round_id" json:"round_id"`
	ChainID         ChainID             `db:"chain_id" json:"chain_id"`
	RoundName       string              `db:"-" json:"round_name,omitempty"`
	TokenAddress    string              `db:"token_address" json:"token_address"`
	TokenCode       string              `db:"-" json:"token_code,omitempty"`
	RawAmount       string              `db:"raw_amount" json:"raw_amount"`
	AmountUSD       decimal.NullDecimal `db:"amount_usd" json:"amount_usd"`
	BlockNumber     int64               `db:"block_number" json:"block_number"`
	BlockTimestamp  *time.Time          `db:"-" json:"block_timestamp,omitempty"`
}

// Round returns the (round, chain) pair the donation belongs to.
func (d Donation) Round() RoundKey {
	return RoundKey{RoundID: d.RoundID, ChainID: d.ChainID}
}

// Project returns the key of the project the donation funds.
func (d Donation) Project() ProjectKey {
	return ProjectKey{ProjectID: d.ProjectID, RoundID: d.RoundID, ChainID: d.ChainID}
}

// Donor returns the resolved identity, falling back to the address.
func (d Donation) Donor() string {
	if d.DonorIdentity != "" {
		return d.DonorIdentity
	}
	return d.DonorAddress
}

// DedupKey is the natural key under which verbatim duplicate rows collapse.
type DedupKey struct {
	DonorAddress string
	ProjectID    string
	RoundID      string
	ChainID      ChainID
	BlockNumber  int64
	RawAmount    string
}

func (d Donation) DedupKey() DedupKey {
	return DedupKey{
		DonorAddress: d.DonorAddress,
		ProjectID:    d.ProjectID,
		RoundID:      d.RoundID,
		ChainID:      d.ChainID,
		BlockNumber:  d.BlockNumber,
		RawAmount:    d.RawAmount,
	}
}

// USD returns the usable USD amount and whether it was present and valid.
// Null and negative amounts count as zero.
func (d Donation) USD() (decimal.Decimal, bool) {
	if !d.AmountUSD.Valid || d.AmountUSD.Decimal.IsNegative() {
		return decimal.Zero, false
	}
	return d.AmountUSD.Decimal, true
}

// Application is a project's application to a round.
type Application struct {
	ApplicationID    string          `db:"application_id" json:"application_id,omitempty"`
	ProjectID        string          `db:"project_id" json:"project_id"`
	RoundID          string          `db:"round_id" json:"round_id"`
	ChainID          ChainID         `db:"chain_id" json:"chain_id"`
	RoundName        string          `db:"-" json:"round_name,omitempty"`
	Title            string          `db:"title" json:"title"`
	Description      string          `db:"description" json:"description,omitempty"`
	GrantAddress     string          `db:"grant_address" json:"grant_address"`
	Status           ProjectStatus   `db:"status" json:"status"`
	AmountUSD        decimal.Decimal `db:"amount_usd" json:"amount_usd"`
	DonationCount    int64           `db:"donation_count" json:"donation_count"`
	UniqueDonorCount int64           `db:"unique_donor_count" json:"unique_donor_count"`
}

func (a Application) Project() ProjectKey {
	return ProjectKey{ProjectID: a.ProjectID, RoundID: a.RoundID, ChainID: a.ChainID}
}

func (a Application) Approved() bool {
	return a.Status == ProjectStatusApproved
}

// ProjectKey identifies a project inside one round. The same project id or
// title in another round is a different entity.
type ProjectKey struct {
	ProjectID string  `json:"project_id"`
	RoundID   string  `json:"round_id"`
	ChainID   ChainID `json:"chain_id"`
}
