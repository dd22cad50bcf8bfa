package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// UnknownTokenCode labels donations whose token is not in the registry.
const UnknownTokenCode = "UNKNOWN"

const NativeTokenAddress = "0x0000000000000000000000000000000000000000"

// Token maps a chain-scoped contract address to a human token code.
type Token struct {
	ChainID  ChainID             `db:"chain_id" json:"chain_id"`
	Address  string              `db:"token_address" json:"address"`
	Code     string              `db:"token_code" json:"code"`
	Decimals int32               `db:"decimals" json:"decimals"`
	PriceUSD decimal.NullDecimal `db:"price_usd" json:"price_usd,omitempty"`
}

// Key returns the lowercase lookup key for the token address.
func (t Token) Key() string {
	return strings.ToLower(t.Address)
}

// Identity maps a donor address to a display name and an optional trust score.
type Identity struct {
	Address string   `db:"address" json:"address"`
	Name    string   `db:"name" json:"name,omitempty"`
	Score   *float64 `db:"score" json:"score,omitempty"`
}
