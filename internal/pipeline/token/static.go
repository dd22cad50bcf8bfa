package token

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"gopkg.in/yaml.v3"
)

// StaticRegistry serves a fixed token list. Tokens with an empty chain id
// apply to every chain unless a chain-specific entry overrides them.
type StaticRegistry struct {
	tokens []model.Token
}

func NewStaticRegistry(tokens []model.Token) *StaticRegistry {
	return &StaticRegistry{tokens: append([]model.Token(nil), tokens...)}
}

// DefaultTokens covers the native token and DAI, the two tokens accepted by
// the early grants rounds.
func DefaultTokens() []model.Token {
	return []model.Token{
		{Address: model.NativeTokenAddress, Code: "ETH", Decimals: 18},
		{Address: "0x6b175474e89094c44da98b954eedeac495271d0f", Code: "DAI", Decimals: 18, ChainID: model.ChainEthereum},
		{Address: "0xda10009cbd5d07dd0cecc66161fc93d7c9000da1", Code: "DAI", Decimals: 18, ChainID: model.ChainOptimism},
	}
}

// All returns every token in the registry.
func (r *StaticRegistry) All() []model.Token {
	return append([]model.Token(nil), r.tokens...)
}

func (r *StaticRegistry) Tokens(_ context.Context, chain model.ChainID) ([]model.Token, error) {
	out := make([]model.Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		if t.ChainID == "" || t.ChainID == chain {
			out = append(out, t)
		}
	}
	return out, nil
}

type fileToken struct {
	ChainID  string `yaml:"chain_id"`
	Address  string `yaml:"address"`
	Code     string `yaml:"code"`
	Decimals int32  `yaml:"decimals"`
	PriceUSD string `yaml:"price_usd"`
}

type fileTokens struct {
	Tokens []fileToken `yaml:"tokens"`
}

// LoadFile reads a YAML token list:
//
//	tokens:
//	  - chain_id: "10"
//	    address: "0xda10..."
//	    code: DAI
//	    decimals: 18
//	    price_usd: "1.00"
func LoadFile(path string) (*StaticRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*StaticRegistry, error) {
	var f fileTokens
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	tokens := make([]model.Token, 0, len(f.Tokens))
	for i, ft := range f.Tokens {
		if ft.Address == "" || ft.Code == "" {
			return nil, fmt.Errorf("token %d: address and code are required", i)
		}
		tok := model.Token{
			ChainID:  model.ChainID(ft.ChainID),
			Address:  ft.Address,
			Code:     ft.Code,
			Decimals: ft.Decimals,
		}
		if ft.PriceUSD != "" {
			price, err := decimal.NewFromString(ft.PriceUSD)
			if err != nil {
				return nil, fmt.Errorf("token %d price_usd: %w", i, err)
			}
			tok.PriceUSD = decimal.NewNullDecimal(price)
		}
		tokens = append(tokens, tok)
	}
	return NewStaticRegistry(tokens), nil
}
