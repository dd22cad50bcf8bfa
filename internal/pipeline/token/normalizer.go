package token

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/cache"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/pipeline/identity"
)

// Registry lists the tokens known on a chain.
type Registry interface {
	Tokens(ctx context.Context, chain model.ChainID) ([]model.Token, error)
}

type table map[string]model.Token

// Normalizer labels donations with token codes. Registry tables are cached
// per chain; an unreachable registry degrades to UNKNOWN labels.
type Normalizer struct {
	registries []Registry
	tables     *cache.Memo[tableKey, table]
	logger     *slog.Logger
}

type tableKey struct {
	registry int
	chain    model.ChainID
}

func NewNormalizer(logger *slog.Logger, ttl time.Duration, registries ...Registry) *Normalizer {
	return &Normalizer{
		registries: registries,
		tables:     cache.NewMemo[tableKey, table](256, ttl),
		logger:     logger.With("component", "token_normalizer"),
	}
}

// Normalize returns a copy of donations with TokenAddress lowercased and
// TokenCode set. USD amounts are never removed; a missing amount is derived
// from raw units when the token carries a USD price.
func (n *Normalizer) Normalize(ctx context.Context, donations []model.Donation, dq *model.DataQuality) []model.Donation {
	tables := make(map[model.ChainID][]table)
	for _, d := range donations {
		if _, ok := tables[d.ChainID]; ok {
			continue
		}
		tables[d.ChainID] = n.load(ctx, d.ChainID, dq)
	}

	out := make([]model.Donation, len(donations))
	var unknown, derived int64
	for i, d := range donations {
		d.TokenAddress = identity.CanonicalAddress(d.TokenAddress)
		tok, ok := lookup(tables[d.ChainID], d.TokenAddress)
		if !ok {
			d.TokenCode = model.UnknownTokenCode
			unknown++
			out[i] = d
			continue
		}
		d.TokenCode = tok.Code
		if !d.AmountUSD.Valid {
			if amount, ok := DeriveUSD(d.RawAmount, tok); ok {
				d.AmountUSD = decimal.NewNullDecimal(amount)
				derived++
			}
		}
		out[i] = d
	}
	dq.Add(model.IssueUnknownToken, unknown)
	dq.Add(model.IssueDerivedAmount, derived)
	return out
}

func (n *Normalizer) load(ctx context.Context, chain model.ChainID, dq *model.DataQuality) []table {
	out := make([]table, 0, len(n.registries))
	for i, reg := range n.registries {
		t, _, err := n.tables.Get(ctx, tableKey{registry: i, chain: chain}, func(ctx context.Context) (table, error) {
			tokens, err := reg.Tokens(ctx, chain)
			if err != nil {
				return nil, err
			}
			return buildTable(chain, tokens), nil
		})
		if err != nil {
			n.logger.Warn("token registry unavailable, labelling tokens unknown",
				"chain_id", chain,
				"registry", i,
				"error", err,
			)
			dq.Note(model.QualityNote{Issue: model.IssueTokenRegistryDown, ChainID: chain, Detail: err.Error()})
			continue
		}
		out = append(out, t)
	}
	return out
}

func buildTable(chain model.ChainID, tokens []model.Token) table {
	t := make(table, len(tokens))
	for _, tok := range tokens {
		if tok.ChainID != "" && tok.ChainID != chain {
			continue
		}
		key := identity.CanonicalAddress(tok.Address)
		if existing, ok := t[key]; ok && existing.ChainID == chain && tok.ChainID == "" {
			continue
		}
		t[key] = tok
	}
	return t
}

func lookup(tables []table, address string) (model.Token, bool) {
	for _, t := range tables {
		if tok, ok := t[strings.ToLower(address)]; ok {
			return tok, true
		}
	}
	return model.Token{}, false
}

// DeriveUSD converts raw base units to USD using the token's decimals and
// price. It reports false when the price is unknown or the amount is not an
// integer.
func DeriveUSD(raw string, tok model.Token) (decimal.Decimal, bool) {
	if !tok.PriceUSD.Valid || strings.TrimSpace(raw) == "" {
		return decimal.Zero, false
	}
	canonical, err := identity.CanonicalAmount(raw)
	if err != nil {
		return decimal.Zero, false
	}
	units, err := decimal.NewFromString(canonical)
	if err != nil {
		return decimal.Zero, false
	}
	return units.Shift(-tok.Decimals).Mul(tok.PriceUSD.Decimal), true
}
