package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

type TokenShare struct {
	TokenCode     string          `json:"token_code"`
	AmountUSD     decimal.Decimal `json:"amount_usd"`
	DonationCount int64           `json:"donation_count"`
	Percent       float64         `json:"percent"`
}

var hundred = decimal.NewFromInt(100)

// TokenDistribution sums USD per token code with each code's share of the
// total, largest first.
func TokenDistribution(donations []model.Donation) []TokenShare {
	byCode := make(map[string]*TokenShare)
	total := decimal.Zero
	for _, d := range donations {
		code := tokenCode(d)
		share, ok := byCode[code]
		if !ok {
			share = &TokenShare{TokenCode: code, AmountUSD: decimal.Zero}
			byCode[code] = share
		}
		amount, _ := d.USD()
		share.AmountUSD = share.AmountUSD.Add(amount)
		share.DonationCount++
		total = total.Add(amount)
	}

	out := make([]TokenShare, 0, len(byCode))
	for _, s := range byCode {
		if !total.IsZero() {
			s.Percent = s.AmountUSD.Mul(hundred).Div(total).InexactFloat64()
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].AmountUSD.Cmp(out[j].AmountUSD); c != 0 {
			return c > 0
		}
		return out[i].TokenCode < out[j].TokenCode
	})
	return out
}
