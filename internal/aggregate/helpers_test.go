package aggregate

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

var t0 = time.Date(2023, 8, 15, 12, 0, 0, 0, time.UTC)

func at(offset time.Duration) *time.Time {
	ts := t0.Add(offset)
	return &ts
}

func usd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func donation(donor, project, round string, amount string, ts *time.Time) model.Donation {
	d := model.Donation{
		DonorAddress:   donor,
		ProjectID:      project,
		RoundID:        round,
		ChainID:        model.ChainOptimism,
		RoundName:      "Round " + round,
		TokenAddress:   model.NativeTokenAddress,
		TokenCode:      "ETH",
		RawAmount:      "1",
		BlockTimestamp: ts,
	}
	if amount != "" {
		d.AmountUSD = usd(amount)
	}
	return d
}

func app(project, round, title string, status model.ProjectStatus) model.Application {
	return model.Application{
		ProjectID: project,
		RoundID:   round,
		ChainID:   model.ChainOptimism,
		RoundName: "Round " + round,
		Title:     title,
		Status:    status,
	}
}

func sumDonations(donations []model.Donation) decimal.Decimal {
	total := decimal.Zero
	for _, d := range donations {
		amount, _ := d.USD()
		total = total.Add(amount)
	}
	return total
}
