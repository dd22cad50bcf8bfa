package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

const DefaultLeaderboardSize = 100

type DonorStat struct {
	Donor         string          `json:"donor"`
	TotalUSD      decimal.Decimal `json:"total_usd"`
	DonationCount int64           `json:"donation_count"`
	ProjectCount  int64           `json:"project_count"`
	FirstDonation *time.Time      `json:"first_donation,omitempty"`
	LastDonation  *time.Time      `json:"last_donation,omitempty"`
}

type donorAcc struct {
	stat     DonorStat
	projects map[model.ProjectKey]struct{}
}

// DonorStats aggregates donations per donor identity, ordered by total USD
// descending.
func DonorStats(donations []model.Donation) []DonorStat {
	accs := make(map[string]*donorAcc)
	for _, d := range donations {
		donor := d.Donor()
		acc, ok := accs[donor]
		if !ok {
			acc = &donorAcc{
				stat:     DonorStat{Donor: donor, TotalUSD: decimal.Zero},
				projects: make(map[model.ProjectKey]struct{}),
			}
			accs[donor] = acc
		}
		amount, _ := d.USD()
		acc.stat.TotalUSD = acc.stat.TotalUSD.Add(amount)
		acc.stat.DonationCount++
		acc.projects[d.Project()] = struct{}{}
		if ts := d.BlockTimestamp; ts != nil {
			if acc.stat.FirstDonation == nil || ts.Before(*acc.stat.FirstDonation) {
				t := *ts
				acc.stat.FirstDonation = &t
			}
			if acc.stat.LastDonation == nil || ts.After(*acc.stat.LastDonation) {
				t := *ts
				acc.stat.LastDonation = &t
			}
		}
	}

	out := make([]DonorStat, 0, len(accs))
	for _, acc := range accs {
		acc.stat.ProjectCount = int64(len(acc.projects))
		out = append(out, acc.stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalUSD.Cmp(out[j].TotalUSD); c != 0 {
			return c > 0
		}
		return out[i].Donor < out[j].Donor
	})
	return out
}

// MostGenerous returns the n donors with the largest total.
func MostGenerous(stats []DonorStat, n int) []DonorStat {
	out := append([]DonorStat(nil), stats...)
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].TotalUSD.Cmp(out[j].TotalUSD); c != 0 {
			return c > 0
		}
		return out[i].Donor < out[j].Donor
	})
	return head(out, n)
}

// MostLoving returns the n donors supporting the most distinct projects.
func MostLoving(stats []DonorStat, n int) []DonorStat {
	out := append([]DonorStat(nil), stats...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProjectCount != out[j].ProjectCount {
			return out[i].ProjectCount > out[j].ProjectCount
		}
		return out[i].Donor < out[j].Donor
	})
	return head(out, n)
}

func head(stats []DonorStat, n int) []DonorStat {
	if n < 0 {
		n = 0
	}
	if len(stats) > n {
		return stats[:n]
	}
	return stats
}

// DonorFilter selects donations to a project id or a grant recipient
// address. Empty fields match anything.
type DonorFilter struct {
	ProjectID    string
	GrantAddress string
}

func (f DonorFilter) Empty() bool {
	return f.ProjectID == "" && f.GrantAddress == ""
}

func (f DonorFilter) match(d model.Donation) bool {
	if f.ProjectID != "" && d.ProjectID != f.ProjectID {
		return false
	}
	if f.GrantAddress != "" && !strings.EqualFold(d.GrantAddress, f.GrantAddress) {
		return false
	}
	return true
}

// DonorsFor lists the donors of the projects selected by f.
func DonorsFor(donations []model.Donation, f DonorFilter) []DonorStat {
	selected := make([]model.Donation, 0)
	for _, d := range donations {
		if f.match(d) {
			selected = append(selected, d)
		}
	}
	return DonorStats(selected)
}
