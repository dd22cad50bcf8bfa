package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

// GroupBy selects the partition a series is computed over.
type GroupBy string

const (
	GroupByProgram    GroupBy = "program"
	GroupByRound      GroupBy = "round"
	GroupByRoundToken GroupBy = "token"
	GroupByProject    GroupBy = "project"
)

// ParseGroupBy maps a query value to a GroupBy, defaulting to rounds.
func ParseGroupBy(s string) (GroupBy, bool) {
	switch GroupBy(s) {
	case "", GroupByRound:
		return GroupByRound, true
	case GroupByProgram, GroupByRoundToken, GroupByProject:
		return GroupBy(s), true
	default:
		return "", false
	}
}

type SeriesKey struct {
	RoundID   string        `json:"round_id,omitempty"`
	ChainID   model.ChainID `json:"chain_id,omitempty"`
	TokenCode string        `json:"token_code,omitempty"`
	ProjectID string        `json:"project_id,omitempty"`
}

// Point is one hour bucket. Hour is the bucket's floor in UTC.
type Point struct {
	Hour      time.Time       `json:"hour"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	Count     int64           `json:"count"`
}

type Series struct {
	Key    SeriesKey `json:"key"`
	Label  string    `json:"label"`
	Points []Point   `json:"points"`
}

// Total is the sum of all bucket amounts.
func (s Series) Total() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Points {
		total = total.Add(p.AmountUSD)
	}
	return total
}

// Count is the number of donations in the series.
func (s Series) Count() int64 {
	var n int64
	for _, p := range s.Points {
		n += p.Count
	}
	return n
}

// Last returns the final point, or the zero Point for an empty series.
func (s Series) Last() Point {
	if len(s.Points) == 0 {
		return Point{AmountUSD: decimal.Zero}
	}
	return s.Points[len(s.Points)-1]
}

func keyFor(d model.Donation, by GroupBy) SeriesKey {
	switch by {
	case GroupByProgram:
		return SeriesKey{}
	case GroupByRoundToken:
		return SeriesKey{RoundID: d.RoundID, ChainID: d.ChainID, TokenCode: tokenCode(d)}
	case GroupByProject:
		return SeriesKey{RoundID: d.RoundID, ChainID: d.ChainID, ProjectID: d.ProjectID}
	default:
		return SeriesKey{RoundID: d.RoundID, ChainID: d.ChainID}
	}
}

func labelFor(d model.Donation, by GroupBy) string {
	round := d.RoundName
	if round == "" {
		round = d.Round().String()
	}
	switch by {
	case GroupByProgram:
		return "all"
	case GroupByRoundToken:
		return round + " / " + tokenCode(d)
	case GroupByProject:
		return d.ProjectID
	default:
		return round
	}
}

func tokenCode(d model.Donation) string {
	if d.TokenCode == "" {
		return model.UnknownTokenCode
	}
	return d.TokenCode
}

// HourFloor truncates t to the start of its UTC hour.
func HourFloor(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

type bucket struct {
	amount decimal.Decimal
	count  int64
}

type seriesBuilder struct {
	key     SeriesKey
	label   string
	buckets map[time.Time]*bucket
	min     time.Time
	max     time.Time
}

// HourlySeries buckets donation amounts by the floor of their timestamp and
// returns one dense series per group spanning its first to last observed hour.
// Missing hours are zero-filled. Donations without a timestamp are skipped;
// callers account for them through DataQuality. Null amounts contribute zero
// to the amount but are still counted.
func HourlySeries(donations []model.Donation, by GroupBy) []Series {
	builders := make(map[SeriesKey]*seriesBuilder)
	for _, d := range donations {
		if d.BlockTimestamp == nil {
			continue
		}
		key := keyFor(d, by)
		b, ok := builders[key]
		hour := HourFloor(*d.BlockTimestamp)
		if !ok {
			b = &seriesBuilder{
				key:     key,
				label:   labelFor(d, by),
				buckets: make(map[time.Time]*bucket),
				min:     hour,
				max:     hour,
			}
			builders[key] = b
		}
		if hour.Before(b.min) {
			b.min = hour
		}
		if hour.After(b.max) {
			b.max = hour
		}
		bk, ok := b.buckets[hour]
		if !ok {
			bk = &bucket{amount: decimal.Zero}
			b.buckets[hour] = bk
		}
		amount, _ := d.USD()
		bk.amount = bk.amount.Add(amount)
		bk.count++
	}

	out := make([]Series, 0, len(builders))
	for _, b := range builders {
		s := Series{Key: b.key, Label: b.label}
		for h := b.min; !h.After(b.max); h = h.Add(time.Hour) {
			p := Point{Hour: h, AmountUSD: decimal.Zero}
			if bk, ok := b.buckets[h]; ok {
				p.AmountUSD = bk.amount
				p.Count = bk.count
			}
			s.Points = append(s.Points, p)
		}
		out = append(out, s)
	}
	sortSeries(out)
	return out
}

func sortSeries(out []Series) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		a, b := out[i].Key, out[j].Key
		if a.ChainID != b.ChainID {
			return a.ChainID < b.ChainID
		}
		if a.RoundID != b.RoundID {
			return a.RoundID < b.RoundID
		}
		if a.TokenCode != b.TokenCode {
			return a.TokenCode < b.TokenCode
		}
		return a.ProjectID < b.ProjectID
	})
}

// Cumulative returns the running sum of s in chronological order. The final
// point equals s.Total() and s.Count().
func Cumulative(s Series) Series {
	out := Series{Key: s.Key, Label: s.Label, Points: make([]Point, len(s.Points))}
	amount := decimal.Zero
	var count int64
	for i, p := range s.Points {
		amount = amount.Add(p.AmountUSD)
		count += p.Count
		out.Points[i] = Point{Hour: p.Hour, AmountUSD: amount, Count: count}
	}
	return out
}

// CumulativeAll applies Cumulative to every series.
func CumulativeAll(series []Series) []Series {
	out := make([]Series, len(series))
	for i, s := range series {
		out[i] = Cumulative(s)
	}
	return out
}
