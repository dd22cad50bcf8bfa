package aggregate

import (
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/ufkhan97/gitcoin-grants-heroku/internal/domain/model"
)

const (
	DefaultEdgeCap  = 10000
	DefaultEdgeSeed = 42
)

// Edge links a donor identity to a project title, summed over donations.
type Edge struct {
	Donor        string          `json:"donor"`
	ProjectTitle string          `json:"project_title"`
	AmountUSD    decimal.Decimal `json:"amount_usd"`
}

type EdgeOptions struct {
	// MinAmountUSD, when valid, keeps edges whose amount is strictly greater.
	MinAmountUSD decimal.NullDecimal
	// MinDonorScore, when set, keeps donors whose score is strictly greater.
	// Donors without a score count as zero.
	MinDonorScore *float64
	// Scores maps lowercase donor addresses to trust scores.
	Scores map[string]float64
	// Cap bounds the number of returned edges; zero or less disables it.
	Cap  int
	Seed int64
}

func DefaultEdgeOptions() EdgeOptions {
	return EdgeOptions{Cap: DefaultEdgeCap, Seed: DefaultEdgeSeed}
}

type NetworkStats struct {
	Projects    int `json:"projects"`
	Donors      int `json:"donors"`
	Connections int `json:"connections"`
}

type EdgeSet struct {
	Edges []Edge `json:"edges"`
	// Total is the edge count before sampling.
	Total   int          `json:"total"`
	Sampled bool         `json:"sampled"`
	Stats   NetworkStats `json:"stats"`
}

type edgeKey struct {
	donor string
	title string
}

// DonorProjectEdges collapses donations into (donor, project title) edges.
// If more edges than opts.Cap survive filtering, a uniform sample of exactly
// Cap edges is drawn with opts.Seed; the same inputs and seed always yield
// the same sample.
func DonorProjectEdges(donations []model.Donation, titles map[model.ProjectKey]string, opts EdgeOptions) EdgeSet {
	sums := make(map[edgeKey]decimal.Decimal)
	for _, d := range donations {
		if opts.MinDonorScore != nil && opts.Scores[d.DonorAddress] <= *opts.MinDonorScore {
			continue
		}
		title, ok := titles[d.Project()]
		if !ok || title == "" {
			title = d.ProjectID
		}
		k := edgeKey{donor: d.Donor(), title: title}
		amount, _ := d.USD()
		if cur, ok := sums[k]; ok {
			sums[k] = cur.Add(amount)
		} else {
			sums[k] = amount
		}
	}

	edges := make([]Edge, 0, len(sums))
	for k, amount := range sums {
		if opts.MinAmountUSD.Valid && amount.Cmp(opts.MinAmountUSD.Decimal) <= 0 {
			continue
		}
		edges = append(edges, Edge{Donor: k.donor, ProjectTitle: k.title, AmountUSD: amount})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Donor != edges[j].Donor {
			return edges[i].Donor < edges[j].Donor
		}
		return edges[i].ProjectTitle < edges[j].ProjectTitle
	})

	set := EdgeSet{Total: len(edges)}
	if opts.Cap > 0 && len(edges) > opts.Cap {
		set.Edges = SampleEdges(edges, opts.Cap, opts.Seed)
		set.Sampled = true
	} else {
		set.Edges = edges
	}
	set.Stats = networkStats(set.Edges)
	return set
}

// SampleEdges draws n edges uniformly without replacement, preserving the
// input order of the chosen edges.
func SampleEdges(edges []Edge, n int, seed int64) []Edge {
	if n >= len(edges) {
		return append([]Edge(nil), edges...)
	}
	rng := rand.New(rand.NewSource(seed))
	idx := rng.Perm(len(edges))[:n]
	sort.Ints(idx)
	out := make([]Edge, n)
	for i, j := range idx {
		out[i] = edges[j]
	}
	return out
}

func networkStats(edges []Edge) NetworkStats {
	donors := make(map[string]struct{})
	projects := make(map[string]struct{})
	for _, e := range edges {
		donors[e.Donor] = struct{}{}
		projects[e.ProjectTitle] = struct{}{}
	}
	return NetworkStats{Projects: len(projects), Donors: len(donors), Connections: len(edges)}
}
