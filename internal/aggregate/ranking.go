package aggregate

import "sort"

func topK(projects []ProjectSummary, k int, keep func(ProjectSummary) bool, cmp func(a, b ProjectSummary) int) []ProjectSummary {
	if k <= 0 {
		return []ProjectSummary{}
	}
	cands := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		if keep == nil || keep(p) {
			cands = append(cands, p)
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if c := cmp(cands[i], cands[j]); c != 0 {
			return c > 0
		}
		return lessProject(cands[i], cands[j])
	})
	if len(cands) > k {
		cands = cands[:k]
	}
	return cands
}

// TopFunded ranks projects by total donated.
func TopFunded(projects []ProjectSummary, k int) []ProjectSummary {
	return topK(projects, k, nil, func(a, b ProjectSummary) int {
		return a.TotalDonated.Cmp(b.TotalDonated)
	})
}

// TopByDonors ranks projects by unique donor count.
func TopByDonors(projects []ProjectSummary, k int) []ProjectSummary {
	return topK(projects, k, nil, func(a, b ProjectSummary) int {
		return cmpInt64(a.UniqueDonors, b.UniqueDonors)
	})
}

// TopTrending ranks projects with a positive trending score.
func TopTrending(projects []ProjectSummary, k int) []ProjectSummary {
	return topK(projects, k, func(p ProjectSummary) bool { return p.TrendingRaw > 0 }, func(a, b ProjectSummary) int {
		switch {
		case a.TrendingRaw > b.TrendingRaw:
			return 1
		case a.TrendingRaw < b.TrendingRaw:
			return -1
		}
		return 0
	})
}

// TopByAverage ranks projects by average donation. Projects without
// donations have no average and are left out.
func TopByAverage(projects []ProjectSummary, k int) []ProjectSummary {
	return topK(projects, k, func(p ProjectSummary) bool { return p.AverageDonation.Valid }, func(a, b ProjectSummary) int {
		return a.AverageDonation.Decimal.Cmp(b.AverageDonation.Decimal)
	})
}

func cmpInt64(a, b int64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}
