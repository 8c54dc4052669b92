// Package compare measures how a target population spreads over the clusters
// of a reference population and describes the clusters that stand out.
package compare

import (
	"errors"
	"fmt"
)

// ErrEmpty is returned when a dataset has no rows to take proportions of.
var ErrEmpty = errors.New("no rows")

// SetAsideCluster is the pseudo-cluster id for rows set aside by the filter.
const SetAsideCluster = -1

// Distribution is the share of rows per cluster id for one dataset.
type Distribution struct {
	Name     string    `json:"name"`
	Clusters []int     `json:"clusters"`
	Counts   []int     `json:"counts"`
	Shares   []float64 `json:"shares"`
	Total    int       `json:"total"`
}

// Proportions counts labels in [0,k). When setAside is non-negative those rows
// are added as pseudo-cluster -1, listed first. Shares sum to 1.
func Proportions(name string, labels []int, k int, setAside int) (Distribution, error) {
	d := Distribution{Name: name}
	if setAside >= 0 {
		d.Clusters = append(d.Clusters, SetAsideCluster)
		d.Counts = append(d.Counts, setAside)
	}
	offset := len(d.Clusters)
	for c := 0; c < k; c++ {
		d.Clusters = append(d.Clusters, c)
		d.Counts = append(d.Counts, 0)
	}
	for i, l := range labels {
		if l < 0 || l >= k {
			return Distribution{}, fmt.Errorf("proportions %s: row %d has label %d outside [0,%d)", name, i, l, k)
		}
		d.Counts[offset+l]++
	}
	for _, n := range d.Counts {
		d.Total += n
	}
	if d.Total == 0 {
		return Distribution{}, fmt.Errorf("proportions %s: %w", name, ErrEmpty)
	}
	d.Shares = make([]float64, len(d.Counts))
	for i, n := range d.Counts {
		d.Shares[i] = float64(n) / float64(d.Total)
	}
	return d, nil
}

// Verdict says how a cluster is represented in the target relative to the reference.
type Verdict string

const (
	Over    Verdict = "over"
	Under   Verdict = "under"
	Neutral Verdict = "neutral"
)

// Row compares one cluster across the two datasets.
type Row struct {
	Cluster        int     `json:"cluster"`
	ReferenceCount int     `json:"reference_count"`
	TargetCount    int     `json:"target_count"`
	Reference      float64 `json:"reference_share"`
	Target         float64 `json:"target_share"`
	Difference     float64 `json:"difference"`
	// Ratio is target share over reference share; zero when the reference share is zero.
	Ratio   float64 `json:"ratio"`
	Verdict Verdict `json:"verdict"`
}

// Compare pairs two distributions over the same cluster ids. A cluster is
// over-represented when its ratio is at least 1+margin and under-represented
// when it is at most 1-margin.
func Compare(ref, target Distribution, margin float64) ([]Row, error) {
	if margin < 0 || margin >= 1 {
		return nil, fmt.Errorf("compare: margin must be within [0,1), got %v", margin)
	}
	if len(ref.Clusters) != len(target.Clusters) {
		return nil, fmt.Errorf("compare %s vs %s: %d cluster ids vs %d", ref.Name, target.Name, len(ref.Clusters), len(target.Clusters))
	}
	rows := make([]Row, len(ref.Clusters))
	for i, c := range ref.Clusters {
		if target.Clusters[i] != c {
			return nil, fmt.Errorf("compare %s vs %s: cluster id %d vs %d at position %d", ref.Name, target.Name, c, target.Clusters[i], i)
		}
		r := Row{
			Cluster:        c,
			ReferenceCount: ref.Counts[i],
			TargetCount:    target.Counts[i],
			Reference:      ref.Shares[i],
			Target:         target.Shares[i],
			Difference:     target.Shares[i] - ref.Shares[i],
			Verdict:        Neutral,
		}
		switch {
		case r.Reference == 0 && r.Target > 0:
			r.Verdict = Over
		case r.Reference > 0:
			r.Ratio = r.Target / r.Reference
			if r.Ratio >= 1+margin {
				r.Verdict = Over
			} else if r.Ratio <= 1-margin {
				r.Verdict = Under
			}
		}
		rows[i] = r
	}
	return rows, nil
}

// Notable returns the rows judged over- or under-represented, excluding the
// set-aside pseudo-cluster.
func Notable(rows []Row) []Row {
	var out []Row
	for _, r := range rows {
		if r.Cluster != SetAsideCluster && r.Verdict != Neutral {
			out = append(out, r)
		}
	}
	return out
}
