package transform

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Strategy selects the per-feature fill value for missing entries.
type Strategy string

const (
	Mean         Strategy = "mean"
	Median       Strategy = "median"
	MostFrequent Strategy = "most_frequent"
)

// ParseStrategy accepts the strategy names used in config and flags.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case Mean, Median, MostFrequent:
		return st, nil
	case "":
		return Mean, nil
	default:
		return "", fmt.Errorf("unknown impute strategy %q (use mean, median or most_frequent)", s)
	}
}

// fitFill computes one fill value per feature from the observed (non-NaN)
// entries of a row-major matrix with the given width.
func fitFill(data []float64, width int, st Strategy, features []string) ([]float64, error) {
	rows := len(data) / width
	fill := make([]float64, width)
	col := make([]float64, 0, rows)
	for j := 0; j < width; j++ {
		col = col[:0]
		for r := 0; r < rows; r++ {
			if v := data[r*width+j]; !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		if len(col) == 0 {
			return nil, fmt.Errorf("impute %s: %w", features[j], ErrNoObservations)
		}
		switch st {
		case Median:
			fill[j] = median(col)
		case MostFrequent:
			fill[j] = mostFrequent(col)
		default:
			fill[j] = stat.Mean(col, nil)
		}
	}
	return fill, nil
}

func applyFill(data []float64, fill []float64) {
	width := len(fill)
	for i, v := range data {
		if math.IsNaN(v) {
			data[i] = fill[i%width]
		}
	}
}

func median(x []float64) float64 {
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// mostFrequent breaks ties toward the smallest value.
func mostFrequent(x []float64) float64 {
	counts := make(map[float64]int, len(x))
	for _, v := range x {
		counts[v]++
	}
	best, bestN := math.Inf(1), 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}
