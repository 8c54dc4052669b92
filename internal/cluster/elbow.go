package cluster

import (
	"context"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ElbowPoint is the inertia of one fit in a sweep.
type ElbowPoint struct {
	K       int     `json:"k"`
	Inertia float64 `json:"inertia"`
}

// Sweep fits base with every k in [minK, maxK] and records the inertia.
// minK must be at least 2. Values of k above the row count end the sweep early.
func Sweep(ctx context.Context, x mat.Matrix, base KMeans, minK, maxK int) ([]ElbowPoint, error) {
	if minK < 2 || maxK < minK {
		return nil, fmt.Errorf("elbow: invalid range [%d, %d]", minK, maxK)
	}
	rows, _ := x.Dims()
	var out []ElbowPoint
	for k := minK; k <= maxK && k <= rows; k++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		km := base
		km.K = k
		m, err := km.Fit(x)
		if err != nil {
			return out, err
		}
		out = append(out, ElbowPoint{K: k, Inertia: m.Inertia()})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("elbow with k>=%d on %d rows: %w", minK, rows, ErrTooFewRows)
	}
	return out, nil
}

// SuggestElbow returns the k whose point lies farthest from the straight line
// joining the first and last points of the normalized curve. With fewer than
// three points it returns the first k.
func SuggestElbow(points []ElbowPoint) int {
	if len(points) == 0 {
		return 0
	}
	if len(points) < 3 {
		return points[0].K
	}
	first, last := points[0], points[len(points)-1]
	dk := float64(last.K - first.K)
	di := first.Inertia - last.Inertia
	if dk == 0 || di <= 0 {
		return first.K
	}
	best, at := -1.0, first.K
	for _, p := range points {
		x := float64(p.K-first.K) / dk
		y := (first.Inertia - p.Inertia) / di
		// Distance from (x, y) to the line y = x.
		if d := math.Abs(y-x) / math.Sqrt2; y > x && d > best {
			best, at = d, p.K
		}
	}
	return at
}

// ElbowText renders the sweep as a bar chart, marking the suggested k.
func ElbowText(points []ElbowPoint, suggested int) string {
	var b strings.Builder
	b.WriteString("[ELBOW]\n")
	maxI := 0.0
	for _, p := range points {
		maxI = math.Max(maxI, p.Inertia)
	}
	for _, p := range points {
		n := 0
		if maxI > 0 {
			n = int(p.Inertia / maxI * 40)
		}
		mark := " "
		if p.K == suggested {
			mark = ">"
		}
		b.WriteString(fmt.Sprintf("%s k=%-3d | %-40s %.2f\n", mark, p.K, strings.Repeat("█", n), p.Inertia))
	}
	b.WriteString(fmt.Sprintf("Suggested k: %d (largest bend in the inertia curve; advisory)\n", suggested))
	return b.String()
}
