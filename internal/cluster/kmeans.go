// Package cluster implements seeded k-means over dense matrices and the
// inertia sweep used to choose a cluster count.
package cluster

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/segloom-cli/internal/dataset"
)

// ErrTooFewRows is returned when there are fewer rows than clusters.
var ErrTooFewRows = errors.New("fewer rows than clusters")

// KMeans holds the settings for one clustering fit.
type KMeans struct {
	K         int
	Seed      uint64
	MaxIter   int
	Restarts  int
	Tolerance float64
}

func (km KMeans) withDefaults() KMeans {
	if km.MaxIter <= 0 {
		km.MaxIter = 300
	}
	if km.Restarts <= 0 {
		km.Restarts = 1
	}
	if km.Tolerance <= 0 {
		km.Tolerance = 1e-4
	}
	return km
}

// Model is a fitted clustering. It is never modified after Fit.
type Model struct {
	centroids  [][]float64
	inertia    float64
	iterations int
	seed       uint64
}

// Fit runs k-means++ seeding followed by Lloyd iterations, Restarts times,
// and keeps the run with the lowest inertia. The same seed and data always
// produce the same model.
func (km KMeans) Fit(x mat.Matrix) (*Model, error) {
	km = km.withDefaults()
	rows, cols := x.Dims()
	if km.K < 1 {
		return nil, fmt.Errorf("kmeans: cluster count must be >= 1, got %d", km.K)
	}
	if rows < km.K {
		return nil, fmt.Errorf("kmeans with k=%d on %d rows: %w", km.K, rows, ErrTooFewRows)
	}
	points := make([][]float64, rows)
	for i := range points {
		points[i] = mat.Row(nil, i, x)
	}
	tol := km.Tolerance * meanVariance(points, cols)

	rng := rand.New(rand.NewPCG(km.Seed, km.Seed^0x9e3779b97f4a7c15))
	var best *Model
	for run := 0; run < km.Restarts; run++ {
		m := lloyd(points, seedPlusPlus(points, km.K, rng), km.MaxIter, tol)
		if best == nil || m.inertia < best.inertia {
			best = m
		}
	}
	best.seed = km.Seed
	return best, nil
}

func meanVariance(points [][]float64, cols int) float64 {
	if cols == 0 {
		return 0
	}
	col := make([]float64, len(points))
	sum := 0.0
	for j := 0; j < cols; j++ {
		for i, p := range points {
			col[i] = p[j]
		}
		_, v := stat.PopMeanVariance(col, nil)
		sum += v
	}
	return sum / float64(cols)
}

// seedPlusPlus picks initial centroids with probability proportional to the
// squared distance from the nearest centroid already chosen.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(points[rng.IntN(len(points))]))
	d2 := make([]float64, len(points))
	for i, p := range points {
		d2[i] = sqDist(p, centers[0])
	}
	for len(centers) < k {
		total := floats.Sum(d2)
		next := 0
		if total == 0 {
			next = rng.IntN(len(points))
		} else {
			target := rng.Float64() * total
			for i, d := range d2 {
				target -= d
				if target <= 0 {
					next = i
					break
				}
				next = i
			}
		}
		c := clone(points[next])
		centers = append(centers, c)
		for i, p := range points {
			if d := sqDist(p, c); d < d2[i] {
				d2[i] = d
			}
		}
	}
	return centers
}

func lloyd(points [][]float64, centers [][]float64, maxIter int, tol float64) *Model {
	k, dims := len(centers), len(centers[0])
	labels := make([]int, len(points))
	iter := 0
	for iter < maxIter {
		iter++
		for i, p := range points {
			labels[i], _ = nearest(centers, p)
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, p := range points {
			floats.Add(sums[labels[i]], p)
			counts[labels[i]]++
		}
		for c := range centers {
			if counts[c] > 0 {
				continue
			}
			// Empty cluster: move it to the point farthest from its centroid,
			// taking that point out of the cluster it leaves.
			far := farthest(points, centers, labels, counts)
			old := labels[far]
			floats.Sub(sums[old], points[far])
			counts[old]--
			sums[c] = clone(points[far])
			counts[c] = 1
			labels[far] = c
		}
		shift := 0.0
		for c := range centers {
			floats.Scale(1/float64(counts[c]), sums[c])
			shift += sqDist(centers[c], sums[c])
			centers[c] = sums[c]
		}
		if shift <= tol {
			break
		}
	}
	inertia := 0.0
	for _, p := range points {
		_, d := nearest(centers, p)
		inertia += d
	}
	return &Model{centroids: centers, inertia: inertia, iterations: iter}
}

// farthest returns the point farthest from its own centroid among clusters
// that keep at least one other point.
func farthest(points, centers [][]float64, labels, counts []int) int {
	best, at := -1.0, 0
	for i, p := range points {
		if counts[labels[i]] < 2 {
			continue
		}
		if d := sqDist(p, centers[labels[i]]); d > best {
			best, at = d, i
		}
	}
	return at
}

func nearest(centers [][]float64, p []float64) (int, float64) {
	best, at := math.Inf(1), 0
	for c, ctr := range centers {
		if d := sqDist(p, ctr); d < best {
			best, at = d, c
		}
	}
	return at, best
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

func clone(v []float64) []float64 { return append([]float64(nil), v...) }

// Predict assigns every row of x to its nearest centroid. Every row gets a
// label; an empty matrix yields no labels.
func (m *Model) Predict(x mat.Matrix) ([]int, error) {
	rows, cols := x.Dims()
	if rows == 0 {
		return []int{}, nil
	}
	if cols != m.Dims() {
		return nil, &dataset.ShapeError{Stage: "predict", What: "dimensions", Want: m.Dims(), Got: cols}
	}
	labels := make([]int, rows)
	row := make([]float64, cols)
	for i := range labels {
		mat.Row(row, i, x)
		labels[i], _ = nearest(m.centroids, row)
	}
	return labels, nil
}

func (m *Model) K() int { return len(m.centroids) }

func (m *Model) Dims() int { return len(m.centroids[0]) }

// Inertia is the sum of squared distances of the training rows to their centroid.
func (m *Model) Inertia() float64 { return m.inertia }

func (m *Model) Iterations() int { return m.iterations }

// Centroid returns a copy of centroid c.
func (m *Model) Centroid(c int) []float64 { return clone(m.centroids[c]) }

type modelState struct {
	Seed       uint64      `json:"seed"`
	Inertia    float64     `json:"inertia"`
	Iterations int         `json:"iterations"`
	Centroids  [][]float64 `json:"centroids"`
}

func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(modelState{Seed: m.seed, Inertia: m.inertia, Iterations: m.iterations, Centroids: m.centroids})
}

func (m *Model) UnmarshalJSON(b []byte) error {
	var s modelState
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if len(s.Centroids) == 0 || len(s.Centroids[0]) == 0 {
		return errors.New("load model: no centroids")
	}
	for i, c := range s.Centroids {
		if len(c) != len(s.Centroids[0]) {
			return &dataset.ShapeError{Stage: "load model", What: fmt.Sprintf("centroid %d dimensions", i), Want: len(s.Centroids[0]), Got: len(c)}
		}
	}
	*m = Model{centroids: s.Centroids, inertia: s.Inertia, iterations: s.Iterations, seed: s.Seed}
	return nil
}
