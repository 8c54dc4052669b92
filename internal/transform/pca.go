package transform

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// pcaFit holds the projection learned from standardized reference data.
type pcaFit struct {
	mean      []float64  // per-feature centering applied before projection
	loadings  *mat.Dense // features x components
	explained []float64  // explained variance ratio per kept component
}

// fitPCA chooses the number of components from an explicit count or, when
// count is zero, from the smallest prefix reaching varianceTarget. With
// neither set every component is kept.
func fitPCA(x *mat.Dense, count int, varianceTarget float64) (*pcaFit, error) {
	rows, cols := x.Dims()
	if rows < 2 {
		return nil, fmt.Errorf("pca: need at least 2 rows, got %d", rows)
	}
	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, fmt.Errorf("pca: decomposition of %dx%d matrix did not converge", rows, cols)
	}
	vars := pc.VarsTo(nil)
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	total := floats.Sum(vars)
	ratio := make([]float64, len(vars))
	for i, v := range vars {
		if total > 0 {
			ratio[i] = v / total
		}
	}
	k := len(vars)
	switch {
	case count > 0:
		if count > len(vars) {
			return nil, fmt.Errorf("pca: requested %d components but only %d are available", count, len(vars))
		}
		k = count
	case varianceTarget > 0 && varianceTarget < 1:
		cum := 0.0
		for i, r := range ratio {
			cum += r
			if cum >= varianceTarget {
				k = i + 1
				break
			}
		}
	}

	_, vc := vecs.Dims()
	if k > vc {
		k = vc
	}
	w := mat.DenseCopyOf(vecs.Slice(0, cols, 0, k))
	flipSigns(w)

	mean := make([]float64, cols)
	for j := range mean {
		mean[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}
	return &pcaFit{mean: mean, loadings: w, explained: ratio[:k]}, nil
}

// flipSigns makes the largest-magnitude loading of every component positive
// so repeated fits on the same data print identical components.
func flipSigns(w *mat.Dense) {
	r, c := w.Dims()
	for j := 0; j < c; j++ {
		best, at := 0.0, 0
		for i := 0; i < r; i++ {
			if v := math.Abs(w.At(i, j)); v > best {
				best, at = v, i
			}
		}
		if w.At(at, j) < 0 {
			for i := 0; i < r; i++ {
				w.Set(i, j, -w.At(i, j))
			}
		}
	}
}

func (p *pcaFit) project(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	centered := mat.NewDense(rows, cols, nil)
	centered.Apply(func(_, j int, v float64) float64 { return v - p.mean[j] }, x)
	var z mat.Dense
	z.Mul(centered, p.loadings)
	return &z
}

func (p *pcaFit) reconstruct(z []float64) []float64 {
	cols, _ := p.loadings.Dims()
	out := make([]float64, cols)
	zv := mat.NewVecDense(len(z), append([]float64(nil), z...))
	var x mat.VecDense
	x.MulVec(p.loadings, zv)
	for j := range out {
		out[j] = x.AtVec(j) + p.mean[j]
	}
	return out
}
