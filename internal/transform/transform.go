// Package transform turns cleaned tables into dense numeric matrices: it
// encodes categoricals, imputes, standardizes and reduces dimensionality with
// PCA. Every parameter is learned once from a reference table; the resulting
// Fitted value is read-only and only projects other tables.
package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/segloom-cli/internal/codex"
	"github.com/KaramelBytes/segloom-cli/internal/dataset"
)

// ErrNoObservations is returned when a feature has no observed value to
// learn an imputation from.
var ErrNoObservations = errors.New("no observed values")

// Options controls how Fit learns its parameters.
type Options struct {
	Impute Strategy
	// Components fixes the number of principal components. Zero defers to VarianceTarget.
	Components int
	// VarianceTarget keeps the smallest prefix of components explaining at least this share.
	VarianceTarget float64
	// Kinds maps column names to their codex kind; absent columns are numeric.
	Kinds          map[string]codex.Kind
	MixedAsNumeric bool
}

// Fitted is the transform learned from a reference table.
type Fitted struct {
	columns  []string
	encoding []columnEncoding
	skipped  []string
	features []string
	strategy Strategy
	fill     []float64
	center   []float64
	scale    []float64
	pca      *pcaFit
}

// Projection is the result of applying a Fitted transform to a table.
type Projection struct {
	// Reduced has one row per input row and one column per component.
	Reduced *mat.Dense
	// Unseen counts categorical values absent from the reference, per column.
	Unseen map[string]int
}

// Fit learns encoding, imputation, scaling and PCA parameters from ref.
func Fit(ref *dataset.Table, opt Options) (*Fitted, error) {
	if ref.NumRows() == 0 {
		return nil, &dataset.ShapeError{Stage: "transform " + ref.Name(), What: "rows", Want: 1, Got: 0}
	}
	st := opt.Impute
	if st == "" {
		st = Mean
	}
	enc, skipped, err := fitEncoding(ref, opt.Kinds, opt.MixedAsNumeric)
	if err != nil {
		return nil, err
	}
	f := &Fitted{
		columns:  ref.Columns(),
		encoding: enc,
		skipped:  skipped,
		features: featureNames(enc),
		strategy: st,
	}
	width := len(f.features)
	data, _, err := encodeRows(ref, enc, width)
	if err != nil {
		return nil, err
	}
	if f.fill, err = fitFill(data, width, st, f.features); err != nil {
		return nil, err
	}
	applyFill(data, f.fill)
	f.center, f.scale = fitScale(data, width)
	applyScale(data, f.center, f.scale)
	if f.pca, err = fitPCA(mat.NewDense(ref.NumRows(), width, data), opt.Components, opt.VarianceTarget); err != nil {
		return nil, fmt.Errorf("transform %s: %w", ref.Name(), err)
	}
	return f, nil
}

// Apply projects t with the fitted parameters. t must carry exactly the
// reference columns in the same order.
func (f *Fitted) Apply(t *dataset.Table) (*Projection, error) {
	if err := dataset.CompareColumns("transform "+t.Name(), f.columns, t.Columns()); err != nil {
		return nil, err
	}
	width := len(f.features)
	data, unseen, err := encodeRows(t, f.encoding, width)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return &Projection{Reduced: &mat.Dense{}, Unseen: unseen}, nil
	}
	applyFill(data, f.fill)
	applyScale(data, f.center, f.scale)
	z := f.pca.project(mat.NewDense(t.NumRows(), width, data))
	if r, c := z.Dims(); r != t.NumRows() || c != f.Components() {
		return nil, &dataset.ShapeError{Stage: "transform " + t.Name(), What: "projected columns", Want: f.Components(), Got: c}
	}
	return &Projection{Reduced: z, Unseen: unseen}, nil
}

// Inverse maps a point in component space back to the original feature
// scale, undoing PCA then standardization.
func (f *Fitted) Inverse(z []float64) ([]float64, error) {
	if len(z) != f.Components() {
		return nil, &dataset.ShapeError{Stage: "inverse transform", What: "components", Want: f.Components(), Got: len(z)}
	}
	x := f.pca.reconstruct(z)
	for j := range x {
		x[j] = x[j]*f.scale[j] + f.center[j]
	}
	return x, nil
}

// Standardized maps a point in component space back to standardized feature
// units (zero mean, unit variance on the reference).
func (f *Fitted) Standardized(z []float64) ([]float64, error) {
	if len(z) != f.Components() {
		return nil, &dataset.ShapeError{Stage: "inverse transform", What: "components", Want: f.Components(), Got: len(z)}
	}
	return f.pca.reconstruct(z), nil
}

// Columns returns the input columns the transform expects.
func (f *Fitted) Columns() []string { return append([]string(nil), f.columns...) }

// Features returns the encoded feature names.
func (f *Fitted) Features() []string { return append([]string(nil), f.features...) }

// Skipped returns mixed-type columns excluded from encoding.
func (f *Fitted) Skipped() []string { return append([]string(nil), f.skipped...) }

func (f *Fitted) Components() int {
	_, k := f.pca.loadings.Dims()
	return k
}

// ExplainedVariance returns the explained variance ratio of each kept component.
func (f *Fitted) ExplainedVariance() []float64 { return append([]float64(nil), f.pca.explained...) }

// Loading returns the weight of feature i in component j.
func (f *Fitted) Loading(i, j int) float64 { return f.pca.loadings.At(i, j) }

type fittedState struct {
	Columns   []string         `json:"columns"`
	Encoding  []columnEncoding `json:"encoding"`
	Skipped   []string         `json:"skipped_columns,omitempty"`
	Features  []string         `json:"features"`
	Strategy  Strategy         `json:"impute_strategy"`
	Fill      []float64        `json:"fill"`
	Center    []float64        `json:"center"`
	Scale     []float64        `json:"scale"`
	PCAMean   []float64        `json:"pca_mean"`
	Loadings  []float64        `json:"loadings"`
	Explained []float64        `json:"explained_variance_ratio"`
}

func (f *Fitted) MarshalJSON() ([]byte, error) {
	return json.Marshal(fittedState{
		Columns:   f.columns,
		Encoding:  f.encoding,
		Skipped:   f.skipped,
		Features:  f.features,
		Strategy:  f.strategy,
		Fill:      f.fill,
		Center:    f.center,
		Scale:     f.scale,
		PCAMean:   f.pca.mean,
		Loadings:  f.pca.loadings.RawMatrix().Data,
		Explained: f.pca.explained,
	})
}

func (f *Fitted) UnmarshalJSON(b []byte) error {
	var s fittedState
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	d, k := len(s.Features), len(s.Explained)
	check := func(what string, want, got int) error {
		if want != got {
			return &dataset.ShapeError{Stage: "load transform", What: what, Want: want, Got: got}
		}
		return nil
	}
	width := 0
	for _, e := range s.Encoding {
		width += e.width()
	}
	for _, c := range []struct {
		what      string
		want, got int
	}{
		{"encoded features", d, width},
		{"fill values", d, len(s.Fill)},
		{"centers", d, len(s.Center)},
		{"scales", d, len(s.Scale)},
		{"pca means", d, len(s.PCAMean)},
		{"loadings", d * k, len(s.Loadings)},
	} {
		if err := check(c.what, c.want, c.got); err != nil {
			return err
		}
	}
	if d == 0 || k == 0 {
		return errors.New("load transform: empty parameters")
	}
	for _, v := range s.Scale {
		if v == 0 || math.IsNaN(v) {
			return errors.New("load transform: invalid scale")
		}
	}
	*f = Fitted{
		columns:  s.Columns,
		encoding: s.Encoding,
		skipped:  s.Skipped,
		features: s.Features,
		strategy: s.Strategy,
		fill:     s.Fill,
		center:   s.Center,
		scale:    s.Scale,
		pca: &pcaFit{
			mean:      s.PCAMean,
			loadings:  mat.NewDense(d, k, s.Loadings),
			explained: s.Explained,
		},
	}
	return nil
}
