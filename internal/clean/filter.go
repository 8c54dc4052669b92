package clean

import (
	"fmt"

	"github.com/KaramelBytes/segloom-cli/internal/dataset"
)

// Thresholds are the explicit filtering cutoffs shared by every dataset.
type Thresholds struct {
	// MaxColumnMissing drops columns whose missing share is strictly greater.
	MaxColumnMissing float64 `json:"max_column_missing"`
	// MaxRowMissing keeps rows with at most this many missing cells (inclusive).
	MaxRowMissing int `json:"max_row_missing"`
}

func (th Thresholds) Validate() error {
	if th.MaxColumnMissing < 0 || th.MaxColumnMissing > 1 {
		return fmt.Errorf("column missing threshold must be within [0,1], got %v", th.MaxColumnMissing)
	}
	if th.MaxRowMissing < 0 {
		return fmt.Errorf("row missing threshold must be >= 0, got %d", th.MaxRowMissing)
	}
	return nil
}

// Plan is the filtering decision derived once from the reference dataset and
// reused verbatim for every other dataset.
type Plan struct {
	Thresholds Thresholds `json:"thresholds"`
	// Dropped lists columns removed for exceeding the column threshold.
	Dropped []string `json:"dropped_columns"`
	// Columns are the remaining columns, in reference order.
	Columns []string `json:"columns"`
}

// ColumnMissing is the missing share of one column.
type ColumnMissing struct {
	Column   string  `json:"column"`
	Fraction float64 `json:"fraction"`
}

// FitPlan measures per-column missing shares on the reference table and
// records which columns exceed the column threshold.
func FitPlan(reference *dataset.Table, th Thresholds) (Plan, []ColumnMissing, error) {
	if err := th.Validate(); err != nil {
		return Plan{}, nil, err
	}
	if reference.NumRows() == 0 {
		return Plan{}, nil, &dataset.ShapeError{Stage: "filter " + reference.Name(), What: "rows", Want: 1, Got: 0}
	}
	cols := reference.Columns()
	fr := reference.ColumnMissingFractions()
	stats := make([]ColumnMissing, len(cols))
	p := Plan{Thresholds: th}
	for j, c := range cols {
		stats[j] = ColumnMissing{Column: c, Fraction: fr[j]}
		if fr[j] > th.MaxColumnMissing {
			p.Dropped = append(p.Dropped, c)
		} else {
			p.Columns = append(p.Columns, c)
		}
	}
	if len(p.Columns) == 0 {
		return Plan{}, stats, fmt.Errorf("filter %s: every column exceeds the %.0f%% missing threshold", reference.Name(), th.MaxColumnMissing*100)
	}
	return p, stats, nil
}

// PlanFor builds a plan from a pre-specified final column set.
func PlanFor(columns []string, th Thresholds) Plan {
	return Plan{Thresholds: th, Columns: append([]string(nil), columns...)}
}

// Split is the result of applying a plan: rows kept for analysis and rows
// set aside for having too many missing values.
type Split struct {
	Kept     *dataset.Table
	SetAside *dataset.Table
	// Counts holds the missing count of every input row over the plan's columns.
	Counts []int
}

// Apply drops the plan's columns, selects the remaining ones in plan order, and
// partitions rows by the inclusive row threshold. The input must carry exactly
// the columns the plan was derived from.
func (p Plan) Apply(t *dataset.Table) (*Split, error) {
	stage := "filter " + t.Name()
	want := len(p.Dropped) + len(p.Columns)
	if t.NumCols() != want {
		if err := dataset.CompareColumns(stage, append(append([]string(nil), p.Columns...), p.Dropped...), t.Columns()); err != nil {
			return nil, err
		}
	}
	var (
		trimmed = t
		err     error
	)
	if len(p.Dropped) > 0 {
		if trimmed, err = t.Drop(p.Dropped...); err != nil {
			return nil, err
		}
	}
	if trimmed, err = trimmed.Select(p.Columns); err != nil {
		return nil, err
	}
	if trimmed.NumCols() != len(p.Columns) {
		return nil, &dataset.ShapeError{Stage: stage, What: "columns", Want: len(p.Columns), Got: trimmed.NumCols()}
	}
	return SplitRows(trimmed, p.Thresholds.MaxRowMissing)
}

// SplitRows partitions rows into those with at most maxMissing missing cells
// and the rest.
func SplitRows(t *dataset.Table, maxMissing int) (*Split, error) {
	counts := t.RowMissingCounts()
	kept := t.FilterRows(func(r int) bool { return counts[r] <= maxMissing })
	aside := t.FilterRows(func(r int) bool { return counts[r] > maxMissing })
	if kept.NumRows()+aside.NumRows() != t.NumRows() {
		return nil, &dataset.ShapeError{Stage: "split " + t.Name(), What: "rows", Want: t.NumRows(), Got: kept.NumRows() + aside.NumRows()}
	}
	return &Split{Kept: kept, SetAside: aside, Counts: counts}, nil
}
