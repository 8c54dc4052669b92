package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Cell is a single observation. Missing cells keep their original Value for traceability.
type Cell struct {
	Value   string
	Missing bool
}

// Table is an immutable rows × columns grid of cells. Every operation that
// changes content returns a new Table; the receiver is left untouched.
type Table struct {
	name    string
	columns []string
	index   map[string]int
	rows    [][]Cell
}

// New builds a table, validating that column names are unique and that every
// row has exactly one cell per column. Rows are copied.
func New(name string, columns []string, rows [][]Cell) (*Table, error) {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := idx[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		idx[c] = i
	}
	cp := make([][]Cell, len(rows))
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, &ShapeError{Stage: "table " + name, What: fmt.Sprintf("cells in row %d", i+1), Want: len(columns), Got: len(r)}
		}
		cp[i] = append([]Cell(nil), r...)
	}
	return &Table{name: name, columns: append([]string(nil), columns...), index: idx, rows: cp}, nil
}

// derive builds a table without copying rows; callers hand over ownership.
func derive(name string, columns []string, rows [][]Cell) *Table {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	return &Table{name: name, columns: columns, index: idx, rows: rows}
}

func (t *Table) Name() string { return t.name }
func (t *Table) NumRows() int { return len(t.rows) }
func (t *Table) NumCols() int { return len(t.columns) }
func (t *Table) Cell(r, c int) Cell { return t.rows[r][c] }

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// ColumnIndex returns the position of a column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Row returns a copy of row r.
func (t *Table) Row(r int) []Cell { return append([]Cell(nil), t.rows[r]...) }

// WithName returns the same content under a different name.
func (t *Table) WithName(name string) *Table {
	return derive(name, t.columns, t.rows)
}

// Select returns a table with exactly the given columns in the given order.
// Any absent column fails with a SchemaError; nothing is padded.
func (t *Table) Select(columns []string) (*Table, error) {
	pos := make([]int, len(columns))
	var missing []string
	for i, c := range columns {
		j, ok := t.index[c]
		if !ok {
			missing = append(missing, c)
			continue
		}
		pos[i] = j
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Stage: "select " + t.name, Missing: missing}
	}
	rows := make([][]Cell, len(t.rows))
	for r, row := range t.rows {
		out := make([]Cell, len(pos))
		for i, j := range pos {
			out[i] = row[j]
		}
		rows[r] = out
	}
	return derive(t.name, append([]string(nil), columns...), rows), nil
}

// Drop returns a table without the given columns. Dropping an absent column
// fails with a SchemaError.
func (t *Table) Drop(columns ...string) (*Table, error) {
	drop := make(map[string]struct{}, len(columns))
	var missing []string
	for _, c := range columns {
		if _, ok := t.index[c]; !ok {
			missing = append(missing, c)
			continue
		}
		drop[c] = struct{}{}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Stage: "drop " + t.name, Missing: missing}
	}
	keep := make([]string, 0, len(t.columns)-len(drop))
	for _, c := range t.columns {
		if _, ok := drop[c]; !ok {
			keep = append(keep, c)
		}
	}
	return t.Select(keep)
}

// FilterRows returns the rows for which keep reports true, preserving order.
func (t *Table) FilterRows(keep func(r int) bool) *Table {
	var rows [][]Cell
	for r, row := range t.rows {
		if keep(r) {
			rows = append(rows, row)
		}
	}
	return derive(t.name, t.columns, rows)
}

// MapColumns applies fn to each cell, column by column, and returns the result.
// fn sees the column name so transformations stay independent across attributes.
func (t *Table) MapColumns(fn func(column string, c Cell) Cell) *Table {
	rows := make([][]Cell, len(t.rows))
	for r, row := range t.rows {
		out := make([]Cell, len(row))
		for j, c := range row {
			out[j] = fn(t.columns[j], c)
		}
		rows[r] = out
	}
	return derive(t.name, t.columns, rows)
}

// RowMissingCounts returns, per row, the number of missing cells.
func (t *Table) RowMissingCounts() []int {
	out := make([]int, len(t.rows))
	for r, row := range t.rows {
		for _, c := range row {
			if c.Missing {
				out[r]++
			}
		}
	}
	return out
}

// ColumnMissingFractions returns, per column, the share of missing cells.
// An empty table yields zeros.
func (t *Table) ColumnMissingFractions() []float64 {
	out := make([]float64, len(t.columns))
	if len(t.rows) == 0 {
		return out
	}
	for _, row := range t.rows {
		for j, c := range row {
			if c.Missing {
				out[j]++
			}
		}
	}
	for j := range out {
		out[j] /= float64(len(t.rows))
	}
	return out
}

// Numeric converts the table to a dense matrix. Missing cells become NaN; a
// present value that does not parse as a number is an error.
func (t *Table) Numeric() (*mat.Dense, error) {
	if len(t.rows) == 0 || len(t.columns) == 0 {
		return nil, &ShapeError{Stage: "numeric " + t.name, What: "rows", Want: 1, Got: len(t.rows)}
	}
	data := make([]float64, 0, len(t.rows)*len(t.columns))
	for r, row := range t.rows {
		for j, c := range row {
			if c.Missing {
				data = append(data, math.NaN())
				continue
			}
			x, ok := ParseNumber(c.Value)
			if !ok {
				return nil, fmt.Errorf("numeric %s: row %d column %s: non-numeric value %q", t.name, r+1, t.columns[j], c.Value)
			}
			data = append(data, x)
		}
	}
	return mat.NewDense(len(t.rows), len(t.columns), data), nil
}

// ParseNumber parses plain decimal numbers as written by common CSV exporters,
// accepting a comma decimal separator when no dot is present.
func ParseNumber(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	if !strings.Contains(raw, ".") && strings.Count(raw, ",") == 1 {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
