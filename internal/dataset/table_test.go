package dataset

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustTable(t *testing.T, csvText string) *Table {
	t.Helper()
	tb, err := ReadCSV(strings.NewReader(csvText), "fixture.csv", DefaultReadOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	return tb
}

func TestReadCSV_SniffsSemicolonAndMarksMissing(t *testing.T) {
	tb := mustTable(t, "A;B;C\n1;;x\n2;NaN;y\n3;4\n")
	if got := tb.Columns(); !cmp.Equal(got, []string{"A", "B", "C"}) {
		t.Fatalf("columns: %v", got)
	}
	if tb.NumRows() != 3 {
		t.Fatalf("rows = %d", tb.NumRows())
	}
	if diff := cmp.Diff([]int{1, 1, 1}, tb.RowMissingCounts()); diff != "" {
		t.Fatalf("row missing counts (-want +got):\n%s", diff)
	}
	if !tb.Cell(1, 1).Missing || tb.Cell(1, 1).Value != "NaN" {
		t.Fatalf("null token should be missing and keep its raw value: %+v", tb.Cell(1, 1))
	}
}

func TestReadCSV_DropsUnnamedIndexColumn(t *testing.T) {
	tb := mustTable(t, ",A,B\n0,1,2\n1,3,4\n")
	if diff := cmp.Diff([]string{"A", "B"}, tb.Columns()); diff != "" {
		t.Fatalf("columns (-want +got):\n%s", diff)
	}
}

func TestReadCSV_RejectsOverlongRows(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("A,B\n1,2,3\n"), "bad.csv", DefaultReadOptions())
	var se *ShapeError
	if !errors.As(err, &se) {
		t.Fatalf("expected ShapeError, got %v", err)
	}
}

func TestSelectAndDropReturnNewTables(t *testing.T) {
	tb := mustTable(t, "A,B,C\n1,2,3\n4,5,6\n")
	sel, err := tb.Select([]string{"C", "A"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Cell(1, 0).Value != "6" || sel.Cell(1, 1).Value != "4" {
		t.Fatalf("unexpected selection: %v", sel.Row(1))
	}
	if tb.NumCols() != 3 {
		t.Fatalf("source table mutated")
	}
	if _, err := tb.Select([]string{"A", "Z"}); err == nil {
		t.Fatalf("expected schema error for absent column")
	} else {
		var se *SchemaError
		if !errors.As(err, &se) || !cmp.Equal(se.Missing, []string{"Z"}) {
			t.Fatalf("expected SchemaError missing Z, got %v", err)
		}
	}
	dropped, err := tb.Drop("B")
	if err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "C"}, dropped.Columns()); diff != "" {
		t.Fatalf("drop (-want +got):\n%s", diff)
	}
	if _, err := tb.Drop("nope"); err == nil {
		t.Fatalf("expected error dropping absent column")
	}
}

func TestColumnMissingFractionsAndNumeric(t *testing.T) {
	tb := mustTable(t, "A,B\n1,\n2,\n,5\n4,6\n")
	if diff := cmp.Diff([]float64{0.25, 0.5}, tb.ColumnMissingFractions()); diff != "" {
		t.Fatalf("fractions (-want +got):\n%s", diff)
	}
	m, err := tb.Numeric()
	if err != nil {
		t.Fatalf("Numeric: %v", err)
	}
	if !math.IsNaN(m.At(2, 0)) || m.At(3, 1) != 6 {
		t.Fatalf("unexpected matrix values")
	}
	bad := mustTable(t, "A\nx\n")
	if _, err := bad.Numeric(); err == nil {
		t.Fatalf("expected non-numeric error")
	}
}

func TestCompareColumns(t *testing.T) {
	if err := CompareColumns("apply", []string{"a", "b"}, []string{"a", "b"}); err != nil {
		t.Fatalf("identical columns: %v", err)
	}
	err := CompareColumns("apply", []string{"a", "b", "c"}, []string{"a", "b", "x"})
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if !cmp.Equal(se.Missing, []string{"c"}) || !cmp.Equal(se.Unexpected, []string{"x"}) {
		t.Fatalf("unexpected diff: %+v", se)
	}
	if err := CompareColumns("apply", []string{"a", "b"}, []string{"b", "a"}); err == nil {
		t.Fatalf("order change must be a schema error")
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"-1", -1, true},
		{"1.5", 1.5, true},
		{"2,5", 2.5, true},
		{"XX", 0, false},
		{"", 0, false},
		{"NaN", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseNumber(%q) = %v,%v want %v,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
