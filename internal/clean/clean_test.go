package clean

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/KaramelBytes/segloom-cli/internal/codex"
	"github.com/KaramelBytes/segloom-cli/internal/dataset"
	"github.com/google/go-cmp/cmp"
)

func table(t *testing.T, text string) *dataset.Table {
	t.Helper()
	tb, err := dataset.ReadCSV(strings.NewReader(text), "t.csv", dataset.DefaultReadOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	return tb
}

func testCodex(t *testing.T) *codex.Codex {
	t.Helper()
	cx, err := codex.New([]codex.Attribute{
		{Name: "A", Kind: codex.Ordinal, Sentinels: []string{"-1", "0"}},
		{Name: "B", Kind: codex.Categorical, Sentinels: []string{"X", "XX"}},
		{Name: "C", Kind: codex.Numeric},
	})
	if err != nil {
		t.Fatalf("codex: %v", err)
	}
	return cx
}

func missingMask(tb *dataset.Table) [][]bool {
	out := make([][]bool, tb.NumRows())
	for r := range out {
		for _, c := range tb.Row(r) {
			out[r] = append(out[r], c.Missing)
		}
	}
	return out
}

func TestRecodeReplacesSentinelsPerColumn(t *testing.T) {
	raw := table(t, "A,B,C\n-1,X,0\n-1.0,2,-1\n3,XX,5\n0,,7\n")
	got, err := Recode(raw, testCodex(t))
	if err != nil {
		t.Fatalf("Recode: %v", err)
	}
	want := [][]bool{
		{true, true, false},
		{true, false, false}, // C has no sentinels, -1 stays
		{false, true, false},
		{true, true, false},
	}
	if diff := cmp.Diff(want, missingMask(got)); diff != "" {
		t.Fatalf("missing mask (-want +got):\n%s", diff)
	}
	if raw.Cell(0, 0).Missing {
		t.Fatalf("input table was mutated")
	}
}

func TestRecodeIsIdempotent(t *testing.T) {
	raw := table(t, "A,B,C\n-1,X,0\n2,3,4\n0,XX,\n")
	cx := testCodex(t)
	once, err := Recode(raw, cx)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Recode(once, cx)
	if err != nil {
		t.Fatal(err)
	}
	for r := 0; r < once.NumRows(); r++ {
		if diff := cmp.Diff(once.Row(r), twice.Row(r)); diff != "" {
			t.Fatalf("row %d changed on second recode (-once +twice):\n%s", r, diff)
		}
	}
}

func TestRecodeRequiresMetadata(t *testing.T) {
	raw := table(t, "A,CUSTOMER_GROUP\n1,single\n")
	_, err := Recode(raw, testCodex(t))
	var se *dataset.SchemaError
	if !errors.As(err, &se) || !cmp.Equal(se.Missing, []string{"CUSTOMER_GROUP"}) {
		t.Fatalf("expected SchemaError for CUSTOMER_GROUP, got %v", err)
	}
}

// tenColumns builds a table of 10 columns where row i has missing[i] empty cells.
func tenColumns(t *testing.T, missing []int) *dataset.Table {
	t.Helper()
	var b strings.Builder
	for j := 0; j < 10; j++ {
		if j > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "F%d", j)
	}
	b.WriteString("\n")
	for _, m := range missing {
		for j := 0; j < 10; j++ {
			if j > 0 {
				b.WriteString(",")
			}
			if j >= m {
				b.WriteString("1")
			}
		}
		b.WriteString("\n")
	}
	return table(t, b.String())
}

func TestRowThresholdIsInclusive(t *testing.T) {
	tb := tenColumns(t, []int{0, 8, 9, 2})
	plan, _, err := FitPlan(tb, Thresholds{MaxColumnMissing: 1, MaxRowMissing: 8})
	if err != nil {
		t.Fatalf("FitPlan: %v", err)
	}
	split, err := plan.Apply(tb)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if split.Kept.NumRows() != 3 || split.SetAside.NumRows() != 1 {
		t.Fatalf("kept=%d aside=%d", split.Kept.NumRows(), split.SetAside.NumRows())
	}
	if got := split.SetAside.RowMissingCounts(); !cmp.Equal(got, []int{9}) {
		t.Fatalf("set-aside row should have 9 missing, got %v", got)
	}
	if diff := cmp.Diff([]int{0, 8, 9, 2}, split.Counts); diff != "" {
		t.Fatalf("counts (-want +got):\n%s", diff)
	}
}

func TestFitPlanDropsColumnsAboveThreshold(t *testing.T) {
	tb := table(t, "A,B,C\n1,,1\n2,,\n3,4,5\n4,,6\n")
	plan, stats, err := FitPlan(tb, Thresholds{MaxColumnMissing: 0.5, MaxRowMissing: 0})
	if err != nil {
		t.Fatalf("FitPlan: %v", err)
	}
	if !cmp.Equal(plan.Dropped, []string{"B"}) || !cmp.Equal(plan.Columns, []string{"A", "C"}) {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if stats[1].Fraction != 0.75 {
		t.Fatalf("stats: %+v", stats)
	}
	split, err := plan.Apply(tb)
	if err != nil {
		t.Fatal(err)
	}
	if split.Kept.NumRows() != 3 || split.SetAside.NumRows() != 1 {
		t.Fatalf("kept=%d aside=%d", split.Kept.NumRows(), split.SetAside.NumRows())
	}
}

func TestFilterIsOrderIndependent(t *testing.T) {
	tb := table(t, "A,B,C,D\n1,,1,\n,,,4\n3,,5,6\n4,9,,\n5,,6,7\n")
	th := Thresholds{MaxColumnMissing: 0.5, MaxRowMissing: 1}
	plan, _, err := FitPlan(tb, th)
	if err != nil {
		t.Fatal(err)
	}
	viaPlan, err := plan.Apply(tb)
	if err != nil {
		t.Fatal(err)
	}
	pre, err := tb.Select(plan.Columns)
	if err != nil {
		t.Fatal(err)
	}
	viaColumns, err := PlanFor(plan.Columns, th).Apply(pre)
	if err != nil {
		t.Fatal(err)
	}
	rows := func(s *Split) [][]dataset.Cell {
		var out [][]dataset.Cell
		for r := 0; r < s.Kept.NumRows(); r++ {
			out = append(out, s.Kept.Row(r))
		}
		return out
	}
	if diff := cmp.Diff(rows(viaPlan), rows(viaColumns)); diff != "" {
		t.Fatalf("kept rows differ (-plan +prespecified):\n%s", diff)
	}
}

func TestPlanApplyRejectsForeignSchema(t *testing.T) {
	ref := table(t, "A,B,C\n1,2,3\n")
	plan, _, err := FitPlan(ref, Thresholds{MaxColumnMissing: 0.3, MaxRowMissing: 0})
	if err != nil {
		t.Fatal(err)
	}
	target := table(t, "A,B,C,CUSTOMER_GROUP\n1,2,3,single\n")
	_, err = plan.Apply(target)
	var se *dataset.SchemaError
	if !errors.As(err, &se) || !cmp.Equal(se.Unexpected, []string{"CUSTOMER_GROUP"}) {
		t.Fatalf("expected SchemaError for extra column, got %v", err)
	}
	short := table(t, "A,B\n1,2\n")
	if _, err := plan.Apply(short); !errors.As(err, &se) {
		t.Fatalf("expected SchemaError for missing column, got %v", err)
	}
}

func TestThresholdValidation(t *testing.T) {
	for _, th := range []Thresholds{{MaxColumnMissing: -0.1}, {MaxColumnMissing: 1.5}, {MaxRowMissing: -1}} {
		if err := th.Validate(); err == nil {
			t.Errorf("expected error for %+v", th)
		}
	}
}

func TestRowMissingDistributionSuggestsGap(t *testing.T) {
	var counts []int
	for i := 0; i < 600; i++ {
		counts = append(counts, 0)
	}
	for i := 0; i < 200; i++ {
		counts = append(counts, 1+i%6) // 1..6
	}
	for i := 0; i < 100; i++ {
		counts = append(counts, 15+i%3) // second mode at 15..17
	}
	d := RowMissingDistribution(counts)
	if d.Total != 900 || len(d.Bins) != 18 {
		t.Fatalf("total=%d bins=%d", d.Total, len(d.Bins))
	}
	if d.Suggestion.Threshold != 6 {
		t.Fatalf("suggested %d (%s), want 6", d.Suggestion.Threshold, d.Suggestion.Reason)
	}
	if got := d.Suggestion.KeptShare; got < 0.88 || got > 0.89 {
		t.Fatalf("kept share = %v", got)
	}
	text := d.Text(6)
	for _, s := range []string{"[ROW MISSING DISTRIBUTION]", "Suggested threshold: 6", "second mode follows at 15+"} {
		if !strings.Contains(text, s) {
			t.Fatalf("text missing %q:\n%s", s, text)
		}
	}
}

func TestRowMissingDistributionSingleMode(t *testing.T) {
	d := RowMissingDistribution([]int{0, 0, 1, 1, 2})
	if d.Suggestion.Threshold != 2 || d.Suggestion.KeptShare != 1 {
		t.Fatalf("unexpected suggestion: %+v", d.Suggestion)
	}
}

func TestColumnDistributionText(t *testing.T) {
	out := ColumnDistributionText([]ColumnMissing{{"A", 0.1}, {"TITEL_KZ", 0.99}}, 0.2)
	if !strings.HasPrefix(strings.SplitN(out, "\n", 3)[1], "TITEL_KZ") {
		t.Fatalf("expected descending order:\n%s", out)
	}
	if !strings.Contains(out, "<- dropped") {
		t.Fatalf("expected dropped marker:\n%s", out)
	}
}
