package compare

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/segloom-cli/internal/cluster"
	"github.com/KaramelBytes/segloom-cli/internal/dataset"
	"github.com/KaramelBytes/segloom-cli/internal/transform"
)

func sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}

func TestProportionsSumToOne(t *testing.T) {
	cases := []struct {
		name     string
		labels   []int
		k        int
		setAside int
		counts   []int
	}{
		{"plain", []int{0, 1, 1, 2, 2, 2}, 3, -1, []int{1, 2, 3}},
		{"with set aside", []int{0, 0, 1}, 2, 1, []int{1, 2, 1}},
		{"empty cluster", []int{1, 1}, 3, -1, []int{0, 2, 0}},
		{"only set aside", nil, 2, 4, []int{4, 0, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Proportions(tc.name, tc.labels, tc.k, tc.setAside)
			if err != nil {
				t.Fatalf("Proportions: %v", err)
			}
			if diff := cmp.Diff(tc.counts, d.Counts); diff != "" {
				t.Fatalf("counts (-want +got):\n%s", diff)
			}
			if s := sum(d.Shares); math.Abs(s-1) > 1e-12 {
				t.Fatalf("shares sum to %v", s)
			}
		})
	}
}

func TestProportionsErrors(t *testing.T) {
	if _, err := Proportions("t", nil, 3, -1); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if _, err := Proportions("t", []int{0, 3}, 3, -1); err == nil {
		t.Fatalf("expected error for out-of-range label")
	}
}

func TestCompareVerdicts(t *testing.T) {
	ref, _ := Proportions("general", []int{0, 0, 0, 0, 1, 1, 1, 1, 2, 2}, 4, 0)
	tgt, _ := Proportions("customers", []int{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 3}, 4, 1)
	rows, err := Compare(ref, tgt, 0.2)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	got := map[int]Verdict{}
	for _, r := range rows {
		got[r.Cluster] = r.Verdict
	}
	want := map[int]Verdict{-1: Over, 0: Over, 1: Neutral, 2: Under, 3: Over}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("verdicts (-want +got):\n%s", diff)
	}
	notable := Notable(rows)
	for _, r := range notable {
		if r.Cluster == SetAsideCluster {
			t.Fatalf("set-aside cluster reported as notable")
		}
	}
	if len(notable) != 3 {
		t.Fatalf("notable = %+v", notable)
	}
	table := Table(rows)
	if !strings.Contains(table, "| 3 | 0.00% (0) |") || !strings.Contains(table, "n/a") {
		t.Fatalf("table:\n%s", table)
	}
	chart := GroupedBars(rows, "general", "customers")
	if strings.Count(chart, "cluster ") != 5 || !strings.Contains(chart, "-1 (set aside)") {
		t.Fatalf("chart:\n%s", chart)
	}
}

func TestCompareRejectsMismatchedClusters(t *testing.T) {
	a, _ := Proportions("a", []int{0, 1}, 2, -1)
	b, _ := Proportions("b", []int{0, 1}, 2, 0)
	if _, err := Compare(a, b, 0.2); err == nil {
		t.Fatalf("expected error when only one side has the set-aside cluster")
	}
	if _, err := Compare(a, a, 1.5); err == nil {
		t.Fatalf("expected error for margin >= 1")
	}
}

func TestDescribeReconstructsCentroid(t *testing.T) {
	ref, err := dataset.ReadCSV(strings.NewReader("AGE,INCOME\n20,10\n21,11\n22,12\n60,50\n61,51\n62,52\n"), "ref.csv", dataset.DefaultReadOptions())
	if err != nil {
		t.Fatal(err)
	}
	f, err := transform.Fit(ref, transform.Options{})
	if err != nil {
		t.Fatal(err)
	}
	p, err := f.Apply(ref)
	if err != nil {
		t.Fatal(err)
	}
	m, err := cluster.KMeans{K: 2, Seed: 3, Restarts: 3}.Fit(p.Reduced)
	if err != nil {
		t.Fatal(err)
	}
	labels, _ := m.Predict(mat.NewDense(1, f.Components(), mat.Row(nil, 0, p.Reduced)))
	young := labels[0]
	prof, err := Describe(f, m, young, 1)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if len(prof.Top) != 1 || len(prof.Centroid) != 2 {
		t.Fatalf("profile: %+v", prof)
	}
	for _, fv := range prof.Centroid {
		want := 21.0
		if fv.Feature == "INCOME" {
			want = 11
		}
		if math.Abs(fv.Value-want) > 1e-6 || fv.Deviation >= 0 {
			t.Fatalf("%s = %v (dev %v), want %v below average", fv.Feature, fv.Value, fv.Deviation, want)
		}
	}
	if !strings.Contains(prof.Text(), "below average") {
		t.Fatalf("text:\n%s", prof.Text())
	}
	if _, err := Describe(f, m, 5, 1); err == nil {
		t.Fatalf("expected error for unknown cluster")
	}
}
