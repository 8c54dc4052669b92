package cmd

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/segloom-cli/internal/pipeline"
)

// resetFlags restores every flag to its default so state does not leak
// between invocations of the shared root command.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns its error.
func execute(args ...string) error {
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// mustRun executes the root command with args and fails the test on error.
func mustRun(t *testing.T, args ...string) {
	t.Helper()
	if err := execute(args...); err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
}

const summaryCSV = `attribute;information_level;type;missing_or_unknown
AGE;person;ordinal;[-1,0]
INCOME;household;numeric;[-1]
KIDS;person;categorical;[]
STYLE;person;categorical;[X]
TITLE;person;numeric;[]
`

// writePopulation writes a CSV with counts[g] rows from each of three well
// separated groups and sparse rows whose every feature is unknown.
func writePopulation(t *testing.T, path string, counts [3]int, sparse int, extra bool, drop string) {
	t.Helper()
	cols := []string{"AGE", "INCOME", "KIDS", "STYLE", "TITLE"}
	if extra {
		cols = append(cols, "CUSTOMER_GROUP", "ONLINE_PURCHASE", "PRODUCT_GROUP")
	}
	var rows [][]string
	n := 0
	for g, c := range counts {
		for i := 0; i < c; i++ {
			kids := "2"
			if g == 0 {
				kids = "1"
			}
			title := ""
			if n%10 == 0 {
				title = "1"
			}
			rows = append(rows, []string{
				fmt.Sprint(1 + g*3 + i%2), fmt.Sprint(10 + g*20 + i%3), kids, []string{"A", "B", "C"}[g], title,
				"multi", "0", "COSMETIC",
			})
			n++
		}
	}
	for i := 0; i < sparse; i++ {
		rows = append(rows, []string{"-1", "-1", "", "X", "", "single", "1", "FOOD"})
	}
	var b strings.Builder
	keep := make([]int, 0, len(cols))
	for j, c := range cols {
		if c != drop {
			keep = append(keep, j)
		}
	}
	for i, j := range keep {
		if i > 0 {
			b.WriteString(";")
		}
		b.WriteString(cols[j])
	}
	b.WriteString("\n")
	for _, r := range rows {
		for i, j := range keep {
			if i > 0 {
				b.WriteString(";")
			}
			b.WriteString(r[j])
		}
		b.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

type fixture struct {
	dir, summary, reference, customers string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	f := fixture{
		dir:       home,
		summary:   filepath.Join(home, "features.csv"),
		reference: filepath.Join(home, "general.csv"),
		customers: filepath.Join(home, "customers.csv"),
	}
	if err := os.WriteFile(f.summary, []byte(summaryCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	writePopulation(t, f.reference, [3]int{30, 30, 30}, 5, false, "")
	writePopulation(t, f.customers, [3]int{40, 10, 10}, 2, true, "")
	return f
}

func TestCLI_Run_Apply_SameComparison(t *testing.T) {
	f := newFixture(t)
	md := filepath.Join(f.dir, "report.md")
	js := filepath.Join(f.dir, "report.json")
	art := filepath.Join(f.dir, "model", "artifact.json")
	prom := filepath.Join(f.dir, "segloom.prom")

	mustRun(t, "run", "-r", f.reference, "-t", f.customers, "-c", f.summary,
		"-k", "3", "--row-threshold", "2", "-o", md, "--json", js, "--artifact", art,
		"--metrics-textfile", prom, "--quiet")

	body, err := os.ReadFile(md)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(body), "[CLUSTER PROPORTIONS]") {
		t.Fatalf("report missing chart:\n%s", body)
	}
	var rep pipeline.Report
	b, err := os.ReadFile(js)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		t.Fatalf("parse report json: %v", err)
	}
	var refSum, tgtSum float64
	for _, r := range rep.Comparison {
		refSum += r.Reference
		tgtSum += r.Target
	}
	if math.Abs(refSum-1) > 1e-9 || math.Abs(tgtSum-1) > 1e-9 || rep.K != 3 {
		t.Fatalf("k=%d shares %v / %v", rep.K, refSum, tgtSum)
	}
	if rep.Target.Kept != 60 || rep.Target.SetAside != 2 {
		t.Fatalf("target summary %+v", rep.Target)
	}
	if _, err := os.Stat(prom); err != nil {
		t.Fatalf("metrics textfile not written: %v", err)
	}

	js2 := filepath.Join(f.dir, "apply.json")
	mustRun(t, "apply", "-a", art, "-t", f.customers, "-c", f.summary, "-o", filepath.Join(f.dir, "apply.md"), "--json", js2, "-q")
	var again pipeline.Report
	b, err = os.ReadFile(js2)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b, &again); err != nil {
		t.Fatal(err)
	}
	if again.ArtifactID != rep.ArtifactID || len(again.Comparison) != len(rep.Comparison) {
		t.Fatalf("apply used a different fit: %s vs %s", again.ArtifactID, rep.ArtifactID)
	}
	for i := range rep.Comparison {
		if rep.Comparison[i] != again.Comparison[i] {
			t.Fatalf("row %d differs: %+v vs %+v", i, rep.Comparison[i], again.Comparison[i])
		}
	}
}

func TestCLI_ApplyRejectsMissingColumn(t *testing.T) {
	f := newFixture(t)
	art := filepath.Join(f.dir, "artifact.json")
	mustRun(t, "fit", "-r", f.reference, "-c", f.summary, "-k", "3", "--row-threshold", "2", "-a", art, "-q")

	short := filepath.Join(f.dir, "short.csv")
	writePopulation(t, short, [3]int{5, 5, 5}, 0, true, "INCOME")
	err := execute("apply", "-a", art, "-t", short, "-c", f.summary, "-q")
	if err == nil || !strings.Contains(err.Error(), "INCOME") {
		t.Fatalf("expected schema error naming INCOME, got %v", err)
	}
}

func TestCLI_MissingAndElbow(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(f.dir, "missing.txt")
	mustRun(t, "missing", f.reference, "-c", f.summary, "--row-threshold", "2", "-o", out, "-q")
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"[COLUMN MISSING SHARES]", "[ROW MISSING DISTRIBUTION]", "Suggested threshold"} {
		if !strings.Contains(string(b), s) {
			t.Fatalf("missing output lacks %q:\n%s", s, b)
		}
	}

	cj := filepath.Join(f.dir, "customers-missing.json")
	mustRun(t, "missing", f.customers, "-c", f.summary, "--row-threshold", "2", "--json", cj, "-o", filepath.Join(f.dir, "customers.txt"), "-q")
	var diag pipeline.Diagnostics
	b, err = os.ReadFile(cj)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b, &diag); err != nil {
		t.Fatal(err)
	}
	if diag.Kept != 60 || diag.SetAside != 2 || len(diag.Extras) != 3 {
		t.Fatalf("customer diagnostics %+v", diag)
	}

	ej := filepath.Join(f.dir, "elbow.json")
	mustRun(t, "elbow", "-r", f.reference, "-c", f.summary, "--row-threshold", "2", "--max-k", "5", "--json", ej, "-q")
	var sweep struct {
		Points     []struct{ K int } `json:"points"`
		SuggestedK int               `json:"suggested_k"`
	}
	b, err = os.ReadFile(ej)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b, &sweep); err != nil {
		t.Fatal(err)
	}
	if len(sweep.Points) != 4 || sweep.Points[0].K != 2 {
		t.Fatalf("sweep = %+v", sweep)
	}
}

func TestCLI_ConfigSetAndCodex(t *testing.T) {
	f := newFixture(t)
	mustRun(t, "config", "set", "row_missing_threshold", "5")
	b, err := os.ReadFile(filepath.Join(f.dir, ".segloom", "config.yaml"))
	if err != nil {
		t.Fatalf("config not saved: %v", err)
	}
	if !strings.Contains(string(b), "row_missing_threshold: 5") {
		t.Fatalf("config:\n%s", b)
	}
	if err := execute("config", "set", "no_such_key", "1"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if err := execute("config", "set", "impute_strategy", "mode"); err == nil {
		t.Fatalf("expected error for invalid strategy")
	}
	mustRun(t, "config", "show")
	mustRun(t, "codex", "AGE", "-c", f.summary)
	if err := execute("codex", "SHOE_SIZE", "-c", f.summary); err == nil {
		t.Fatalf("expected error for unknown feature")
	}
}

func TestWriteOutputCreatesParentAtomically(t *testing.T) {
	quiet = true
	t.Cleanup(func() { quiet = false })
	path := filepath.Join(t.TempDir(), "reports", "2026", "report.md")
	if err := writeOutput(path, "# Segment comparison", "report"); err != nil {
		t.Fatalf("writeOutput: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "# Segment comparison" {
		t.Fatalf("report = %q, err %v", b, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}
