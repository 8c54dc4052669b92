package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderGauges(t *testing.T) {
	r := New()
	r.Rows("customers", "kept", 120)
	r.Rows("customers", "set_aside", 30)
	r.ClusterShare("customers", -1, 0.2)
	r.Unseen("customers", map[string]int{"CAMEO_DEU_2015": 2})
	r.Unseen("customers", map[string]int{"CAMEO_DEU_2015": 1})
	r.Model(4, 6, []float64{0.5, 0.25})
	r.Stage("transform", "customers")()

	if got := testutil.ToFloat64(r.rows.WithLabelValues("customers", "kept")); got != 120 {
		t.Fatalf("kept rows = %v", got)
	}
	if got := testutil.ToFloat64(r.clusterShare.WithLabelValues("customers", "-1")); got != 0.2 {
		t.Fatalf("set-aside share = %v", got)
	}
	if got := testutil.ToFloat64(r.unseen.WithLabelValues("customers", "CAMEO_DEU_2015")); got != 3 {
		t.Fatalf("unseen = %v", got)
	}
	if got := testutil.ToFloat64(r.explained); got != 0.75 {
		t.Fatalf("explained = %v", got)
	}
	if n := testutil.CollectAndCount(r.stageSeconds); n != 1 {
		t.Fatalf("stage series = %d", n)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.Rows("general", "loaded", 10)
	path := filepath.Join(t.TempDir(), "segloom.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{`segloom_rows{dataset="general",partition="loaded"} 10`, "segloom_last_run_timestamp_seconds"} {
		if !strings.Contains(string(b), s) {
			t.Fatalf("textfile missing %q:\n%s", s, b)
		}
	}
}
