package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.RowMissingThreshold != 8 || c.ColumnMissingThreshold != 0.2 || c.Seed != 42 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if !c.IncludeSetAside || c.ImputeStrategy != "mean" || c.ElbowMinK != 2 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	want := []string{"CUSTOMER_GROUP", "ONLINE_PURCHASE", "PRODUCT_GROUP"}
	if diff := cmp.Diff(want, c.TargetExtraColumns); diff != "" {
		t.Fatalf("extra columns (-want +got):\n%s", diff)
	}
}

func TestSaveThenLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	c.RowMissingThreshold = 5
	c.Clusters = 7
	if err := Save(c, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(c, got); diff != "" {
		t.Fatalf("round trip (-saved +loaded):\n%s", diff)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("row_missing_threshold: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SEGLOOM_ROW_MISSING_THRESHOLD", "11")
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.RowMissingThreshold != 11 {
		t.Fatalf("row threshold = %d, want env value 11", c.RowMissingThreshold)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("column_missing_threshold: 1.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidateElbowRange(t *testing.T) {
	cases := []struct {
		name     string
		min, max int
		ok       bool
	}{
		{"defaults", 2, 12, true},
		{"single k", 3, 3, true},
		{"one cluster", 1, 12, false},
		{"reversed", 5, 4, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			c, err := Load("")
			if err != nil {
				t.Fatal(err)
			}
			c.ElbowMinK, c.ElbowMaxK = tc.min, tc.max
			if err := c.Validate(); (err == nil) != tc.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}
