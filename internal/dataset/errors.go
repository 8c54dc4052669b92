package dataset

import (
	"fmt"
	"strings"
)

// SchemaError reports columns that are absent from, or unexpected in, a table
// relative to the schema a stage requires.
type SchemaError struct {
	Stage      string
	Missing    []string
	Unexpected []string
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing columns [%s]", preview(e.Missing)))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected columns [%s]", preview(e.Unexpected)))
	}
	if len(parts) == 0 {
		parts = append(parts, "column order differs")
	}
	return fmt.Sprintf("%s: schema mismatch: %s", e.Stage, strings.Join(parts, "; "))
}

// ShapeError reports a row or column count that diverges from what a stage expects.
type ShapeError struct {
	Stage string
	What  string // "rows" | "columns" | "dimensions"
	Want  int
	Got   int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: shape mismatch: expected %d %s, got %d", e.Stage, e.Want, e.What, e.Got)
}

// CompareColumns builds a SchemaError describing how got differs from want,
// or returns nil when both lists are identical in names and order.
func CompareColumns(stage string, want, got []string) error {
	if len(want) == len(got) {
		same := true
		for i := range want {
			if want[i] != got[i] {
				same = false
				break
			}
		}
		if same {
			return nil
		}
	}
	gotSet := make(map[string]struct{}, len(got))
	for _, c := range got {
		gotSet[c] = struct{}{}
	}
	wantSet := make(map[string]struct{}, len(want))
	e := &SchemaError{Stage: stage}
	for _, c := range want {
		wantSet[c] = struct{}{}
		if _, ok := gotSet[c]; !ok {
			e.Missing = append(e.Missing, c)
		}
	}
	for _, c := range got {
		if _, ok := wantSet[c]; !ok {
			e.Unexpected = append(e.Unexpected, c)
		}
	}
	return e
}

func preview(names []string) string {
	const max = 8
	if len(names) <= max {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:max], ", ") + fmt.Sprintf(", ... (+%d)", len(names)-max)
}
