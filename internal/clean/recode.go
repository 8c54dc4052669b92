// Package clean recodes "unknown" sentinel values to missing and splits
// tables by how much data each row and column is missing.
package clean

import (
	"strings"

	"github.com/KaramelBytes/segloom-cli/internal/codex"
	"github.com/KaramelBytes/segloom-cli/internal/dataset"
)

// Recode replaces every value listed in its attribute's sentinel list with a
// missing marker. Columns are processed independently; a column whose list is
// empty is returned unchanged. Every column must have a metadata row.
func Recode(t *dataset.Table, cx *codex.Codex) (*dataset.Table, error) {
	columns := t.Columns()
	if err := cx.Validate("recode "+t.Name(), columns); err != nil {
		return nil, err
	}
	matchers := make(map[string]sentinelSet, len(columns))
	for _, col := range columns {
		a, _ := cx.Lookup(col)
		if len(a.Sentinels) > 0 {
			matchers[col] = newSentinelSet(a.Sentinels)
		}
	}
	return t.MapColumns(func(col string, c dataset.Cell) dataset.Cell {
		if c.Missing {
			return c
		}
		m, ok := matchers[col]
		if ok && m.match(c.Value) {
			c.Missing = true
		}
		return c
	}), nil
}

// sentinelSet matches values by string equality or, when both sides are
// numbers, by numeric equality so that "-1" also matches "-1.0".
type sentinelSet struct {
	text    map[string]struct{}
	numbers map[float64]struct{}
}

func newSentinelSet(values []string) sentinelSet {
	s := sentinelSet{text: map[string]struct{}{}, numbers: map[float64]struct{}{}}
	for _, v := range values {
		v = strings.TrimSpace(v)
		s.text[v] = struct{}{}
		if x, ok := dataset.ParseNumber(v); ok {
			s.numbers[x] = struct{}{}
		}
	}
	return s
}

func (s sentinelSet) match(v string) bool {
	v = strings.TrimSpace(v)
	if _, ok := s.text[v]; ok {
		return true
	}
	if len(s.numbers) == 0 {
		return false
	}
	x, ok := dataset.ParseNumber(v)
	if !ok {
		return false
	}
	_, ok = s.numbers[x]
	return ok
}
