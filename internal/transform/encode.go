package transform

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/segloom-cli/internal/codex"
	"github.com/KaramelBytes/segloom-cli/internal/dataset"
)

// Encoding modes.
const (
	modeNumeric = "numeric"
	modeBinary  = "binary"
	modeOneHot  = "onehot"
)

// columnEncoding maps one input column to one or more numeric features.
type columnEncoding struct {
	Column string   `json:"column"`
	Mode   string   `json:"mode"`
	Levels []string `json:"levels,omitempty"`
}

func (c columnEncoding) width() int {
	if c.Mode == modeOneHot {
		return len(c.Levels)
	}
	return 1
}

// fitEncoding decides how every column becomes numeric features. Categorical
// columns with two levels become one 0/1 feature and those with more become
// one-hot indicators. Mixed columns are skipped unless mixedAsNumeric is set;
// everything else is parsed as a number. Levels come from the reference only.
//
// A level the reference never saw encodes as all-zero indicators in one-hot
// mode. In binary mode 0 already means the first level, so an unseen value
// encodes as NaN and is filled by the imputer like a missing value.
func fitEncoding(t *dataset.Table, kinds map[string]codex.Kind, mixedAsNumeric bool) (enc []columnEncoding, skipped []string, err error) {
	for j, col := range t.Columns() {
		switch kinds[col] {
		case codex.Categorical:
			levels := distinctLevels(t, j)
			mode := modeOneHot
			if len(levels) <= 2 {
				mode = modeBinary
			}
			enc = append(enc, columnEncoding{Column: col, Mode: mode, Levels: levels})
		case codex.Mixed:
			if !mixedAsNumeric {
				skipped = append(skipped, col)
				continue
			}
			enc = append(enc, columnEncoding{Column: col, Mode: modeNumeric})
		default:
			enc = append(enc, columnEncoding{Column: col, Mode: modeNumeric})
		}
	}
	if len(enc) == 0 {
		return nil, skipped, fmt.Errorf("encode %s: no usable columns", t.Name())
	}
	return enc, skipped, nil
}

// distinctLevels returns the observed values of a column, ordered numerically
// when every value is a number and lexically otherwise.
func distinctLevels(t *dataset.Table, j int) []string {
	seen := map[string]struct{}{}
	for r := 0; r < t.NumRows(); r++ {
		if c := t.Cell(r, j); !c.Missing {
			seen[c.Value] = struct{}{}
		}
	}
	levels := make([]string, 0, len(seen))
	numeric := true
	for v := range seen {
		levels = append(levels, v)
		if _, ok := dataset.ParseNumber(v); !ok {
			numeric = false
		}
	}
	sort.Slice(levels, func(a, b int) bool {
		if numeric {
			x, _ := dataset.ParseNumber(levels[a])
			y, _ := dataset.ParseNumber(levels[b])
			return x < y
		}
		return levels[a] < levels[b]
	})
	return levels
}

func featureNames(enc []columnEncoding) []string {
	var out []string
	for _, c := range enc {
		if c.Mode == modeOneHot {
			for _, l := range c.Levels {
				out = append(out, c.Column+"_"+l)
			}
			continue
		}
		out = append(out, c.Column)
	}
	return out
}

// encodeRows turns the table into a row-major feature slice. Missing cells
// become NaN in every feature of their column. Categorical values never seen
// in the reference are counted per column and encode as described on
// fitEncoding.
func encodeRows(t *dataset.Table, enc []columnEncoding, width int) ([]float64, map[string]int, error) {
	pos := make([]int, len(enc))
	levelIdx := make([]map[string]int, len(enc))
	for i, c := range enc {
		j, ok := t.ColumnIndex(c.Column)
		if !ok {
			return nil, nil, &dataset.SchemaError{Stage: "encode " + t.Name(), Missing: []string{c.Column}}
		}
		pos[i] = j
		if c.Mode != modeNumeric {
			levelIdx[i] = make(map[string]int, len(c.Levels))
			for k, l := range c.Levels {
				levelIdx[i][l] = k
			}
		}
	}
	unseen := map[string]int{}
	data := make([]float64, t.NumRows()*width)
	for r := 0; r < t.NumRows(); r++ {
		row := data[r*width : (r+1)*width]
		f := 0
		for i, c := range enc {
			cell := t.Cell(r, pos[i])
			w := c.width()
			if cell.Missing {
				for k := 0; k < w; k++ {
					row[f+k] = math.NaN()
				}
				f += w
				continue
			}
			switch c.Mode {
			case modeNumeric:
				x, ok := dataset.ParseNumber(cell.Value)
				if !ok {
					return nil, nil, fmt.Errorf("encode %s: row %d column %s: non-numeric value %q", t.Name(), r+1, c.Column, cell.Value)
				}
				row[f] = x
			case modeBinary:
				k, ok := levelIdx[i][cell.Value]
				if !ok {
					row[f] = math.NaN()
					unseen[c.Column]++
				} else if k == 1 {
					row[f] = 1
				}
			case modeOneHot:
				if k, ok := levelIdx[i][cell.Value]; ok {
					row[f+k] = 1
				} else {
					unseen[c.Column]++
				}
			}
			f += w
		}
	}
	return data, unseen, nil
}
