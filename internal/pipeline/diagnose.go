package pipeline

import (
	"strings"

	"github.com/KaramelBytes/segloom-cli/internal/clean"
	"github.com/KaramelBytes/segloom-cli/internal/dataset"
)

// Diagnostics are the missing-data distributions used to pick thresholds.
type Diagnostics struct {
	Name     string                `json:"name"`
	Columns  []clean.ColumnMissing `json:"columns"`
	Plan     clean.Plan            `json:"plan"`
	Rows     clean.RowDistribution `json:"rows"`
	Kept     int                   `json:"kept"`
	SetAside int                   `json:"set_aside"`
	Extras   []string              `json:"extras,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
}

// Diagnose recodes t and reports per-column missing shares and the per-row
// missing distribution over the columns that survive the column threshold.
// Target-only columns are removed first, so reference and target tables go
// through the same threshold logic.
func (p *Pipeline) Diagnose(t *dataset.Table) (*Diagnostics, error) {
	trimmed, warnings, err := p.dropExtras(t)
	if err != nil {
		return nil, err
	}
	var extras []string
	if trimmed.NumCols() == t.NumCols() {
		// Nothing target-only here; absent extras are expected.
		warnings = nil
	} else {
		for _, c := range t.Columns() {
			if _, ok := trimmed.ColumnIndex(c); !ok {
				extras = append(extras, c)
			}
		}
	}
	recoded, err := p.recode(trimmed)
	if err != nil {
		return nil, err
	}
	plan, stats, err := clean.FitPlan(recoded, p.opt.Thresholds)
	if err != nil {
		return nil, err
	}
	split, err := p.filter(plan, recoded)
	if err != nil {
		return nil, err
	}
	return &Diagnostics{
		Name:     t.Name(),
		Columns:  stats,
		Plan:     plan,
		Rows:     clean.RowMissingDistribution(split.Counts),
		Kept:     split.Kept.NumRows(),
		SetAside: split.SetAside.NumRows(),
		Extras:   extras,
		Warnings: warnings,
	}, nil
}

func (d *Diagnostics) Text() string {
	var b strings.Builder
	b.WriteString(clean.ColumnDistributionText(d.Columns, d.Plan.Thresholds.MaxColumnMissing))
	b.WriteString("\n")
	b.WriteString(d.Rows.Text(d.Plan.Thresholds.MaxRowMissing))
	return b.String()
}
