package pipeline

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/segloom-cli/internal/clean"
	"github.com/KaramelBytes/segloom-cli/internal/cluster"
	"github.com/KaramelBytes/segloom-cli/internal/compare"
)

// Report is the outcome of applying an artifact to a target dataset.
type Report struct {
	ArtifactID      string                `json:"artifact_id"`
	Reference       DatasetSummary        `json:"reference"`
	Target          DatasetSummary        `json:"target"`
	Thresholds      clean.Thresholds      `json:"thresholds"`
	Dropped         []string              `json:"dropped_columns,omitempty"`
	Skipped         []string              `json:"skipped_columns,omitempty"`
	Components      int                   `json:"components"`
	Explained       []float64             `json:"explained_variance_ratio"`
	K               int                   `json:"clusters"`
	Elbow           []cluster.ElbowPoint  `json:"elbow,omitempty"`
	SuggestedK      int                   `json:"suggested_k,omitempty"`
	RowDistribution clean.RowDistribution `json:"row_distribution"`
	Comparison      []compare.Row         `json:"comparison"`
	Profiles        []compare.Profile     `json:"profiles,omitempty"`
	Warnings        []string              `json:"warnings,omitempty"`
}

// Markdown renders the report with its text charts in fenced blocks.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Segment comparison\n\n")
	b.WriteString(fmt.Sprintf("Artifact: `%s`\n\n", r.ArtifactID))

	b.WriteString("## Datasets\n\n")
	b.WriteString("| Dataset | Rows | Columns | Kept | Set aside |\n|---|---:|---:|---:|---:|\n")
	for _, d := range []DatasetSummary{r.Reference, r.Target} {
		b.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d |\n", d.Name, d.Rows, d.Columns, d.Kept, d.SetAside))
	}
	b.WriteString(fmt.Sprintf("\nColumn missing threshold: %.0f%%. Row missing threshold: %d (inclusive).\n",
		r.Thresholds.MaxColumnMissing*100, r.Thresholds.MaxRowMissing))
	if len(r.Dropped) > 0 {
		b.WriteString(fmt.Sprintf("Dropped columns: %s\n", strings.Join(r.Dropped, ", ")))
	}
	if len(r.Skipped) > 0 {
		b.WriteString(fmt.Sprintf("Mixed-type columns left out: %s\n", strings.Join(r.Skipped, ", ")))
	}
	if len(r.RowDistribution.Bins) > 0 {
		b.WriteString("\n```text\n")
		b.WriteString(r.RowDistribution.Text(r.Thresholds.MaxRowMissing))
		b.WriteString("```\n")
	}

	b.WriteString("\n## Model\n\n")
	total := 0.0
	for _, v := range r.Explained {
		total += v
	}
	b.WriteString(fmt.Sprintf("Principal components: %d (%.1f%% of variance). Clusters: %d.\n", r.Components, total*100, r.K))
	if len(r.Elbow) > 0 {
		b.WriteString("\n```text\n")
		b.WriteString(cluster.ElbowText(r.Elbow, r.SuggestedK))
		b.WriteString("```\n")
	}

	b.WriteString("\n## Cluster proportions\n\n")
	b.WriteString(compare.Table(r.Comparison))
	b.WriteString("\n```text\n")
	b.WriteString(compare.GroupedBars(r.Comparison, r.Reference.Name, r.Target.Name))
	b.WriteString("```\n")

	if len(r.Profiles) > 0 {
		b.WriteString("\n## Notable clusters\n\n```text\n")
		for _, p := range r.Profiles {
			b.WriteString(p.Text())
		}
		b.WriteString("```\n")
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range r.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}
