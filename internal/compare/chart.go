package compare

import (
	"fmt"
	"strings"
)

const chartWidth = 40

// GroupedBars renders one bar pair per cluster id: the reference share on
// top and the target share below, on a common scale.
func GroupedBars(rows []Row, refName, targetName string) string {
	maxShare := 0.0
	for _, r := range rows {
		maxShare = max(maxShare, r.Reference, r.Target)
	}
	label := max(len(refName), len(targetName))
	var b strings.Builder
	b.WriteString("[CLUSTER PROPORTIONS]\n")
	for _, r := range rows {
		id := fmt.Sprintf("%d", r.Cluster)
		if r.Cluster == SetAsideCluster {
			id = "-1 (set aside)"
		}
		mark := ""
		if r.Verdict != Neutral {
			mark = "  " + string(r.Verdict)
		}
		b.WriteString(fmt.Sprintf("cluster %s%s\n", id, mark))
		b.WriteString(fmt.Sprintf("  %-*s | %-*s %5.1f%%\n", label, refName, chartWidth, shareBar(r.Reference, maxShare, '█'), r.Reference*100))
		b.WriteString(fmt.Sprintf("  %-*s | %-*s %5.1f%%\n", label, targetName, chartWidth, shareBar(r.Target, maxShare, '▒'), r.Target*100))
	}
	return b.String()
}

func shareBar(v, maxV float64, glyph rune) string {
	if maxV <= 0 || v <= 0 {
		return ""
	}
	n := int(v / maxV * chartWidth)
	if n == 0 {
		n = 1
	}
	return strings.Repeat(string(glyph), n)
}

// Table renders the comparison as a markdown table.
func Table(rows []Row) string {
	var b strings.Builder
	b.WriteString("| Cluster | Reference | Target | Difference | Ratio | Verdict |\n")
	b.WriteString("|---:|---:|---:|---:|---:|---|\n")
	for _, r := range rows {
		ratio := "n/a"
		if r.Reference > 0 {
			ratio = fmt.Sprintf("%.2f", r.Ratio)
		}
		b.WriteString(fmt.Sprintf("| %d | %.2f%% (%d) | %.2f%% (%d) | %+.2f pp | %s | %s |\n",
			r.Cluster, r.Reference*100, r.ReferenceCount, r.Target*100, r.TargetCount, r.Difference*100, ratio, r.Verdict))
	}
	return b.String()
}
