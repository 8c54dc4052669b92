package clean

import (
	"fmt"
	"sort"
	"strings"
)

// Bin is one bar of the row-missing histogram.
type Bin struct {
	Missing int `json:"missing"`
	Rows    int `json:"rows"`
}

// Suggestion is a row threshold read off the shape of the distribution.
type Suggestion struct {
	Threshold int     `json:"threshold"`
	KeptShare float64 `json:"kept_share"`
	Reason    string  `json:"reason"`
}

// RowDistribution summarizes per-row missing counts.
type RowDistribution struct {
	Total      int        `json:"total"`
	Bins       []Bin      `json:"bins"`
	Suggestion Suggestion `json:"suggestion"`
}

// sparseShare is the share of rows below which a histogram bar counts as a gap.
const sparseShare = 0.005

// RowMissingDistribution builds the histogram of missing counts (one bin per
// count from 0 to the maximum) and suggests a threshold at the start of the
// widest sparse gap after the median, so that the cutoff sits at a natural
// break rather than at an arbitrary number.
func RowMissingDistribution(counts []int) RowDistribution {
	d := RowDistribution{Total: len(counts)}
	if len(counts) == 0 {
		d.Suggestion.Reason = "no rows"
		return d
	}
	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	d.Bins = make([]Bin, maxCount+1)
	for i := range d.Bins {
		d.Bins[i].Missing = i
	}
	for _, c := range counts {
		d.Bins[c].Rows++
	}
	d.Suggestion = suggest(d.Bins, len(counts))
	return d
}

func suggest(bins []Bin, total int) Suggestion {
	share := func(rows int) float64 { return float64(rows) / float64(total) }
	median, cum := 0, 0
	for _, b := range bins {
		cum += b.Rows
		if share(cum) >= 0.5 {
			median = b.Missing
			break
		}
	}
	bestStart, bestLen := -1, 0
	for i := median + 1; i < len(bins); {
		if share(bins[i].Rows) >= sparseShare {
			i++
			continue
		}
		j := i
		for j < len(bins) && share(bins[j].Rows) < sparseShare {
			j++
		}
		if j-i > bestLen {
			bestStart, bestLen = i, j-i
		}
		i = j
	}
	kept := func(th int) float64 {
		n := 0
		for _, b := range bins[:th+1] {
			n += b.Rows
		}
		return share(n)
	}
	if bestStart < 0 {
		th := len(bins) - 1
		return Suggestion{Threshold: th, KeptShare: 1, Reason: "no sparse gap above the median; the distribution has a single mode, keep every row"}
	}
	th := bestStart - 1
	end := bestStart + bestLen - 1
	reason := fmt.Sprintf("counts %d-%d form the widest sparse gap (each <%.1f%% of rows) after the median of %d; rows with <=%d missing hold %.1f%% of the data",
		bestStart, end, sparseShare*100, median, th, kept(th)*100)
	if end < len(bins)-1 {
		reason += fmt.Sprintf("; a second mode follows at %d+", end+1)
	}
	return Suggestion{Threshold: th, KeptShare: kept(th), Reason: reason}
}

// Text renders the histogram as a bar chart, marking the kept side of threshold.
func (d RowDistribution) Text(threshold int) string {
	var b strings.Builder
	b.WriteString("[ROW MISSING DISTRIBUTION]\n")
	b.WriteString(fmt.Sprintf("Rows: %d\n", d.Total))
	maxRows := 0
	for _, bin := range d.Bins {
		if bin.Rows > maxRows {
			maxRows = bin.Rows
		}
	}
	for _, bin := range d.Bins {
		mark := " "
		if bin.Missing <= threshold {
			mark = "*"
		}
		b.WriteString(fmt.Sprintf("%s %3d | %-40s %d\n", mark, bin.Missing, bar(bin.Rows, maxRows, 40), bin.Rows))
	}
	b.WriteString(fmt.Sprintf("* kept at threshold %d (inclusive)\n", threshold))
	b.WriteString(fmt.Sprintf("Suggested threshold: %d (%s)\n", d.Suggestion.Threshold, d.Suggestion.Reason))
	return b.String()
}

// ColumnDistributionText renders per-column missing shares in descending order,
// flagging those above the column threshold.
func ColumnDistributionText(stats []ColumnMissing, threshold float64) string {
	sorted := append([]ColumnMissing(nil), stats...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Fraction > sorted[j].Fraction })
	var b strings.Builder
	b.WriteString("[COLUMN MISSING SHARES]\n")
	width := 0
	for _, s := range sorted {
		if len(s.Column) > width {
			width = len(s.Column)
		}
	}
	for _, s := range sorted {
		flag := ""
		if s.Fraction > threshold {
			flag = "  <- dropped"
		}
		b.WriteString(fmt.Sprintf("%-*s | %-40s %5.1f%%%s\n", width, s.Column, bar(int(s.Fraction*1000), 1000, 40), s.Fraction*100, flag))
	}
	return b.String()
}

func bar(v, maxV, width int) string {
	if maxV <= 0 || v <= 0 {
		return ""
	}
	n := v * width / maxV
	if n == 0 {
		n = 1
	}
	return strings.Repeat("█", n)
}
