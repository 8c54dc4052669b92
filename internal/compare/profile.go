package compare

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/segloom-cli/internal/cluster"
	"github.com/KaramelBytes/segloom-cli/internal/transform"
)

// FeatureValue is one feature of a reconstructed centroid.
type FeatureValue struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
	// Deviation is the value in reference standard deviations from the reference mean.
	Deviation float64 `json:"deviation"`
}

// Profile describes a cluster centroid in original feature units.
type Profile struct {
	Cluster  int            `json:"cluster"`
	Verdict  Verdict        `json:"verdict,omitempty"`
	Top      []FeatureValue `json:"top_features"`
	Centroid []FeatureValue `json:"-"`
}

// Describe reconstructs centroid c through the inverse transform and keeps
// the topN features that deviate most from the reference mean.
func Describe(f *transform.Fitted, m *cluster.Model, c, topN int) (Profile, error) {
	if c < 0 || c >= m.K() {
		return Profile{}, fmt.Errorf("profile: cluster %d outside [0,%d)", c, m.K())
	}
	z := m.Centroid(c)
	values, err := f.Inverse(z)
	if err != nil {
		return Profile{}, fmt.Errorf("profile cluster %d: %w", c, err)
	}
	dev, err := f.Standardized(z)
	if err != nil {
		return Profile{}, fmt.Errorf("profile cluster %d: %w", c, err)
	}
	features := f.Features()
	p := Profile{Cluster: c, Centroid: make([]FeatureValue, len(features))}
	for i, name := range features {
		p.Centroid[i] = FeatureValue{Feature: name, Value: values[i], Deviation: dev[i]}
	}
	top := append([]FeatureValue(nil), p.Centroid...)
	sort.SliceStable(top, func(i, j int) bool { return math.Abs(top[i].Deviation) > math.Abs(top[j].Deviation) })
	if topN > 0 && topN < len(top) {
		top = top[:topN]
	}
	p.Top = top
	return p, nil
}

// Text renders the profile's top features, one per line.
func (p Profile) Text() string {
	var b strings.Builder
	title := fmt.Sprintf("Cluster %d", p.Cluster)
	if p.Verdict != "" {
		title += fmt.Sprintf(" (%s-represented)", p.Verdict)
	}
	b.WriteString(title + "\n")
	for _, fv := range p.Top {
		dir := "above"
		if fv.Deviation < 0 {
			dir = "below"
		}
		b.WriteString(fmt.Sprintf("  %-28s %10.3f  (%+.2f sd, %s average)\n", fv.Feature, fv.Value, fv.Deviation, dir))
	}
	return b.String()
}
