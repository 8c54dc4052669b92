// Package codex holds per-attribute metadata: the sentinel values that mean
// "unknown" for each feature, its information level and type, and optionally
// the human-readable data dictionary entry.
package codex

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/KaramelBytes/segloom-cli/internal/dataset"
)

// Kind is the measurement type of an attribute.
type Kind string

const (
	Categorical Kind = "categorical"
	Ordinal     Kind = "ordinal"
	Numeric     Kind = "numeric"
	Interval    Kind = "interval"
	Mixed       Kind = "mixed"
)

// Attribute is one row of the attribute metadata table.
type Attribute struct {
	Name             string
	InformationLevel string
	Kind             Kind
	// Sentinels are literal values that denote a missing answer, in file order.
	Sentinels []string
}

// Codex indexes attributes by name and, when loaded, their dictionary docs.
type Codex struct {
	order []string
	attrs map[string]Attribute
	docs  map[string]FeatureDoc
}

// New builds a codex from attributes. Duplicate names are an error.
func New(attrs []Attribute) (*Codex, error) {
	c := &Codex{attrs: make(map[string]Attribute, len(attrs)), docs: map[string]FeatureDoc{}}
	for _, a := range attrs {
		if _, dup := c.attrs[a.Name]; dup {
			return nil, fmt.Errorf("duplicate attribute %q", a.Name)
		}
		a.Sentinels = append([]string(nil), a.Sentinels...)
		c.attrs[a.Name] = a
		c.order = append(c.order, a.Name)
	}
	return c, nil
}

// ReadSummary parses a feature summary file with the columns
// attribute, information_level, type and missing_or_unknown.
func ReadSummary(r io.Reader) (*Codex, error) {
	opt := dataset.DefaultReadOptions()
	opt.NullTokens = nil
	t, err := dataset.ReadCSV(r, "feature summary", opt)
	if err != nil {
		return nil, fmt.Errorf("read feature summary: %w", err)
	}
	idx := map[string]int{}
	for _, col := range []string{"attribute", "information_level", "type", "missing_or_unknown"} {
		i, ok := t.ColumnIndex(col)
		if !ok {
			return nil, &dataset.SchemaError{Stage: "feature summary", Missing: []string{col}}
		}
		idx[col] = i
	}
	attrs := make([]Attribute, 0, t.NumRows())
	for r := 0; r < t.NumRows(); r++ {
		name := t.Cell(r, idx["attribute"]).Value
		if name == "" {
			return nil, fmt.Errorf("feature summary row %d: empty attribute name", r+1)
		}
		sentinels, err := ParseSentinels(t.Cell(r, idx["missing_or_unknown"]).Value)
		if err != nil {
			return nil, fmt.Errorf("feature summary %s: %w", name, err)
		}
		attrs = append(attrs, Attribute{
			Name:             name,
			InformationLevel: t.Cell(r, idx["information_level"]).Value,
			Kind:             Kind(strings.ToLower(t.Cell(r, idx["type"]).Value)),
			Sentinels:        sentinels,
		})
	}
	return New(attrs)
}

// ParseSentinels converts "[-1,0]" style lists into their tokens. "[]" yields nil.
func ParseSentinels(s string) ([]string, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil, nil
	}
	if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") {
		return nil, fmt.Errorf("malformed sentinel list %q", s)
	}
	raw = strings.TrimSpace(raw[1 : len(raw)-1])
	if raw == "" {
		return nil, nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.Trim(strings.TrimSpace(p), `'"`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// Lookup returns the metadata for an attribute.
func (c *Codex) Lookup(name string) (Attribute, bool) {
	a, ok := c.attrs[name]
	return a, ok
}

// Names returns attribute names in file order.
func (c *Codex) Names() []string { return append([]string(nil), c.order...) }

// Validate checks that every column of a table has a metadata row.
func (c *Codex) Validate(stage string, columns []string) error {
	var missing []string
	for _, col := range columns {
		if _, ok := c.attrs[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &dataset.SchemaError{Stage: stage + ": no metadata for", Missing: missing}
	}
	return nil
}

// Kinds returns the measurement kind for each listed column.
func (c *Codex) Kinds(columns []string) map[string]Kind {
	out := make(map[string]Kind, len(columns))
	for _, col := range columns {
		if a, ok := c.attrs[col]; ok {
			out[col] = a.Kind
		}
	}
	return out
}

// Entry merges summary metadata with the dictionary doc of one feature.
type Entry struct {
	Attribute
	Doc *FeatureDoc
	// Allowed lists documented codes that are not missing sentinels.
	Allowed []string
}

// Entry returns the merged view of a feature. Features documented only in the
// dictionary are returned with a bare Attribute.
func (c *Codex) Entry(name string) (Entry, error) {
	a, inSummary := c.attrs[name]
	d, inDocs := c.docs[name]
	if !inSummary && !inDocs {
		return Entry{}, fmt.Errorf("feature %q is not in the codex", name)
	}
	if !inSummary {
		a = Attribute{Name: name}
	}
	e := Entry{Attribute: a}
	if inDocs {
		doc := d
		e.Doc = &doc
		missing := make(map[string]struct{}, len(a.Sentinels))
		for _, s := range a.Sentinels {
			missing[s] = struct{}{}
		}
		for _, code := range d.Codes {
			if _, ok := missing[code.Value]; !ok {
				e.Allowed = append(e.Allowed, code.Value)
			}
		}
	}
	return e, nil
}

// Attach merges dictionary docs into the codex, keyed by feature name.
func (c *Codex) Attach(docs []FeatureDoc) {
	for _, d := range docs {
		c.docs[d.Name] = d
	}
}

// Documented returns the names of features that have a dictionary entry.
func (c *Codex) Documented() []string {
	out := make([]string, 0, len(c.docs))
	for n := range c.docs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Markdown renders an entry for terminal display.
func (e Entry) Markdown() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[FEATURE] %s\n", e.Name))
	if e.Doc != nil && e.Doc.Section != "" {
		b.WriteString(fmt.Sprintf("section: %s\n", e.Doc.Section))
	}
	if e.InformationLevel != "" {
		b.WriteString(fmt.Sprintf("information_level: %s\n", e.InformationLevel))
	}
	if e.Kind != "" {
		b.WriteString(fmt.Sprintf("type: %s\n", e.Kind))
	}
	b.WriteString(fmt.Sprintf("missing_or_unknown: [%s]\n", strings.Join(e.Sentinels, ",")))
	if e.Doc == nil {
		return b.String()
	}
	if e.Doc.Definition != "" {
		b.WriteString(fmt.Sprintf("definition: %s\n", e.Doc.Definition))
	}
	if len(e.Allowed) > 0 {
		b.WriteString(fmt.Sprintf("allowed_values: %s\n", strings.Join(e.Allowed, ", ")))
	}
	if len(e.Doc.Codes) > 0 {
		b.WriteString("\n[CODES]\n")
		for _, code := range e.Doc.Codes {
			b.WriteString(fmt.Sprintf("%6s: %s\n", code.Value, code.Meaning))
		}
	}
	if len(e.Doc.Dimensions) > 0 {
		b.WriteString("\n[DIMENSIONS]\n")
		for _, d := range e.Doc.Dimensions {
			b.WriteString("- ")
			b.WriteString(d)
			b.WriteString("\n")
		}
	}
	return b.String()
}
