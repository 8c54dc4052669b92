package codex

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// FeatureDoc is one feature's entry in the markdown data dictionary.
type FeatureDoc struct {
	Name       string
	Section    string
	Definition string
	Codes      []Code
	Dimensions []string
}

// Code is a documented value and its meaning, e.g. "-1" → "unknown".
type Code struct {
	Value   string
	Meaning string
}

var (
	sectionRe  = regexp.MustCompile(`^(\d+\.\d+)\.?\s*`)
	nameRe     = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_]*`)
	codeRe     = regexp.MustCompile(`^- {1,2}(-?\d*[A-Za-z]*): (.*)$`)
	continueRe = regexp.MustCompile(`^ {5}(\S.*)$`)
)

// ReadDictionary parses a data dictionary where each feature section starts
// with one or more "### 1.1. NAME" headers, followed by a definition, a list
// of "- code: meaning" lines and an optional "Dimension translations:" list.
// A header may name several features that share the same documentation.
func ReadDictionary(r io.Reader) ([]FeatureDoc, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var (
		out      []FeatureDoc
		cur      *section
		inHeader bool
	)
	flush := func() {
		if cur != nil {
			out = append(out, cur.docs()...)
		}
		cur = nil
	}
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		switch {
		case strings.HasPrefix(line, "### "):
			title := strings.TrimSpace(strings.TrimPrefix(line, "### "))
			if strings.EqualFold(title, "Table of Contents") {
				flush()
				inHeader = false
				continue
			}
			if !inHeader {
				flush()
				cur = &section{}
			}
			inHeader = true
			cur.addHeader(title)
			continue
		case strings.HasPrefix(line, "#"):
			flush()
			inHeader = false
			continue
		}
		inHeader = false
		if cur == nil {
			continue
		}
		cur.addLine(line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	flush()
	return out, nil
}

type section struct {
	names      []string
	number     string
	definition []string
	codes      []Code
	dims       []string
	inDims     bool
}

func (s *section) addHeader(title string) {
	if m := sectionRe.FindStringSubmatch(title); m != nil {
		if s.number == "" {
			s.number = m[1]
		}
		title = title[len(m[0]):]
	}
	s.names = append(s.names, nameRe.FindAllString(title, -1)...)
}

func (s *section) addLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if strings.HasPrefix(line, "Dimension translations") {
		s.inDims = true
		return
	}
	if s.inDims {
		if d, ok := strings.CutPrefix(line, "- "); ok {
			s.dims = append(s.dims, strings.TrimSpace(d))
		}
		return
	}
	if m := codeRe.FindStringSubmatch(line); m != nil && m[1] != "" {
		s.codes = append(s.codes, Code{Value: m[1], Meaning: strings.TrimSpace(m[2])})
		return
	}
	if m := continueRe.FindStringSubmatch(line); m != nil && len(s.codes) > 0 {
		last := &s.codes[len(s.codes)-1]
		last.Meaning += " " + strings.TrimSpace(m[1])
		return
	}
	if strings.HasPrefix(line, "- ") {
		// free-form note such as "- missing data encoded as 0"
		if len(s.codes) == 0 && strings.Contains(strings.ToLower(line), "missing") {
			s.codes = append(s.codes, Code{Value: "0", Meaning: "missing"})
		}
		return
	}
	if len(s.codes) == 0 {
		s.definition = append(s.definition, strings.TrimSpace(line))
	}
}

func (s *section) docs() []FeatureDoc {
	out := make([]FeatureDoc, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, FeatureDoc{
			Name:       n,
			Section:    s.number,
			Definition: strings.Join(s.definition, " "),
			Codes:      append([]Code(nil), s.codes...),
			Dimensions: append([]string(nil), s.dims...),
		})
	}
	return out
}
