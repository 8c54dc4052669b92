package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
)

// ReadXLSX decodes the selected worksheet of an .xlsx workbook into a table.
// The first sheet row is the header. SheetName wins over SheetIndex.
func ReadXLSX(data []byte, name string, opt ReadOptions) (*Table, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	sheets := parseWorkbook(zipEntry(zr, "xl/workbook.xml"))
	rels := parseRelationships(zipEntry(zr, "xl/_rels/workbook.xml.rels"))
	target, err := resolveSheet(sheets, rels, opt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	sheetXML := zipEntry(zr, target)
	if sheetXML == nil {
		return nil, fmt.Errorf("%s: worksheet %s not found", name, target)
	}
	rr := &sheetRows{dec: xml.NewDecoder(bytes.NewReader(sheetXML)), shared: parseSharedStrings(zipEntry(zr, "xl/sharedStrings.xml"))}
	header, ok := rr.next()
	if !ok || len(header) == 0 {
		return nil, fmt.Errorf("read %s: empty sheet", name)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}
	b := newBuilder(columns, opt)
	for opt.MaxRows <= 0 || b.len() < opt.MaxRows {
		row, ok := rr.next()
		if !ok {
			break
		}
		if err := b.add(row); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return New(name, columns, b.rows)
}

type wbSheet struct {
	name string
	id   int
	rid  string
}

func resolveSheet(sheets []wbSheet, rels map[string]string, opt ReadOptions) (string, error) {
	if opt.SheetName != "" {
		names := make([]string, 0, len(sheets))
		for _, s := range sheets {
			if strings.EqualFold(s.name, opt.SheetName) {
				if rel, ok := rels[s.rid]; ok {
					return normalizeRelPath(rel), nil
				}
			}
			names = append(names, s.name)
		}
		return "", fmt.Errorf("sheet '%s' not found; available sheets: %s", opt.SheetName, strings.Join(names, ", "))
	}
	idx := opt.SheetIndex
	if idx <= 0 {
		idx = 1
	}
	for _, s := range sheets {
		if s.id == idx {
			if rel, ok := rels[s.rid]; ok {
				return normalizeRelPath(rel), nil
			}
		}
	}
	return fmt.Sprintf("xl/worksheets/sheet%d.xml", idx), nil
}

// normalizeRelPath converts relationship targets such as "/xl/worksheets/sheet1.xml"
// or "worksheets/sheet1.xml" into ZIP entry names.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}

func zipEntry(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return b
	}
	return nil
}

// forEachStart walks an XML document and calls fn for every start element.
func forEachStart(data []byte, fn func(dec *xml.Decoder, se xml.StartElement)) {
	if len(data) == 0 {
		return
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		if se, ok := tok.(xml.StartElement); ok {
			fn(dec, se)
		}
	}
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func parseWorkbook(data []byte) []wbSheet {
	var out []wbSheet
	forEachStart(data, func(_ *xml.Decoder, se xml.StartElement) {
		if se.Name.Local != "sheet" {
			return
		}
		id, _ := strconv.Atoi(attr(se, "sheetId"))
		out = append(out, wbSheet{name: attr(se, "name"), id: id, rid: attr(se, "id")})
	})
	return out
}

func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	forEachStart(data, func(_ *xml.Decoder, se xml.StartElement) {
		if se.Name.Local != "Relationship" {
			return
		}
		if id, target := attr(se, "Id"), attr(se, "Target"); id != "" && target != "" {
			out[id] = target
		}
	})
	return out
}

func parseSharedStrings(data []byte) []string {
	var out []string
	forEachStart(data, func(dec *xml.Decoder, se xml.StartElement) {
		if se.Name.Local == "si" {
			out = append(out, textUntil(dec, "si"))
		}
	})
	return out
}

// textUntil concatenates all <t> and <v> character data until the closing element.
func textUntil(dec *xml.Decoder, end string) string {
	var sb strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return sb.String()
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "t" || el.Name.Local == "v" {
				depth++
			}
		case xml.EndElement:
			if el.Name.Local == "t" || el.Name.Local == "v" {
				depth--
			}
			if el.Name.Local == end {
				return sb.String()
			}
		case xml.CharData:
			if depth > 0 {
				sb.Write(el)
			}
		}
	}
}

type sheetRows struct {
	dec    *xml.Decoder
	shared []string
}

func (r *sheetRows) next() ([]string, bool) {
	var row []string
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "row":
				inRow, row = true, nil
			case "c":
				if !inRow {
					continue
				}
				col := colIndexFromRef(attr(se, "r"))
				if col < 0 {
					col = len(row)
				}
				typ := attr(se, "t")
				val := textUntil(r.dec, "c")
				if typ == "s" {
					i, err := strconv.Atoi(strings.TrimSpace(val))
					if err != nil || i < 0 || i >= len(r.shared) {
						val = ""
					} else {
						val = r.shared[i]
					}
				}
				for len(row) <= col {
					row = append(row, "")
				}
				row[col] = val
			}
		case xml.EndElement:
			if se.Name.Local == "row" && inRow {
				return row, true
			}
		}
	}
}

// colIndexFromRef maps refs like "C12" to a 0-based column index.
func colIndexFromRef(ref string) int {
	idx := 0
	n := 0
	for _, c := range strings.ToUpper(ref) {
		if c < 'A' || c > 'Z' {
			break
		}
		idx = idx*26 + int(c-'A'+1)
		n++
	}
	if n == 0 {
		return -1
	}
	return idx - 1
}
