package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadOptions controls how flat files are decoded into tables.
type ReadOptions struct {
	// Delimiter for CSV. If 0, sniffs among ';', ',', '\t' from the header line.
	Delimiter rune
	// NullTokens are literal values loaded as missing. Empty cells are always missing.
	NullTokens []string
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
	// XLSX sheet selection; SheetIndex is 1-based and used when SheetName is empty.
	SheetName  string
	SheetIndex int
}

// DefaultReadOptions mirrors what pandas treats as NA in the survey exports.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{NullTokens: []string{"NaN", "nan", "NA"}, SheetIndex: 1}
}

// ReadCSV decodes a delimited stream whose first record is the header.
func ReadCSV(r io.Reader, name string, opt ReadOptions) (*Table, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	delim := opt.Delimiter
	if delim == 0 {
		head, err := br.Peek(64 << 10)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("sniff delimiter: %w", err)
		}
		delim = sniffDelimiter(string(head))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read %s: empty file", name)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.Trim(strings.TrimSpace(h), `"`)
	}
	if len(columns) > 0 {
		columns[0] = strings.TrimPrefix(columns[0], "﻿")
	}
	// pandas exports often carry an unnamed index column
	dropIndex := len(columns) > 0 && columns[0] == ""

	b := newBuilder(columns, opt)
	for {
		if opt.MaxRows > 0 && b.len() >= opt.MaxRows {
			break
		}
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", b.len()+1, err)
		}
		if err := b.add(rec); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	t, err := New(name, columns, b.rows)
	if err != nil {
		return nil, err
	}
	if dropIndex {
		return t.Drop("")
	}
	return t, nil
}

// sniffDelimiter picks the candidate that appears most often on the first line.
func sniffDelimiter(head string) rune {
	line := head
	if i := strings.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{';', ',', '\t'} {
		if n := strings.Count(line, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// builder turns raw records into cells, shared by the CSV and XLSX readers.
type builder struct {
	ncol  int
	nulls map[string]struct{}
	rows  [][]Cell
}

func newBuilder(columns []string, opt ReadOptions) *builder {
	nulls := make(map[string]struct{}, len(opt.NullTokens))
	for _, n := range opt.NullTokens {
		nulls[n] = struct{}{}
	}
	return &builder{ncol: len(columns), nulls: nulls}
}

func (b *builder) len() int { return len(b.rows) }

func (b *builder) add(rec []string) error {
	if len(rec) > b.ncol {
		// trailing empty fields are tolerated
		for _, v := range rec[b.ncol:] {
			if strings.TrimSpace(v) != "" {
				return &ShapeError{Stage: fmt.Sprintf("row %d", len(b.rows)+1), What: "fields", Want: b.ncol, Got: len(rec)}
			}
		}
		rec = rec[:b.ncol]
	}
	row := make([]Cell, b.ncol)
	for j := range row {
		if j >= len(rec) {
			row[j] = Cell{Missing: true}
			continue
		}
		v := strings.TrimSpace(rec[j])
		_, null := b.nulls[v]
		row[j] = Cell{Value: v, Missing: v == "" || null}
	}
	b.rows = append(b.rows, row)
	return nil
}
