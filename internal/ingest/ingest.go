// Package ingest turns uploaded spreadsheet or delimited-text bytes into a
// uniform table of cells. It knows nothing about the catalog hierarchy.
package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/catalog/internal/taxonomy"
)

// CellKind tells a spreadsheet number apart from text.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellString
	CellNumber
)

func (k CellKind) String() string {
	switch k {
	case CellString:
		return "string"
	case CellNumber:
		return "number"
	default:
		return "empty"
	}
}

// Cell is one value of a row. Text always carries the raw value; Number is
// set only for CellNumber.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

// IsEmpty reports whether the cell holds nothing but whitespace.
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty
}

// Row is an ordered list of cells.
type Row []Cell

// At returns the cell at index i, or an empty cell past the end of the row.
func (r Row) At(i int) Cell {
	if i < 0 || i >= len(r) {
		return Cell{}
	}
	return r[i]
}

// Texts returns the raw text of every cell.
func (r Row) Texts() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Text
	}
	return out
}

func (r Row) blank() bool {
	for _, c := range r {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// Table is the parsed content of one file.
type Table struct {
	Header Row
	Rows   []Row
}

// Options control how a file is decoded.
type Options struct {
	// HasHeader makes the first row the header.
	HasHeader bool
	// Sheet selects a worksheet by name. Empty means the first sheet.
	Sheet string
	// Delimiter for delimited text. Zero means comma.
	Delimiter rune
	// Encoding of delimited text: "utf-8" (default) or "windows-1252".
	Encoding string
}

// Parse decodes data according to format. A mismatch between the bytes and
// the declared format is returned as a *taxonomy.Error of kind ParseError.
func Parse(data []byte, format Format, opts Options) (*Table, error) {
	var (
		rows []Row
		err  error
	)

	switch format {
	case FormatSpreadsheet:
		rows, err = parseSpreadsheet(data, opts)
	case FormatDelimited:
		rows, err = parseDelimited(data, opts)
	default:
		err = fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
	if err != nil {
		var te *taxonomy.Error
		if errors.As(err, &te) {
			return nil, te
		}
		return nil, taxonomy.NewParseError("", err)
	}

	return buildTable(rows, opts.HasHeader), nil
}

// buildTable trims blank trailing cells and rows and splits off the header.
func buildTable(rows []Row, hasHeader bool) *Table {
	for i, r := range rows {
		rows[i] = trimRow(r)
	}
	for len(rows) > 0 && rows[len(rows)-1].blank() {
		rows = rows[:len(rows)-1]
	}

	t := &Table{}
	if hasHeader && len(rows) > 0 {
		t.Header = rows[0]
		rows = rows[1:]
	}
	t.Rows = rows
	return t
}

func trimRow(r Row) Row {
	n := len(r)
	for n > 0 && r[n-1].IsEmpty() {
		n--
	}
	return r[:n]
}

// textCell classifies a value read as text.
func textCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{Kind: CellEmpty, Text: s}
	}
	return Cell{Kind: CellString, Text: s}
}
