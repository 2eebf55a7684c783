package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// oleMagic opens a legacy binary (BIFF) workbook or an encrypted container.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Errors reported for workbooks that open but cannot be read.
var (
	ErrLegacyWorkbook = errors.New("legacy binary .xls workbooks are not supported")
	ErrSheetNotFound  = errors.New("sheet not found")
	ErrNoSheets       = errors.New("workbook has no sheets")
)

func parseSpreadsheet(data []byte, opts Options) ([]Row, error) {
	if bytes.HasPrefix(data, oleMagic) {
		return nil, ErrLegacyWorkbook
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet, err := pickSheet(f.GetSheetList(), opts.Sheet)
	if err != nil {
		return nil, err
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	rows := make([]Row, len(raw))
	for r, values := range raw {
		row := make(Row, len(values))
		for c, v := range values {
			row[c] = spreadsheetCell(f, sheet, c, r, v)
		}
		rows[r] = row
	}
	return rows, nil
}

func pickSheet(sheets []string, want string) (string, error) {
	if len(sheets) == 0 {
		return "", ErrNoSheets
	}
	if want == "" {
		return sheets[0], nil
	}
	if slices.Contains(sheets, want) {
		return want, nil
	}
	return "", fmt.Errorf("%w: %q (have %s)", ErrSheetNotFound, want, strings.Join(sheets, ", "))
}

// spreadsheetCell classifies a raw cell value. Only cells stored without a
// string type whose raw value parses as a finite float are numbers.
func spreadsheetCell(f *excelize.File, sheet string, col, row int, v string) Cell {
	cell := textCell(v)
	if cell.IsEmpty() {
		return cell
	}

	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return cell
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return cell
	}
	if typ != excelize.CellTypeUnset && typ != excelize.CellTypeNumber {
		return cell
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return cell
	}
	return Cell{Kind: CellNumber, Text: v, Number: n}
}
