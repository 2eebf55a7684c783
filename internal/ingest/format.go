package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnknownFormat is returned when a format name or extension is not recognized.
var ErrUnknownFormat = errors.New("unknown format")

// Format is the declared container of an uploaded file.
type Format string

const (
	FormatSpreadsheet Format = "spreadsheet"
	FormatDelimited   Format = "delimited-text"
)

// ParseFormat accepts the canonical names plus the common short aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spreadsheet", "xlsx", "excel":
		return FormatSpreadsheet, nil
	case "delimited-text", "delimited", "csv", "tsv", "text":
		return FormatDelimited, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownFormat, s)
	}
}

// DetectFormat infers the format from a file extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xls":
		return FormatSpreadsheet, nil
	case ".csv", ".tsv", ".txt":
		return FormatDelimited, nil
	default:
		return "", fmt.Errorf("%w: cannot infer from %q", ErrUnknownFormat, filename)
	}
}

// ForFile fills in defaults implied by the file name. A .tsv file gets a tab
// delimiter unless one was set explicitly.
func (o Options) ForFile(filename string) Options {
	if o.Delimiter == 0 && strings.EqualFold(filepath.Ext(filename), ".tsv") {
		o.Delimiter = '\t'
	}
	return o
}
