package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnsupportedEncoding is returned for an encoding name decoderFor does not know.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

// decoderFor returns the transformer that turns file bytes into UTF-8.
// A byte order mark always wins over the declared encoding.
func decoderFor(name string) (transform.Transformer, error) {
	var fallback *encoding.Decoder

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		// The UTF-8 decoder replaces invalid sequences with U+FFFD.
		fallback = unicode.UTF8.NewDecoder()
	case "windows-1252", "cp1252":
		fallback = charmap.Windows1252.NewDecoder()
	case "iso-8859-1", "latin1", "latin-1":
		fallback = charmap.ISO8859_1.NewDecoder()
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedEncoding, name)
	}
	return unicode.BOMOverride(fallback), nil
}

func parseDelimited(data []byte, opts Options) ([]Row, error) {
	dec, err := decoderFor(opts.Encoding)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(transform.NewReader(bytes.NewReader(data), dec))
	r.FieldsPerRecord = -1
	r.LazyQuotes = false
	if opts.Delimiter != 0 {
		r.Comma = opts.Delimiter
	}

	var rows []Row
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			perr := taxonomy.NewParseError("", err)
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				perr.Line = csvErr.Line
				perr.Err = csvErr.Err
			}
			return nil, perr
		}

		row := make(Row, len(record))
		for i, v := range record {
			row[i] = textCell(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
