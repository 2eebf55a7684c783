package mapper

import (
	"github.com/JonMunkholm/catalog/internal/ingest"
	"github.com/JonMunkholm/catalog/internal/taxonomy"
)

// Column is a logical input column.
type Column int

const (
	ColSubcategory Column = iota
	ColJob
	ColDescription
	ColEstimatedTime
	ColPrice

	numColumns
)

var columnNames = [numColumns]string{"subcategory", "job", "description", "estimated time", "price"}

func (c Column) String() string {
	if c < 0 || c >= numColumns {
		return "unknown"
	}
	return columnNames[c]
}

// columnAliases lists the accepted header spellings per column, most
// specific first. Matching uses taxonomy.NormalizeName.
var columnAliases = [numColumns][]string{
	ColSubcategory:   {"subcategory", "sub category", "sub-category", "subcategory name", "group"},
	ColJob:           {"job", "job name", "service", "service name", "name"},
	ColDescription:   {"description", "job description", "service description", "desc", "details", "notes"},
	ColEstimatedTime: {"estimated time", "estimatedtime", "time", "duration", "minutes", "labor time", "est. time"},
	ColPrice:         {"price", "cost", "amount", "rate", "unit price"},
}

// Schema maps every logical column to a cell index, or -1 when the column
// is absent.
type Schema [numColumns]int

// DefaultSchema is the positional layout A through E.
func DefaultSchema() Schema {
	var s Schema
	for c := range s {
		s[c] = c
	}
	return s
}

// ResolveSchema matches header cells against the alias table. Columns the
// header does not name keep their default position unless that position
// was claimed by another column.
func ResolveSchema(header ingest.Row) Schema {
	if len(header) == 0 {
		return DefaultSchema()
	}

	names := make([]string, len(header))
	for i, cell := range header {
		names[i] = taxonomy.NormalizeName(CleanCell(cell.Text))
	}

	var s Schema
	claimed := make(map[int]bool, len(header))
	found := [numColumns]bool{}

	for col := Column(0); col < numColumns; col++ {
		s[col] = -1
		for _, alias := range columnAliases[col] {
			for i, name := range names {
				if name == alias && !claimed[i] {
					s[col] = i
					claimed[i] = true
					found[col] = true
					break
				}
			}
			if found[col] {
				break
			}
		}
	}

	for col := Column(0); col < numColumns; col++ {
		if found[col] {
			continue
		}
		if pos := int(col); !claimed[pos] {
			s[col] = pos
			claimed[pos] = true
		}
	}
	return s
}

// cell returns the cell for a logical column.
func (s Schema) cell(row ingest.Row, col Column) ingest.Cell {
	return row.At(s[col])
}
