package mapper

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/JonMunkholm/catalog/internal/ingest"
	"github.com/shopspring/decimal"
)

// numericRegex validates a number after cleanup: integers, decimals and
// scientific notation with at most a two-digit exponent.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d{1,2})?$`)

// Upper bounds of the stored columns: estimated_time integer and
// price numeric(12,2).
var (
	maxMinutes = decimal.NewFromInt(math.MaxInt32)
	maxPrice   = decimal.RequireFromString("9999999999.99")
)

// unitSuffixes are stripped from time cells such as "45 min".
var unitSuffixes = []string{"minutes", "minute", "mins", "min", "m"}

// CleanCell removes common spreadsheet export artifacts: surrounding
// whitespace, an Excel formula prefix (="...") and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// parseAmount reads a non-negative number from a cell. Currency symbols,
// thousands separators and accounting parentheses are accepted. A blank,
// unparseable or negative value yields zero and a warning.
func parseAmount(c ingest.Cell, field string, units bool) (decimal.Decimal, string) {
	if c.Kind == ingest.CellNumber {
		if math.IsNaN(c.Number) || math.IsInf(c.Number, 0) {
			return decimal.Zero, fmt.Sprintf("%s %q is not a number, using 0", field, c.Text)
		}
		d := decimal.NewFromFloat(c.Number)
		if d.IsNegative() {
			return decimal.Zero, fmt.Sprintf("%s %s is negative, using 0", field, c.Text)
		}
		return d, ""
	}

	s := CleanCell(c.Text)
	if s == "" {
		return decimal.Zero, fmt.Sprintf("%s is blank, using 0", field)
	}

	d, ok := cleanNumeric(s, units)
	if !ok {
		return decimal.Zero, fmt.Sprintf("%s %q is not a number, using 0", field, c.Text)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Sprintf("%s %q is negative, using 0", field, c.Text)
	}
	return d, ""
}

func cleanNumeric(s string, units bool) (decimal.Decimal, bool) {
	// Accounting format "(123.45)" is negative.
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if units {
		lower := strings.ToLower(s)
		for _, suffix := range unitSuffixes {
			if strings.HasSuffix(lower, suffix) {
				s = strings.TrimSpace(s[:len(s)-len(suffix)])
				break
			}
		}
	}

	if negative {
		s = "-" + s
	}
	if !numericRegex.MatchString(s) {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseMinutes reads an estimated time rounded to whole minutes.
func parseMinutes(c ingest.Cell) (int, string) {
	d, warn := parseAmount(c, "estimated time", true)
	d = d.Round(0)
	if d.GreaterThan(maxMinutes) {
		return 0, fmt.Sprintf("estimated time %q is out of range, using 0", c.Text)
	}
	return int(d.IntPart()), warn
}

// parsePrice reads a price rounded to cents.
func parsePrice(c ingest.Cell) (decimal.Decimal, string) {
	d, warn := parseAmount(c, "price", false)
	d = d.Round(2)
	if d.GreaterThan(maxPrice) {
		return decimal.Zero, fmt.Sprintf("price %q is out of range, using 0", c.Text)
	}
	return d, warn
}
