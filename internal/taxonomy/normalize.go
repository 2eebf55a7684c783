package taxonomy

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// fold allocates a Caser per call: a cases.Caser must not be shared between goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}

// NormalizeName returns the comparison form of a node name: NFKC normalized,
// case folded, trimmed, with every whitespace run collapsed to one space.
//
// "  Oil   Change " and "oil change" normalize to the same key.
func NormalizeName(name string) string {
	name = norm.NFKC.String(name)
	name = fold(name)
	return strings.Join(strings.FieldsFunc(name, unicode.IsSpace), " ")
}

// CleanName trims a display name and collapses internal whitespace without
// changing case. The result is what gets persisted.
func CleanName(name string) string {
	return strings.Join(strings.FieldsFunc(norm.NFC.String(name), unicode.IsSpace), " ")
}

// SameName reports whether two names share a business key.
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
