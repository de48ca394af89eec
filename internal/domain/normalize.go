package domain

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeColumnName returns the NFC form of a header name.
// Spreadsheet exports from some platforms store accented headers decomposed
// ("Parténaire"), which must still resolve to the logical column.
func NormalizeColumnName(s string) string {
	return norm.NFC.String(s)
}

// IsBlank reports whether s is empty after trimming whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
