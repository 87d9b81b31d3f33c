package textutil

import (
	"strings"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// Fold returns a caseless form of s suitable for comparisons.
func Fold(s string) string {
	return folder.String(s)
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(Fold(s), Fold(substr))
}

// MatchAny reports whether any of the needles is a case-insensitive
// substring of name.
func MatchAny(name string, needles []string) bool {
	folded := Fold(name)
	for _, n := range needles {
		if strings.Contains(folded, Fold(n)) {
			return true
		}
	}
	return false
}
