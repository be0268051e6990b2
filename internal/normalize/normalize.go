// Package normalize implements the text normalization shared by the store
// (content hashing and dedup) and the search indices (folding before
// tokenizing/matching).
package normalize

import "strings"

// NBSP and BOM runes replaced with ordinary space during folding.
const (
	runeNBSP = '\u00A0' // no-break space
	runeBOM  = '\uFEFF' // byte order mark / zero width no-break space
)

// unicode line separators collapsed to '\n' alongside CRLF.
var lineSeparators = []rune{
	'\u000B', // vertical tab
	'\u000C', // form feed
	'\u0085', // next line (NEL)
	'\u2028', // line separator
	'\u2029', // paragraph separator
}

// Fold normalizes text the way the store hashes and indexes it:
// lowercase-fold, collapse CRLF and Unicode line separators to '\n', replace
// NBSP/BOM with ordinary space, then trim leading/trailing whitespace.
//
// Fold is idempotent: Fold(Fold(s)) == Fold(s).
func Fold(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder

	b.Grow(len(s))

	for _, r := range s {
		switch {
		case r == runeNBSP:
			b.WriteRune(' ')
		case r == runeBOM:
			b.WriteRune(' ')
		case isLineSeparator(r):
			b.WriteRune('\n')
		default:
			b.WriteRune(r)
		}
	}

	folded := strings.ToLower(b.String())

	return strings.TrimSpace(folded)
}

func isLineSeparator(r rune) bool {
	for _, sep := range lineSeparators {
		if r == sep {
			return true
		}
	}

	return false
}

// HashableText returns the representation that content hashing operates on:
// the folded plain text. Kept as a separate named function (rather than
// calling Fold directly from the store) so hashing and indexing can diverge
// later without hunting down call sites.
func HashableText(plainText string) string {
	return Fold(plainText)
}
