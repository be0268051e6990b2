package fuzzy

import "unicode"

// matchScore reports whether query is a case-insensitive subsequence of
// text and, if so, its relevance score: 1/(1+gap_count), plus a bonus when
// the match starts at the very first rune of text (spec §4.3's
// left-anchor bonus for prefix-like hits).
func matchScore(text, query string) (float64, bool) {
	if query == "" {
		return 0, false
	}

	t := []rune(text)
	q := []rune(query)

	pos := 0
	firstMatch := -1
	lastMatch := -1
	gaps := 0

	for _, qr := range q {
		qr = unicode.ToLower(qr)

		found := -1

		for pos < len(t) {
			if unicode.ToLower(t[pos]) == qr {
				found = pos

				break
			}

			pos++
		}

		if found == -1 {
			return 0, false
		}

		if firstMatch == -1 {
			firstMatch = found
		}

		if lastMatch != -1 && found > lastMatch+1 {
			gaps += found - lastMatch - 1
		}

		lastMatch = found
		pos = found + 1
	}

	score := 1 / float64(1+gaps)

	if firstMatch == 0 {
		score += 0.5
	}

	return score, true
}
