package fulltext

import "strings"

// BuildMatchExpression turns a raw user query into an FTS5 MATCH expression:
// split on whitespace and hyphens, strip characters FTS5 treats as query
// syntax (wildcards and quotes), quote each surviving term and AND-join them
// (spec §4.2). Returns "" if nothing survives (an all-punctuation query).
func BuildMatchExpression(query string) string {
	terms := splitTerms(query)
	if len(terms) == 0 {
		return ""
	}

	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = quoteTerm(t)
	}

	return strings.Join(quoted, " AND ")
}

// splitTerms splits on whitespace and hyphens and strips FTS5 wildcard/query
// syntax characters from each piece, dropping pieces that end up empty.
func splitTerms(query string) []string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return r == '-' || isSpace(r)
	})

	terms := make([]string, 0, len(fields))

	for _, f := range fields {
		stripped := stripWildcards(f)
		if stripped != "" {
			terms = append(terms, stripped)
		}
	}

	return terms
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

// stripWildcards removes FTS5 query-syntax characters a raw user query
// should never be able to inject: "*" (prefix match), the column-filter
// ":" and double quotes (string-literal delimiters).
func stripWildcards(term string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '*', ':', '"':
			return -1
		default:
			return r
		}
	}, term)
}

// quoteTerm wraps a term in double quotes for FTS5's string-literal syntax;
// any internal quote is escaped by doubling (stripWildcards already removes
// these, so this is defense in depth against future callers).
func quoteTerm(term string) string {
	return `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
}

// escapeLike escapes SQL LIKE wildcard characters ("%", "_") and the escape
// character itself ("\") so a user query can't smuggle its own wildcard into
// a parameterized LIKE pattern.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)

	return s
}
