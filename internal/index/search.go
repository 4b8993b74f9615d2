package index

import (
	"strings"
	"unicode/utf8"
)

const (
	defaultSearchLimit = 20
	snippetRunes       = 160
)

// searchTerms splits a user query into terms. Every term must match for a
// note to be returned; quotes and FTS operators carry no meaning.
func searchTerms(query string) []string {
	fields := strings.Fields(strings.NewReplacer(`"`, " ", "*", " ").Replace(query))
	terms := fields[:0]
	for _, f := range fields {
		switch strings.ToUpper(f) {
		case "AND", "OR", "NOT", "NEAR":
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// snippet returns roughly snippetRunes of body centred on the first
// occurrence of term, with the match wrapped in <b> tags.
func snippet(body, term string) string {
	i := strings.Index(strings.ToLower(body), strings.ToLower(term))
	if i < 0 || len(strings.ToLower(body)) != len(body) {
		return truncateRunes(body, snippetRunes)
	}
	start := max(i-snippetRunes/2, 0)
	for start > 0 && !utf8.RuneStart(body[start]) {
		start--
	}
	end := min(i+len(term)+snippetRunes/2, len(body))
	for end < len(body) && !utf8.RuneStart(body[end]) {
		end++
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(body[start:i])
	b.WriteString("<b>")
	b.WriteString(body[i : i+len(term)])
	b.WriteString("</b>")
	b.WriteString(body[i+len(term) : end])
	if end < len(body) {
		b.WriteString("...")
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
