package storage

import (
	"strings"
	"unicode"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "be": true, "can": true,
	"do": true, "does": true, "for": true, "how": true, "i": true, "in": true,
	"is": true, "it": true, "me": true, "my": true, "of": true, "on": true,
	"or": true, "the": true, "to": true, "what": true, "when": true, "where": true,
	"why": true, "with": true, "you": true, "your": true, "we": true, "our": true,
}

// Terms lowercases text and returns its distinct non-stop-word tokens in
// order of first appearance.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// TermOverlap is the share of query terms present in candidate, in [0,1].
func TermOverlap(queryTerms []string, candidate string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	have := make(map[string]bool)
	for _, t := range Terms(candidate) {
		have[t] = true
	}
	matched := 0
	for _, t := range queryTerms {
		if have[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}
