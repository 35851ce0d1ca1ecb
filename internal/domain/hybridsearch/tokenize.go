// Package hybridsearch implements the pure scoring logic behind the
// hybrid search engine: query tokenization, the multiplicative
// keyword boost, per-server tool extraction, and skill-based agent
// discovery scoring. None of these functions touch the vector index
// or any store; the orchestrating service in internal/service wires
// them to C7 and the registry stores.
package hybridsearch

import (
	"regexp"
	"strings"
)

// stopwords is the closed set dropped from every tokenized query.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "can": {}, "to": {}, "of": {},
	"in": {}, "on": {}, "at": {}, "by": {}, "for": {}, "with": {}, "about": {},
	"as": {}, "into": {}, "through": {}, "from": {}, "what": {}, "when": {},
	"where": {}, "who": {}, "which": {}, "how": {}, "why": {}, "get": {},
	"set": {}, "put": {},
}

var nonWord = regexp.MustCompile(`\W+`)

// Tokenize splits query on non-word characters, lowercases, and drops
// tokens of length ≤ 2 and stopwords.
func Tokenize(query string) []string {
	raw := nonWord.Split(strings.ToLower(query), -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if len(t) <= 2 {
			continue
		}
		if _, stop := stopwords[t]; stop {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

func containsToken(tokens []string, haystack string) bool {
	haystack = strings.ToLower(haystack)
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

func countMatches(tokens []string, haystack string) int {
	haystack = strings.ToLower(haystack)
	n := 0
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			n++
		}
	}
	return n
}
