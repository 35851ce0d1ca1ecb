package hybridsearch

import (
	"sort"
	"strings"

	"github.com/gatereg/registry/internal/domain/registry"
)

// ToolMatch is a single extracted tool result projected from a server
// hit, carrying the raw_score the caller combines with the server's
// final relevance score.
type ToolMatch struct {
	Tool     registry.ToolRecord
	RawScore float64
}

const serverNameFallbackScore = 0.5

// ExtractTools finds the tools of server that match the tokenized
// query, sorted by raw_score descending and truncated to the top 5.
// A server-name match with no tool-level hits still yields every tool
// at the fallback score, per the context7-style "use X for Y" query
// shape.
func ExtractTools(tokens []string, server *registry.Server) []ToolMatch {
	if len(tokens) == 0 {
		return nil
	}

	serverNameMatched := containsToken(tokens, server.Name) || nameTokensMatchQuery(tokens, server.Name)

	maxPossible := 2 * len(tokens)
	matches := make([]ToolMatch, 0, len(server.ToolList))
	for _, tool := range server.ToolList {
		nameMatches := countMatches(tokens, tool.Name)
		descMatches := countMatches(tokens, tool.Description+" "+tool.ParsedDescription.Args)
		weighted := 2*nameMatches + descMatches

		switch {
		case weighted > 0:
			matches = append(matches, ToolMatch{Tool: tool, RawScore: float64(weighted) / float64(maxPossible)})
		case serverNameMatched:
			matches = append(matches, ToolMatch{Tool: tool, RawScore: serverNameFallbackScore})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].RawScore > matches[j].RawScore })
	if len(matches) > 5 {
		matches = matches[:5]
	}
	return matches
}

// nameTokensMatchQuery checks the reverse direction of a server-name
// match: a token derived from the server name appears in the raw
// query tokens.
func nameTokensMatchQuery(tokens []string, serverName string) bool {
	for _, nameTok := range Tokenize(serverName) {
		for _, t := range tokens {
			if strings.Contains(t, nameTok) || strings.Contains(nameTok, t) {
				return true
			}
		}
	}
	return false
}
