package hybridsearch

const (
	boostBase           = 1.0
	boostCap            = 2.0
	nameMatchBoost      = 0.5
	tagMatchUnit        = 0.2
	tagMatchCap         = 0.4
	childMatchUnit      = 0.3
	childMatchCap       = 0.6
	descriptionDensityW = 0.2
)

// KeywordBoost computes the multiplicative lexical boost for a query
// already reduced to tokens against an entity's name, child names
// (tool or skill names), tags, and description. An empty token list
// (e.g. a stopword-only query) yields the neutral boost of 1.0.
func KeywordBoost(tokens []string, name string, childNames, tags []string, description string) float64 {
	if len(tokens) == 0 {
		return 1.0
	}

	boost := boostBase

	if containsToken(tokens, name) {
		boost += nameMatchBoost
	}

	var childBoost float64
	for _, c := range childNames {
		if containsToken(tokens, c) {
			childBoost += childMatchUnit
		}
	}
	if childBoost > childMatchCap {
		childBoost = childMatchCap
	}
	boost += childBoost

	var tagBoost float64
	for _, tag := range tags {
		if containsToken(tokens, tag) {
			tagBoost += tagMatchUnit
		}
	}
	if tagBoost > tagMatchCap {
		tagBoost = tagMatchCap
	}
	boost += tagBoost

	matches := countMatches(tokens, description)
	boost += (float64(matches) / float64(len(tokens))) * descriptionDensityW

	if boost > boostCap {
		boost = boostCap
	}
	return boost
}
