package hybridsearch

import (
	"math"
	"sort"
	"strings"

	"github.com/gatereg/registry/internal/domain/registry"
)

// SkillMatch is a single agent's skill-based discovery score.
type SkillMatch struct {
	Agent     *registry.Agent
	Relevance float64
}

// DiscoverBySkills scores each accessible, enabled agent against
// requiredSkills (and optionally tagsFilter), per the non-semantic
// skill-based discovery formula. Agents with an empty skill
// intersection are skipped entirely.
func DiscoverBySkills(agents []*registry.Agent, requiredSkills, tagsFilter []string) []SkillMatch {
	required := toLowerSet(requiredSkills)
	tagsWanted := toLowerSet(tagsFilter)
	if len(required) == 0 {
		return nil
	}

	out := make([]SkillMatch, 0, len(agents))
	for _, a := range agents {
		have := make(map[string]struct{}, len(a.Skills)*2)
		for _, sk := range a.Skills {
			have[strings.ToLower(sk.ID)] = struct{}{}
			have[strings.ToLower(sk.Name)] = struct{}{}
		}

		skillHits := 0
		for s := range required {
			if _, ok := have[s]; ok {
				skillHits++
			}
		}
		if skillHits == 0 {
			continue
		}
		skillScore := float64(skillHits) / float64(len(required))

		var tagScore float64
		if len(tagsWanted) > 0 {
			tagHave := toLowerSet(a.Tags)
			tagHits := 0
			for t := range tagsWanted {
				if _, ok := tagHave[t]; ok {
					tagHits++
				}
			}
			tagScore = float64(tagHits) / float64(len(tagsWanted))
		}

		relevance := 0.6*skillScore + 0.2*tagScore + 0.2*a.TrustLevel.TrustBoost()
		out = append(out, SkillMatch{Agent: a, Relevance: round2(relevance)})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	return out
}

func toLowerSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = struct{}{}
	}
	return set
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
