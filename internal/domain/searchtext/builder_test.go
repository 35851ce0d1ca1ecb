package searchtext

import (
	"testing"

	"github.com/gatereg/registry/internal/domain/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerText_Reproducible(t *testing.T) {
	s := &registry.Server{
		Name:        "weather",
		Description: "gives weather",
		Tags:        []string{"weather", "geo"},
		ToolList: []registry.ToolRecord{
			{Name: "get_forecast", Description: "fetch forecast", ParsedDescription: registry.ParsedDescription{Args: "city: string"}},
		},
	}
	a := ServerText(s)
	b := ServerText(s)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "Name: weather")
	assert.Contains(t, a, "Tags: weather,geo")
	assert.Contains(t, a, "Tool: get_forecast. Description: fetch forecast. Args: city: string")
	assert.NotContains(t, a, "Metadata:")
}

func TestServerText_MetadataOmittedWhenEmpty(t *testing.T) {
	s := &registry.Server{Name: "s"}
	assert.NotContains(t, ServerText(s), "Metadata:")
}

func TestServerText_MetadataIncludedAndSorted(t *testing.T) {
	s := &registry.Server{Name: "s", Metadata: map[string]any{"b": 2, "a": 1}}
	text := ServerText(s)
	require.Contains(t, text, "Metadata:")
	aIdx := indexOf(text, "a: 1")
	bIdx := indexOf(text, "b: 2")
	assert.Less(t, aIdx, bIdx)
}

func TestAgentText_SkillDetailsOmittedWhenNoSkills(t *testing.T) {
	a := &registry.Agent{Name: "agent"}
	text := AgentText(a)
	assert.NotContains(t, text, "Skill Details:")
}

func TestAgentText_IncludesSkillDetails(t *testing.T) {
	a := &registry.Agent{
		Name: "agent",
		Skills: []registry.Skill{
			{Name: "translate", Description: "translates text"},
		},
	}
	text := AgentText(a)
	assert.Contains(t, text, "Skills: translate")
	assert.Contains(t, text, "Skill Details: translate: translates text")
}

func TestServerSnapshot_RoundTrips(t *testing.T) {
	s := &registry.Server{Name: "weather", NumTools: 3, NumStars: 4.5}
	snap, err := ServerSnapshot(s)
	require.NoError(t, err)
	assert.Contains(t, snap, `"name":"weather"`)
	assert.Contains(t, snap, `"num_tools":3`)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
