// Package searchtext builds the reproducible embedding text and
// lightweight result snapshots for servers and agents. These functions
// are pure: the same entity snapshot always yields byte-identical
// text, so the vector index can skip re-embedding when nothing the
// text depends on has changed.
package searchtext

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/gatereg/registry/internal/domain/registry"
)

func sortedKV(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, m[k]))
	}
	return strings.Join(lines, "\n")
}

// ServerText builds a server's embedding text per the fixed template.
func ServerText(s *registry.Server) string {
	var tools strings.Builder
	for _, t := range s.ToolList {
		tools.WriteString(fmt.Sprintf("Tool: %s. Description: %s. Args: %s\n", t.Name, t.Description, t.ParsedDescription.Args))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", s.Name)
	fmt.Fprintf(&b, "Description: %s\n", s.Description)
	fmt.Fprintf(&b, "Tags: %s\n", strings.Join(s.Tags, ","))
	fmt.Fprintf(&b, "Tools:\n%s", tools.String())

	if kv := sortedKV(s.Metadata); kv != "" {
		fmt.Fprintf(&b, "Metadata:\n%s", kv)
	}
	return b.String()
}

// AgentText builds an agent's embedding text per the fixed template.
func AgentText(a *registry.Agent) string {
	names := make([]string, 0, len(a.Skills))
	details := make([]string, 0, len(a.Skills))
	for _, sk := range a.Skills {
		names = append(names, sk.Name)
		details = append(details, fmt.Sprintf("%s: %s", sk.Name, sk.Description))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", a.Name)
	fmt.Fprintf(&b, "Description: %s\n", a.Description)
	fmt.Fprintf(&b, "Skills: %s\n", strings.Join(names, ","))
	if len(details) > 0 {
		fmt.Fprintf(&b, "Skill Details: %s\n", strings.Join(details, "; "))
	}
	fmt.Fprintf(&b, "Tags: %s\n", strings.Join(a.Tags, ","))

	if kv := sortedKV(a.Metadata); kv != "" {
		fmt.Fprintf(&b, "Metadata:\n%s", kv)
	}
	return b.String()
}

// serverSnapshot and agentSnapshot are the minimal projections carried
// alongside each vector-index record, letting search results render
// without a second round-trip to the registry store.
type serverSnapshot struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	NumTools    int      `json:"num_tools"`
	NumStars    float64  `json:"num_stars"`
}

type agentSnapshot struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	SkillNames  []string `json:"skill_names"`
	TrustLevel  string   `json:"trust_level"`
	NumStars    float64  `json:"num_stars"`
}

// ServerSnapshot serializes the projection of s stored alongside its
// vector-index metadata record.
func ServerSnapshot(s *registry.Server) (string, error) {
	data, err := json.Marshal(serverSnapshot{
		Name:        s.Name,
		Description: s.Description,
		Tags:        s.Tags,
		NumTools:    s.NumTools,
		NumStars:    s.NumStars,
	})
	if err != nil {
		return "", fmt.Errorf("marshal server snapshot: %w", err)
	}
	return string(data), nil
}

// AgentSnapshot serializes the projection of a stored alongside its
// vector-index metadata record.
func AgentSnapshot(a *registry.Agent) (string, error) {
	names := make([]string, 0, len(a.Skills))
	for _, sk := range a.Skills {
		names = append(names, sk.Name)
	}
	data, err := json.Marshal(agentSnapshot{
		Name:        a.Name,
		Description: a.Description,
		Tags:        a.Tags,
		SkillNames:  names,
		TrustLevel:  string(a.TrustLevel),
		NumStars:    a.NumStars,
	})
	if err != nil {
		return "", fmt.Errorf("marshal agent snapshot: %w", err)
	}
	return string(data), nil
}
