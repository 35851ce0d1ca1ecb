package service

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gatereg/registry/internal/domain/access"
	"github.com/gatereg/registry/internal/domain/hybridsearch"
	"github.com/gatereg/registry/internal/domain/registry"
	"github.com/gatereg/registry/internal/domain/vectorindex"
	"github.com/gatereg/registry/internal/tracing"
)

const (
	minSearchResults = 1
	maxSearchResults = 50
)

// ServerResult and AgentResult are the server/agent buckets in a
// search response: the entity plus its final, boosted score.
type ServerResult struct {
	Server    *registry.Server
	Relevance float64
}

type AgentResult struct {
	Agent     *registry.Agent
	Relevance float64
}

// ToolResult projects a single tool match alongside the server it
// belongs to and its combined relevance score.
type ToolResult struct {
	Server    *registry.Server
	Tool      registry.ToolRecord
	Relevance float64
}

// SearchResults is the three-bucket hybrid search response.
type SearchResults struct {
	Servers []ServerResult
	Tools   []ToolResult
	Agents  []AgentResult
}

// SearchService answers hybrid semantic queries over both entity
// kinds by combining C7's kNN with the C8 keyword boost, tool
// extraction, and the C9 access filter.
type SearchService struct {
	index       vectorindex.Index
	serverStore registry.ServerStore
	agentStore  registry.AgentStore
}

func NewSearchService(index vectorindex.Index, serverStore registry.ServerStore, agentStore registry.AgentStore) *SearchService {
	return &SearchService{index: index, serverStore: serverStore, agentStore: agentStore}
}

func clampMaxResults(max int) int {
	if max < minSearchResults {
		return minSearchResults
	}
	if max > maxSearchResults {
		return maxSearchResults
	}
	return max
}

// Kind is one of the three result buckets a caller may request
// (mcp_server, tool, a2a_agent). It is distinct
// from vectorindex.EntityType: "tool" is a valid requested bucket but
// is never a vector-index entity type, since tools are not indexed on
// their own — they are extracted from a matched server.
type Kind string

const (
	KindServer Kind = "mcp_server"
	KindTool   Kind = "tool"
	KindAgent  Kind = "a2a_agent"
)

// Search runs the full hybrid pipeline. kinds restricts which result
// buckets are populated; an empty slice means "all kinds". A kind
// value outside the closed set above contributes to neither the
// bucket selection nor the index-level entity-type filter, rather
// than silently falling back to "all kinds".
func (s *SearchService) Search(ctx context.Context, query string, kinds []Kind, maxResults int, user *access.UserContext) (*SearchResults, error) {
	ctx, span := tracing.Tracer().Start(ctx, "search.Search")
	span.SetAttributes(attribute.String("gatereg.search.query", query), attribute.Int("gatereg.search.max_results", maxResults))
	defer span.End()

	maxResults = clampMaxResults(maxResults)
	size, err := s.index.Size(ctx)
	if err != nil {
		return nil, fmt.Errorf("index size: %w", err)
	}
	fetchK := maxResults
	if size < fetchK {
		fetchK = size
	}
	if fetchK == 0 {
		return &SearchResults{}, nil
	}

	wantServer, wantTool, wantAgent := wantedKinds(kinds)
	hits, err := s.index.Search(ctx, query, indexEntityTypes(kinds), fetchK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	tokens := hybridsearch.Tokenize(query)
	results := &SearchResults{}

	for _, hit := range hits {
		base := clamp01(hit.Similarity)

		switch hit.EntityType {
		case vectorindex.EntityServer:
			srv, found, err := s.serverStore.Get(ctx, hit.Path)
			if err != nil {
				return nil, fmt.Errorf("load server %s: %w", hit.Path, err)
			}
			if !found {
				continue
			}
			boost := hybridsearch.KeywordBoost(tokens, srv.Name, toolNames(srv.ToolList), srv.Tags, srv.Description)
			final := clamp01(base * boost)

			if wantServer {
				results.Servers = append(results.Servers, ServerResult{Server: srv, Relevance: final})
			}
			if wantTool {
				for _, m := range hybridsearch.ExtractTools(tokens, srv) {
					results.Tools = append(results.Tools, ToolResult{
						Server:    srv,
						Tool:      m.Tool,
						Relevance: clamp01((final + m.RawScore) / 2),
					})
				}
			}

		case vectorindex.EntityAgent:
			if !wantAgent {
				continue
			}
			ag, found, err := s.agentStore.Get(ctx, hit.Path)
			if err != nil {
				return nil, fmt.Errorf("load agent %s: %w", hit.Path, err)
			}
			if !found || !access.Visible(ag, user) {
				continue
			}
			boost := hybridsearch.KeywordBoost(tokens, ag.Name, skillNames(ag.Skills), ag.Tags, ag.Description)
			final := clamp01(base * boost)
			results.Agents = append(results.Agents, AgentResult{Agent: ag, Relevance: final})
		}
	}

	sort.SliceStable(results.Servers, func(i, j int) bool { return results.Servers[i].Relevance > results.Servers[j].Relevance })
	sort.SliceStable(results.Tools, func(i, j int) bool { return results.Tools[i].Relevance > results.Tools[j].Relevance })
	sort.SliceStable(results.Agents, func(i, j int) bool { return results.Agents[i].Relevance > results.Agents[j].Relevance })

	if len(results.Servers) > maxResults {
		results.Servers = results.Servers[:maxResults]
	}
	if len(results.Tools) > maxResults {
		results.Tools = results.Tools[:maxResults]
	}
	if len(results.Agents) > maxResults {
		results.Agents = results.Agents[:maxResults]
	}
	return results, nil
}

// DiscoverSemantic is discover_semantic: a search restricted to the
// a2a_agent bucket, with scores rounded for the response.
func (s *SearchService) DiscoverSemantic(ctx context.Context, query string, maxResults int, user *access.UserContext) ([]AgentResult, error) {
	res, err := s.Search(ctx, query, []Kind{KindAgent}, maxResults, user)
	if err != nil {
		return nil, err
	}
	for i := range res.Agents {
		res.Agents[i].Relevance = round2(res.Agents[i].Relevance)
	}
	return res.Agents, nil
}

// DiscoverBySkills is discover_by_skills: non-semantic, skill-set
// intersection scoring over every accessible, enabled agent.
func (s *SearchService) DiscoverBySkills(ctx context.Context, skills, tags []string, maxResults int, user *access.UserContext) ([]hybridsearch.SkillMatch, error) {
	maxResults = clampMaxResults(maxResults)
	all, err := s.agentStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}

	state, err := s.agentStore.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("load agent state: %w", err)
	}

	accessible := make([]*registry.Agent, 0, len(all))
	for _, a := range all {
		if !state.IsEnabled(a.Path) {
			continue
		}
		if !access.Visible(a, user) {
			continue
		}
		accessible = append(accessible, a)
	}

	matches := hybridsearch.DiscoverBySkills(accessible, skills, tags)
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// wantedKinds reports which of the three result buckets kinds
// requests. An empty slice means every bucket is wanted; a non-empty
// slice populates only the buckets it names, even if every value in
// it falls outside the closed Kind set (in which case nothing is
// wanted rather than everything).
func wantedKinds(kinds []Kind) (server, tool, agent bool) {
	if len(kinds) == 0 {
		return true, true, true
	}
	for _, k := range kinds {
		switch k {
		case KindServer:
			server = true
		case KindTool:
			tool = true
		case KindAgent:
			agent = true
		}
	}
	return server, tool, agent
}

// indexEntityTypes maps the requested result buckets to the
// vector-index entity types C7 must actually be asked to search:
// KindTool has no entity type of its own since tools are extracted
// from a matched server, so requesting it alone still asks the index
// for mcp_server hits. An empty result (nil) means "every entity
// type", matching Index.Search's documented default.
func indexEntityTypes(kinds []Kind) []vectorindex.EntityType {
	if len(kinds) == 0 {
		return nil
	}
	want := make(map[vectorindex.EntityType]bool, 2)
	for _, k := range kinds {
		switch k {
		case KindServer, KindTool:
			want[vectorindex.EntityServer] = true
		case KindAgent:
			want[vectorindex.EntityAgent] = true
		}
	}
	if len(want) == 0 {
		return nil
	}
	out := make([]vectorindex.EntityType, 0, len(want))
	for _, t := range []vectorindex.EntityType{vectorindex.EntityServer, vectorindex.EntityAgent} {
		if want[t] {
			out = append(out, t)
		}
	}
	return out
}

func toolNames(tools []registry.ToolRecord) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}

func skillNames(skills []registry.Skill) []string {
	names := make([]string, len(skills))
	for i, sk := range skills {
		names[i] = sk.Name
	}
	return names
}
