package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gatereg/registry/internal/domain/access"
	"github.com/gatereg/registry/internal/domain/registry"
)

func (h *Handler) withAgentEnabled(r *http.Request, a *registry.Agent) *registry.Agent {
	a.IsEnabled, _ = h.agents.IsEnabled(r.Context(), a.Path)
	return a
}

// handleRegisterAgent is POST /api/agents/register: a JSON A2A agent
// card, always Conflict on a duplicate path.
func (h *Handler) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if !user.IsAdmin && !user.CanActOn(access.PermissionPublishAgent, access.All) {
		writeError(w, r, h.logger, registry.ErrForbidden)
		return
	}

	var agent registry.Agent
	if err := json.NewDecoder(r.Body).Decode(&agent); err != nil {
		writeError(w, r, h.logger, registryInvalid("malformed JSON body"))
		return
	}

	out, err := h.agents.Register(r.Context(), &agent, user.Username)
	if h.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		h.metrics.RegistrationsTotal.WithLabelValues("agent", outcome).Inc()
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.withAgentEnabled(r, out))
}

// handleListAgents is GET /api/agents, applying the C9 visibility
// filter and the optional enabled_only query flag.
func (h *Handler) handleListAgents(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	list, err := h.agents.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	visible := access.FilterAgents(list, user)
	enabledOnly := queryBool(r, "enabled_only")
	out := make([]*registry.Agent, 0, len(visible))
	for _, a := range visible {
		h.withAgentEnabled(r, a)
		if enabledOnly && !a.IsEnabled {
			continue
		}
		out = append(out, a)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetAgent is GET /api/agents/{path:any}.
func (h *Handler) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	agent, found, err := h.agents.Get(r.Context(), pathParam(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !found || !access.Visible(agent, user) {
		writeError(w, r, h.logger, registry.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.withAgentEnabled(r, agent))
}

// handleUpdateAgent is PUT /api/agents/{path:any}.
func (h *Handler) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	var changed registry.Agent
	if err := json.NewDecoder(r.Body).Decode(&changed); err != nil {
		writeError(w, r, h.logger, registryInvalid("malformed JSON body"))
		return
	}
	out, err := h.agents.Update(r.Context(), pathParam(r), &changed, user.Username, user.IsAdmin)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.withAgentEnabled(r, out))
}

// handleDeleteAgent is DELETE /api/agents/{path:any}.
func (h *Handler) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if err := h.agents.Delete(r.Context(), pathParam(r), user.Username, user.IsAdmin); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleToggleAgent is POST /api/agents/{path}/toggle?enabled=bool.
func (h *Handler) handleToggleAgent(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	path := pathParam(r)
	if !user.CanActOn(access.PermissionToggleService, path) {
		writeError(w, r, h.logger, registry.ErrForbidden)
		return
	}
	enabled := queryBool(r, "enabled")
	if err := h.agents.Toggle(r.Context(), path, enabled); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

// handleRateAgent is POST /api/agents/{path}/rate.
func (h *Handler) handleRateAgent(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.logger, registryInvalid("malformed JSON body"))
		return
	}
	out, err := h.agents.Rate(r.Context(), pathParam(r), user.Username, req.Rating)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"numStars": out.NumStars, "msg": "rating recorded"})
}

// handleGetAgentRating is GET /api/agents/{path}/rating.
func (h *Handler) handleGetAgentRating(w http.ResponseWriter, r *http.Request) {
	agent, found, err := h.agents.Get(r.Context(), pathParam(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !found {
		writeError(w, r, h.logger, registry.ErrNotFound)
		return
	}
	numStars, entries := agent.Ratings.Summary()
	writeJSON(w, http.StatusOK, map[string]any{"numStars": numStars, "entries": entries})
}

// discoverSemanticRequest is the body of /api/agents/discover/semantic.
type discoverSemanticRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// handleDiscoverSemantic is POST /api/agents/discover/semantic
// (discover_semantic): hybrid-search agents only.
func (h *Handler) handleDiscoverSemantic(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	var req discoverSemanticRequest
	if r.URL.Query().Get("query") != "" {
		req.Query = r.URL.Query().Get("query")
		req.MaxResults = queryInt(r, "max_results", 0)
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.logger, registryInvalid("malformed JSON body"))
		return
	}

	out, err := h.search.DiscoverSemantic(r.Context(), req.Query, req.MaxResults, user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if h.metrics != nil {
		h.metrics.SearchesTotal.Inc()
	}
	writeJSON(w, http.StatusOK, out)
}

// discoverSkillsRequest is the body of /api/agents/discover.
type discoverSkillsRequest struct {
	Skills     []string `json:"skills"`
	Tags       []string `json:"tags"`
	MaxResults int      `json:"max_results"`
}

// handleDiscoverBySkills is POST /api/agents/discover
// (discover_by_skills): deterministic skill/tag-match discovery.
func (h *Handler) handleDiscoverBySkills(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	var req discoverSkillsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.logger, registryInvalid("malformed JSON body"))
		return
	}
	out, err := h.search.DiscoverBySkills(r.Context(), req.Skills, req.Tags, req.MaxResults, user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAgentSecurityScan is GET /api/agents/{path}/security-scan.
func (h *Handler) handleAgentSecurityScan(w http.ResponseWriter, r *http.Request) {
	result, err := h.archive.Latest(pathParam(r), true)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRescanAgent is POST /api/agents/{path}/rescan, admin only
// (rescan_agent is a privileged operation, unlike rescan_server which
// also permits the owner).
func (h *Handler) handleRescanAgent(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if !user.IsAdmin {
		writeError(w, r, h.logger, registry.ErrForbidden)
		return
	}

	start := time.Now()
	result, err := h.orchestrator.ScanAgent(r.Context(), pathParam(r), user.Username)
	if h.metrics != nil && result != nil {
		verdict := "safe"
		if !result.IsSafe {
			verdict = "unsafe"
		}
		h.metrics.ScansTotal.WithLabelValues("agent", verdict).Inc()
		h.metrics.ScanDuration.WithLabelValues("agent").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAgentHealth is GET /api/agents/{path}/health: probes the
// agent's well-known endpoint and normalizes the result.
func (h *Handler) handleAgentHealth(w http.ResponseWriter, r *http.Request) {
	agent, found, err := h.agents.Get(r.Context(), pathParam(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !found {
		writeError(w, r, h.logger, registry.ErrNotFound)
		return
	}
	enabled, _ := h.agents.IsEnabled(r.Context(), agent.Path)
	status := h.health.Check(r.Context(), agent, enabled)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}
