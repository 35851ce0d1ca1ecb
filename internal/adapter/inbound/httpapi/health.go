package httpapi

import (
	"net/http"

	"github.com/gatereg/registry/internal/domain/registry"
)

// handleLiveness is GET /health: always healthy once the process is
// serving requests, independent of any downstream collaborator.
func handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWellKnownAgentHealth is GET /.well-known/agents/{path:any}/health,
// the unauthenticated counterpart to handleAgentHealth: callers
// outside the control API may still probe an agent's normalized health
// without a bearer token, matching agent cards being public documents.
func (h *Handler) handleWellKnownAgentHealth(w http.ResponseWriter, r *http.Request) {
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
