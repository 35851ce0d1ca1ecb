package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gatereg/registry/internal/domain/access"
	"github.com/gatereg/registry/internal/domain/registry"
)

// withEnabled materializes Server.IsEnabled from the enable-state
// document, since the entity's own file never carries it.
func (h *Handler) withEnabled(r *http.Request, s *registry.Server) *registry.Server {
	s.IsEnabled, _ = h.servers.IsEnabled(r.Context(), s.Path)
	return s
}

// handleRegisterServer is POST /api/servers/register: a
// form-encoded body carrying the server registration fields.
func (h *Handler) handleRegisterServer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, h.logger, registryInvalid(err.Error()))
		return
	}
	user := userFromContext(r.Context())

	var headers map[string]string
	if raw := r.FormValue("headers"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &headers); err != nil {
			writeError(w, r, h.logger, registryInvalid("malformed headers JSON"))
			return
		}
	}
	var metadata map[string]any
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			writeError(w, r, h.logger, registryInvalid("malformed metadata JSON"))
			return
		}
	}
	var tools []registry.ToolRecord
	if raw := r.FormValue("tool_list"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &tools); err != nil {
			writeError(w, r, h.logger, registryInvalid("malformed tool_list JSON"))
			return
		}
	}
	toolListJSON, _ := json.Marshal(tools)

	srv := &registry.Server{
		Path:                r.FormValue("path"),
		Name:                r.FormValue("name"),
		Description:         r.FormValue("description"),
		ProxyURL:            r.FormValue("proxy_url"),
		Tags:                splitCSV(r.FormValue("tags")),
		ToolList:            tools,
		ToolListJSON:        string(toolListJSON),
		AuthProvider:        r.FormValue("auth_provider"),
		AuthType:            r.FormValue("auth_type"),
		SupportedTransports: splitCSV(r.FormValue("supported_transports")),
		Headers:             headers,
		Metadata:            metadata,
	}
	overwrite, _ := strconv.ParseBool(r.FormValue("overwrite"))

	out, err := h.servers.Register(r.Context(), srv, user.Username, overwrite)
	if h.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		h.metrics.RegistrationsTotal.WithLabelValues("server", outcome).Inc()
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.withEnabled(r, out))
}

// handleListServers is GET /api/servers: every registered server,
// ordered by path, with no per-user filtering. Pagination belongs to the public catalog routes.
func (h *Handler) handleListServers(w http.ResponseWriter, r *http.Request) {
	list, err := h.servers.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	for _, s := range list {
		h.withEnabled(r, s)
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetServer is GET /api/servers/{path:any}.
func (h *Handler) handleGetServer(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r)
	srv, found, err := h.servers.Get(r.Context(), path)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !found {
		writeError(w, r, h.logger, registry.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.withEnabled(r, srv))
}

// handleUpdateServer is PUT /api/servers/{path:any}.
func (h *Handler) handleUpdateServer(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	var changed registry.Server
	if err := json.NewDecoder(r.Body).Decode(&changed); err != nil {
		writeError(w, r, h.logger, registryInvalid("malformed JSON body"))
		return
	}
	out, err := h.servers.Update(r.Context(), pathParam(r), &changed, user.Username, user.IsAdmin)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.withEnabled(r, out))
}

// handleDeleteServer is DELETE /api/servers/{path:any} (remove_server).
func (h *Handler) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if err := h.servers.Delete(r.Context(), pathParam(r), user.Username, user.IsAdmin); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleToggleServer is POST /api/servers/toggle (form-encoded).
func (h *Handler) handleToggleServer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, h.logger, registryInvalid(err.Error()))
		return
	}
	user := userFromContext(r.Context())
	if !user.CanActOn(access.PermissionToggleService, r.FormValue("path")) {
		writeError(w, r, h.logger, registry.ErrForbidden)
		return
	}
	enabled, err := strconv.ParseBool(r.FormValue("enabled"))
	if err != nil {
		writeError(w, r, h.logger, registryInvalid("enabled must be a boolean"))
		return
	}
	if err := h.servers.Toggle(r.Context(), r.FormValue("path"), enabled); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

type rateRequest struct {
	Rating int `json:"rating"`
}

// handleRateServer is POST /api/servers/{path}/rate.
func (h *Handler) handleRateServer(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.logger, registryInvalid("malformed JSON body"))
		return
	}
	out, err := h.servers.Rate(r.Context(), pathParam(r), user.Username, req.Rating)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"avg": out.NumStars, "msg": "rating recorded"})
}

// handleGetServerRating is GET /api/servers/{path}/rating.
func (h *Handler) handleGetServerRating(w http.ResponseWriter, r *http.Request) {
	srv, found, err := h.servers.Get(r.Context(), pathParam(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !found {
		writeError(w, r, h.logger, registry.ErrNotFound)
		return
	}
	numStars, entries := srv.Ratings.Summary()
	writeJSON(w, http.StatusOK, map[string]any{"num_stars": numStars, "entries": entries})
}

type groupsRequest struct {
	GroupNames []string `json:"group_names"`
}

// handleAddToGroups is add_to_groups.
func (h *Handler) handleAddToGroups(w http.ResponseWriter, r *http.Request) {
	h.handleGroupsMutation(w, r, h.servers.AddToGroups)
}

// handleRemoveFromGroups is remove_from_groups.
func (h *Handler) handleRemoveFromGroups(w http.ResponseWriter, r *http.Request) {
	h.handleGroupsMutation(w, r, h.servers.RemoveFromGroups)
}

func (h *Handler) handleGroupsMutation(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, path string, names []string, requester string, isAdmin bool) error) {
	user := userFromContext(r.Context())
	var req groupsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.logger, registryInvalid("malformed JSON body"))
		return
	}
	if err := op(r.Context(), pathParam(r), req.GroupNames, user.Username, user.IsAdmin); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSecurityScan is GET /api/servers/{path}/security-scan
// (security_scan): reads the latest archived verdict without
// triggering a new scan.
func (h *Handler) handleSecurityScan(w http.ResponseWriter, r *http.Request) {
	result, err := h.archive.Latest(pathParam(r), false)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRescanServer is POST /api/servers/{path}/rescan
// (rescan_server): a synchronous scan, admin or owner only.
func (h *Handler) handleRescanServer(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	srv, found, err := h.servers.Get(r.Context(), pathParam(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !found {
		writeError(w, r, h.logger, registry.ErrNotFound)
		return
	}
	if !user.IsAdmin && user.Username != srv.RegisteredBy {
		writeError(w, r, h.logger, registry.ErrForbidden)
		return
	}

	start := time.Now()
	result, err := h.orchestrator.ScanServer(r.Context(), pathParam(r), user.Username)
	if h.metrics != nil && result != nil {
		verdict := "safe"
		if !result.IsSafe {
			verdict = "unsafe"
		}
		h.metrics.ScansTotal.WithLabelValues("server", verdict).Inc()
		h.metrics.ScanDuration.WithLabelValues("server").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func registryInvalid(msg string) error {
	return &invalidError{msg: msg}
}

type invalidError struct{ msg string }

func (e *invalidError) Error() string { return e.msg }
func (e *invalidError) Unwrap() error { return registry.ErrInvalid }
