package httpapi

import (
	"net/http"
)

// handleListCatalog is GET /v0.1/servers (unauthenticated).
func (h *Handler) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.ListServers(r.Context(), r.URL.Query().Get("cursor"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleListCatalogVersions is GET /v0.1/servers/{name}/versions.
func (h *Handler) handleListCatalogVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.catalog.ListVersions(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"versions": versions})
}

// handleGetCatalogVersion is GET /v0.1/servers/{name}/versions/{version}.
func (h *Handler) handleGetCatalogVersion(w http.ResponseWriter, r *http.Request) {
	entry, err := h.catalog.GetVersion(r.Context(), r.PathValue("name"), r.PathValue("version"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleSearch is GET /api/search (hybrid search), the
// authenticated counterpart to the catalog browse routes.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	kinds := parseEntityKinds(r.URL.Query()["kind"])

	results, err := h.search.Search(r.Context(), r.URL.Query().Get("q"), kinds, queryInt(r, "max_results", 0), user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if h.metrics != nil {
		h.metrics.SearchesTotal.Inc()
	}
	writeJSON(w, http.StatusOK, results)
}
