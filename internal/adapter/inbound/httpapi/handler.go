package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gatereg/registry/internal/domain/scan"
	"github.com/gatereg/registry/internal/service"
)

// Handler holds every collaborator the Control API transport needs.
// It has no state of its own; each field is a narrow service-layer
// port so this package never reaches past internal/service.
type Handler struct {
	servers      *service.ServerRegistry
	agents       *service.AgentRegistry
	search       *service.SearchService
	catalog      *service.CatalogService
	health       *service.HealthService
	orchestrator *service.Orchestrator
	archive      scan.Archive
	metrics      *Metrics
	logger       *slog.Logger
}

// NewHandler wires a Handler from its service-layer collaborators.
func NewHandler(
	servers *service.ServerRegistry,
	agents *service.AgentRegistry,
	search *service.SearchService,
	catalog *service.CatalogService,
	health *service.HealthService,
	orchestrator *service.Orchestrator,
	archive scan.Archive,
	metrics *Metrics,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		servers:      servers,
		agents:       agents,
		search:       search,
		catalog:      catalog,
		health:       health,
		orchestrator: orchestrator,
		archive:      archive,
		metrics:      metrics,
		logger:       logger,
	}
}

type trimmedPathKey struct{}

// pathParam extracts the {path...} wildcard segment registered by the
// mux and restores the leading slash the route pattern consumed. A
// dispatcher that peeled off a trailing sub-resource segment (rating,
// rate, security-scan, ...) stores the remainder in the request
// context under trimmedPathKey; pathParam prefers that override so
// downstream handlers never need to know routing stripped a suffix.
func pathParam(r *http.Request) string {
	if p, ok := r.Context().Value(trimmedPathKey{}).(string); ok {
		return p
	}
	p := r.PathValue("path")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// withTrimmedPath stores the entity path remaining after a dispatcher
// strips a known trailing sub-resource segment from the wildcard match.
func withTrimmedPath(r *http.Request, path string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), trimmedPathKey{}, path))
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n := 0
	for _, c := range raw {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func queryBool(r *http.Request, key string) bool {
	v := r.URL.Query().Get(key)
	return v == "true" || v == "1"
}

// parseEntityKinds maps repeated ?kind= query values to the search
// service's result-bucket kinds (mcp_server, tool, a2a_agent); an
// unrecognized value is dropped rather than rejected. This tracks the
// requested buckets directly rather than routing through
// vectorindex.EntityType, which has no "tool" member — a request of
// ?kind=tool must still select only the tools bucket, not fall back
// to "every kind" for lack of a matching index entity type.
func parseEntityKinds(raw []string) []service.Kind {
	out := make([]service.Kind, 0, len(raw))
	for _, v := range raw {
		switch service.Kind(v) {
		case service.KindServer, service.KindTool, service.KindAgent:
			out = append(out, service.Kind(v))
		}
	}
	return out
}
