package httpapi

import (
	"net/http"
	"sort"
	"strings"
)

// suffixRoute pairs a trailing sub-resource segment with the handler
// that serves it once the segment is peeled off the wildcard path.
type suffixRoute struct {
	suffix  string
	handler http.HandlerFunc
}

// dispatchBySuffix builds a single handler for a {path...} wildcard
// route that fans out by trailing segment: net/http's ServeMux
// wildcard must be the final pattern element, so sub-resource actions
// under an arbitrary-depth entity path (e.g. /api/servers/a/b/rate)
// cannot be separate mux patterns and are dispatched here instead.
// Longer suffixes are checked first so "/groups/add" wins over a
// hypothetical "/add".
func dispatchBySuffix(fallback http.HandlerFunc, routes ...suffixRoute) http.HandlerFunc {
	ordered := append([]suffixRoute(nil), routes...)
	sort.SliceStable(ordered, func(i, j int) bool { return len(ordered[i].suffix) > len(ordered[j].suffix) })
	return func(w http.ResponseWriter, r *http.Request) {
		full := pathParam(r)
		for _, route := range ordered {
			if trimmed, ok := strings.CutSuffix(full, "/"+route.suffix); ok && trimmed != "" {
				route.handler(w, withTrimmedPath(r, trimmed))
				return
			}
		}
		fallback(w, r)
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	http.NotFound(w, r)
}
