package scan

import "time"

// Archive persists scan results in the two-tier layout: a dated copy
// that accumulates history and a "latest" pointer overwritten on every
// scan. Implementations live in the outbound adapter layer; this
// interface is the port the orchestrator depends on.
type Archive interface {
	// Write stores result as both the dated archive copy and the
	// latest pointer for path, returning the archive copy's location.
	Write(path string, isAgent bool, result *Result, at time.Time) (string, error)

	// Latest returns the most recently archived result for path, or
	// registry.ErrNoScan if the entity has never been scanned.
	Latest(path string, isAgent bool) (*Result, error)
}
