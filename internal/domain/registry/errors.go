// Package registry contains the domain types for the server and agent
// catalog: entities, rating buffers, enable/disable state, and path
// normalization. It has no dependency on how entities are persisted or
// served.
package registry

import "errors"

// Sentinel errors returned by registry operations. Callers map these to
// the error taxonomy at the control-API boundary with errors.Is.
var (
	// ErrNotFound is returned when a path has no corresponding entity.
	ErrNotFound = errors.New("registry: entity not found")

	// ErrConflict is returned when registering a path that already exists
	// and overwrite was not requested (or is not permitted for the kind).
	ErrConflict = errors.New("registry: path already registered")

	// ErrForbidden is returned when the requester is neither an admin nor
	// the entity's owner.
	ErrForbidden = errors.New("registry: requester may not modify this entity")

	// ErrInvalid is returned for schema/field validation failures.
	ErrInvalid = errors.New("registry: invalid entity")

	// ErrNoScan is returned when a security scan is requested for a path
	// that has never been scanned.
	ErrNoScan = errors.New("registry: no scan recorded for this path")
)
