// Package vectorindex contains the domain types and port interface for
// the hybrid search engine's vector index: entity metadata records and
// search hits. The go-faiss-backed implementation lives in
// internal/adapter/outbound/vectorindex.
package vectorindex

import "context"

// EntityType distinguishes the two kinds of indexed entities.
type EntityType string

const (
	EntityServer EntityType = "mcp_server"
	EntityAgent  EntityType = "a2a_agent"
)

// Metadata is the per-vector record persisted alongside the index.
type Metadata struct {
	ID               int64      `json:"id"`
	Path             string     `json:"-"`
	EntityType       EntityType `json:"entity_type"`
	TextForEmbedding string     `json:"text_for_embedding"`
	Snapshot         string     `json:"snapshot"`
	Enabled          bool       `json:"enabled"`
}

// Hit is a single kNN result projected back through the metadata
// store: a path, its kind, a base cosine-derived similarity, and the
// snapshot used to build richer result payloads.
type Hit struct {
	Path       string
	EntityType EntityType
	Similarity float64
	Snapshot   string
}

// Index is the port the hybrid search service and registry service
// depend on. A single implementation owns both the vector backend and
// the metadata store; no other component may touch the index's files
// (the "no sneaky global state" rule — next_id and metadata live here
// alone).
type Index interface {
	// Upsert indexes or re-indexes path. If text is unchanged from the
	// prior call for this path, only snapshot/enabled are updated and no
	// new embedding is computed.
	Upsert(ctx context.Context, path string, kind EntityType, text, snapshot string, enabled bool) error

	// Remove deletes path's metadata record. The underlying vector may
	// be physically removed or left as a tombstone, transparently to
	// callers.
	Remove(ctx context.Context, path string) error

	// Search returns up to k hits for query, restricted to kinds when
	// non-empty. Tombstoned vectors (metadata already removed) are
	// dropped before results are returned.
	Search(ctx context.Context, query string, kinds []EntityType, k int) ([]Hit, error)

	// Size returns the number of live (non-tombstoned) metadata records.
	Size(ctx context.Context) (int, error)
}
