// Package vectorindex implements the vectorindex.Index port on top of
// blevesearch/go-faiss: an inner-product flat index wrapped in an
// IndexIDMap2 for stable, removable vector IDs, with a JSON metadata
// sidecar persisted next to the faiss index file.
package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"

	faiss "github.com/blevesearch/go-faiss"

	"github.com/gatereg/registry/internal/domain/embeddings"
	"github.com/gatereg/registry/internal/domain/vectorindex"
)

// FaissIndex is the production vectorindex.Index implementation. A
// single instance owns both the faiss index and its metadata; no
// other component may write next_id or the metadata map directly.
type FaissIndex struct {
	mu sync.RWMutex

	indexPath string
	metaPath  string

	index  *faiss.IndexIDMap2
	client embeddings.Client
	nextID int64
	byPath map[string]*vectorindex.Metadata
	byID   map[int64]string
	logger *slog.Logger
}

type metadataFile struct {
	NextID  int64                            `json:"next_id"`
	Entries map[string]*vectorindex.Metadata `json:"entries"` // keyed by path
}

// New opens (or creates) a faiss index at indexPath with metadata at
// metaPath, dimensioned to client.Dimension().
func New(indexPath, metaPath string, client embeddings.Client, logger *slog.Logger) (*FaissIndex, error) {
	dim := client.Dimension()

	fi := &FaissIndex{
		indexPath: indexPath,
		metaPath:  metaPath,
		client:    client,
		byPath:    make(map[string]*vectorindex.Metadata),
		byID:      make(map[int64]string),
		logger:    logger,
	}

	if _, err := os.Stat(indexPath); err == nil {
		flat, err := faiss.ReadIndex(indexPath, 0)
		if err != nil {
			return nil, fmt.Errorf("read faiss index: %w", err)
		}
		idmap, ok := flat.(*faiss.IndexIDMap2)
		if !ok {
			return nil, fmt.Errorf("faiss index at %s is not an IndexIDMap2", indexPath)
		}
		fi.index = idmap
	} else {
		flat, err := faiss.NewIndexFlatIP(dim)
		if err != nil {
			return nil, fmt.Errorf("create faiss flat index: %w", err)
		}
		idmap, err := faiss.NewIndexIDMap2(flat)
		if err != nil {
			return nil, fmt.Errorf("wrap faiss index in id map: %w", err)
		}
		fi.index = idmap
	}

	if data, err := os.ReadFile(metaPath); err == nil {
		var mf metadataFile
		if err := json.Unmarshal(data, &mf); err != nil {
			return nil, fmt.Errorf("parse index metadata: %w", err)
		}
		fi.nextID = mf.NextID
		for path, md := range mf.Entries {
			md.Path = path
			fi.byPath[path] = md
			fi.byID[md.ID] = path
		}
	}

	return fi, nil
}

func (fi *FaissIndex) Upsert(ctx context.Context, path string, kind vectorindex.EntityType, text, snapshot string, enabled bool) error {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	existing, ok := fi.byPath[path]
	if ok && existing.TextForEmbedding == text {
		existing.Snapshot = snapshot
		existing.Enabled = enabled
		existing.EntityType = kind
		return fi.persist()
	}

	vecs, err := fi.client.Encode(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed %s: %w", path, err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("embed %s: expected 1 vector, got %d", path, len(vecs))
	}
	normalized := normalize(vecs[0])

	if ok {
		if _, err := fi.index.RemoveIDs(selectorFor(existing.ID)); err != nil {
			fi.logger.Warn("remove stale vector before re-embed", "path", path, "error", err)
		}
		delete(fi.byID, existing.ID)
	}

	id := fi.nextID
	fi.nextID++
	if err := fi.index.AddWithIDs(normalized, []int64{id}); err != nil {
		return fmt.Errorf("add vector for %s: %w", path, err)
	}

	md := &vectorindex.Metadata{
		ID:               id,
		Path:             path,
		EntityType:       kind,
		TextForEmbedding: text,
		Snapshot:         snapshot,
		Enabled:          enabled,
	}
	fi.byPath[path] = md
	fi.byID[id] = path
	return fi.persist()
}

func (fi *FaissIndex) Remove(ctx context.Context, path string) error {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	md, ok := fi.byPath[path]
	if !ok {
		return nil
	}
	if _, err := fi.index.RemoveIDs(selectorFor(md.ID)); err != nil {
		// Fall back to a metadata tombstone: the vector stays in the
		// faiss index but is no longer reachable through byPath/byID,
		// so Search filters it out.
		fi.logger.Warn("faiss remove failed, tombstoning metadata instead", "path", path, "error", err)
	}
	delete(fi.byPath, path)
	delete(fi.byID, md.ID)
	return fi.persist()
}

func (fi *FaissIndex) Search(ctx context.Context, query string, kinds []vectorindex.EntityType, k int) ([]vectorindex.Hit, error) {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	if len(fi.byPath) == 0 {
		return nil, nil
	}

	vecs, err := fi.client.Encode(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vecs))
	}
	normalized := normalize(vecs[0])

	// Over-fetch to absorb tombstones and kind filtering before truncating to k.
	fetchK := k * 4
	if fetchK < k+16 {
		fetchK = k + 16
	}
	if fetchK > len(fi.byPath) {
		fetchK = len(fi.byPath)
	}

	distances, labels, err := fi.index.Search(normalized, int64(fetchK))
	if err != nil {
		return nil, fmt.Errorf("faiss search: %w", err)
	}

	allow := make(map[vectorindex.EntityType]bool, len(kinds))
	for _, kind := range kinds {
		allow[kind] = true
	}

	hits := make([]vectorindex.Hit, 0, k)
	for i, id := range labels {
		if id < 0 {
			continue
		}
		path, ok := fi.byID[id]
		if !ok {
			continue // tombstoned
		}
		md := fi.byPath[path]
		if len(allow) > 0 && !allow[md.EntityType] {
			continue
		}
		hits = append(hits, vectorindex.Hit{
			Path:       path,
			EntityType: md.EntityType,
			Similarity: distanceToCosine(distances[i]),
			Snapshot:   md.Snapshot,
		})
		if len(hits) >= k {
			break
		}
	}
	return hits, nil
}

func (fi *FaissIndex) Size(ctx context.Context) (int, error) {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return len(fi.byPath), nil
}

// persist writes the faiss index and metadata sidecar. Caller must
// hold fi.mu.
func (fi *FaissIndex) persist() error {
	if err := faiss.WriteIndex(fi.index, fi.indexPath); err != nil {
		return fmt.Errorf("write faiss index: %w", err)
	}
	mf := metadataFile{NextID: fi.nextID, Entries: make(map[string]*vectorindex.Metadata, len(fi.byPath))}
	for path, md := range fi.byPath {
		mf.Entries[path] = md
	}
	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index metadata: %w", err)
	}
	tmp := fi.metaPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write index metadata: %w", err)
	}
	return os.Rename(tmp, fi.metaPath)
}

func selectorFor(id int64) *faiss.IDSelectorBatch {
	sel, _ := faiss.NewIDSelectorBatch([]int64{id})
	return sel
}

// normalize returns an L2-normalized copy of v (a zero vector is
// returned unchanged) so inner product search over the flat index
// behaves as cosine similarity.
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}

// distanceToCosine converts a faiss IP-metric distance over
// L2-normalized vectors (range [-1, 1]) into a [0, 1] similarity.
func distanceToCosine(d float32) float64 {
	s := (float64(d) + 1) / 2
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
