package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gatereg/registry/internal/domain/registry"
)

// CatalogEntry is the projection anthropic_list_servers/anthropic_get_version
// expose: enough to browse the catalog without leaking internal fields
// (headers, proxy URL, registrant) to unauthenticated catalog readers.
type CatalogEntry struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	NumTools    int      `json:"num_tools"`
	NumStars    float64  `json:"num_stars"`
	Version     string   `json:"version"`
}

// CatalogPage is a single page of anthropic_list_servers, with an
// opaque cursor for the next page (empty when exhausted).
type CatalogPage struct {
	Servers    []CatalogEntry `json:"servers"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

const defaultCatalogLimit = 50

// CatalogService implements the read-only, unauthenticated catalog
// surface (anthropic_list_servers / anthropic_list_versions /
// anthropic_get_version). The registry maintains exactly one version
// per server, named "latest".
type CatalogService struct {
	store registry.ServerStore
}

func NewCatalogService(store registry.ServerStore) *CatalogService {
	return &CatalogService{store: store}
}

type catalogCursor struct {
	Offset int `json:"offset"`
}

func encodeCursor(offset int) string {
	data, _ := json.Marshal(catalogCursor{Offset: offset})
	return base64.URLEncoding.EncodeToString(data)
}

func decodeCursor(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	data, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor: %w", err)
	}
	var c catalogCursor
	if err := json.Unmarshal(data, &c); err != nil {
		return 0, fmt.Errorf("invalid cursor: %w", err)
	}
	return c.Offset, nil
}

// ListServers returns a page of catalog entries ordered by name,
// starting after cursor.
func (c *CatalogService) ListServers(ctx context.Context, cursor string, limit int) (*CatalogPage, error) {
	if limit <= 0 {
		limit = defaultCatalogLimit
	}
	offset, err := decodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", registry.ErrInvalid, err)
	}

	all, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	page := &CatalogPage{}
	end := offset + limit
	for i := offset; i < len(all) && i < end; i++ {
		page.Servers = append(page.Servers, toCatalogEntry(all[i]))
	}
	if end < len(all) {
		page.NextCursor = encodeCursor(end)
	}
	return page, nil
}

// ListVersions returns the single version gatereg maintains for
// serverName, or NotFound if no such server is registered.
func (c *CatalogService) ListVersions(ctx context.Context, serverName string) ([]string, error) {
	if _, err := c.findByName(ctx, serverName); err != nil {
		return nil, err
	}
	return []string{"latest"}, nil
}

// GetVersion returns the projected catalog document for serverName at
// version (only "latest" is ever valid).
func (c *CatalogService) GetVersion(ctx context.Context, serverName, version string) (*CatalogEntry, error) {
	if version == "" {
		version = "latest"
	}
	if version != "latest" {
		return nil, fmt.Errorf("%w: unknown version %q", registry.ErrNotFound, version)
	}
	srv, err := c.findByName(ctx, serverName)
	if err != nil {
		return nil, err
	}
	entry := toCatalogEntry(srv)
	return &entry, nil
}

func (c *CatalogService) findByName(ctx context.Context, name string) (*registry.Server, error) {
	all, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	for _, s := range all {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: server %q", registry.ErrNotFound, name)
}

func toCatalogEntry(s *registry.Server) CatalogEntry {
	return CatalogEntry{
		Name:        s.Name,
		Description: s.Description,
		Tags:        s.Tags,
		NumTools:    s.NumTools,
		NumStars:    s.NumStars,
		Version:     "latest",
	}
}
