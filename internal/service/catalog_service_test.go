package service

import (
	"context"
	"testing"

	"github.com/gatereg/registry/internal/domain/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCatalog(t *testing.T, names ...string) *fakeServerStore {
	t.Helper()
	store := newFakeServerStore()
	for _, n := range names {
		require.NoError(t, store.Put(context.Background(), &registry.Server{Path: "/" + n, Name: n}))
	}
	return store
}

func TestCatalogService_ListServersPaginates(t *testing.T) {
	store := seedCatalog(t, "alpha", "bravo", "charlie")
	svc := NewCatalogService(store)

	page, err := svc.ListServers(context.Background(), "", 2)
	require.NoError(t, err)
	assert.Len(t, page.Servers, 2)
	assert.Equal(t, "alpha", page.Servers[0].Name)
	assert.NotEmpty(t, page.NextCursor)

	next, err := svc.ListServers(context.Background(), page.NextCursor, 2)
	require.NoError(t, err)
	assert.Len(t, next.Servers, 1)
	assert.Equal(t, "charlie", next.Servers[0].Name)
	assert.Empty(t, next.NextCursor)
}

func TestCatalogService_GetVersionUnknownServer(t *testing.T) {
	store := seedCatalog(t, "alpha")
	svc := NewCatalogService(store)

	_, err := svc.GetVersion(context.Background(), "missing", "latest")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestCatalogService_GetVersionRejectsUnknownVersion(t *testing.T) {
	store := seedCatalog(t, "alpha")
	svc := NewCatalogService(store)

	_, err := svc.GetVersion(context.Background(), "alpha", "v2")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestCatalogService_ListVersionsIsSingleLatest(t *testing.T) {
	store := seedCatalog(t, "alpha")
	svc := NewCatalogService(store)

	versions, err := svc.ListVersions(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"latest"}, versions)
}
