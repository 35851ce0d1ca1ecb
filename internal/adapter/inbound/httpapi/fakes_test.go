package httpapi

import (
	"context"
	"sync"

	"github.com/gatereg/registry/internal/domain/registry"
	"github.com/gatereg/registry/internal/domain/vectorindex"
)

// fakeAgentStore is an in-memory registry.AgentStore for handler tests.
type fakeAgentStore struct {
	mu      sync.Mutex
	entries map[string]*registry.Agent
	state   registry.EnableState
}

func newFakeAgentStore() *fakeAgentStore {
	return &fakeAgentStore{entries: make(map[string]*registry.Agent)}
}

func (f *fakeAgentStore) Get(_ context.Context, path string) (*registry.Agent, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[registry.NormalizePath(path)]
	return v, ok, nil
}

func (f *fakeAgentStore) List(_ context.Context) ([]*registry.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*registry.Agent, 0, len(f.entries))
	for _, v := range f.entries {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeAgentStore) Put(_ context.Context, v *registry.Agent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[registry.NormalizePath(v.Path)] = v
	return nil
}

func (f *fakeAgentStore) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, registry.NormalizePath(path))
	return nil
}

func (f *fakeAgentStore) State(_ context.Context) (*registry.EnableState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.state
	return &st, nil
}

func (f *fakeAgentStore) SaveState(_ context.Context, st *registry.EnableState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = *st
	return nil
}

func (f *fakeAgentStore) setEnabled(path string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Toggle(registry.NormalizePath(path), enabled)
}

// fakeLocker is a no-op pathLocker for tests that don't exercise
// cross-process locking.
type fakeLocker struct{}

func (fakeLocker) PathLock(string) func() { return func() {} }

// fakeIndex records Upsert/Remove calls without a real vector backend.
type fakeIndex struct {
	mu      sync.Mutex
	upserts int
}

func newFakeIndex() *fakeIndex { return &fakeIndex{} }

func (f *fakeIndex) Upsert(_ context.Context, _ string, _ vectorindex.EntityType, _ string, _ string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	return nil
}

func (f *fakeIndex) Remove(_ context.Context, _ string) error { return nil }

func (f *fakeIndex) Search(_ context.Context, _ string, _ []vectorindex.EntityType, _ int) ([]vectorindex.Hit, error) {
	return nil, nil
}

func (f *fakeIndex) Size(_ context.Context) (int, error) { return 0, nil }

// fakeScanner satisfies service.Scanner without spawning a scanner
// subprocess.
type fakeScanner struct {
	mu      sync.Mutex
	servers []string
	agents  []string
}

func (f *fakeScanner) ScanServerAsync(path, requester string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servers = append(f.servers, path)
}

func (f *fakeScanner) ScanAgentAsync(path, requester string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agents = append(f.agents, path)
}
