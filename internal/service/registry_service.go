package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatereg/registry/internal/domain/registry"
	"github.com/gatereg/registry/internal/domain/searchtext"
	"github.com/gatereg/registry/internal/domain/vectorindex"
)

// Scanner is the subset of the Orchestrator the registry service needs
// to kick off an async scan on registration, kept narrow so the
// registry service does not depend on the orchestrator's full surface.
type Scanner interface {
	ScanServerAsync(path, requester string)
	ScanAgentAsync(path, requester string)
}

// ServerRegistry is the C3 Registry Store for MCP servers: it owns
// validation, per-path locking, conflict/ownership checks, and keeps
// the vector index (C7) synchronized with every mutation.
type ServerRegistry struct {
	store   registry.ServerStore
	locker  pathLocker
	index   vectorindex.Index
	scanner Scanner
	logger  *slog.Logger
}

// pathLocker is satisfied by filestore.Store[T]; kept as a narrow
// interface so the service depends only on behavior, not the concrete
// adapter type.
type pathLocker interface {
	PathLock(path string) func()
}

// NewServerRegistry wires a ServerRegistry's collaborators.
func NewServerRegistry(store registry.ServerStore, locker pathLocker, index vectorindex.Index, scanner Scanner, logger *slog.Logger) *ServerRegistry {
	return &ServerRegistry{store: store, locker: locker, index: index, scanner: scanner, logger: logger}
}

// Register persists a new server in the disabled state, indexes it,
// and (if configured) kicks off an async scan. overwrite permits
// replacing an existing entity at the same path; ratings are
// preserved across an overwrite (Open Question: preserve).
func (s *ServerRegistry) Register(ctx context.Context, srv *registry.Server, requester string, overwrite bool) (*registry.Server, error) {
	srv.Normalize()
	if err := srv.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locker.PathLock(srv.Path)
	defer unlock()

	existing, found, err := s.store.Get(ctx, srv.Path)
	if err != nil {
		return nil, fmt.Errorf("load existing server: %w", err)
	}
	if found {
		if !overwrite {
			return nil, registry.ErrConflict
		}
		srv.Ratings = existing.Ratings
		srv.NumStars = existing.NumStars
		srv.RegisteredBy = existing.RegisteredBy
		srv.RegisteredAt = existing.RegisteredAt
	} else {
		srv.RegisteredBy = requester
		srv.RegisteredAt = time.Now()
	}
	srv.UpdatedAt = time.Now()

	if err := s.store.Put(ctx, srv); err != nil {
		return nil, fmt.Errorf("persist server: %w", err)
	}

	st, err := s.store.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("load server state: %w", err)
	}
	if !found {
		st.Disabled = append(st.Disabled, srv.Path)
	}
	if err := s.store.SaveState(ctx, st); err != nil {
		return nil, fmt.Errorf("persist server state: %w", err)
	}

	if s.index != nil {
		if err := s.reindex(ctx, srv, false); err != nil {
			s.logger.Error("index server after register failed, will heal on next upsert", "path", srv.Path, "error", err)
		}
	}

	if s.scanner != nil {
		s.scanner.ScanServerAsync(srv.Path, requester)
	}

	return srv, nil
}

// Update merges changes into the existing server at path, re-validates,
// and rewrites disk, preserving registered_by/registered_at.
func (s *ServerRegistry) Update(ctx context.Context, path string, changed *registry.Server, requester string, isAdmin bool) (*registry.Server, error) {
	unlock := s.locker.PathLock(path)
	defer unlock()

	existing, found, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load server: %w", err)
	}
	if !found {
		return nil, registry.ErrNotFound
	}
	if !isAdmin && requester != existing.RegisteredBy {
		return nil, registry.ErrForbidden
	}

	changed.Path = existing.Path
	changed.RegisteredBy = existing.RegisteredBy
	changed.RegisteredAt = existing.RegisteredAt
	changed.Ratings = existing.Ratings
	changed.NumStars = existing.NumStars
	changed.UpdatedAt = time.Now()

	changed.Normalize()
	if err := changed.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, changed); err != nil {
		return nil, fmt.Errorf("persist server: %w", err)
	}

	if s.index != nil {
		enabled, _ := s.isEnabledLocked(ctx, path)
		if err := s.reindex(ctx, changed, enabled); err != nil {
			s.logger.Error("reindex server after update failed", "path", path, "error", err)
		}
	}

	return changed, nil
}

// Delete removes the server's disk file, state entries, and vector
// index metadata. It returns an error if the file delete or the state
// update fails; a failed disk delete leaves the in-memory entry in
// place. An index removal failure is logged and does not fail the call.
func (s *ServerRegistry) Delete(ctx context.Context, path, requester string, isAdmin bool) error {
	unlock := s.locker.PathLock(path)
	defer unlock()

	existing, found, err := s.store.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("load server: %w", err)
	}
	if !found {
		return registry.ErrNotFound
	}
	if !isAdmin && requester != existing.RegisteredBy {
		return registry.ErrForbidden
	}

	if err := s.store.Delete(ctx, path); err != nil {
		return fmt.Errorf("delete server file: %w", err)
	}

	st, err := s.store.State(ctx)
	if err != nil {
		return fmt.Errorf("load server state: %w", err)
	}
	st.Remove(path)
	if err := s.store.SaveState(ctx, st); err != nil {
		return fmt.Errorf("persist server state: %w", err)
	}

	if s.index != nil {
		if err := s.index.Remove(ctx, path); err != nil {
			s.logger.Error("remove server from index failed", "path", path, "error", err)
		}
	}

	return nil
}

// Toggle moves path between the enabled and disabled lists,
// idempotently, and re-upserts the index with the new enabled flag.
func (s *ServerRegistry) Toggle(ctx context.Context, path string, enabled bool) error {
	unlock := s.locker.PathLock(path)
	defer unlock()

	srv, found, err := s.store.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("load server: %w", err)
	}
	if !found {
		return registry.ErrNotFound
	}

	st, err := s.store.State(ctx)
	if err != nil {
		return fmt.Errorf("load server state: %w", err)
	}
	st.Toggle(path, enabled)
	if err := s.store.SaveState(ctx, st); err != nil {
		return fmt.Errorf("persist server state: %w", err)
	}

	if s.index != nil {
		if err := s.reindex(ctx, srv, enabled); err != nil {
			s.logger.Error("reindex server after toggle failed", "path", path, "error", err)
		}
	}

	return nil
}

// Rate submits a rating and persists the updated entity.
func (s *ServerRegistry) Rate(ctx context.Context, path, user string, rating int) (*registry.Server, error) {
	unlock := s.locker.PathLock(path)
	defer unlock()

	srv, found, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load server: %w", err)
	}
	if !found {
		return nil, registry.ErrNotFound
	}

	if err := srv.Ratings.Submit(user, rating); err != nil {
		return nil, err
	}
	srv.NumStars, _ = srv.Ratings.Summary()
	srv.UpdatedAt = time.Now()

	if err := s.store.Put(ctx, srv); err != nil {
		return nil, fmt.Errorf("persist server rating: %w", err)
	}
	return srv, nil
}

// Get returns the server at path.
func (s *ServerRegistry) Get(ctx context.Context, path string) (*registry.Server, bool, error) {
	return s.store.Get(ctx, path)
}

// List returns every registered server, path-ordered.
func (s *ServerRegistry) List(ctx context.Context) ([]*registry.Server, error) {
	return s.store.List(ctx)
}

// IsEnabled reports whether path is in the enabled list.
func (s *ServerRegistry) IsEnabled(ctx context.Context, path string) (bool, error) {
	st, err := s.store.State(ctx)
	if err != nil {
		return false, err
	}
	return st.IsEnabled(registry.NormalizePath(path)), nil
}

func (s *ServerRegistry) isEnabledLocked(ctx context.Context, path string) (bool, error) {
	return s.IsEnabled(ctx, path)
}

// groupsMetadataKey is the Server.Metadata entry add_to_groups and
// remove_from_groups mutate: servers have no first-class group field,
// so group membership rides along as metadata (it still feeds the
// embedding text like any other metadata entry).
const groupsMetadataKey = "groups"

// AddToGroups appends groupNames to the server's metadata group list,
// idempotently, requiring admin or ownership.
func (s *ServerRegistry) AddToGroups(ctx context.Context, path string, groupNames []string, requester string, isAdmin bool) error {
	return s.mutateGroups(ctx, path, requester, isAdmin, func(current []string) []string {
		have := make(map[string]struct{}, len(current))
		for _, g := range current {
			have[g] = struct{}{}
		}
		for _, g := range groupNames {
			if _, dup := have[g]; dup {
				continue
			}
			have[g] = struct{}{}
			current = append(current, g)
		}
		return current
	})
}

// RemoveFromGroups removes groupNames from the server's metadata group
// list, requiring admin or ownership.
func (s *ServerRegistry) RemoveFromGroups(ctx context.Context, path string, groupNames []string, requester string, isAdmin bool) error {
	remove := make(map[string]struct{}, len(groupNames))
	for _, g := range groupNames {
		remove[g] = struct{}{}
	}
	return s.mutateGroups(ctx, path, requester, isAdmin, func(current []string) []string {
		out := current[:0:0]
		for _, g := range current {
			if _, drop := remove[g]; drop {
				continue
			}
			out = append(out, g)
		}
		return out
	})
}

func (s *ServerRegistry) mutateGroups(ctx context.Context, path string, requester string, isAdmin bool, mutate func([]string) []string) error {
	unlock := s.locker.PathLock(path)
	defer unlock()

	srv, found, err := s.store.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("load server: %w", err)
	}
	if !found {
		return registry.ErrNotFound
	}
	if !isAdmin && requester != srv.RegisteredBy {
		return registry.ErrForbidden
	}

	var current []string
	if raw, ok := srv.Metadata[groupsMetadataKey]; ok {
		current = toStringSlice(raw)
	}
	srv.Metadata = cloneMetadata(srv.Metadata)
	srv.Metadata[groupsMetadataKey] = mutate(current)
	srv.UpdatedAt = time.Now()

	if err := s.store.Put(ctx, srv); err != nil {
		return fmt.Errorf("persist server groups: %w", err)
	}
	if s.index != nil {
		enabled, _ := s.isEnabledLocked(ctx, path)
		if err := s.reindex(ctx, srv, enabled); err != nil {
			s.logger.Error("reindex server after group change failed", "path", path, "error", err)
		}
	}
	return nil
}

func cloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toStringSlice(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (s *ServerRegistry) reindex(ctx context.Context, srv *registry.Server, enabled bool) error {
	text := searchtext.ServerText(srv)
	snapshot, err := searchtext.ServerSnapshot(srv)
	if err != nil {
		return err
	}
	return s.index.Upsert(ctx, srv.Path, vectorindex.EntityServer, text, snapshot, enabled)
}

// AgentRegistry is the C3 Registry Store for A2A agents. It mirrors
// ServerRegistry's shape but never overwrites on register — agent
// registration is always Conflict on a duplicate path.
type AgentRegistry struct {
	store   registry.AgentStore
	locker  pathLocker
	index   vectorindex.Index
	scanner Scanner
	logger  *slog.Logger
}

// NewAgentRegistry wires an AgentRegistry's collaborators.
func NewAgentRegistry(store registry.AgentStore, locker pathLocker, index vectorindex.Index, scanner Scanner, logger *slog.Logger) *AgentRegistry {
	return &AgentRegistry{store: store, locker: locker, index: index, scanner: scanner, logger: logger}
}

// Register persists a new agent. Agents never overwrite: a duplicate
// path always fails with Conflict.
func (a *AgentRegistry) Register(ctx context.Context, agent *registry.Agent, requester string) (*registry.Agent, error) {
	agent.Normalize()
	if err := agent.Validate(); err != nil {
		return nil, err
	}

	unlock := a.locker.PathLock(agent.Path)
	defer unlock()

	_, found, err := a.store.Get(ctx, agent.Path)
	if err != nil {
		return nil, fmt.Errorf("load existing agent: %w", err)
	}
	if found {
		return nil, registry.ErrConflict
	}

	agent.RegisteredBy = requester
	agent.RegisteredAt = time.Now()
	agent.UpdatedAt = time.Now()

	if err := a.store.Put(ctx, agent); err != nil {
		return nil, fmt.Errorf("persist agent: %w", err)
	}

	st, err := a.store.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("load agent state: %w", err)
	}
	st.Disabled = append(st.Disabled, agent.Path)
	if err := a.store.SaveState(ctx, st); err != nil {
		return nil, fmt.Errorf("persist agent state: %w", err)
	}

	if a.index != nil {
		if err := a.reindex(ctx, agent, false); err != nil {
			a.logger.Error("index agent after register failed", "path", agent.Path, "error", err)
		}
	}

	if a.scanner != nil {
		a.scanner.ScanAgentAsync(agent.Path, requester)
	}

	return agent, nil
}

// Update merges changes into the existing agent at path.
func (a *AgentRegistry) Update(ctx context.Context, path string, changed *registry.Agent, requester string, isAdmin bool) (*registry.Agent, error) {
	unlock := a.locker.PathLock(path)
	defer unlock()

	existing, found, err := a.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load agent: %w", err)
	}
	if !found {
		return nil, registry.ErrNotFound
	}
	if !isAdmin && requester != existing.RegisteredBy {
		return nil, registry.ErrForbidden
	}

	changed.Path = existing.Path
	changed.RegisteredBy = existing.RegisteredBy
	changed.RegisteredAt = existing.RegisteredAt
	changed.Ratings = existing.Ratings
	changed.NumStars = existing.NumStars
	changed.UpdatedAt = time.Now()

	changed.Normalize()
	if err := changed.Validate(); err != nil {
		return nil, err
	}

	if err := a.store.Put(ctx, changed); err != nil {
		return nil, fmt.Errorf("persist agent: %w", err)
	}

	if a.index != nil {
		enabled, _ := a.IsEnabled(ctx, path)
		if err := a.reindex(ctx, changed, enabled); err != nil {
			a.logger.Error("reindex agent after update failed", "path", path, "error", err)
		}
	}

	return changed, nil
}

// Delete removes the agent's disk file, state entries, and index entry.
func (a *AgentRegistry) Delete(ctx context.Context, path, requester string, isAdmin bool) error {
	unlock := a.locker.PathLock(path)
	defer unlock()

	existing, found, err := a.store.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("load agent: %w", err)
	}
	if !found {
		return registry.ErrNotFound
	}
	if !isAdmin && requester != existing.RegisteredBy {
		return registry.ErrForbidden
	}

	if err := a.store.Delete(ctx, path); err != nil {
		return fmt.Errorf("delete agent file: %w", err)
	}

	st, err := a.store.State(ctx)
	if err != nil {
		return fmt.Errorf("load agent state: %w", err)
	}
	st.Remove(path)
	if err := a.store.SaveState(ctx, st); err != nil {
		return fmt.Errorf("persist agent state: %w", err)
	}

	if a.index != nil {
		if err := a.index.Remove(ctx, path); err != nil {
			a.logger.Error("remove agent from index failed", "path", path, "error", err)
		}
	}

	return nil
}

// Toggle moves path between the enabled and disabled lists.
func (a *AgentRegistry) Toggle(ctx context.Context, path string, enabled bool) error {
	unlock := a.locker.PathLock(path)
	defer unlock()

	agent, found, err := a.store.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("load agent: %w", err)
	}
	if !found {
		return registry.ErrNotFound
	}

	st, err := a.store.State(ctx)
	if err != nil {
		return fmt.Errorf("load agent state: %w", err)
	}
	st.Toggle(path, enabled)
	if err := a.store.SaveState(ctx, st); err != nil {
		return fmt.Errorf("persist agent state: %w", err)
	}

	if a.index != nil {
		if err := a.reindex(ctx, agent, enabled); err != nil {
			a.logger.Error("reindex agent after toggle failed", "path", path, "error", err)
		}
	}

	return nil
}

// Rate submits a rating and persists the updated agent.
func (a *AgentRegistry) Rate(ctx context.Context, path, user string, rating int) (*registry.Agent, error) {
	unlock := a.locker.PathLock(path)
	defer unlock()

	agent, found, err := a.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load agent: %w", err)
	}
	if !found {
		return nil, registry.ErrNotFound
	}

	if err := agent.Ratings.Submit(user, rating); err != nil {
		return nil, err
	}
	agent.NumStars, _ = agent.Ratings.Summary()
	agent.UpdatedAt = time.Now()

	if err := a.store.Put(ctx, agent); err != nil {
		return nil, fmt.Errorf("persist agent rating: %w", err)
	}
	return agent, nil
}

// Get returns the agent at path.
func (a *AgentRegistry) Get(ctx context.Context, path string) (*registry.Agent, bool, error) {
	return a.store.Get(ctx, path)
}

// List returns every registered agent, path-ordered.
func (a *AgentRegistry) List(ctx context.Context) ([]*registry.Agent, error) {
	return a.store.List(ctx)
}

// IsEnabled reports whether path is in the enabled list.
func (a *AgentRegistry) IsEnabled(ctx context.Context, path string) (bool, error) {
	st, err := a.store.State(ctx)
	if err != nil {
		return false, err
	}
	return st.IsEnabled(registry.NormalizePath(path)), nil
}

func (a *AgentRegistry) reindex(ctx context.Context, agent *registry.Agent, enabled bool) error {
	text := searchtext.AgentText(agent)
	snapshot, err := searchtext.AgentSnapshot(agent)
	if err != nil {
		return err
	}
	return a.index.Upsert(ctx, agent.Path, vectorindex.EntityAgent, text, snapshot, enabled)
}
