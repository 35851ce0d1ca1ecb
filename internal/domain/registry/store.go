package registry

import "context"

// ServerStore is the persistence port for the server half of the
// registry. Implementations own atomic on-disk writes and in-memory
// consistency; see the registry service for the locking and ordering
// rules layered on top (ordering guarantees).
type ServerStore interface {
	Get(ctx context.Context, path string) (*Server, bool, error)
	List(ctx context.Context) ([]*Server, error)
	// Put writes a server unconditionally (used by register/update/rate
	// after in-memory validation has already happened).
	Put(ctx context.Context, s *Server) error
	Delete(ctx context.Context, path string) error

	State(ctx context.Context) (*EnableState, error)
	SaveState(ctx context.Context, state *EnableState) error
}

// AgentStore is the persistence port for the agent half of the
// registry, symmetric with ServerStore.
type AgentStore interface {
	Get(ctx context.Context, path string) (*Agent, bool, error)
	List(ctx context.Context) ([]*Agent, error)
	Put(ctx context.Context, a *Agent) error
	Delete(ctx context.Context, path string) error

	State(ctx context.Context) (*EnableState, error)
	SaveState(ctx context.Context, state *EnableState) error
}
