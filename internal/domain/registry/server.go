package registry

import (
	"fmt"
	"regexp"
	"time"
)

var pathPattern = regexp.MustCompile(`^/[^/]+(/[^/]+)*$`)

// Server is an MCP tool server entry in the registry.
type Server struct {
	Path        string   `json:"path"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ProxyURL    string   `json:"proxy_url"`
	Tags        []string `json:"tags"`

	ToolList []ToolRecord `json:"tool_list"`
	NumTools int          `json:"num_tools"`

	AuthProvider        string            `json:"auth_provider,omitempty"`
	AuthType            string            `json:"auth_type,omitempty"`
	SupportedTransports []string          `json:"supported_transports,omitempty"`
	Headers             map[string]string `json:"headers,omitempty"`

	Ratings  RatingBuffer `json:"ratings"`
	NumStars float64      `json:"num_stars"`

	Metadata map[string]any `json:"metadata,omitempty"`

	// ToolListJSON is the source-of-truth serialization of ToolList used
	// for content hashing (change detection feeding the embeddings
	// skip-if-unchanged rule). It must parse to the same structure as
	// ToolList; callers re-derive it on every write.
	ToolListJSON string `json:"tool_list_json"`

	RegisteredBy string    `json:"registered_by"`
	RegisteredAt time.Time `json:"registered_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// IsEnabled is materialized from the enable-state document; it is
	// never stored in the entity's own JSON file.
	IsEnabled bool `json:"-"`
}

// GetPath returns the server's canonical path, satisfying the generic
// filestore adapter's entity constraint.
func (s *Server) GetPath() string { return s.Path }

// Validate checks the server's field invariants, independent of
// registry-level rules like path uniqueness (the store enforces those).
func (s *Server) Validate() error {
	if s.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalid)
	}
	if !pathPattern.MatchString(s.Path) {
		return fmt.Errorf("%w: path %q must begin with / and contain no empty segments", ErrInvalid, s.Path)
	}
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if s.NumStars > 0 && len(s.Ratings.Entries) == 0 {
		return fmt.Errorf("%w: num_stars > 0 requires at least one rating entry", ErrInvalid)
	}
	seen := make(map[string]struct{}, len(s.ToolList))
	for _, t := range s.ToolList {
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("%w: duplicate tool name %q", ErrInvalid, t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}

// Normalize fills derived fields (num_tools, canonical path) ahead of
// persistence. It does not touch registered_by/registered_at/updated_at;
// the registry service owns those.
func (s *Server) Normalize() {
	s.Path = NormalizePath(s.Path)
	s.NumTools = len(s.ToolList)
}
