// Package identity provides the two identity.Decoder implementations
// gatereg wires in: a development bypass and a claims decoder that
// trusts an upstream identity provider (e.g. Keycloak) to have already
// verified the bearer token's signature and expiry before it reaches
// the core.
package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gatereg/registry/internal/domain/access"
	identitydomain "github.com/gatereg/registry/internal/domain/identity"
)

// DevDecoder grants every request an admin UserContext. Only wired
// when config.DevMode is set.
type DevDecoder struct{}

func (DevDecoder) Decode(_ context.Context, _ string) (*access.UserContext, error) {
	return &access.UserContext{
		Username:         "dev",
		IsAdmin:          true,
		AccessibleAgents: []string{access.All},
	}, nil
}

// claims is the subset of a JWT payload the control API reads. Token
// signature verification is the identity provider's responsibility
// (BOOT-time network placement puts it in front of gatereg); this
// decoder reads the already-trusted claims out of the payload.
type claims struct {
	Username      string              `json:"preferred_username"`
	Groups        []string            `json:"groups"`
	IsAdmin       bool                `json:"is_admin"`
	UIPermissions map[string][]string `json:"ui_permissions"`
	Accessible    []string            `json:"accessible_agents"`
}

// ClaimsDecoder decodes a bearer JWT's payload segment into a
// UserContext, without reverifying the signature.
type ClaimsDecoder struct{}

func (ClaimsDecoder) Decode(_ context.Context, token string) (*access.UserContext, error) {
	token = strings.TrimPrefix(token, "Bearer ")
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, identitydomain.ErrUnauthenticated
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: malformed token", identitydomain.ErrUnauthenticated)
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable payload", identitydomain.ErrUnauthenticated)
	}

	var c claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("%w: unparsable claims", identitydomain.ErrUnauthenticated)
	}
	if c.Username == "" {
		return nil, fmt.Errorf("%w: missing subject", identitydomain.ErrUnauthenticated)
	}

	groups := make(map[string]struct{}, len(c.Groups))
	for _, g := range c.Groups {
		groups[g] = struct{}{}
	}

	perms := make(map[access.Permission][]string, len(c.UIPermissions))
	for perm, names := range c.UIPermissions {
		perms[access.Permission(perm)] = names
	}

	return &access.UserContext{
		Username:         c.Username,
		Groups:           groups,
		IsAdmin:          c.IsAdmin,
		UIPermissions:    perms,
		AccessibleAgents: c.Accessible,
	}, nil
}
