package registry

import (
	"fmt"
	"strings"
	"time"
)

// Visibility controls who may see an agent card in listings and lookups.
type Visibility string

const (
	VisibilityPublic          Visibility = "public"
	VisibilityPrivate         Visibility = "private"
	VisibilityGroupRestricted Visibility = "group-restricted"
)

// TrustLevel is an ordinal used by skill-based discovery scoring.
type TrustLevel string

const (
	TrustUnverified TrustLevel = "unverified"
	TrustCommunity  TrustLevel = "community"
	TrustVerified   TrustLevel = "verified"
	TrustTrusted    TrustLevel = "trusted"
)

// TrustBoost returns the discovery-score boost for a trust level, per
// the skill-based discovery formula.
func (t TrustLevel) TrustBoost() float64 {
	switch t {
	case TrustCommunity:
		return 0.2
	case TrustVerified:
		return 0.5
	case TrustTrusted:
		return 1.0
	default:
		return 0.0
	}
}

// SecuritySchemeType is the closed set of normalized A2A security
// scheme types.
type SecuritySchemeType string

const (
	SchemeAPIKey        SecuritySchemeType = "apiKey"
	SchemeHTTP          SecuritySchemeType = "http"
	SchemeOAuth2        SecuritySchemeType = "oauth2"
	SchemeOpenIDConnect SecuritySchemeType = "openIdConnect"
)

// normalizedSchemeAliases maps loosely-specified input scheme type
// strings to the closed SecuritySchemeType set. Applied uniformly on
// both register and update (an explicit Open Question resolution: the
// source code diverged between the two paths).
var normalizedSchemeAliases = map[string]SecuritySchemeType{
	"bearer":        SchemeHTTP,
	"api_key":       SchemeAPIKey,
	"apikey":        SchemeAPIKey,
	"openid":        SchemeOpenIDConnect,
	"openidconnect": SchemeOpenIDConnect,
}

// NormalizeSchemeType maps an input security-scheme type to the closed
// set, passing through values already in canonical form.
func NormalizeSchemeType(raw string) SecuritySchemeType {
	switch SecuritySchemeType(raw) {
	case SchemeAPIKey, SchemeHTTP, SchemeOAuth2, SchemeOpenIDConnect:
		return SecuritySchemeType(raw)
	}
	if mapped, ok := normalizedSchemeAliases[strings.ToLower(raw)]; ok {
		return mapped
	}
	return SecuritySchemeType(raw)
}

// SecurityScheme is an A2A security scheme descriptor.
type SecurityScheme struct {
	Type   SecuritySchemeType `json:"type"`
	Scheme string             `json:"scheme,omitempty"`
	Name   string             `json:"name,omitempty"`
	In     string             `json:"in,omitempty"`
}

// Skill is a single capability advertised by an agent card.
type Skill struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Tags        []string         `json:"tags,omitempty"`
	Examples    []string         `json:"examples,omitempty"`
	InputModes  []string         `json:"inputModes,omitempty"`
	OutputModes []string         `json:"outputModes,omitempty"`
	Security    []SecurityScheme `json:"security,omitempty"`
}

// Provider is the optional organization/url pair on an agent card.
// Either both fields are set or neither is.
type Provider struct {
	Organization string `json:"organization"`
	URL          string `json:"url"`
}

// Agent is an A2A agent card entry in the registry, serialized in
// camelCase at the HTTP boundary and stored on disk as-is.
type Agent struct {
	Path            string `json:"path"`
	ProtocolVersion string `json:"protocolVersion"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	URL             string `json:"url"`
	Version         string `json:"version"`

	Capabilities map[string]any `json:"capabilities,omitempty"`

	DefaultInputModes  []string `json:"defaultInputModes"`
	DefaultOutputModes []string `json:"defaultOutputModes"`

	Skills []Skill `json:"skills"`

	PreferredTransport string `json:"preferredTransport"`

	Provider *Provider `json:"provider,omitempty"`

	SecuritySchemes map[string]SecurityScheme `json:"securitySchemes,omitempty"`

	Visibility    Visibility `json:"visibility"`
	AllowedGroups []string   `json:"allowedGroups,omitempty"`

	TrustLevel TrustLevel `json:"trustLevel"`

	Tags     []string       `json:"tags,omitempty"`
	License  string         `json:"license"`
	NumStars float64        `json:"numStars"`
	Ratings  RatingBuffer   `json:"ratings"`
	Metadata map[string]any `json:"metadata,omitempty"`

	RegisteredBy string    `json:"registeredBy"`
	RegisteredAt time.Time `json:"registeredAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Signature string `json:"signature,omitempty"`

	IsEnabled bool `json:"-"`
}

// GetPath returns the agent's canonical path, satisfying the generic
// filestore adapter's entity constraint.
func (a *Agent) GetPath() string { return a.Path }

// Streaming reports the capabilities.streaming surface flag.
func (a *Agent) Streaming() bool {
	v, ok := a.Capabilities["streaming"].(bool)
	return ok && v
}

// Normalize fills derived/defaulted fields ahead of validation and
// persistence: path derivation from name, skill id derivation, default
// transport/modes/visibility/trust/license, and security scheme type
// normalization.
func (a *Agent) Normalize() {
	if a.Path == "" && a.Name != "" {
		a.Path = "/" + strings.ReplaceAll(strings.ToLower(a.Name), " ", "-")
	}
	a.Path = NormalizePath(a.Path)

	if len(a.DefaultInputModes) == 0 {
		a.DefaultInputModes = []string{"text/plain"}
	}
	if len(a.DefaultOutputModes) == 0 {
		a.DefaultOutputModes = []string{"text/plain"}
	}
	if a.PreferredTransport == "" {
		a.PreferredTransport = "JSONRPC"
	}
	if a.Visibility == "" {
		a.Visibility = VisibilityPublic
	}
	if a.TrustLevel == "" {
		a.TrustLevel = TrustUnverified
	}
	if a.License == "" {
		a.License = "N/A"
	}

	for i := range a.Skills {
		if a.Skills[i].ID == "" {
			a.Skills[i].ID = strings.ReplaceAll(strings.ToLower(a.Skills[i].Name), " ", "-")
		}
	}

	for name, scheme := range a.SecuritySchemes {
		scheme.Type = NormalizeSchemeType(string(scheme.Type))
		a.SecuritySchemes[name] = scheme
	}
}

// Validate checks the agent's field invariants.
func (a *Agent) Validate() error {
	if a.Path == "" && a.Name == "" {
		return fmt.Errorf("%w: either path or name is required", ErrInvalid)
	}
	if !pathPattern.MatchString(a.Path) {
		return fmt.Errorf("%w: path %q must begin with / and contain no empty segments", ErrInvalid, a.Path)
	}
	if a.Provider != nil {
		if a.Provider.Organization == "" || a.Provider.URL == "" {
			return fmt.Errorf("%w: provider requires both organization and url", ErrInvalid)
		}
	}
	if a.Visibility == VisibilityGroupRestricted && len(a.AllowedGroups) == 0 {
		return fmt.Errorf("%w: group-restricted visibility requires at least one allowed group", ErrInvalid)
	}
	if a.NumStars < 0 || a.NumStars > 5 {
		return fmt.Errorf("%w: num_stars must be in [0,5]", ErrInvalid)
	}
	seen := make(map[string]struct{}, len(a.Skills))
	for _, sk := range a.Skills {
		if _, dup := seen[sk.ID]; dup {
			return fmt.Errorf("%w: duplicate skill id %q", ErrInvalid, sk.ID)
		}
		seen[sk.ID] = struct{}{}
	}
	return nil
}
