// Package config provides the configuration schema for gatereg, the
// gateway registry control plane.
//
// It is intentionally a closed schema: every recognized option is a
// named field here, not an open-ended map. The schema covers:
//
//   - storage roots for the server/agent catalogs and scan archive
//   - the embeddings backend used for semantic search (C1)
//   - per-kind (server/agent) security scan orchestration (C6)
//   - the HTTP control API listener
//   - session_* passthrough consumed by an external identity collaborator
//   - OpenTelemetry tracing
//
// Authentication, session semantics, and admission policy are owned by
// an external identity collaborator (see internal/domain/identity);
// this package only carries the settings that collaborator needs
// forwarded to it.
package config

import (
	"os"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for gatereg.
type Config struct {
	// Server configures the HTTP control API listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Storage configures the on-disk roots for the registry catalog and
	// scan archive (persisted state layout).
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Embeddings selects and configures the embeddings client used by
	// the hybrid search index.
	Embeddings EmbeddingsConfig `yaml:"embeddings" mapstructure:"embeddings"`

	// HealthCheckTimeoutSeconds bounds the agent health probe.
	// Defaults to 2 if unset.
	HealthCheckTimeoutSeconds int `yaml:"health_check_timeout_seconds" mapstructure:"health_check_timeout_seconds" validate:"omitempty,min=1"`

	// Security configures the scan orchestrator for MCP servers.
	Security ScanConfig `yaml:"security" mapstructure:"security"`

	// AgentSecurity configures the scan orchestrator for A2A agents.
	AgentSecurity ScanConfig `yaml:"agent_security" mapstructure:"agent_security"`

	// Session holds settings forwarded to the external identity/session
	// collaborator; the core does not interpret them.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Tracing configures the OpenTelemetry exporter.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`

	// ScannerBinaryPath is the external scanner executable invoked for
	// both kinds; analyzer selection differs per kind.
	ScannerBinaryPath string `yaml:"scanner_binary_path" mapstructure:"scanner_binary_path"`

	// DevMode relaxes startup requirements for local development (e.g.
	// permits a default local embeddings model). It never weakens a
	// documented invariant.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP control API.
type ServerConfig struct {
	// HTTPAddr is the address the control API listens on.
	// Defaults to "127.0.0.1:8080" if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum slog level.
	// Valid values: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// MetricsAddr is accepted and validated but not read by the
	// transport: /metrics is always served on HTTPAddr.
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
}

// StorageConfig configures the on-disk roots.
type StorageConfig struct {
	// ServersDir holds one JSON document per server plus the server
	// enable/disable state and vector index files.
	ServersDir string `yaml:"servers_dir" mapstructure:"servers_dir" validate:"required"`

	// AgentsDir holds one JSON document per agent plus the agent
	// enable/disable state.
	AgentsDir string `yaml:"agents_dir" mapstructure:"agents_dir" validate:"required"`

	// ScansRoot is the root under which the two-tier scan archive
	// layout (security_scans/, agent_security_scans/) is written.
	ScansRoot string `yaml:"scans_root" mapstructure:"scans_root" validate:"required"`
}

// EmbeddingsConfig selects and configures the embeddings client.
type EmbeddingsConfig struct {
	// Provider selects the backend: "local" (wazero-hosted model) or
	// "remote-llm" (OpenAI-compatible embeddings endpoint, optionally
	// routed through Bedrock).
	Provider string `yaml:"provider" mapstructure:"provider" validate:"required,oneof=local remote-llm"`

	// ModelName identifies the embedding model to load or request.
	ModelName string `yaml:"model_name" mapstructure:"model_name" validate:"required"`

	// ModelDimensions is the configured output dimension. If the
	// model's actual dimension disagrees, the actual dimension wins and
	// this value is corrected in place with a logged warning.
	ModelDimensions int `yaml:"model_dimensions" mapstructure:"model_dimensions" validate:"required,min=1"`

	// APIKey, APIBase, AWSRegion are only honored by the remote-llm
	// backend.
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	APIBase   string `yaml:"api_base" mapstructure:"api_base"`
	AWSRegion string `yaml:"aws_region" mapstructure:"aws_region"`

	// Backend selects the remote-llm sub-mode: "openai" (default) or
	// "bedrock". Ignored for the local provider.
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=openai bedrock"`
}

// ScanConfig enumerates the scan orchestrator options for one entity
// kind. Every recognized option is a named field; there is no
// open-ended options map.
type ScanConfig struct {
	// Enabled is the master switch for scanning this kind.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// ScanOnRegistration invokes the scanner on successful registration.
	ScanOnRegistration bool `yaml:"scan_on_registration" mapstructure:"scan_on_registration"`

	// BlockUnsafe disables the entity when the scan verdict is unsafe.
	BlockUnsafe bool `yaml:"block_unsafe" mapstructure:"block_unsafe"`

	// Analyzers is a comma-separated analyzer list. Defaults to "yara"
	// for servers and "yara,spec" for agents if empty.
	Analyzers string `yaml:"analyzers" mapstructure:"analyzers"`

	// ScanTimeoutSeconds bounds the scanner subprocess.
	ScanTimeoutSeconds int `yaml:"scan_timeout_seconds" mapstructure:"scan_timeout_seconds" validate:"omitempty,min=1"`

	// LLMAPIKey, when set, is injected into the scanner subprocess
	// environment as LLM_API_KEY, never on argv, whichever analyzers are
	// selected.
	LLMAPIKey string `yaml:"llm_api_key" mapstructure:"llm_api_key"`

	// AddSecurityPendingTag appends "security-pending" to an unsafe
	// entity's tags, idempotently.
	AddSecurityPendingTag bool `yaml:"add_security_pending_tag" mapstructure:"add_security_pending_tag"`

	// MaxConcurrency bounds simultaneous scanner subprocesses. Both
	// kinds share one pool, sized to the larger of the two kinds'
	// values. Defaults to 4 if 0.
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency" validate:"omitempty,min=1"`

	// PerRequesterRatePerMinute throttles how often a single requester
	// may trigger a scan. Only the security (server-kind) value is
	// applied, to scans of both kinds; the agent_security value is not
	// read. Defaults to 30 if 0.
	PerRequesterRatePerMinute int `yaml:"per_requester_rate_per_minute" mapstructure:"per_requester_rate_per_minute" validate:"omitempty,min=1"`
}

// SessionConfig holds session_* settings the core stores and forwards
// but does not interpret; the external identity collaborator owns
// their semantics.
type SessionConfig struct {
	// TimeoutSeconds is the session lifetime hint passed through to the
	// identity collaborator. Defaults to 1800 (30m) if 0.
	TimeoutSeconds int `yaml:"timeout_seconds" mapstructure:"timeout_seconds" validate:"omitempty,min=1"`

	// CookieName is the session cookie name the identity collaborator
	// is expected to use; the core never reads or sets this cookie.
	CookieName string `yaml:"cookie_name" mapstructure:"cookie_name"`
}

// TracingConfig configures the OpenTelemetry exporter wired around the
// scan orchestrator, embeddings client, and search service.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
}

// SetDevDefaults applies permissive defaults for development mode,
// before validation.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "local"
	}
	if c.Embeddings.ModelName == "" {
		c.Embeddings.ModelName = "dev-local-embedder"
	}
	if c.Embeddings.ModelDimensions == 0 {
		c.Embeddings.ModelDimensions = 384
	}
}

// SetDefaults applies sensible default values to the configuration,
// ahead of validation.
func (c *Config) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Storage.ServersDir == "" {
		c.Storage.ServersDir = "./data/servers"
	}
	if c.Storage.AgentsDir == "" {
		c.Storage.AgentsDir = "./data/agents"
	}
	if c.Storage.ScansRoot == "" {
		c.Storage.ScansRoot = "./data"
	}

	if c.HealthCheckTimeoutSeconds == 0 {
		c.HealthCheckTimeoutSeconds = 2
	}

	c.Security.setDefaults("yara")
	c.AgentSecurity.setDefaults("yara,spec")

	if c.Session.TimeoutSeconds == 0 {
		c.Session.TimeoutSeconds = 1800
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "gatereg_session"
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "gatereg"
	}

	if c.Embeddings.Backend == "" {
		c.Embeddings.Backend = "openai"
	}

	if c.ScannerBinaryPath == "" {
		c.ScannerBinaryPath = "gatereg-scanner"
	}
}

func (s *ScanConfig) setDefaults(defaultAnalyzers string) {
	if s.Analyzers == "" {
		s.Analyzers = defaultAnalyzers
	}
	if s.ScanTimeoutSeconds == 0 {
		s.ScanTimeoutSeconds = 60
	}
	if s.MaxConcurrency == 0 {
		s.MaxConcurrency = 4
	}
	if s.PerRequesterRatePerMinute == 0 {
		s.PerRequesterRatePerMinute = 30
	}
}

// homeDir returns the user's home directory, or "" if it cannot be
// determined; used by the loader's search path.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// viperExplicitlySet distinguishes "unset" from "explicitly false" for
// boolean options whose zero value is also a meaningful default.
func viperExplicitlySet(key string) bool {
	return viper.IsSet(key)
}
