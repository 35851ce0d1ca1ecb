package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:8080")
	}
	if cfg.Storage.ServersDir != "./data/servers" {
		t.Errorf("ServersDir = %q, want %q", cfg.Storage.ServersDir, "./data/servers")
	}
	if cfg.HealthCheckTimeoutSeconds != 2 {
		t.Errorf("HealthCheckTimeoutSeconds = %d, want 2", cfg.HealthCheckTimeoutSeconds)
	}
	if cfg.Security.Analyzers != "yara" {
		t.Errorf("Security.Analyzers = %q, want %q", cfg.Security.Analyzers, "yara")
	}
	if cfg.AgentSecurity.Analyzers != "yara,spec" {
		t.Errorf("AgentSecurity.Analyzers = %q, want %q", cfg.AgentSecurity.Analyzers, "yara,spec")
	}
	if cfg.Security.MaxConcurrency != 4 {
		t.Errorf("Security.MaxConcurrency = %d, want 4", cfg.Security.MaxConcurrency)
	}
	if cfg.Session.TimeoutSeconds != 1800 {
		t.Errorf("Session.TimeoutSeconds = %d, want 1800", cfg.Session.TimeoutSeconds)
	}
	if cfg.Embeddings.Backend != "openai" {
		t.Errorf("Embeddings.Backend = %q, want %q", cfg.Embeddings.Backend, "openai")
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Server: ServerConfig{HTTPAddr: ":9090"},
		Storage: StorageConfig{
			ServersDir: "/custom/servers",
		},
		Security: ScanConfig{
			Analyzers:      "llm",
			MaxConcurrency: 8,
		},
	}
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr was overwritten: got %q, want %q", cfg.Server.HTTPAddr, ":9090")
	}
	if cfg.Storage.ServersDir != "/custom/servers" {
		t.Errorf("ServersDir was overwritten: got %q", cfg.Storage.ServersDir)
	}
	if cfg.Security.Analyzers != "llm" {
		t.Errorf("Analyzers was overwritten: got %q, want %q", cfg.Security.Analyzers, "llm")
	}
	if cfg.Security.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency was overwritten: got %d, want 8", cfg.Security.MaxConcurrency)
	}
}

func TestConfig_SetDevDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true}
	cfg.SetDevDefaults()

	if cfg.Embeddings.Provider != "local" {
		t.Errorf("Embeddings.Provider = %q, want %q", cfg.Embeddings.Provider, "local")
	}
	if cfg.Embeddings.ModelDimensions != 384 {
		t.Errorf("Embeddings.ModelDimensions = %d, want 384", cfg.Embeddings.ModelDimensions)
	}
}

func TestConfig_SetDevDefaults_NoOpWhenDisabled(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDevDefaults()

	if cfg.Embeddings.Provider != "" {
		t.Errorf("Embeddings.Provider should remain unset when DevMode is false, got %q", cfg.Embeddings.Provider)
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "gatereg.yaml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "gatereg.yml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "gatereg"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "gatereg.yaml")
	ymlPath := filepath.Join(dir, "gatereg.yml")
	_ = os.WriteFile(yamlPath, []byte("server:\n  http_addr: :8080\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("server:\n  http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}

func TestConfig_YAMLKeysAreSnakeCase(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Server:  ServerConfig{HTTPAddr: ":9090", LogLevel: "debug"},
		Storage: StorageConfig{ServersDir: "/data/servers", AgentsDir: "/data/agents", ScansRoot: "/data/scans"},
		Security: ScanConfig{
			Enabled:               true,
			ScanOnRegistration:    true,
			BlockUnsafe:           true,
			AddSecurityPendingTag: true,
			ScanTimeoutSeconds:    60,
		},
		HealthCheckTimeoutSeconds: 5,
	}
	out, err := yaml.Marshal(&cfg)
	if err != nil {
		t.Fatalf("yaml.Marshal() error: %v", err)
	}
	text := string(out)
	for _, key := range []string{
		"http_addr", "log_level",
		"servers_dir", "agents_dir", "scans_root",
		"scan_on_registration", "block_unsafe", "add_security_pending_tag",
		"scan_timeout_seconds", "health_check_timeout_seconds",
	} {
		if !strings.Contains(text, key+":") {
			t.Errorf("marshaled config missing documented key %q:\n%s", key, text)
		}
	}

	var back Config
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("yaml.Unmarshal() error: %v", err)
	}
	if back.Storage.ServersDir != cfg.Storage.ServersDir {
		t.Errorf("round-trip ServersDir = %q, want %q", back.Storage.ServersDir, cfg.Storage.ServersDir)
	}
	if !back.Security.BlockUnsafe {
		t.Error("round-trip lost Security.BlockUnsafe")
	}
}
