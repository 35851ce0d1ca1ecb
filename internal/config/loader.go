// Package config provides configuration loading for gatereg.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and
// environment variables. If configFile is empty, it searches for
// gatereg.yaml/.yml in standard locations. The search requires an
// explicit YAML extension to avoid matching the binary itself, which
// Viper's built-in SetConfigName would match (same base name, no
// extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("gatereg")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: GATEREG_SERVER_HTTP_ADDR
	viper.SetEnvPrefix("GATEREG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a gatereg config file
// with an explicit YAML extension (.yaml or .yml). This prevents Viper
// from matching the binary "gatereg" (no extension) in the current
// directory.
func findConfigFile() string {
	home := homeDir()
	paths := []string{
		".",
		filepath.Join(home, ".gatereg"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "gatereg"))
		}
	} else {
		paths = append(paths, "/etc/gatereg")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for
// gatereg.yaml or .yml. Returns the full path of the first match, or
// empty string if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "gatereg"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds all gatereg config keys for environment
// variable support. Example: GATEREG_SERVER_HTTP_ADDR overrides
// server.http_addr.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.http_addr")
	_ = viper.BindEnv("server.log_level")
	_ = viper.BindEnv("server.metrics_addr")

	_ = viper.BindEnv("storage.servers_dir")
	_ = viper.BindEnv("storage.agents_dir")
	_ = viper.BindEnv("storage.scans_root")

	_ = viper.BindEnv("embeddings.provider")
	_ = viper.BindEnv("embeddings.model_name")
	_ = viper.BindEnv("embeddings.model_dimensions")
	_ = viper.BindEnv("embeddings.api_key")
	_ = viper.BindEnv("embeddings.api_base")
	_ = viper.BindEnv("embeddings.aws_region")
	_ = viper.BindEnv("embeddings.backend")

	_ = viper.BindEnv("health_check_timeout_seconds")

	_ = viper.BindEnv("security.enabled")
	_ = viper.BindEnv("security.scan_on_registration")
	_ = viper.BindEnv("security.block_unsafe")
	_ = viper.BindEnv("security.analyzers")
	_ = viper.BindEnv("security.scan_timeout_seconds")
	_ = viper.BindEnv("security.llm_api_key")
	_ = viper.BindEnv("security.add_security_pending_tag")
	_ = viper.BindEnv("security.max_concurrency")
	_ = viper.BindEnv("security.per_requester_rate_per_minute")

	_ = viper.BindEnv("agent_security.enabled")
	_ = viper.BindEnv("agent_security.scan_on_registration")
	_ = viper.BindEnv("agent_security.block_unsafe")
	_ = viper.BindEnv("agent_security.analyzers")
	_ = viper.BindEnv("agent_security.scan_timeout_seconds")
	_ = viper.BindEnv("agent_security.llm_api_key")
	_ = viper.BindEnv("agent_security.add_security_pending_tag")
	_ = viper.BindEnv("agent_security.max_concurrency")
	_ = viper.BindEnv("agent_security.per_requester_rate_per_minute")

	_ = viper.BindEnv("session.timeout_seconds")
	_ = viper.BindEnv("session.cookie_name")

	_ = viper.BindEnv("tracing.enabled")
	_ = viper.BindEnv("tracing.service_name")

	_ = viper.BindEnv("scanner_binary_path")
	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment
// overrides, sets defaults, and returns the Config. Callers that want
// to apply CLI flag overrides (e.g. --dev) before validation should
// use LoadConfigRaw instead.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but
// does NOT apply dev defaults or validate. Used by the reset command
// to discover storage paths without requiring full validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or "" if none was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
