package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validAnalyzers is the closed set of analyzer names the scanner
// subprocess recognizes.
var validAnalyzers = map[string]struct{}{
	"yara":      {},
	"spec":      {},
	"llm":       {},
	"heuristic": {},
	"endpoint":  {},
}

// RegisterCustomValidators registers gatereg-specific validation
// rules. Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("analyzer_list", validateAnalyzerList); err != nil {
		return fmt.Errorf("failed to register analyzer_list validator: %w", err)
	}
	return nil
}

// validateAnalyzerList validates a comma-separated analyzer list
// against the closed set of recognized analyzer names.
func validateAnalyzerList(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true
	}
	for _, name := range strings.Split(raw, ",") {
		if _, ok := validAnalyzers[strings.TrimSpace(name)]; !ok {
			return false
		}
	}
	return true
}

// Validate validates the Config using struct tags and custom
// cross-field rules. Returns an error with actionable messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateAnalyzers(); err != nil {
		return err
	}

	if err := c.validateEmbeddingsCredentials(); err != nil {
		return err
	}

	return nil
}

func (c *Config) validateAnalyzers() error {
	if err := checkAnalyzerList("security.analyzers", c.Security.Analyzers); err != nil {
		return err
	}
	return checkAnalyzerList("agent_security.analyzers", c.AgentSecurity.Analyzers)
}

func checkAnalyzerList(field, raw string) error {
	if raw == "" {
		return nil
	}
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if _, ok := validAnalyzers[name]; !ok {
			return fmt.Errorf("%s: unrecognized analyzer %q (valid: yara, spec, llm, heuristic, endpoint)", field, name)
		}
	}
	return nil
}

// validateEmbeddingsCredentials ensures the remote-llm backend has the
// credentials it needs, unless dev mode relaxes the requirement.
func (c *Config) validateEmbeddingsCredentials() error {
	if c.DevMode || c.Embeddings.Provider != "remote-llm" {
		return nil
	}
	if c.Embeddings.Backend == "bedrock" {
		if c.Embeddings.AWSRegion == "" {
			return errors.New("embeddings.aws_region is required when embeddings.backend is \"bedrock\"")
		}
		return nil
	}
	if c.Embeddings.APIKey == "" {
		return errors.New("embeddings.api_key is required when embeddings.provider is \"remote-llm\"")
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a
// single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "analyzer_list":
		return fmt.Sprintf("%s must be a comma-separated list of: yara, spec, llm, heuristic, endpoint", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
