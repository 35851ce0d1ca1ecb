package service

import (
	"encoding/json"
	"fmt"

	"github.com/gatereg/registry/internal/domain/registry"
)

// marshalHeaders serializes a server's headers map to JSON for the
// scanner runner, which extracts the bearer token from it.
func marshalHeaders(headers map[string]string) (string, error) {
	if len(headers) == 0 {
		return "", nil
	}
	data, err := json.Marshal(headers)
	if err != nil {
		return "", fmt.Errorf("marshal headers: %w", err)
	}
	return string(data), nil
}

// marshalAgentCard serializes an agent to the JSON the scanner runner
// writes to a temp file as its scan target.
func marshalAgentCard(a *registry.Agent) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal agent card: %w", err)
	}
	return data, nil
}
