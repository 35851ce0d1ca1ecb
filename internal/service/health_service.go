package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gatereg/registry/internal/domain/registry"
)

// HealthStatus is the normalized health value the control API exposes
// for an agent, independent of whatever string the external prober
// happens to report.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthDisabled  HealthStatus = "disabled"
	HealthUnknown   HealthStatus = "unknown"
)

// NormalizeHealth maps a prober's raw status string to the closed
// HealthStatus set.
func NormalizeHealth(raw string) HealthStatus {
	switch {
	case raw == "healthy" || raw == "healthy-auth-expired":
		return HealthHealthy
	case strings.HasPrefix(raw, "unhealthy") || strings.HasPrefix(raw, "error"):
		return HealthUnhealthy
	case raw == "disabled":
		return HealthDisabled
	case raw == "checking" || raw == "":
		return HealthUnknown
	default:
		return HealthUnknown
	}
}

// HealthService probes an agent's well-known ping endpoint. It never
// returns an error for probe failures: those are reported as
// HealthUnhealthy, matching the "never raise" contract.
type HealthService struct {
	client  *http.Client
	timeout time.Duration
}

func NewHealthService(timeout time.Duration) *HealthService {
	return &HealthService{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Check probes agent.URL + "/ping" and classifies the result. A
// disabled agent is rejected without making a network call.
func (h *HealthService) Check(ctx context.Context, agent *registry.Agent, enabled bool) HealthStatus {
	if !enabled {
		return HealthDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(agent.URL, "/")+"/ping", nil)
	if err != nil {
		return HealthUnhealthy
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return HealthUnhealthy
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		return HealthHealthy
	}
	return HealthUnhealthy
}
