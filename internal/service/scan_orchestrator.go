// Package service implements the core use cases (registry mutation,
// scan orchestration, hybrid search, catalog projection) on top of the
// domain ports, wiring outbound adapters together the way the control
// API needs them.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/gatereg/registry/internal/domain/ratelimit"
	"github.com/gatereg/registry/internal/domain/registry"
	"github.com/gatereg/registry/internal/domain/scan"
	"github.com/gatereg/registry/internal/domain/searchtext"
	"github.com/gatereg/registry/internal/domain/vectorindex"
	"github.com/gatereg/registry/internal/tracing"
)

// KindScanConfig holds the C6-enumerated options for one entity kind.
type KindScanConfig struct {
	Enabled               bool
	ScanOnRegistration    bool
	BlockUnsafe           bool
	Analyzers             []string
	ScanTimeoutSeconds    int
	LLMAPIKey             string
	AddSecurityPendingTag bool
}

func (c KindScanConfig) timeout() time.Duration {
	if c.ScanTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.ScanTimeoutSeconds) * time.Second
}

func (c KindScanConfig) extraEnv() map[string]string {
	if c.LLMAPIKey == "" {
		return nil
	}
	return map[string]string{"LLM_API_KEY": c.LLMAPIKey}
}

// OrchestratorConfig configures the scan orchestrator.
type OrchestratorConfig struct {
	Server KindScanConfig
	Agent  KindScanConfig

	// MaxConcurrency bounds simultaneous scanner subprocesses; 0 uses
	// the recommended default of 4.
	MaxConcurrency int

	// PerRequesterRate throttles how often a single requester may
	// trigger scans, so one tenant cannot starve the others.
	PerRequesterRate ratelimit.RateLimitConfig
}

func (c OrchestratorConfig) maxConcurrency() int {
	if c.MaxConcurrency <= 0 {
		return 4
	}
	return c.MaxConcurrency
}

// Orchestrator is the C6 Scan Orchestrator: it invokes the scanner
// (C5), archives results (C4), and applies verdicts to the registry
// store and vector index (C3/C7).
type Orchestrator struct {
	cfg OrchestratorConfig

	runner  scan.Runner
	archive scan.Archive
	servers registry.ServerStore
	agents  registry.AgentStore
	index   vectorindex.Index
	limiter ratelimit.RateLimiter

	sem    chan struct{}
	logger *slog.Logger
}

// NewOrchestrator wires the scan orchestrator's collaborators.
func NewOrchestrator(
	cfg OrchestratorConfig,
	runner scan.Runner,
	archive scan.Archive,
	servers registry.ServerStore,
	agents registry.AgentStore,
	index vectorindex.Index,
	limiter ratelimit.RateLimiter,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		runner:  runner,
		archive: archive,
		servers: servers,
		agents:  agents,
		index:   index,
		limiter: limiter,
		sem:     make(chan struct{}, cfg.maxConcurrency()),
		logger:  logger,
	}
}

// admit enforces the per-requester fairness quota and the global
// concurrency cap, in that order, returning a release function.
func (o *Orchestrator) admit(ctx context.Context, requester string) (func(), error) {
	if o.limiter != nil && requester != "" {
		key := ratelimit.FormatKey("scan:" + requester)
		res, err := o.limiter.Allow(ctx, key, o.cfg.PerRequesterRate)
		if err != nil {
			return nil, fmt.Errorf("scan fairness check: %w", err)
		}
		if !res.Allowed {
			return nil, fmt.Errorf("scan quota exceeded for requester %q, retry after %s", requester, res.RetryAfter)
		}
	}

	select {
	case o.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return func() { <-o.sem }, nil
}

// ScanServerAsync runs a server scan in a detached goroutine, isolated
// from the request pipeline. Errors are logged, never
// propagated — the caller polls security_scan for the verdict.
func (o *Orchestrator) ScanServerAsync(path, requester string) {
	go func() {
		ctx := context.Background()
		if _, err := o.ScanServer(ctx, path, requester); err != nil {
			o.logger.Error("async server scan failed", "path", path, "error", err)
		}
	}()
}

// ScanAgentAsync is ScanServerAsync's agent-kind counterpart.
func (o *Orchestrator) ScanAgentAsync(path, requester string) {
	go func() {
		ctx := context.Background()
		if _, err := o.ScanAgent(ctx, path, requester); err != nil {
			o.logger.Error("async agent scan failed", "path", path, "error", err)
		}
	}()
}

// ScanServer runs a synchronous server scan: invoke C5, archive (C4),
// apply verdict to C3/C7. Used both by rescan_server and by the async
// helpers above.
func (o *Orchestrator) ScanServer(ctx context.Context, path, requester string) (*scan.Result, error) {
	if !o.cfg.Server.Enabled {
		return nil, fmt.Errorf("server scanning disabled")
	}

	release, err := o.admit(ctx, requester)
	if err != nil {
		return nil, err
	}
	defer release()

	srv, ok, err := o.servers.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load server: %w", err)
	}
	if !ok {
		return nil, registry.ErrNotFound
	}

	headersJSON, err := marshalHeaders(srv.Headers)
	if err != nil {
		return nil, err
	}

	req := scan.RunRequest{
		ProxyURL:    srv.ProxyURL,
		HeadersJSON: headersJSON,
		Analyzers:   o.cfg.Server.Analyzers,
		Timeout:     o.cfg.Server.timeout(),
		ExtraEnv:    o.cfg.Server.extraEnv(),
	}

	result := o.runScanner(ctx, path, req, o.cfg.Server)

	if _, err := o.archive.Write(path, false, result, time.Now()); err != nil {
		return result, fmt.Errorf("archive server scan: %w", err)
	}

	if !result.IsSafe {
		if err := o.applyServerVerdict(ctx, srv); err != nil {
			return result, err
		}
	}

	return result, nil
}

// ScanAgent is ScanServer's agent-kind counterpart: the scanner is
// invoked with the agent card serialized to a temp file rather than a
// proxy URL.
func (o *Orchestrator) ScanAgent(ctx context.Context, path, requester string) (*scan.Result, error) {
	if !o.cfg.Agent.Enabled {
		return nil, fmt.Errorf("agent scanning disabled")
	}

	release, err := o.admit(ctx, requester)
	if err != nil {
		return nil, err
	}
	defer release()

	agent, ok, err := o.agents.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load agent: %w", err)
	}
	if !ok {
		return nil, registry.ErrNotFound
	}

	cardJSON, err := marshalAgentCard(agent)
	if err != nil {
		return nil, err
	}

	req := scan.RunRequest{
		IsAgent:       true,
		AgentCardJSON: cardJSON,
		Analyzers:     o.cfg.Agent.Analyzers,
		Timeout:       o.cfg.Agent.timeout(),
		ExtraEnv:      o.cfg.Agent.extraEnv(),
	}

	result := o.runScanner(ctx, path, req, o.cfg.Agent)

	if _, err := o.archive.Write(path, true, result, time.Now()); err != nil {
		return result, fmt.Errorf("archive agent scan: %w", err)
	}

	if !result.IsSafe {
		if err := o.applyAgentVerdict(ctx, agent); err != nil {
			return result, err
		}
	}

	return result, nil
}

// runScanner invokes the scanner and normalizes both success and
// failure into a scan.Result; a scanner failure fails closed (unsafe).
func (o *Orchestrator) runScanner(ctx context.Context, path string, req scan.RunRequest, kindCfg KindScanConfig) *scan.Result {
	ctx, span := tracing.Tracer().Start(ctx, "scan.runner.Run")
	span.SetAttributes(
		attribute.String("gatereg.entity.path", path),
		attribute.StringSlice("gatereg.scan.analyzers", req.Analyzers),
	)
	defer span.End()

	out, raw, err := o.runner.Run(ctx, req)
	at := time.Now().UTC()

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error("scanner invocation failed, treating as unsafe", "path", path, "error", err)
		return &scan.Result{
			Path:           path,
			ScanTimestamp:  at,
			IsSafe:         false,
			CriticalIssues: 1,
			AnalyzersUsed:  kindCfg.Analyzers,
			RawOutput:      raw,
			ScanFailed:     true,
			ErrorMessage:   err.Error(),
		}
	}

	critical, high, medium, low := scan.CountSeverities(out)
	span.SetAttributes(attribute.Bool("gatereg.scan.safe", critical == 0 && high == 0))
	return &scan.Result{
		Path:           path,
		ScanTimestamp:  at,
		IsSafe:         critical == 0 && high == 0,
		CriticalIssues: critical,
		HighSeverity:   high,
		MediumSeverity: medium,
		LowSeverity:    low,
		AnalyzersUsed:  scan.AnalyzerNames(out),
		RawOutput:      raw,
	}
}

const securityPendingTag = "security-pending"

func addTagIdempotent(tags []string) []string {
	for _, t := range tags {
		if t == securityPendingTag {
			return tags
		}
	}
	return append(tags, securityPendingTag)
}

func (o *Orchestrator) applyServerVerdict(ctx context.Context, srv *registry.Server) error {
	if o.cfg.Server.AddSecurityPendingTag {
		srv.Tags = addTagIdempotent(srv.Tags)
	}
	srv.UpdatedAt = time.Now()
	if err := o.servers.Put(ctx, srv); err != nil {
		return fmt.Errorf("persist server verdict: %w", err)
	}

	if !o.cfg.Server.BlockUnsafe {
		return nil
	}

	st, err := o.servers.State(ctx)
	if err != nil {
		return fmt.Errorf("load server state: %w", err)
	}
	st.Toggle(srv.Path, false)
	if err := o.servers.SaveState(ctx, st); err != nil {
		return fmt.Errorf("persist server state: %w", err)
	}

	if o.index != nil {
		snapshot, err := searchtext.ServerSnapshot(srv)
		if err != nil {
			return err
		}
		text := searchtext.ServerText(srv)
		if err := o.index.Upsert(ctx, srv.Path, vectorindex.EntityServer, text, snapshot, false); err != nil {
			return fmt.Errorf("reindex disabled server: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) applyAgentVerdict(ctx context.Context, agent *registry.Agent) error {
	if o.cfg.Agent.AddSecurityPendingTag {
		agent.Tags = addTagIdempotent(agent.Tags)
	}
	agent.UpdatedAt = time.Now()
	if err := o.agents.Put(ctx, agent); err != nil {
		return fmt.Errorf("persist agent verdict: %w", err)
	}

	if !o.cfg.Agent.BlockUnsafe {
		return nil
	}

	st, err := o.agents.State(ctx)
	if err != nil {
		return fmt.Errorf("load agent state: %w", err)
	}
	st.Toggle(agent.Path, false)
	if err := o.agents.SaveState(ctx, st); err != nil {
		return fmt.Errorf("persist agent state: %w", err)
	}

	if o.index != nil {
		snapshot, err := searchtext.AgentSnapshot(agent)
		if err != nil {
			return err
		}
		text := searchtext.AgentText(agent)
		if err := o.index.Upsert(ctx, agent.Path, vectorindex.EntityAgent, text, snapshot, false); err != nil {
			return fmt.Errorf("reindex disabled agent: %w", err)
		}
	}
	return nil
}
