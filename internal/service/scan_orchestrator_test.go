package service

import (
	"context"
	"testing"
	"time"

	"github.com/gatereg/registry/internal/domain/ratelimit"
	"github.com/gatereg/registry/internal/domain/registry"
	"github.com/gatereg/registry/internal/domain/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeRunner struct {
	out scan.RawScanOutput
	raw string
	err error
}

func (f *fakeRunner) Run(_ context.Context, _ scan.RunRequest) (scan.RawScanOutput, string, error) {
	return f.out, f.raw, f.err
}

type fakeArchive struct {
	writes []*scan.Result

	// done, if set, is closed after Write records a result. Used by
	// tests that need to know a detached scan goroutine has reached
	// its last side effect before asserting on goroutine state.
	done chan struct{}
}

func (f *fakeArchive) Write(_ string, _ bool, result *scan.Result, _ time.Time) (string, error) {
	f.writes = append(f.writes, result)
	if f.done != nil {
		close(f.done)
	}
	return "archived.json", nil
}

func (f *fakeArchive) Latest(_ string, _ bool) (*scan.Result, error) {
	if len(f.writes) == 0 {
		return nil, registry.ErrNoScan
	}
	return f.writes[len(f.writes)-1], nil
}

func criticalFinding() scan.RawScanOutput {
	return scan.RawScanOutput{
		AnalysisResults: map[string]scan.AnalyzerResult{
			"yara": {Findings: []scan.Finding{
				{Severity: scan.SeverityCritical, ThreatSummary: "bad", Analyzer: "yara"},
			}},
		},
	}
}

func TestOrchestrator_UnsafeVerdictDisablesServer(t *testing.T) {
	store := newFakeServerStore()
	idx := newFakeIndex()
	archive := &fakeArchive{}
	runner := &fakeRunner{out: criticalFinding()}

	srv := &registry.Server{Path: "/echo", Name: "Echo", ProxyURL: "http://localhost:9000"}
	require.NoError(t, store.Put(context.Background(), srv))
	st := registry.EnableState{Enabled: []string{"/echo"}}
	require.NoError(t, store.SaveState(context.Background(), &st))

	cfg := OrchestratorConfig{
		Server: KindScanConfig{
			Enabled:               true,
			BlockUnsafe:           true,
			AddSecurityPendingTag: true,
			Analyzers:             []string{"yara"},
		},
		PerRequesterRate: ratelimit.RateLimitConfig{Rate: 100, Burst: 100, Period: time.Minute},
	}
	orch := NewOrchestrator(cfg, runner, archive, store, nil, idx, nil, discardLogger())

	result, err := orch.ScanServer(context.Background(), "/echo", "alice")
	require.NoError(t, err)
	assert.False(t, result.IsSafe)
	assert.Equal(t, 1, result.CriticalIssues)

	got, found, _ := store.Get(context.Background(), "/echo")
	require.True(t, found)
	assert.Contains(t, got.Tags, "security-pending")

	newState, _ := store.State(context.Background())
	assert.False(t, newState.IsEnabled("/echo"))
	assert.True(t, idx.enabled["/echo"] == false)
}

func TestOrchestrator_SafeScanLeavesEntityEnabled(t *testing.T) {
	store := newFakeServerStore()
	archive := &fakeArchive{}
	runner := &fakeRunner{out: scan.RawScanOutput{}}

	srv := &registry.Server{Path: "/echo", Name: "Echo", ProxyURL: "http://localhost:9000"}
	require.NoError(t, store.Put(context.Background(), srv))
	st := registry.EnableState{Enabled: []string{"/echo"}}
	require.NoError(t, store.SaveState(context.Background(), &st))

	cfg := OrchestratorConfig{
		Server: KindScanConfig{Enabled: true, BlockUnsafe: true, Analyzers: []string{"yara"}},
	}
	orch := NewOrchestrator(cfg, runner, archive, store, nil, nil, nil, discardLogger())

	result, err := orch.ScanServer(context.Background(), "/echo", "alice")
	require.NoError(t, err)
	assert.True(t, result.IsSafe)

	newState, _ := store.State(context.Background())
	assert.True(t, newState.IsEnabled("/echo"))
}

func TestOrchestrator_ScannerFailureFailsClosed(t *testing.T) {
	store := newFakeServerStore()
	archive := &fakeArchive{}
	runner := &fakeRunner{err: assertError("boom")}

	srv := &registry.Server{Path: "/echo", Name: "Echo", ProxyURL: "http://localhost:9000"}
	require.NoError(t, store.Put(context.Background(), srv))

	cfg := OrchestratorConfig{Server: KindScanConfig{Enabled: true, Analyzers: []string{"yara"}}}
	orch := NewOrchestrator(cfg, runner, archive, store, nil, nil, nil, discardLogger())

	result, err := orch.ScanServer(context.Background(), "/echo", "alice")
	require.NoError(t, err)
	assert.False(t, result.IsSafe)
	assert.True(t, result.ScanFailed)
	assert.Equal(t, 1, result.CriticalIssues)
}

type assertError string

func (e assertError) Error() string { return string(e) }

// TestOrchestrator_ScanServerAsyncGoroutineDoesNotLeak exercises the
// only detached-goroutine code in the tree: ScanServerAsync fires a
// scan on its own goroutine and returns immediately. The fake archive's Write
// closes a channel at the goroutine's last side effect so the test
// can wait for it to actually finish before asserting no goroutine
// was left running.
func TestOrchestrator_ScanServerAsyncGoroutineDoesNotLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := newFakeServerStore()
	idx := newFakeIndex()
	done := make(chan struct{})
	archive := &fakeArchive{done: done}
	runner := &fakeRunner{out: criticalFinding()}

	srv := &registry.Server{Path: "/echo", Name: "Echo", ProxyURL: "http://localhost:9000"}
	require.NoError(t, store.Put(context.Background(), srv))
	st := registry.EnableState{Enabled: []string{"/echo"}}
	require.NoError(t, store.SaveState(context.Background(), &st))

	cfg := OrchestratorConfig{
		Server: KindScanConfig{Enabled: true, BlockUnsafe: true, Analyzers: []string{"yara"}},
	}
	orch := NewOrchestrator(cfg, runner, archive, store, nil, idx, nil, discardLogger())

	orch.ScanServerAsync("/echo", "alice")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async server scan did not complete in time")
	}
}

// TestOrchestrator_ScanAgentAsyncGoroutineDoesNotLeak is
// ScanServerAsync's goroutine-leak test, agent-kind counterpart.
func TestOrchestrator_ScanAgentAsyncGoroutineDoesNotLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	agents := newFakeAgentStore()
	done := make(chan struct{})
	archive := &fakeArchive{done: done}
	runner := &fakeRunner{out: criticalFinding()}

	agent := &registry.Agent{Path: "/echo-agent", Name: "Echo Agent", URL: "http://localhost:9001"}
	require.NoError(t, agents.Put(context.Background(), agent))
	st := registry.EnableState{Enabled: []string{"/echo-agent"}}
	require.NoError(t, agents.SaveState(context.Background(), &st))

	cfg := OrchestratorConfig{
		Agent: KindScanConfig{Enabled: true, BlockUnsafe: true, Analyzers: []string{"yara", "spec"}},
	}
	orch := NewOrchestrator(cfg, runner, archive, nil, agents, nil, nil, discardLogger())

	orch.ScanAgentAsync("/echo-agent", "alice")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async agent scan did not complete in time")
	}
}
