package scanner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gatereg/registry/internal/domain/registry"
	"github.com/gatereg/registry/internal/domain/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFakeScanner(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake scanner script is a shell script")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-scanner.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestRunner_StripsANSIAndLocatesJSON(t *testing.T) {
	script := `printf '\033[32mscanning...\033[0m\n'
printf 'some log line\n'
printf '{"analysis_results":{"yara":{"findings":[{"severity":"LOW","threat_names":[],"threat_summary":"ok","is_safe":true,"analyzer":"yara"}]}}}\n'
`
	bin := writeFakeScanner(t, script)
	r := New(bin)

	out, raw, err := r.Run(context.Background(), scan.RunRequest{
		ProxyURL:  "http://example.com/svc",
		Analyzers: []string{"yara"},
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	assert.NotContains(t, raw, "\033[32m")
	require.Contains(t, out.AnalysisResults, "yara")
	assert.Len(t, out.AnalysisResults["yara"].Findings, 1)
}

func TestRunner_AppendsMCPSuffix(t *testing.T) {
	script := `echo "$@" > ` + "$(dirname $0)/args.txt" + `
echo '{"analysis_results":{}}'
`
	bin := writeFakeScanner(t, script)
	r := New(bin)

	_, _, err := r.Run(context.Background(), scan.RunRequest{
		ProxyURL:  "http://example.com/svc",
		Analyzers: []string{"yara"},
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(filepath.Dir(bin), "args.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "http://example.com/svc/mcp")
}

func TestRunner_ExtractsBearerToken(t *testing.T) {
	script := `echo "$@" > ` + "$(dirname $0)/args.txt" + `
echo '{"analysis_results":{}}'
`
	bin := writeFakeScanner(t, script)
	r := New(bin)

	_, _, err := r.Run(context.Background(), scan.RunRequest{
		ProxyURL:    "http://example.com/svc",
		HeadersJSON: `{"X-Authorization":"Bearer secret-token"}`,
		Analyzers:   []string{"yara"},
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(filepath.Dir(bin), "args.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "--bearer-token secret-token")
}

func TestRunner_MalformedHeadersJSON_IsInvalid(t *testing.T) {
	bin := writeFakeScanner(t, `echo '{"analysis_results":{}}'`)
	r := New(bin)

	_, _, err := r.Run(context.Background(), scan.RunRequest{
		ProxyURL:    "http://example.com/svc",
		HeadersJSON: `{not json`,
		Analyzers:   []string{"yara"},
		Timeout:     5 * time.Second,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrInvalid)
}

func TestRunner_Timeout(t *testing.T) {
	bin := writeFakeScanner(t, `sleep 5
echo '{"analysis_results":{}}'
`)
	r := New(bin)

	_, _, err := r.Run(context.Background(), scan.RunRequest{
		ProxyURL:  "http://example.com/svc",
		Analyzers: []string{"yara"},
		Timeout:   200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestRunner_NoJSONOutput(t *testing.T) {
	bin := writeFakeScanner(t, `echo 'just some text, no json here'`)
	r := New(bin)

	_, _, err := r.Run(context.Background(), scan.RunRequest{
		ProxyURL:  "http://example.com/svc",
		Analyzers: []string{"yara"},
		Timeout:   5 * time.Second,
	})
	require.Error(t, err)
}

func TestRunner_OrganizesServerArrayOutput(t *testing.T) {
	script := `echo '[{"tool_name":"resolve-library-id","is_safe":false,"findings":{"yara":{"severity":"CRITICAL","threat_names":["eval"],"threat_summary":"suspicious eval call"}}},{"tool_name":"query-docs","is_safe":true,"findings":{"yara":{"severity":"SAFE","threat_names":[],"threat_summary":""}}}]'
`
	bin := writeFakeScanner(t, script)
	r := New(bin)

	out, _, err := r.Run(context.Background(), scan.RunRequest{
		ProxyURL:  "http://example.com/svc",
		Analyzers: []string{"yara"},
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	require.Contains(t, out.AnalysisResults, "yara")
	assert.Len(t, out.AnalysisResults["yara"].Findings, 2)
	critical, high, _, _ := scan.CountSeverities(out)
	assert.Equal(t, 1, critical)
	assert.Equal(t, 0, high)
	require.NotNil(t, out.AnalysisResults["yara"].Findings[0].ToolName)
	assert.Equal(t, "resolve-library-id", *out.AnalysisResults["yara"].Findings[0].ToolName)
}

func TestRunner_OrganizesAgentFindingsListOutput(t *testing.T) {
	script := `echo '{"findings":[{"severity":"HIGH","threat_names":["prompt-injection"],"threat_summary":"unsafe skill","is_safe":false,"analyzer":"spec"},{"severity":"LOW","threat_names":[],"threat_summary":"minor","is_safe":true,"analyzer":"yara"}]}'
`
	bin := writeFakeScanner(t, script)
	r := New(bin)

	out, _, err := r.Run(context.Background(), scan.RunRequest{
		IsAgent:       true,
		AgentCardJSON: []byte(`{"name":"agent"}`),
		Analyzers:     []string{"yara", "spec"},
		Timeout:       5 * time.Second,
	})
	require.NoError(t, err)
	require.Contains(t, out.AnalysisResults, "spec")
	require.Contains(t, out.AnalysisResults, "yara")
	critical, high, _, low := scan.CountSeverities(out)
	assert.Equal(t, 0, critical)
	assert.Equal(t, 1, high)
	assert.Equal(t, 1, low)
}

func TestRunner_AgentCard_WritesTempFile(t *testing.T) {
	script := `cat "$3" > ` + "$(dirname $0)/card-seen.json" + `
echo '{"analysis_results":{}}'
`
	bin := writeFakeScanner(t, script)
	r := New(bin)

	card := []byte(`{"name":"my-agent"}`)
	_, _, err := r.Run(context.Background(), scan.RunRequest{
		IsAgent:       true,
		AgentCardJSON: card,
		Analyzers:     []string{"yara", "spec"},
		Timeout:       5 * time.Second,
	})
	require.NoError(t, err)

	seen, err := os.ReadFile(filepath.Join(filepath.Dir(bin), "card-seen.json"))
	require.NoError(t, err)
	assert.JSONEq(t, string(card), string(seen))
}
