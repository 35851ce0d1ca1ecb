// Package scanner invokes an external security-scanner binary as a
// subprocess, enforcing a timeout and normalizing its stdout into the
// scan domain's structured findings.
package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/gatereg/registry/internal/domain/registry"
	"github.com/gatereg/registry/internal/domain/scan"
)

// Runner invokes the configured scanner binary. It implements
// scan.Runner.
type Runner struct {
	binaryPath string
}

// New creates a Runner that invokes binaryPath.
func New(binaryPath string) *Runner {
	return &Runner{binaryPath: binaryPath}
}

var _ scan.Runner = (*Runner)(nil)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// jsonStart matches the first line beginning with '{' or '[', after
// optional leading whitespace.
var jsonStart = regexp.MustCompile(`(?m)^\s*[\{\[]`)

// Run executes the scanner and returns its normalized output plus the
// raw (ANSI-stripped) stdout for archival. A non-zero exit status is
// not itself an error if valid JSON was still produced; failure to
// locate or parse JSON is.
func (r *Runner) Run(ctx context.Context, req scan.RunRequest) (scan.RawScanOutput, string, error) {
	bearer, err := extractBearerToken(req.HeadersJSON)
	if err != nil {
		return scan.RawScanOutput{}, "", fmt.Errorf("%w: %s", registry.ErrInvalid, err)
	}

	var target string
	var cleanup func()
	if req.IsAgent {
		f, err := os.CreateTemp("", "agent-card-*.json")
		if err != nil {
			return scan.RawScanOutput{}, "", fmt.Errorf("create agent card temp file: %w", err)
		}
		if _, err := f.Write(req.AgentCardJSON); err != nil {
			_ = f.Close()
			return scan.RawScanOutput{}, "", fmt.Errorf("write agent card temp file: %w", err)
		}
		_ = f.Close()
		target = f.Name()
		cleanup = func() { _ = os.Remove(f.Name()) }
	} else {
		target = req.ProxyURL
		if !strings.HasSuffix(target, "/mcp") {
			target = strings.TrimSuffix(target, "/") + "/mcp"
		}
		cleanup = func() {}
	}
	defer cleanup()

	args := []string{"--analyzers", strings.Join(req.Analyzers, ",")}
	if bearer != "" {
		args = append(args, "--bearer-token", bearer)
	}
	args = append(args, target)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.binaryPath, args...)
	cmd.Env = os.Environ()
	for k, v := range req.ExtraEnv {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() != nil {
		_ = killProcessGroup(cmd)
		return scan.RawScanOutput{}, stdout.String(), fmt.Errorf("scanner timed out after %s: %w", timeout, context.DeadlineExceeded)
	}

	cleaned := ansiEscape.ReplaceAllString(stdout.String(), "")
	loc := jsonStart.FindStringIndex(cleaned)
	if loc == nil {
		if runErr != nil {
			return scan.RawScanOutput{}, cleaned, fmt.Errorf("scanner exited with error and produced no JSON: %w (stderr: %s)", runErr, stderr.String())
		}
		return scan.RawScanOutput{}, cleaned, errors.New("scanner produced no recognizable JSON output")
	}

	jsonText := strings.TrimLeft(cleaned[loc[0]:], " \t")

	out, err := organizeScanOutput([]byte(jsonText))
	if err != nil {
		return scan.RawScanOutput{}, cleaned, fmt.Errorf("parse scanner JSON output: %w", err)
	}
	return out, cleaned, nil
}

// organizeScanOutput converts raw scanner stdout JSON into the
// analysis_results-keyed shape the domain operates on. Real scanner
// output does not arrive pre-organized by analyzer: a server scan
// emits a top-level JSON array of per-tool results, each carrying its
// findings keyed by analyzer name; an agent scan emits a single JSON
// object with a flat "findings" array, each finding carrying its own
// analyzer name. Both are organized here, mirroring the original
// scanner wrapper's _organize_findings_by_analyzer (servers) and its
// inline per-finding grouping loop (agents). A scanner that already
// emits the normalized {"analysis_results": {...}} shape is accepted
// as-is.
func organizeScanOutput(jsonText []byte) (scan.RawScanOutput, error) {
	trimmed := bytes.TrimLeft(jsonText, " \t\r\n")
	if len(trimmed) == 0 {
		return scan.RawScanOutput{}, errors.New("empty scanner JSON output")
	}

	switch trimmed[0] {
	case '[':
		var toolResults []toolResultShape
		if err := json.Unmarshal(trimmed, &toolResults); err != nil {
			return scan.RawScanOutput{}, err
		}
		return organizeToolResults(toolResults), nil
	case '{':
		var normalized struct {
			AnalysisResults map[string]scan.AnalyzerResult `json:"analysis_results"`
		}
		if err := json.Unmarshal(trimmed, &normalized); err == nil && normalized.AnalysisResults != nil {
			return scan.RawScanOutput{AnalysisResults: normalized.AnalysisResults}, nil
		}
		var withFindings struct {
			Findings []scan.Finding `json:"findings"`
		}
		if err := json.Unmarshal(trimmed, &withFindings); err != nil {
			return scan.RawScanOutput{}, err
		}
		return organizeFindingsList(withFindings.Findings), nil
	default:
		return scan.RawScanOutput{}, fmt.Errorf("unrecognized scanner JSON output shape")
	}
}

// toolResultShape is one entry of a server scan's top-level JSON
// array: a tool, its overall safety, and its findings keyed by
// analyzer name.
type toolResultShape struct {
	ToolName string                     `json:"tool_name"`
	IsSafe   *bool                      `json:"is_safe"`
	Findings map[string]json.RawMessage `json:"findings"`
}

func organizeToolResults(results []toolResultShape) scan.RawScanOutput {
	out := scan.RawScanOutput{AnalysisResults: map[string]scan.AnalyzerResult{}}
	for _, tr := range results {
		isSafe := true
		if tr.IsSafe != nil {
			isSafe = *tr.IsSafe
		}
		toolName := tr.ToolName
		for analyzerName, raw := range tr.Findings {
			var af struct {
				Severity      scan.Severity `json:"severity"`
				ThreatNames   []string      `json:"threat_names"`
				ThreatSummary string        `json:"threat_summary"`
			}
			if err := json.Unmarshal(raw, &af); err != nil {
				continue
			}
			ar := out.AnalysisResults[analyzerName]
			ar.Findings = append(ar.Findings, scan.Finding{
				Severity:      af.Severity,
				ThreatNames:   af.ThreatNames,
				ThreatSummary: af.ThreatSummary,
				IsSafe:        isSafe,
				ToolName:      &toolName,
				Analyzer:      analyzerName,
			})
			out.AnalysisResults[analyzerName] = ar
		}
	}
	return out
}

// organizeFindingsList groups a flat agent-scan findings list by each
// finding's own analyzer name.
func organizeFindingsList(findings []scan.Finding) scan.RawScanOutput {
	out := scan.RawScanOutput{AnalysisResults: map[string]scan.AnalyzerResult{}}
	for _, f := range findings {
		analyzerName := f.Analyzer
		if analyzerName == "" {
			analyzerName = "unknown"
		}
		f.Analyzer = analyzerName
		ar := out.AnalysisResults[analyzerName]
		ar.Findings = append(ar.Findings, f)
		out.AnalysisResults[analyzerName] = ar
	}
	return out
}

// extractBearerToken parses headersJSON (a JSON object of header name
// to value) and returns the token from an X-Authorization header of
// the form "Bearer <token>", or "" if absent. An empty headersJSON is
// valid and yields no token.
func extractBearerToken(headersJSON string) (string, error) {
	if strings.TrimSpace(headersJSON) == "" {
		return "", nil
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
		return "", fmt.Errorf("malformed headers JSON: %w", err)
	}
	for k, v := range headers {
		if strings.EqualFold(k, "X-Authorization") && strings.HasPrefix(v, "Bearer ") {
			return strings.TrimPrefix(v, "Bearer "), nil
		}
	}
	return "", nil
}
