// Package scan contains the domain types shared by the scanner runner,
// scan orchestrator, and scan archive: findings, severities, and the
// normalized scan result record.
package scan

import (
	"sort"
	"time"
)

// Severity is the closed set of finding severities. SAFE findings
// exist but never contribute to the unsafe verdict.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeveritySafe     Severity = "SAFE"
)

// Finding is a single issue reported by an analyzer.
type Finding struct {
	Severity      Severity `json:"severity"`
	ThreatNames   []string `json:"threat_names"`
	ThreatSummary string   `json:"threat_summary"`
	IsSafe        bool     `json:"is_safe"`

	// ToolName is set for server scans, SkillName for agent scans; the
	// two kinds share this Finding shape rather than diverging (the
	// agent-specific field comes from the original agent_security
	// schema's per-finding skill annotation).
	ToolName  *string `json:"tool_name,omitempty"`
	SkillName *string `json:"skill_name,omitempty"`

	Analyzer string `json:"analyzer"`
}

// AnalyzerResult is one analyzer's findings within a scan.
type AnalyzerResult struct {
	Findings []Finding `json:"findings"`
}

// RawScanOutput is the normalized shape the scanner runner parses
// scanner stdout into, keyed by analyzer name.
type RawScanOutput struct {
	AnalysisResults map[string]AnalyzerResult `json:"analysis_results"`
}

// Result is the persisted scan result record.
type Result struct {
	Path           string    `json:"path"`
	URL            string    `json:"url,omitempty"`
	ScanTimestamp  time.Time `json:"scan_timestamp"`
	IsSafe         bool      `json:"is_safe"`
	CriticalIssues int       `json:"critical_issues"`
	HighSeverity   int       `json:"high_severity"`
	MediumSeverity int       `json:"medium_severity"`
	LowSeverity    int       `json:"low_severity"`
	AnalyzersUsed  []string  `json:"analyzers_used"`
	RawOutput      string    `json:"raw_output"`
	OutputFile     string    `json:"output_file,omitempty"`
	ScanFailed     bool      `json:"scan_failed"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// CountSeverities tallies findings across every analyzer in out and
// returns the four counters the scan result persists. SAFE findings
// are not counted.
func CountSeverities(out RawScanOutput) (critical, high, medium, low int) {
	for _, ar := range out.AnalysisResults {
		for _, f := range ar.Findings {
			switch f.Severity {
			case SeverityCritical:
				critical++
			case SeverityHigh:
				high++
			case SeverityMedium:
				medium++
			case SeverityLow:
				low++
			}
		}
	}
	return
}

// AnalyzerNames returns the sorted analyzer keys present in out, for
// the result's AnalyzersUsed field.
func AnalyzerNames(out RawScanOutput) []string {
	names := make([]string, 0, len(out.AnalysisResults))
	for name := range out.AnalysisResults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
