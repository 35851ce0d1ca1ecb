// Package scanarchive implements the two-tier on-disk scan result
// layout: a dated archive copy per scan plus a latest pointer file per
// entity, grounded on the same atomic-write discipline as filestore.
package scanarchive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gatereg/registry/internal/domain/registry"
	"github.com/gatereg/registry/internal/domain/scan"
)

// FileArchive is a scan.Archive backed by the local filesystem.
type FileArchive struct {
	root string
}

// New creates a FileArchive rooted at root. root's *_security_scans
// subdirectories are created lazily on first write.
func New(root string) *FileArchive {
	return &FileArchive{root: root}
}

func kindDir(isAgent bool) string {
	if isAgent {
		return "agent_security_scans"
	}
	return "security_scans"
}

// safePath collapses a path to a filesystem-safe token: slashes become
// underscores, leading/trailing underscores are stripped, and servers
// additionally drop a leading "localhost_".
func safePath(path string, isAgent bool) string {
	s := strings.Trim(strings.ReplaceAll(path, "/", "_"), "_")
	if !isAgent {
		s = strings.TrimPrefix(s, "localhost_")
	}
	if s == "" {
		s = "root"
	}
	return s
}

// Write stores result as both the dated archive copy and the latest
// pointer, in that order — a crash between the two leaves the dated
// copy written and the latest pointer still holding the previous scan
// (or absent for a first scan).
func (a *FileArchive) Write(path string, isAgent bool, result *scan.Result, at time.Time) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal scan result: %w", err)
	}
	data = append(data, '\n')

	safe := safePath(registry.NormalizePath(path), isAgent)
	base := filepath.Join(a.root, kindDir(isAgent))

	datedDir := filepath.Join(base, at.Format("2006-01-02"))
	if err := os.MkdirAll(datedDir, 0o700); err != nil {
		return "", fmt.Errorf("create dated archive dir: %w", err)
	}
	datedFile := filepath.Join(datedDir, fmt.Sprintf("scan_%s_%s.json", safe, at.Format("20060102_150405")))
	if err := writeFile(datedFile, data); err != nil {
		return "", fmt.Errorf("write archive copy: %w", err)
	}

	latestFile := filepath.Join(base, safe+".json")
	if err := writeFile(latestFile, data); err != nil {
		return datedFile, fmt.Errorf("write latest pointer: %w", err)
	}

	return datedFile, nil
}

// Latest returns the most recently archived result for path, or
// registry.ErrNoScan if none exists.
func (a *FileArchive) Latest(path string, isAgent bool) (*scan.Result, error) {
	safe := safePath(registry.NormalizePath(path), isAgent)
	latestFile := filepath.Join(a.root, kindDir(isAgent), safe+".json")

	data, err := os.ReadFile(latestFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, registry.ErrNoScan
		}
		return nil, fmt.Errorf("read latest scan: %w", err)
	}

	var result scan.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse latest scan: %w", err)
	}
	return &result, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
