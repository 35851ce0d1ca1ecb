package scanarchive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gatereg/registry/internal/domain/registry"
	"github.com/gatereg/registry/internal/domain/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafePath(t *testing.T) {
	assert.Equal(t, "weather", safePath("/weather", false))
	assert.Equal(t, "a_b", safePath("/a/b", false))
	assert.Equal(t, "myserver", safePath("/localhost_myserver", false))
	assert.Equal(t, "localhost_myserver", safePath("/localhost_myserver", true))
}

func TestFileArchive_WriteThenLatest(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)

	result := &scan.Result{Path: "/weather", IsSafe: true, AnalyzersUsed: []string{"yara"}}
	at := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	archivePath, err := a.Write("/weather", false, result, at)
	require.NoError(t, err)
	assert.FileExists(t, archivePath)
	assert.Contains(t, archivePath, "2026-07-31")
	assert.Contains(t, filepath.Base(archivePath), "scan_weather_20260731_120000.json")

	latest, err := a.Latest("/weather", false)
	require.NoError(t, err)
	assert.True(t, latest.IsSafe)
	assert.Equal(t, "/weather", latest.Path)
}

func TestFileArchive_Latest_NoScanYet(t *testing.T) {
	a := New(t.TempDir())
	_, err := a.Latest("/never-scanned", false)
	assert.ErrorIs(t, err, registry.ErrNoScan)
}

func TestFileArchive_Latest_OverwrittenByNewerScan(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)

	first := &scan.Result{Path: "/weather", IsSafe: true}
	_, err := a.Write("/weather", false, first, time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	second := &scan.Result{Path: "/weather", IsSafe: false, CriticalIssues: 2}
	_, err = a.Write("/weather", false, second, time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	latest, err := a.Latest("/weather", false)
	require.NoError(t, err)
	assert.False(t, latest.IsSafe)
	assert.Equal(t, 2, latest.CriticalIssues)

	entries, err := os.ReadDir(filepath.Join(dir, "security_scans"))
	require.NoError(t, err)
	var dateDirs int
	for _, e := range entries {
		if e.IsDir() {
			dateDirs++
		}
	}
	assert.Equal(t, 2, dateDirs)
}

func TestFileArchive_AgentKind_SeparateDirectory(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)

	result := &scan.Result{Path: "/my-agent", IsSafe: true}
	_, err := a.Write("/my-agent", true, result, time.Now())
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(dir, "agent_security_scans"))
	_, err = a.Latest("/my-agent", true)
	require.NoError(t, err)
	_, err = a.Latest("/my-agent", false)
	assert.ErrorIs(t, err, registry.ErrNoScan)
}
