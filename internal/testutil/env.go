// Package testutil provides utilities for testing sawmill in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// ScanEnv holds the isolated directories a scan environment points at.
type ScanEnv struct {
	EvtxRoot   string
	ReportsDir string
	SigmaDir   string
	MappingYML string
}

// SetupScanEnv creates isolated scan directories and points the scan
// environment variables at them, so config loading in tests never sees
// the real container paths. Cleanup is handled by t.TempDir and
// t.Setenv.
func SetupScanEnv(t *testing.T) ScanEnv {
	t.Helper()

	tmpDir := t.TempDir()
	env := ScanEnv{
		EvtxRoot:   filepath.Join(tmpDir, "evtx"),
		ReportsDir: filepath.Join(tmpDir, "reports"),
		SigmaDir:   filepath.Join(tmpDir, "sigma"),
		MappingYML: filepath.Join(tmpDir, "mapping.yml"),
	}

	for _, dir := range []string{env.EvtxRoot, env.ReportsDir, env.SigmaDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}
	if err := os.WriteFile(env.MappingYML, []byte("name: test mapping\n"), 0o644); err != nil {
		t.Fatalf("failed to write test mapping: %v", err)
	}

	t.Setenv("EVTX_ROOT", env.EvtxRoot)
	t.Setenv("REPORTS_DIR", env.ReportsDir)
	t.Setenv("SIGMA_DIR", env.SigmaDir)
	t.Setenv("MAPPING_YML", env.MappingYML)

	// Neutralize any scan settings leaking in from the host
	for _, key := range []string{
		"CHAINS_MODE", "CHAINS_FORMAT", "CHAINS_LEVELS", "CHAINS_RULE_DIR",
		"QUIET", "LOCAL_TIME", "TIMEZONE", "FROM", "TO", "EXTENSIONS",
		"SCAN_WORKERS",
		"SMTP_HOST", "SMTP_PORT", "SMTP_TLS", "SMTP_USER", "SMTP_PASS",
		"MAIL_FROM", "MAIL_TO", "MAIL_SUBJECT_PREFIX",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	return env
}

// AddHostDir creates a host directory with the given event log files
// under the scan environment's EVTX root.
func (e ScanEnv) AddHostDir(t *testing.T, host string, files ...string) string {
	t.Helper()

	dir := filepath.Join(e.EvtxRoot, host)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("failed to create host directory: %v", err)
	}
	for _, name := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("evtx"), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
	return dir
}
