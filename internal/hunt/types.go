// Package hunt orchestrates Chainsaw hunt runs over per-host EVTX trees.
//
// Each immediate subdirectory of the EVTX root is one host. A host scan
// enumerates that host's event log files, invokes Chainsaw once per file
// into a shared timestamped output directory, and then judges from the
// produced reports whether anything was detected. Hosts scan concurrently
// on a bounded worker pool.
package hunt

import (
	"context"
	"io"
	"os/exec"
	"time"
)

// HostResult is the outcome of scanning one host directory.
type HostResult struct {
	Host       string
	ReportPath string // first report carrying detections, empty when clean
	LogPath    string // per-host run log, empty in quiet mode
	Detected   bool
	FileCount  int      // event log files scanned
	RunErrors  []string // per-file invocation failures, informational
	Err        error    // host-level failure (output dir, log file)
}

// CommandRunner executes an external command, streaming combined output
// into w. Chainsaw's own exit status is returned as-is; callers decide
// whether a nonzero exit matters.
type CommandRunner interface {
	Run(ctx context.Context, bin string, args []string, w io.Writer) error
}

// ExecRunner is the real CommandRunner backed by os/exec.
type ExecRunner struct{}

// Run executes bin with args, combined output to w.
func (ExecRunner) Run(ctx context.Context, bin string, args []string, w io.Writer) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = w
	cmd.Stderr = w
	return cmd.Run()
}

// Clock provides time operations. This interface enables deterministic
// testing of the timestamped output directory names.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// TestClock implements Clock with a fixed time for testing.
type TestClock struct {
	FixedTime time.Time
}

// Now returns the fixed time.
func (t TestClock) Now() time.Time {
	return t.FixedTime
}
