package hunt

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sawmill-dev/sawmill/internal/config"
)

const timestampLayout = "20060102150405"

// Orchestrator runs chainsaw hunts across all host directories.
type Orchestrator struct {
	cfg    *config.Config
	binary string // chainsaw executable, resolved through PATH when bare
	runner CommandRunner
	clock  Clock
	logger config.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRunner replaces the command runner (tests use a fake chainsaw).
func WithRunner(r CommandRunner) Option {
	return func(o *Orchestrator) { o.runner = r }
}

// WithClock replaces the clock.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithBinary sets the chainsaw executable path.
func WithBinary(path string) Option {
	return func(o *Orchestrator) { o.binary = path }
}

// WithLogger sets the logger.
func WithLogger(l config.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an orchestrator for the given configuration.
func NewOrchestrator(cfg *config.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg,
		binary: "chainsaw",
		runner: ExecRunner{},
		clock:  RealClock{},
		logger: config.NopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ScanAll scans every host directory under the EVTX root on a bounded
// worker pool. onResult, when non-nil, is called from the collecting
// goroutine as each host finishes, in completion order. The returned
// slice is sorted by host name.
func (o *Orchestrator) ScanAll(ctx context.Context, onResult func(HostResult)) ([]HostResult, error) {
	hostDirs, err := o.hostDirs()
	if err != nil {
		return nil, err
	}

	workers := o.cfg.Workers
	if workers > len(hostDirs) {
		workers = len(hostDirs)
	}

	jobs := make(chan string)
	out := make(chan HostResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dir := range jobs {
				out <- o.ScanHost(ctx, dir)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, dir := range hostDirs {
			select {
			case jobs <- dir:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]HostResult, 0, len(hostDirs))
	for res := range out {
		if onResult != nil {
			onResult(res)
		}
		results = append(results, res)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Host < results[j].Host })
	return results, nil
}

// hostDirs lists the immediate subdirectories of the EVTX root. An empty
// result is fatal: it means nothing was mounted where logs belong.
func (o *Orchestrator) hostDirs() ([]string, error) {
	entries, err := os.ReadDir(o.cfg.EvtxRoot)
	if err != nil {
		return nil, fmt.Errorf("read EVTX root: %w", err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(o.cfg.EvtxRoot, entry.Name()))
		}
	}

	if len(dirs) == 0 {
		return nil, fmt.Errorf("no host directories found under %s", o.cfg.EvtxRoot)
	}

	return dirs, nil
}

// ScanHost scans one host directory: enumerate its event log files, run
// chainsaw per file into a shared timestamped output directory, then
// judge detection from the aggregated reports.
func (o *Orchestrator) ScanHost(ctx context.Context, hostDir string) HostResult {
	host := filepath.Base(strings.TrimRight(hostDir, string(os.PathSeparator)))
	result := HostResult{Host: host}

	ts := o.clock.Now().Format(timestampLayout)
	outputDir := filepath.Join(o.cfg.ReportsDir, fmt.Sprintf("%s-%s", host, ts))
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		result.Err = fmt.Errorf("create output dir: %w", err)
		return result
	}

	files, err := o.collectFiles(hostDir)
	if err != nil {
		result.Err = fmt.Errorf("enumerate event logs: %w", err)
		return result
	}
	result.FileCount = len(files)

	// Chainsaw demands a native rule directory; fabricate an empty one
	// when none is configured (sigma-only operation).
	rulesDir := o.cfg.RuleDir
	if rulesDir == "" {
		tmpRules, err := os.MkdirTemp("", "sawmill_rules_")
		if err != nil {
			result.Err = fmt.Errorf("create scratch rule dir: %w", err)
			return result
		}
		defer os.RemoveAll(tmpRules)
		rulesDir = tmpRules
	}

	if o.cfg.Quiet {
		o.runQuiet(ctx, files, outputDir, rulesDir, &result)
	} else {
		logPath := filepath.Join(outputDir, fmt.Sprintf("%s-%s.log", host, ts))
		o.runLogged(ctx, hostDir, files, outputDir, rulesDir, logPath, &result)
	}
	if result.Err != nil {
		return result
	}

	result.Detected, result.ReportPath = judgeDetection(o.cfg.Format, outputDir, result.LogPath)
	return result
}

// runQuiet executes chainsaw per file discarding output; reports still
// land in outputDir via --output.
func (o *Orchestrator) runQuiet(ctx context.Context, files []string, outputDir, rulesDir string, result *HostResult) {
	for _, file := range files {
		args := BuildHuntArgs(o.cfg, file, outputDir, rulesDir, false)
		if err := o.runner.Run(ctx, o.binary, args, io.Discard); err != nil {
			o.recordRunError(result, file, err)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// runLogged executes chainsaw per file with combined output appended to
// a run log that opens with a diagnostic header.
func (o *Orchestrator) runLogged(ctx context.Context, hostDir string, files []string, outputDir, rulesDir, logPath string, result *HostResult) {
	logFile, err := os.Create(logPath)
	if err != nil {
		result.Err = fmt.Errorf("create run log: %w", err)
		return
	}
	defer logFile.Close()
	result.LogPath = logPath

	o.writeLogHeader(logFile, hostDir, outputDir, rulesDir, files)

	if len(files) == 0 {
		fmt.Fprintln(logFile, "# skipped: no event log files found")
		return
	}

	for _, file := range files {
		args := BuildHuntArgs(o.cfg, file, outputDir, rulesDir, true)
		fmt.Fprintf(logFile, "# cmd: %s %s\n", o.binary, strings.Join(args, " "))
		if err := o.runner.Run(ctx, o.binary, args, logFile); err != nil {
			o.recordRunError(result, file, err)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (o *Orchestrator) recordRunError(result *HostResult, file string, err error) {
	result.RunErrors = append(result.RunErrors, fmt.Sprintf("%s: %v", filepath.Base(file), err))
	o.logger.Warn("chainsaw invocation failed", "host", result.Host, "file", file, "error", err)
}

// writeLogHeader writes the run conditions into the log in the
// long-standing '#'-prefixed header format.
func (o *Orchestrator) writeLogHeader(w io.Writer, hostDir, outputDir, rulesDir string, files []string) {
	levels := "ALL"
	if len(o.cfg.Levels) > 0 {
		levels = strings.Join(o.cfg.Levels, ",")
	}

	fmt.Fprintf(w, "# started: %s\n", o.clock.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "# host_dir: %s\n", hostDir)
	fmt.Fprintf(w, "# levels: %s\n", levels)
	fmt.Fprintf(w, "# mode: %s, format: %s\n", o.cfg.Mode, o.cfg.Format)
	fmt.Fprintf(w, "# output_dir: %s\n", outputDir)
	fmt.Fprintf(w, "# rules_dir: %s\n", rulesDir)
	fmt.Fprintln(w, "# target files:")
	if len(files) == 0 {
		fmt.Fprintln(w, "#   (none found)")
	}
	for _, f := range files {
		fmt.Fprintf(w, "#   %s\n", f)
	}
	fmt.Fprintf(w, "# target count: %d\n\n", len(files))
}

// collectFiles recursively lists files under hostDir whose extension
// matches the configured list, case-insensitively, in sorted order.
func (o *Orchestrator) collectFiles(hostDir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(hostDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		for _, want := range o.cfg.Extensions {
			if ext == strings.ToLower(want) {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
