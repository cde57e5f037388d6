package hunt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sawmill-dev/sawmill/internal/config"
)

// fakeRunner pretends to be chainsaw. It records each invocation and,
// when detectFiles matches the target file, writes a CSV report with a
// data row into the --output directory.
type fakeRunner struct {
	mu          sync.Mutex
	calls       [][]string
	detectFiles map[string]bool
	failFiles   map[string]bool
}

func (f *fakeRunner) Run(_ context.Context, _ string, args []string, w io.Writer) error {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()

	target := args[len(args)-1]
	outputDir := flagValue(args, "--output")

	if f.failFiles[target] {
		return errors.New("exit status 1")
	}

	fmt.Fprintf(w, "[+] Loaded rules\n")
	content := "timestamp,detections,path\n"
	if f.detectFiles[target] {
		content += "2024-01-01T00:00:00,Suspicious Logon,Security.evtx\n"
		fmt.Fprintf(w, "[+] DETECTED\n")
	}

	name := strings.TrimSuffix(filepath.Base(target), filepath.Ext(target)) + ".csv"
	return os.WriteFile(filepath.Join(outputDir, name), []byte(content), 0644)
}

func flagValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func scanConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Quiet = false // most tests inspect the run log
	cfg.EvtxRoot = filepath.Join(t.TempDir(), "evtx")
	cfg.ReportsDir = filepath.Join(t.TempDir(), "reports")
	cfg.SigmaDir = t.TempDir()
	cfg.MappingFile = filepath.Join(t.TempDir(), "mapping.yml")
	if err := os.WriteFile(cfg.MappingFile, []byte("name: test\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(cfg.EvtxRoot, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(cfg.ReportsDir, 0755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func addHost(t *testing.T, cfg *config.Config, host string, files ...string) {
	t.Helper()
	dir := filepath.Join(cfg.EvtxRoot, host)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("evtx"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func testOrchestrator(cfg *config.Config, runner CommandRunner) *Orchestrator {
	return NewOrchestrator(cfg,
		WithRunner(runner),
		WithClock(TestClock{FixedTime: time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC)}),
		WithBinary("chainsaw"),
	)
}

func TestScanAllNoHosts(t *testing.T) {
	cfg := scanConfig(t)
	o := testOrchestrator(cfg, &fakeRunner{})

	_, err := o.ScanAll(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for empty EVTX root")
	}
	if !strings.Contains(err.Error(), "no host directories") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestScanAllMissingRoot(t *testing.T) {
	cfg := scanConfig(t)
	cfg.EvtxRoot = filepath.Join(cfg.EvtxRoot, "absent")
	o := testOrchestrator(cfg, &fakeRunner{})

	if _, err := o.ScanAll(context.Background(), nil); err == nil {
		t.Fatal("expected error for missing EVTX root")
	}
}

func TestScanHostDetection(t *testing.T) {
	cfg := scanConfig(t)
	addHost(t, cfg, "dc01", "Security.evtx", "System.evtx")

	hostDir := filepath.Join(cfg.EvtxRoot, "dc01")
	runner := &fakeRunner{detectFiles: map[string]bool{
		filepath.Join(hostDir, "Security.evtx"): true,
	}}
	o := testOrchestrator(cfg, runner)

	res := o.ScanHost(context.Background(), hostDir)
	if res.Err != nil {
		t.Fatalf("ScanHost: %v", res.Err)
	}
	if res.Host != "dc01" {
		t.Errorf("Host = %q, want dc01", res.Host)
	}
	if !res.Detected {
		t.Error("expected detection")
	}
	if res.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", res.FileCount)
	}
	if res.ReportPath == "" {
		t.Error("expected a report path")
	}
	if runner.callCount() != 2 {
		t.Errorf("invocations = %d, want 2", runner.callCount())
	}

	// Output dir carries the fixed timestamp
	wantDir := filepath.Join(cfg.ReportsDir, "dc01-20240601123045")
	if filepath.Dir(res.ReportPath) != wantDir {
		t.Errorf("report in %q, want %q", filepath.Dir(res.ReportPath), wantDir)
	}
}

func TestScanHostClean(t *testing.T) {
	cfg := scanConfig(t)
	addHost(t, cfg, "ws07", "Application.evtx")

	o := testOrchestrator(cfg, &fakeRunner{})
	res := o.ScanHost(context.Background(), filepath.Join(cfg.EvtxRoot, "ws07"))
	if res.Err != nil {
		t.Fatalf("ScanHost: %v", res.Err)
	}
	if res.Detected {
		t.Error("expected clean host")
	}
}

func TestScanHostRunLog(t *testing.T) {
	cfg := scanConfig(t)
	cfg.Levels = []string{"critical", "high"}
	addHost(t, cfg, "dc01", "Security.evtx")

	o := testOrchestrator(cfg, &fakeRunner{})
	res := o.ScanHost(context.Background(), filepath.Join(cfg.EvtxRoot, "dc01"))
	if res.Err != nil {
		t.Fatalf("ScanHost: %v", res.Err)
	}
	if res.LogPath == "" {
		t.Fatal("expected a run log")
	}

	data, err := os.ReadFile(res.LogPath)
	if err != nil {
		t.Fatal(err)
	}
	log := string(data)

	for _, want := range []string{
		"# started: ",
		"# host_dir: ",
		"# levels: critical,high",
		"# mode: hunt, format: csv",
		"# target count: 1",
		"# cmd: chainsaw hunt",
		"[+] Loaded rules",
	} {
		if !strings.Contains(log, want) {
			t.Errorf("run log missing %q:\n%s", want, log)
		}
	}
}

func TestScanHostNoFiles(t *testing.T) {
	cfg := scanConfig(t)
	addHost(t, cfg, "empty01")

	runner := &fakeRunner{}
	o := testOrchestrator(cfg, runner)
	res := o.ScanHost(context.Background(), filepath.Join(cfg.EvtxRoot, "empty01"))
	if res.Err != nil {
		t.Fatalf("ScanHost: %v", res.Err)
	}
	if res.FileCount != 0 {
		t.Errorf("FileCount = %d, want 0", res.FileCount)
	}
	if runner.callCount() != 0 {
		t.Errorf("invocations = %d, want 0", runner.callCount())
	}

	data, err := os.ReadFile(res.LogPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# skipped: no event log files found") {
		t.Errorf("run log missing skip note:\n%s", string(data))
	}
}

func TestScanHostQuietMode(t *testing.T) {
	cfg := scanConfig(t)
	cfg.Quiet = true
	addHost(t, cfg, "dc01", "Security.evtx")

	runner := &fakeRunner{}
	o := testOrchestrator(cfg, runner)
	res := o.ScanHost(context.Background(), filepath.Join(cfg.EvtxRoot, "dc01"))
	if res.Err != nil {
		t.Fatalf("ScanHost: %v", res.Err)
	}
	if res.LogPath != "" {
		t.Errorf("LogPath = %q, want empty in quiet mode", res.LogPath)
	}

	// Quiet reaches the chainsaw invocation as -q
	runner.mu.Lock()
	args := runner.calls[0]
	runner.mu.Unlock()
	found := false
	for _, a := range args {
		if a == "-q" {
			found = true
		}
	}
	if !found {
		t.Errorf("args missing -q: %v", args)
	}
}

func TestScanHostRunErrorsNonFatal(t *testing.T) {
	cfg := scanConfig(t)
	addHost(t, cfg, "dc01", "Bad.evtx", "Security.evtx")

	hostDir := filepath.Join(cfg.EvtxRoot, "dc01")
	runner := &fakeRunner{
		failFiles:   map[string]bool{filepath.Join(hostDir, "Bad.evtx"): true},
		detectFiles: map[string]bool{filepath.Join(hostDir, "Security.evtx"): true},
	}
	o := testOrchestrator(cfg, runner)

	res := o.ScanHost(context.Background(), hostDir)
	if res.Err != nil {
		t.Fatalf("ScanHost: %v", res.Err)
	}
	if len(res.RunErrors) != 1 {
		t.Fatalf("RunErrors = %v, want one entry", res.RunErrors)
	}
	if !strings.Contains(res.RunErrors[0], "Bad.evtx") {
		t.Errorf("RunErrors[0] = %q, want mention of Bad.evtx", res.RunErrors[0])
	}
	if !res.Detected {
		t.Error("remaining files should still be scanned and judged")
	}
}

func TestScanAllMultipleHosts(t *testing.T) {
	cfg := scanConfig(t)
	cfg.Workers = 2
	addHost(t, cfg, "dc01", "Security.evtx")
	addHost(t, cfg, "ws02", "Security.evtx")
	addHost(t, cfg, "ws03", "Security.evtx")

	runner := &fakeRunner{detectFiles: map[string]bool{
		filepath.Join(cfg.EvtxRoot, "ws02", "Security.evtx"): true,
	}}
	o := testOrchestrator(cfg, runner)

	var streamed []string
	results, err := o.ScanAll(context.Background(), func(r HostResult) {
		streamed = append(streamed, r.Host)
	})
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if len(streamed) != 3 {
		t.Errorf("streamed = %d, want 3", len(streamed))
	}

	// Results are sorted by host regardless of completion order
	for i, want := range []string{"dc01", "ws02", "ws03"} {
		if results[i].Host != want {
			t.Errorf("results[%d].Host = %q, want %q", i, results[i].Host, want)
		}
	}
	if results[0].Detected || !results[1].Detected || results[2].Detected {
		t.Errorf("detection flags wrong: %v %v %v",
			results[0].Detected, results[1].Detected, results[2].Detected)
	}
}

func TestCollectFilesFiltering(t *testing.T) {
	cfg := scanConfig(t)
	addHost(t, cfg, "dc01",
		"Security.evtx",
		"SECURITY2.EVTX",
		filepath.Join("archive", "old.evtx"),
		"readme.txt",
	)

	o := testOrchestrator(cfg, &fakeRunner{})
	files, err := o.collectFiles(filepath.Join(cfg.EvtxRoot, "dc01"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Fatalf("files = %v, want 3 entries", files)
	}
	for _, f := range files {
		if strings.HasSuffix(f, "readme.txt") {
			t.Errorf("non-evtx file collected: %s", f)
		}
	}
}
