package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sawmill-dev/sawmill/internal/config"
	"github.com/sawmill-dev/sawmill/internal/hunt"
	"github.com/sawmill-dev/sawmill/internal/mail"
	"github.com/sawmill-dev/sawmill/internal/platform"
	"github.com/sawmill-dev/sawmill/internal/report"
)

// Scan exit codes. Detections are not an operational failure; scripts
// and schedulers distinguish the two.
const (
	exitClean      = 0
	exitError      = 1
	exitDetections = 2
)

// runScan handles the `sawmill scan` subcommand
func runScan(args []string) (int, error) {
	showHelp := false
	verbose := false
	configPath := ""
	workersOverride := 0

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--help", "-h":
			showHelp = true
		case "--verbose", "-v":
			verbose = true
		case "--config", "-c":
			if i+1 >= len(args) {
				return exitError, fmt.Errorf("%s requires a value\nRun 'sawmill scan --help' for usage", arg)
			}
			i++
			configPath = args[i]
		case "--workers", "-w":
			if i+1 >= len(args) {
				return exitError, fmt.Errorf("%s requires a value\nRun 'sawmill scan --help' for usage", arg)
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 1 {
				return exitError, fmt.Errorf("invalid worker count: %s", args[i])
			}
			workersOverride = n
		default:
			return exitError, fmt.Errorf("unknown option: %s\nRun 'sawmill scan --help' for usage", arg)
		}
	}

	if showHelp {
		printScanHelp()
		return exitClean, nil
	}

	logger := config.NewWriterLogger(os.Stderr, verbose)

	parser := config.NewParser(platform.NewDetector())
	cfg, err := config.Load(parser, configPath)
	if err != nil {
		return exitError, fmt.Errorf("load configuration: %s", config.FormatError(err, verbose))
	}
	if workersOverride > 0 {
		cfg.Workers = workersOverride
	}

	orchestrator := hunt.NewOrchestrator(cfg, hunt.WithLogger(logger))

	fmt.Printf("Scanning hosts under %s (%d workers)...\n", cfg.EvtxRoot, cfg.Workers)

	ctx := context.Background()
	results, err := orchestrator.ScanAll(ctx, func(r hunt.HostResult) {
		// Progress line per host as results land
		switch {
		case r.Err != nil:
			fmt.Printf("  %-20s FAILED: %v\n", r.Host, r.Err)
		case r.Detected:
			fmt.Printf("  %-20s DETECTED (%d files)\n", r.Host, r.FileCount)
		default:
			fmt.Printf("  %-20s clean (%d files)\n", r.Host, r.FileCount)
		}
	})
	if err != nil {
		return exitError, fmt.Errorf("scan: %w", err)
	}

	fmt.Print(report.FormatScanReport(results))

	detected := report.DetectedHosts(results)
	if len(detected) > 0 {
		body := report.BuildMailBody(cfg, results, time.Now())
		mailer := mail.New(cfg.Mail, mail.WithLogger(logger))
		if err := mailer.NotifyDetections(len(detected), body); err != nil {
			// Notification failure must not mask the detections
			logger.Error("notification failed", "error", err)
		}
	}

	for _, r := range results {
		if r.Err != nil {
			return exitError, nil
		}
	}
	if len(detected) > 0 {
		return exitDetections, nil
	}
	return exitClean, nil
}

// printScanHelp prints help for the scan command
func printScanHelp() {
	fmt.Println("Usage: sawmill scan [options]")
	fmt.Println()
	fmt.Println("Run chainsaw hunts over every host directory under the EVTX root,")
	fmt.Println("judge detections from the reports, and mail a summary when anything")
	fmt.Println("was detected.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -h, --help         Show this help message")
	fmt.Println("  -v, --verbose      Verbose logging")
	fmt.Println("  -c, --config FILE  Lua config file (environment variables override it)")
	fmt.Println("  -w, --workers N    Concurrent host scans (default 4)")
	fmt.Println()
	fmt.Println("Configuration is read from the environment (EVTX_ROOT, REPORTS_DIR,")
	fmt.Println("SIGMA_DIR, MAPPING_YML, CHAINS_FORMAT, SMTP_HOST, ...) with an")
	fmt.Println("optional Lua file underneath.")
	fmt.Println()
	fmt.Println("Exit codes:")
	fmt.Println("  0  All hosts clean")
	fmt.Println("  1  Operational error")
	fmt.Println("  2  One or more hosts with detections")
}
