package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sawmill-dev/sawmill/internal/binary"
	"github.com/sawmill-dev/sawmill/internal/platform"
)

// runCheck handles the `sawmill check` subcommand
func runCheck(args []string) error {
	showHelp := false
	binDir := ""
	linkDir := defaultLinkDir
	stateDir := defaultStateDir

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--help", "-h":
			showHelp = true
		case "--bin-dir", "--link-dir", "--state-dir":
			if i+1 >= len(args) {
				return fmt.Errorf("%s requires a value\nRun 'sawmill check --help' for usage", arg)
			}
			i++
			switch arg {
			case "--bin-dir":
				binDir = args[i]
			case "--link-dir":
				linkDir = args[i]
			case "--state-dir":
				stateDir = args[i]
			}
		default:
			return fmt.Errorf("unknown option: %s\nRun 'sawmill check --help' for usage", arg)
		}
	}

	if showHelp {
		printCheckHelp()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	manager, err := binary.NewManager(binary.Config{
		BinDir:   binDir,
		LinkDir:  linkDir,
		StateDir: stateDir,
		Detector: platform.NewDetector(),
	})
	if err != nil {
		return fmt.Errorf("create binary manager: %w", err)
	}

	installed, err := manager.IsInstalled()
	if err != nil {
		return fmt.Errorf("check %s: %w", binary.ToolName, err)
	}
	if !installed {
		return fmt.Errorf("%s not installed at %s\nRun 'sawmill provision' first", binary.ToolName, manager.LinkPath())
	}

	fmt.Printf("%s resolves at %s\n", binary.ToolName, manager.LinkPath())

	if manifest, err := manager.Manifest(); err == nil {
		fmt.Printf("  Version:   %s\n", manifest.Version)
		fmt.Printf("  Asset:     %s\n", manifest.Asset)
		fmt.Printf("  Installed: %s\n", manifest.InstalledAt.Format(time.RFC3339))
	}

	out, err := manager.Probe(ctx)
	if err != nil {
		return fmt.Errorf("version probe: %w", err)
	}
	fmt.Printf("  Probe:     %s\n", out)

	return nil
}

// printCheckHelp prints help for the check command
func printCheckHelp() {
	fmt.Println("Usage: sawmill check [options]")
	fmt.Println()
	fmt.Println("Verify that the chainsaw alias resolves to an executable file and")
	fmt.Println("that it answers a version probe.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -h, --help       Show this help message")
	fmt.Println("  --bin-dir DIR    Versioned binary directory (default <state-dir>/bin)")
	fmt.Println("  --link-dir DIR   Alias directory (default " + defaultLinkDir + ")")
	fmt.Println("  --state-dir DIR  State directory (default " + defaultStateDir + ")")
	fmt.Println()
	fmt.Println("Exit codes:")
	fmt.Println("  0  Installed and answering")
	fmt.Println("  1  Missing, not executable, or probe failed")
}
