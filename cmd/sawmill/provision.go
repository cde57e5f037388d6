package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sawmill-dev/sawmill/internal/binary"
	"github.com/sawmill-dev/sawmill/internal/config"
	"github.com/sawmill-dev/sawmill/internal/platform"
)

const (
	defaultLinkDir  = "/usr/local/bin"
	defaultStateDir = "/var/lib/sawmill"
)

// runProvision handles the `sawmill provision` subcommand
func runProvision(args []string) error {
	showHelp := false
	verbose := false

	opts := binary.InstallOptions{}
	linkDir := defaultLinkDir
	stateDir := defaultStateDir
	binDir := ""

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--help", "-h":
			showHelp = true
		case "--force", "-f":
			opts.Force = true
		case "--verbose", "-v":
			verbose = true
		case "--tool-version", "--asset", "--release-base",
			"--checksums", "--signature", "--keyring",
			"--bin-dir", "--link-dir", "--state-dir":
			if i+1 >= len(args) {
				return fmt.Errorf("%s requires a value\nRun 'sawmill provision --help' for usage", arg)
			}
			i++
			value := args[i]
			switch arg {
			case "--tool-version":
				opts.Version = value
			case "--asset":
				opts.Asset = value
			case "--release-base":
				opts.ReleaseBase = value
			case "--checksums":
				opts.Checksums = value
			case "--signature":
				opts.Signature = value
			case "--keyring":
				opts.Keyring = value
			case "--bin-dir":
				binDir = value
			case "--link-dir":
				linkDir = value
			case "--state-dir":
				stateDir = value
			}
		default:
			return fmt.Errorf("unknown option: %s\nRun 'sawmill provision --help' for usage", arg)
		}
	}

	if showHelp {
		printProvisionHelp()
		return nil
	}

	// Download plus extraction can be slow on cold caches
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
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

	logger := config.NewWriterLogger(os.Stderr, verbose)

	fmt.Printf("Provisioning %s...\n", binary.ToolName)
	result, ignored, err := manager.Install(ctx, opts)
	if err != nil {
		return fmt.Errorf("install %s: %w", binary.ToolName, err)
	}

	for _, candidate := range ignored {
		logger.Warn("ignored extra executable candidate", "path", candidate)
	}

	if result.AlreadyThere {
		fmt.Printf("%s %s already installed at %s\n",
			binary.ToolName, result.Version, result.LinkPath)
		return nil
	}

	fmt.Printf("Installed %s %s\n", binary.ToolName, result.Version)
	fmt.Printf("  Binary:   %s\n", result.BinaryPath)
	fmt.Printf("  Alias:    %s\n", result.LinkPath)
	fmt.Printf("  SHA256:   %s\n", result.SHA256)
	fmt.Printf("  Verified: %s\n", result.Verified)
	if result.ProbeOutput != "" {
		fmt.Printf("  Probe:    %s\n", result.ProbeOutput)
	} else {
		fmt.Println("  Probe:    (failed, non-fatal)")
	}
	fmt.Printf("  Took:     %s\n", result.Duration.Round(time.Millisecond))

	return nil
}

// printProvisionHelp prints help for the provision command
func printProvisionHelp() {
	fmt.Println("Usage: sawmill provision [options]")
	fmt.Println()
	fmt.Println("Download the chainsaw release archive for this platform, extract it,")
	fmt.Println("install the executable, and create the stable alias symlink.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -h, --help            Show this help message")
	fmt.Println("  -f, --force           Reinstall even when already present")
	fmt.Println("  -v, --verbose         Verbose logging")
	fmt.Println("  --tool-version V      Chainsaw version (default " + binary.DefaultVersion + ")")
	fmt.Println("  --asset NAME          Override the platform-derived release asset")
	fmt.Println("  --release-base URL    Override the release download base URL")
	fmt.Println("  --checksums PATH|URL  SHA256 checksum file to verify the archive")
	fmt.Println("  --signature PATH|URL  Detached PGP signature (requires --keyring)")
	fmt.Println("  --keyring PATH        PGP public keyring for signature verification")
	fmt.Println("  --bin-dir DIR         Versioned binary directory (default <state-dir>/bin)")
	fmt.Println("  --link-dir DIR        Alias directory (default " + defaultLinkDir + ")")
	fmt.Println("  --state-dir DIR       State directory (default " + defaultStateDir + ")")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  sawmill provision")
	fmt.Println("  sawmill provision --tool-version 2.12.2 --force")
	fmt.Println("  sawmill provision --checksums https://example.com/SHA256SUMS")
}
