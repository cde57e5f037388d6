package main

import (
	"fmt"
	"os"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

func main() {
	// Handle subcommands
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version":
			fmt.Printf("sawmill %s\n", Version)
			fmt.Println("Chainsaw provisioning and EVTX scan orchestration")
			return
		case "provision":
			// Handle sawmill provision subcommand
			if err := runProvision(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "scan":
			// Handle sawmill scan subcommand
			code, err := runScan(os.Args[2:])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			os.Exit(code)
		case "check":
			// Handle sawmill check subcommand
			if err := runCheck(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	// Default: show help
	fmt.Println("╔══════════════════════════════════════════════════════════╗")
	fmt.Println("║  sawmill - Chainsaw provisioning and scan orchestration  ║")
	fmt.Println("╚══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sawmill --version              Show version information")
	fmt.Println("  sawmill provision [options]    Install the chainsaw binary")
	fmt.Println("  sawmill scan [options]         Hunt over per-host EVTX trees")
	fmt.Println("  sawmill check                  Verify the installed binary")
	fmt.Println()
	fmt.Println("Run 'sawmill <command> --help' for command options.")
}
