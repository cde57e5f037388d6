package hunt

import (
	"github.com/sawmill-dev/sawmill/internal/config"
)

// BuildHuntArgs constructs the chainsaw hunt argument vector for a single
// event log file. The flag order matches the chainsaw CLI contract:
//
//	hunt --mapping M --output OUT --sigma S <format> [--level L]...
//	     (--local | --timezone TZ) -r RULES [--from F] [--to T] [-q] FILE
//
// forceNonQuiet suppresses -q even when the config asks for quiet, so
// run-log captures always see full output.
func BuildHuntArgs(cfg *config.Config, evtxFile, outputDir, rulesDir string, forceNonQuiet bool) []string {
	args := []string{
		"hunt",
		"--mapping", cfg.MappingFile,
		"--output", outputDir,
		"--sigma", cfg.SigmaDir,
	}

	switch cfg.Format {
	case config.FormatCSV:
		args = append(args, "--csv")
	case config.FormatJSON:
		args = append(args, "--json")
	case config.FormatLog:
		args = append(args, "--log")
	default:
		// Unknown formats fall back to CSV
		args = append(args, "--csv")
	}

	for _, level := range cfg.Levels {
		args = append(args, "--level", level)
	}

	if cfg.LocalTime {
		args = append(args, "--local")
	} else if cfg.Timezone != "" {
		args = append(args, "--timezone", cfg.Timezone)
	}

	// Chainsaw requires a native rule directory even for sigma-only
	// hunts; rulesDir may be an empty scratch directory.
	args = append(args, "-r", rulesDir)

	if cfg.From != "" {
		args = append(args, "--from", cfg.From)
	}
	if cfg.To != "" {
		args = append(args, "--to", cfg.To)
	}

	if cfg.Quiet && !forceNonQuiet {
		args = append(args, "-q")
	}

	// Target file goes last
	return append(args, evtxFile)
}
