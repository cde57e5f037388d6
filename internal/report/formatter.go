// Package report renders scan results for terminal display and for the
// notification mail body.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/sawmill-dev/sawmill/internal/config"
	"github.com/sawmill-dev/sawmill/internal/hunt"
)

// FormatScanReport formats host scan results for user display
func FormatScanReport(results []hunt.HostResult) string {
	var sb strings.Builder
	// Pre-allocate for typical report size (header + entries + summary)
	sb.Grow(1024 + len(results)*256)

	sb.WriteString("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	sb.WriteString("SCAN REPORT\n")
	sb.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	var detected, clean, failed int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Detected:
			detected++
		default:
			clean++
		}

		sb.WriteString(formatHostEntry(r))
		sb.WriteString("\n")
	}

	sb.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")

	if detected == 0 && failed == 0 {
		sb.WriteString(fmt.Sprintf("SUMMARY: %d hosts clean, no detections ✓\n", clean))
	} else {
		var parts []string
		if detected > 0 {
			parts = append(parts, fmt.Sprintf("%d detected", detected))
		}
		if clean > 0 {
			parts = append(parts, fmt.Sprintf("%d clean", clean))
		}
		if failed > 0 {
			parts = append(parts, fmt.Sprintf("%d failed", failed))
		}
		sb.WriteString(fmt.Sprintf("SUMMARY: %d hosts scanned\n", len(results)))
		sb.WriteString("  " + strings.Join(parts, ", ") + "\n")
	}

	sb.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")

	return sb.String()
}

// formatHostEntry formats a single host result
func formatHostEntry(r hunt.HostResult) string {
	var sb strings.Builder
	sb.Grow(512)

	switch {
	case r.Err != nil:
		sb.WriteString("[FAILED] ⚠️\n")
		sb.WriteString(fmt.Sprintf("  %s\n", r.Host))
		sb.WriteString(fmt.Sprintf("    Error:     %v\n", r.Err))

	case r.Detected:
		sb.WriteString("[DETECTED] ⚠️\n")
		sb.WriteString(fmt.Sprintf("  %s\n", r.Host))
		sb.WriteString(fmt.Sprintf("    Files:     %d scanned\n", r.FileCount))
		if r.ReportPath != "" {
			sb.WriteString(fmt.Sprintf("    Report:    %s\n", r.ReportPath))
		}
		if r.LogPath != "" {
			sb.WriteString(fmt.Sprintf("    Log:       %s\n", r.LogPath))
		}

	default:
		sb.WriteString("[CLEAN] ✓\n")
		sb.WriteString(fmt.Sprintf("  %s\n", r.Host))
		sb.WriteString(fmt.Sprintf("    Files:     %d scanned\n", r.FileCount))
	}

	for _, re := range r.RunErrors {
		sb.WriteString(fmt.Sprintf("    Warning:   %s\n", re))
	}

	return sb.String()
}

// BuildMailBody builds the plain text notification mail body listing
// the run conditions and every host that carried detections.
func BuildMailBody(cfg *config.Config, results []hunt.HostResult, when time.Time) string {
	var sb strings.Builder
	sb.Grow(512 + len(results)*128)

	levels := "ALL"
	if len(cfg.Levels) > 0 {
		levels = strings.Join(cfg.Levels, ",")
	}

	sb.WriteString("Chainsaw scan finished with detections.\n\n")
	sb.WriteString(fmt.Sprintf("Finished:  %s\n", when.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Mode:      %s\n", cfg.Mode))
	sb.WriteString(fmt.Sprintf("Format:    %s\n", cfg.Format))
	sb.WriteString(fmt.Sprintf("Levels:    %s\n", levels))
	if cfg.From != "" || cfg.To != "" {
		sb.WriteString(fmt.Sprintf("Window:    %s .. %s\n", orAny(cfg.From), orAny(cfg.To)))
	}
	sb.WriteString("\nDetections:\n")

	for _, r := range results {
		if !r.Detected {
			continue
		}
		sb.WriteString(fmt.Sprintf("  - %s (%d files scanned)\n", r.Host, r.FileCount))
		if r.ReportPath != "" {
			sb.WriteString(fmt.Sprintf("      report: %s\n", r.ReportPath))
		}
		if r.LogPath != "" {
			sb.WriteString(fmt.Sprintf("      log:    %s\n", r.LogPath))
		}
	}

	var failed []string
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Host)
		}
	}
	if len(failed) > 0 {
		sb.WriteString(fmt.Sprintf("\nFailed hosts: %s\n", strings.Join(failed, ", ")))
	}

	sb.WriteString(fmt.Sprintf("\nReports directory: %s\n", cfg.ReportsDir))

	return sb.String()
}

// DetectedHosts returns the hosts with detections, in input order.
func DetectedHosts(results []hunt.HostResult) []string {
	var hosts []string
	for _, r := range results {
		if r.Detected {
			hosts = append(hosts, r.Host)
		}
	}
	return hosts
}

func orAny(s string) string {
	if s == "" {
		return "(any)"
	}
	return s
}
