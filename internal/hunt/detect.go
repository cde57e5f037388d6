package hunt

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sawmill-dev/sawmill/internal/config"
)

// Markers chainsaw prints in log-format output when rules matched.
var logDetectionMarkers = []string{"DETECTED", "Matches:"}

// judgeDetection inspects the aggregated output of one host's hunt runs
// and decides whether anything was detected, returning the first report
// file that carries detections. Unreadable report files are skipped;
// judgment is best-effort and never fails the scan.
func judgeDetection(format, outputDir, logPath string) (detected bool, reportPath string) {
	switch format {
	case config.FormatCSV:
		return judgeCSV(outputDir)
	case config.FormatJSON:
		return judgeJSON(outputDir)
	default:
		return judgeLog(logPath), ""
	}
}

// judgeCSV reports detection when any CSV in outputDir has at least one
// data record beyond the header.
func judgeCSV(outputDir string) (bool, string) {
	for _, path := range sortedGlob(outputDir, "*.csv") {
		if csvHasRows(path) {
			return true, path
		}
	}
	return false, ""
}

func csvHasRows(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records := 0
	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row still counts as content past the header
			records++
			continue
		}
		records++
		if records > 1 {
			return true
		}
	}
	return records > 1
}

// judgeJSON reports detection when any JSON report in outputDir has
// non-blank content. Content is not parsed; any report chainsaw bothered
// to write counts, so a host is never under-reported.
func judgeJSON(outputDir string) (bool, string) {
	for _, path := range sortedGlob(outputDir, "*.json") {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) != "" {
			return true, path
		}
	}
	return false, ""
}

// judgeLog reports detection when the run log contains a detection
// marker. Without a log (quiet mode) there is nothing to judge.
func judgeLog(logPath string) bool {
	if logPath == "" {
		return false
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		return false
	}

	content := string(data)
	for _, marker := range logDetectionMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}

// sortedGlob returns matching files in outputDir in sorted order so the
// "first report" is deterministic.
func sortedGlob(dir, pattern string) []string {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}
