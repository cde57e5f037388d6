package hunt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sawmill-dev/sawmill/internal/config"
)

func writeReport(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestJudgeDetectionCSV(t *testing.T) {
	t.Run("header only is clean", func(t *testing.T) {
		dir := t.TempDir()
		writeReport(t, dir, "sigma.csv", "timestamp,detections,path\n")

		detected, report := judgeDetection(config.FormatCSV, dir, "")
		if detected {
			t.Error("expected clean")
		}
		if report != "" {
			t.Errorf("report = %q, want empty", report)
		}
	})

	t.Run("data rows detect", func(t *testing.T) {
		dir := t.TempDir()
		want := writeReport(t, dir, "sigma.csv",
			"timestamp,detections,path\n2024-01-01T00:00:00,Mimikatz,Security.evtx\n")

		detected, report := judgeDetection(config.FormatCSV, dir, "")
		if !detected {
			t.Fatal("expected detection")
		}
		if report != want {
			t.Errorf("report = %q, want %q", report, want)
		}
	})

	t.Run("quoted multiline field counts as one record", func(t *testing.T) {
		dir := t.TempDir()
		writeReport(t, dir, "sigma.csv",
			"timestamp,detections,\"path\nwith newline\"\n")

		detected, _ := judgeDetection(config.FormatCSV, dir, "")
		if detected {
			t.Error("header with embedded newline should be clean")
		}
	})

	t.Run("first detecting file in sorted order wins", func(t *testing.T) {
		dir := t.TempDir()
		writeReport(t, dir, "b.csv", "h\nrow\n")
		want := writeReport(t, dir, "a.csv", "h\nrow\n")

		_, report := judgeDetection(config.FormatCSV, dir, "")
		if report != want {
			t.Errorf("report = %q, want %q", report, want)
		}
	})

	t.Run("no reports is clean", func(t *testing.T) {
		detected, _ := judgeDetection(config.FormatCSV, t.TempDir(), "")
		if detected {
			t.Error("expected clean")
		}
	})
}

func TestJudgeDetectionJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty file", "", false},
		{"whitespace only", "  \n\t\n", false},
		// Any non-blank report counts, an empty JSON array included
		{"empty array", "[]\n", true},
		{"detections", `[{"name":"Suspicious Logon"}]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeReport(t, dir, "sigma.json", tt.content)

			detected, _ := judgeDetection(config.FormatJSON, dir, "")
			if detected != tt.want {
				t.Errorf("detected = %v, want %v", detected, tt.want)
			}
		})
	}
}

func TestJudgeDetectionLog(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"no markers", "# started\nnothing found\n", false},
		{"detected marker", "[+] DETECTED something\n", true},
		{"matches marker", "Matches: 3\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			logPath := writeReport(t, dir, "host-20240101.log", tt.content)

			detected, _ := judgeDetection(config.FormatLog, dir, logPath)
			if detected != tt.want {
				t.Errorf("detected = %v, want %v", detected, tt.want)
			}
		})
	}

	t.Run("empty log path is clean", func(t *testing.T) {
		detected, _ := judgeDetection(config.FormatLog, t.TempDir(), "")
		if detected {
			t.Error("expected clean")
		}
	})
}
