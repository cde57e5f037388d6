package config

import (
	"fmt"
	"os"
	"strings"
)

// Output formats chainsaw can be asked for.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatLog  = "log"
)

// Defaults matching the container contract.
const (
	DefaultEvtxRoot      = "/workspace/evtx"
	DefaultReportsDir    = "/workspace/reports"
	DefaultMode          = "hunt"
	DefaultFormat        = FormatCSV
	DefaultWorkers       = 4
	DefaultSMTPPort      = 587
	DefaultSubjectPrefix = "[Chainsaw Detection]"
)

// Config is the full scan configuration.
type Config struct {
	// EvtxRoot holds one subdirectory per host, each containing that
	// host's collected event logs.
	EvtxRoot   string
	ReportsDir string

	// Mode is the chainsaw subcommand. Only "hunt" is supported; the
	// orchestration is built around hunt's output layout.
	Mode   string
	Format string
	Levels []string

	SigmaDir    string
	MappingFile string
	// RuleDir holds chainsaw-native rules. Empty means an empty temp
	// directory is substituted per run (the CLI requires one even for
	// sigma-only hunts).
	RuleDir string

	Quiet     bool
	LocalTime bool
	Timezone  string
	From      string
	To        string

	// Extensions are the log file suffixes collected per host.
	Extensions []string

	// Workers bounds how many hosts scan concurrently.
	Workers int

	Mail MailConfig
}

// MailConfig configures the detection notification mail.
type MailConfig struct {
	Host          string
	Port          int
	TLS           bool
	User          string
	Pass          string
	From          string
	To            []string
	SubjectPrefix string
}

// Configured reports whether enough is set to attempt sending mail.
func (m *MailConfig) Configured() bool {
	return m.Host != "" && m.From != "" && len(m.To) > 0
}

// Default returns a Config carrying the container defaults.
func Default() *Config {
	return &Config{
		EvtxRoot:   DefaultEvtxRoot,
		ReportsDir: DefaultReportsDir,
		Mode:       DefaultMode,
		Format:     DefaultFormat,
		Quiet:      true,
		LocalTime:  true,
		Extensions: []string{".evtx"},
		Workers:    DefaultWorkers,
		Mail: MailConfig{
			Port:          DefaultSMTPPort,
			TLS:           true,
			SubjectPrefix: DefaultSubjectPrefix,
		},
	}
}

// Validate checks the configuration against the filesystem, mirroring the
// preflight checks the container entrypoint has always done.
func (c *Config) Validate() error {
	if c.Mode != DefaultMode {
		return fmt.Errorf("unsupported mode %q: only hunt is supported", c.Mode)
	}

	if err := requireDir("EVTX root", c.EvtxRoot); err != nil {
		return err
	}

	if c.SigmaDir == "" {
		return fmt.Errorf("sigma rules directory is not set")
	}
	if err := requireDir("sigma rules directory", c.SigmaDir); err != nil {
		return err
	}

	if c.MappingFile == "" {
		return fmt.Errorf("mapping file is not set")
	}
	if err := requireFile("mapping file", c.MappingFile); err != nil {
		return err
	}

	if c.RuleDir != "" {
		if err := requireDir("rule directory", c.RuleDir); err != nil {
			return err
		}
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}

	switch strings.ToLower(c.Format) {
	case FormatCSV, FormatJSON, FormatLog:
	default:
		// Unknown formats fall back to CSV at command-build time, same
		// as the original entrypoint; not a validation failure.
	}

	return nil
}

func requireDir(what, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s does not exist: %s", what, path)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory: %s", what, path)
	}
	return nil
}

func requireFile(what, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s does not exist: %s", what, path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", what, path)
	}
	return nil
}
