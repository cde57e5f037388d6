package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ApplyEnv overlays the container environment variables onto c. Set
// variables always win over whatever the config file declared.
//
// The variable names are the container contract and predate this binary;
// they are kept verbatim so existing deployments keep working.
func ApplyEnv(c *Config) error {
	applyStr(&c.EvtxRoot, "EVTX_ROOT")
	applyStr(&c.ReportsDir, "REPORTS_DIR")

	if v, ok := lookup("CHAINS_MODE"); ok {
		c.Mode = strings.ToLower(v)
	}
	if v, ok := lookup("CHAINS_FORMAT"); ok {
		c.Format = strings.ToLower(v)
	}
	if v, ok := lookup("CHAINS_LEVELS"); ok {
		c.Levels = splitList(v)
	}

	applyStr(&c.SigmaDir, "SIGMA_DIR")
	applyStr(&c.MappingFile, "MAPPING_YML")
	applyStr(&c.RuleDir, "CHAINS_RULE_DIR")

	applyBool(&c.Quiet, "QUIET")
	applyBool(&c.LocalTime, "LOCAL_TIME")
	applyStr(&c.Timezone, "TIMEZONE")
	applyStr(&c.From, "FROM")
	applyStr(&c.To, "TO")

	if v, ok := lookup("EXTENSIONS"); ok {
		c.Extensions = splitList(v)
	}

	if v, ok := lookup("SCAN_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCAN_WORKERS: %w", err)
		}
		c.Workers = n
	}

	applyStr(&c.Mail.Host, "SMTP_HOST")
	if v, ok := lookup("SMTP_PORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT: %w", err)
		}
		c.Mail.Port = n
	}
	applyBool(&c.Mail.TLS, "SMTP_TLS")
	applyStr(&c.Mail.User, "SMTP_USER")
	applyStr(&c.Mail.Pass, "SMTP_PASS")
	applyStr(&c.Mail.From, "MAIL_FROM")
	if v, ok := lookup("MAIL_TO"); ok {
		c.Mail.To = splitList(v)
	}
	applyStr(&c.Mail.SubjectPrefix, "MAIL_SUBJECT_PREFIX")

	return nil
}

// Load builds the effective configuration: defaults, then the optional
// Lua file, then the environment, then validation.
func Load(parser *Parser, configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		fileCfg, err := parser.ParseFile(configPath, cfg)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// lookup returns a trimmed env value and whether it was set non-empty.
// The original entrypoint stripped every value, so empty and whitespace
// count as unset.
func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func applyStr(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

// applyBool parses a boolean the way the container contract always has:
// the literal "true" (any case) is true, every other set value is false.
// Deployments carrying values like QUIET=0 or QUIET=enabled keep working.
func applyBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		*dst = strings.EqualFold(v, "true")
	}
}

// splitList splits a comma-separated value, dropping blank entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
