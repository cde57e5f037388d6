package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sawmill-dev/sawmill/internal/platform"
	lua "github.com/yuin/gopher-lua"
)

// Parser parses declarative Lua scan configs with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a new config parser with the given platform detector.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseFile parses a Lua config file. base supplies the defaults the file
// overrides; the parsed result is a copy, base is not mutated.
func (p *Parser) ParseFile(path string, base *Config) (*Config, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return p.ParseString(context.Background(), string(code), base)
}

// ParseString parses a Lua config from a string.
func (p *Parser) ParseString(ctx context.Context, luaCode string, base *Config) (*Config, error) {
	L := newSandboxedVM()
	defer L.Close()

	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		injectPlatformTable(L, info.OS, info.Arch, info.Family)
	}

	if err := L.DoString(luaCode); err != nil {
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return extractConfig(L, base)
}

// ParseError represents a config parsing error with a friendly message.
type ParseError struct {
	Message string // user-facing message
	Detail  string // raw Lua error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractConfig extracts the config from a Lua state. It expects a global
// "sawmill" table with scan/rules/mail sections.
func extractConfig(L *lua.LState, base *Config) (*Config, error) {
	root := L.GetGlobal("sawmill")
	if root.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'sawmill' table",
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}

	cfg := *base
	cfg.Levels = append([]string(nil), base.Levels...)
	cfg.Extensions = append([]string(nil), base.Extensions...)
	cfg.Mail.To = append([]string(nil), base.Mail.To...)

	table := root.(*lua.LTable)

	if scanVal := table.RawGetString("scan"); scanVal.Type() == lua.LTTable {
		extractScan(scanVal.(*lua.LTable), &cfg)
	}

	if rulesVal := table.RawGetString("rules"); rulesVal.Type() == lua.LTTable {
		extractRules(rulesVal.(*lua.LTable), &cfg)
	}

	if mailVal := table.RawGetString("mail"); mailVal.Type() == lua.LTTable {
		extractMail(mailVal.(*lua.LTable), &cfg.Mail)
	}

	return &cfg, nil
}

func extractScan(table *lua.LTable, cfg *Config) {
	setString(table, "evtx_root", &cfg.EvtxRoot)
	setString(table, "reports_dir", &cfg.ReportsDir)

	if v := table.RawGetString("format"); v.Type() == lua.LTString {
		cfg.Format = strings.ToLower(v.String())
	}

	if v := table.RawGetString("levels"); v.Type() == lua.LTTable {
		cfg.Levels = stringList(v.(*lua.LTable))
	}

	setBool(table, "quiet", &cfg.Quiet)
	setBool(table, "local_time", &cfg.LocalTime)
	setString(table, "timezone", &cfg.Timezone)
	setString(table, "from", &cfg.From)
	setString(table, "to", &cfg.To)

	if v := table.RawGetString("extensions"); v.Type() == lua.LTTable {
		cfg.Extensions = stringList(v.(*lua.LTable))
	}

	if v := table.RawGetString("workers"); v.Type() == lua.LTNumber {
		cfg.Workers = int(lua.LVAsNumber(v))
	}
}

func extractRules(table *lua.LTable, cfg *Config) {
	setString(table, "sigma", &cfg.SigmaDir)
	setString(table, "mapping", &cfg.MappingFile)
	setString(table, "rules", &cfg.RuleDir)
}

func extractMail(table *lua.LTable, mail *MailConfig) {
	setString(table, "host", &mail.Host)

	if v := table.RawGetString("port"); v.Type() == lua.LTNumber {
		mail.Port = int(lua.LVAsNumber(v))
	}

	setBool(table, "tls", &mail.TLS)
	setString(table, "user", &mail.User)
	setString(table, "pass", &mail.Pass)
	setString(table, "from", &mail.From)

	if v := table.RawGetString("to"); v.Type() == lua.LTTable {
		mail.To = stringList(v.(*lua.LTable))
	}

	setString(table, "subject_prefix", &mail.SubjectPrefix)
}

func setString(table *lua.LTable, key string, dst *string) {
	if v := table.RawGetString(key); v.Type() == lua.LTString {
		*dst = v.String()
	}
}

func setBool(table *lua.LTable, key string, dst *bool) {
	if v := table.RawGetString(key); v.Type() == lua.LTBool {
		*dst = bool(v.(lua.LBool))
	}
}

// stringList extracts an array of strings, skipping nil entries produced
// by platform conditionals like platform.when(platform.is_linux, "x").
func stringList(table *lua.LTable) []string {
	var out []string
	table.ForEach(func(key, value lua.LValue) {
		if value.Type() != lua.LTString {
			return
		}
		out = append(out, value.String())
	})
	return out
}

// FormatError formats a ParseError for user display. In verbose mode the
// raw Lua error is shown; otherwise the stack traceback is trimmed.
func FormatError(err error, verbose bool) string {
	if parseErr, ok := err.(*ParseError); ok {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
