package config

import (
	"fmt"
	"io"
	"strings"
)

// Logger provides structured logging for scan and provisioning
// operations. This interface allows callers to plug in their own
// implementation.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})

	// Warn logs warning-level messages with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
}

// noopLogger is a Logger implementation that does nothing.
type noopLogger struct{}

func (n *noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (n *noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Error(msg string, keysAndValues ...interface{}) {}

// NopLogger returns the no-op logger.
func NopLogger() Logger {
	return &noopLogger{}
}

// writerLogger writes leveled lines to an io.Writer. It is what the CLI
// uses with os.Stderr; debug lines are only emitted when verbose.
type writerLogger struct {
	w       io.Writer
	verbose bool
}

// NewWriterLogger returns a Logger writing to w.
func NewWriterLogger(w io.Writer, verbose bool) Logger {
	return &writerLogger{w: w, verbose: verbose}
}

func (l *writerLogger) Debug(msg string, keysAndValues ...interface{}) {
	if l.verbose {
		l.log("DEBUG", msg, keysAndValues)
	}
}

func (l *writerLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log("INFO", msg, keysAndValues)
}

func (l *writerLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log("WARN", msg, keysAndValues)
}

func (l *writerLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log("ERROR", msg, keysAndValues)
}

func (l *writerLogger) log(level, msg string, kv []interface{}) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", level, msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", kv[i], kv[i+1])
	}
	if len(kv)%2 == 1 {
		fmt.Fprintf(&sb, " %v", kv[len(kv)-1])
	}
	fmt.Fprintln(l.w, sb.String())
}
