// Package xlog is a small leveled logger used by the dispatcher, agent
// orchestrator, and round protocols for the Warn/Debug diagnostic traffic
// spec.md §7's error taxonomy calls for (dropped dead-letter messages at
// warn, wrong-phase callbacks at debug). Grounded on the progress/status
// reporting style of cmd/threshold-cli (fmt.Printf-driven CLI output) and
// generalized into levels so `--verbose` can filter debug traffic the way
// cmd/threshold-cli/main.go's verbose flag already implies it should,
// without the call sites needing to know about that flag.
package xlog

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Level is a logging verbosity level, ordered Debug < Info < Warn < Error.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger writes leveled, prefixed lines to an io.Writer.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	prefix string
}

// New returns a Logger writing to out, suppressing anything below level.
func New(out io.Writer, level Level, prefix string) *Logger {
	return &Logger{out: out, level: level, prefix: prefix}
}

// Default returns a Logger writing to stderr at Info level, the same
// destination cmd/threshold-cli's diagnostics use.
func Default() *Logger {
	return New(os.Stderr, Info, "")
}

// Nop returns a Logger that discards everything; used as the zero-value
// fallback wherever a caller doesn't wire in a real logger.
func Nop() *Logger {
	return New(io.Discard, Error+1, "")
}

// With returns a derived Logger that prefixes every line with name,
// e.g. log.With(fmt.Sprintf("agent %d", id)).
func (l *Logger) With(name string) *Logger {
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + " " + name
	}
	return &Logger{out: l.out, level: l.level, prefix: prefix}
}

func (l *Logger) logf(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		fmt.Fprintf(l.out, "[%s] %s: %s\n", level, l.prefix, msg)
		return
	}
	fmt.Fprintf(l.out, "[%s] %s\n", level, msg)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.logf(Debug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.logf(Info, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.logf(Warn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.logf(Error, format, args...) }
