// Package logger writes engine events to the terminal. Debug and info
// messages are printed only in verbose mode, which the --verbose flag turns
// on. Warnings and errors are always printed.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	stamper "github.com/jungcome7/pdf-stamper"
)

// Logger implements stamper.Logger on top of an io.Writer.
type Logger struct {
	mu      sync.RWMutex
	verbose bool
	output  io.Writer
}

var _ stamper.Logger = (*Logger)(nil)

// New returns a logger writing to w. A nil w means os.Stderr.
func New(w io.Writer, verbose bool) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{verbose: verbose, output: w}
}

// SetVerbose enables or disables verbose logging.
func (l *Logger) SetVerbose(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func (l *Logger) IsVerbose() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.verbose
}

// SetOutput sets the output writer. Useful for testing.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// Section prints a section header if verbose mode is enabled.
func (l *Logger) Section(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.verbose {
		fmt.Fprintf(l.output, "\n=== %s ===\n", name)
	}
}

func (l *Logger) Debug(msg string, fields ...stamper.Field) { l.write(true, "DEBUG", msg, fields) }
func (l *Logger) Info(msg string, fields ...stamper.Field)  { l.write(true, "INFO", msg, fields) }
func (l *Logger) Warn(msg string, fields ...stamper.Field)  { l.write(false, "WARN", msg, fields) }
func (l *Logger) Error(msg string, fields ...stamper.Field) { l.write(false, "ERROR", msg, fields) }

// write holds the lock across the whole line so concurrent events never
// interleave.
func (l *Logger) write(verboseOnly bool, level, msg string, fields []stamper.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if verboseOnly && !l.verbose {
		return
	}
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(level)
	b.WriteString("] ")
	b.WriteString(msg)
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%s", f.Key, formatValue(f.Value))
	}
	b.WriteString("\n")
	io.WriteString(l.output, b.String())
}

func formatValue(v any) string {
	s := fmt.Sprint(v)
	if strings.ContainsAny(s, " \t\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
