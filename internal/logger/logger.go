// Package logger provides the leveled logger used across lexcheck.
// A Logger is passed to each component explicitly; a nil *Logger is a valid
// logger that discards everything, so optional wiring needs no setup.
//
// Debug, Info and Section output only appears in verbose mode. Warnings and
// errors are always written.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Logger writes prefixed log lines to an output writer.
type Logger struct {
	mu      *sync.Mutex
	out     io.Writer
	verbose bool
	prefix  string
}

// New creates a logger writing to w. If w is nil, os.Stderr is used.
func New(w io.Writer, verbose bool) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		mu:      &sync.Mutex{},
		out:     w,
		verbose: verbose,
	}
}

// Nop returns a logger that discards all output.
func Nop() *Logger {
	return nil
}

// With returns a logger that prefixes every line with the component name.
// The derived logger shares the output and lock of its parent.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return nil
	}
	prefix := component
	if l.prefix != "" {
		prefix = l.prefix + "." + component
	}
	return &Logger{
		mu:      l.mu,
		out:     l.out,
		verbose: l.verbose,
		prefix:  prefix,
	}
}

// IsVerbose returns true if verbose output is enabled.
func (l *Logger) IsVerbose() bool {
	return l != nil && l.verbose
}

// Debug prints a message if verbose mode is enabled.
func (l *Logger) Debug(format string, args ...any) {
	if l.IsVerbose() {
		l.write("DEBUG", format, args...)
	}
}

// Info prints an informational message if verbose mode is enabled.
func (l *Logger) Info(format string, args ...any) {
	if l.IsVerbose() {
		l.write("INFO", format, args...)
	}
}

// Warn prints a warning message.
func (l *Logger) Warn(format string, args ...any) {
	if l != nil {
		l.write("WARN", format, args...)
	}
}

// Error prints an error message.
func (l *Logger) Error(format string, args ...any) {
	if l != nil {
		l.write("ERROR", format, args...)
	}
}

// Section prints a section header if verbose mode is enabled.
func (l *Logger) Section(name string) {
	if !l.IsVerbose() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "\n=== %s ===\n", name)
}

func (l *Logger) write(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.prefix != "" {
		fmt.Fprintf(l.out, "[%s] %s: "+format+"\n", append([]any{level, l.prefix}, args...)...)
		return
	}
	fmt.Fprintf(l.out, "[%s] "+format+"\n", append([]any{level}, args...)...)
}
