package compiler

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Logger provides verbose output for compilation and analysis decisions.
type Logger struct {
	enabled bool
	mu      sync.Mutex
	out     io.Writer
}

// NewLogger creates a new logger instance.
func NewLogger(enabled bool) *Logger {
	return &Logger{
		enabled: enabled,
		out:     os.Stderr,
	}
}

// SetOutput sets the output writer for the logger.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// Log prints a formatted message if verbose mode is enabled.
func (l *Logger) Log(format string, args ...any) {
	if l.enabled {
		l.mu.Lock()
		defer l.mu.Unlock()
		fmt.Fprintf(l.out, "[redos] "+format+"\n", args...)
	}
}

// Section prints a section header if verbose mode is enabled.
func (l *Logger) Section(name string) {
	if l.enabled {
		l.mu.Lock()
		defer l.mu.Unlock()
		fmt.Fprintf(l.out, "\n[redos] === %s ===\n", name)
	}
}

// Enabled returns whether the logger is enabled.
func (l *Logger) Enabled() bool {
	return l.enabled
}
