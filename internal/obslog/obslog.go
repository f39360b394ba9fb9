// Package obslog is the supervisor's minimal tracing sink: free-form
// human-readable lines on standard error, each tagged, gated by the
// verbose flag or DEBUG=1. No machine-readable format is promised.
package obslog

import (
	"fmt"
	"io"
)

const tag = "initsv:"

// Logger writes tagged diagnostic lines, optionally suppressing debug
// level traces.
type Logger struct {
	w       io.Writer
	verbose bool
}

// New returns a Logger writing to w. Debug traces are emitted only
// when verbose is true; error-level traces are always emitted.
func New(w io.Writer, verbose bool) *Logger {
	return &Logger{w: w, verbose: verbose}
}

// Debugf writes a debug-level trace line when verbose tracing is
// enabled, a no-op otherwise.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil || !l.verbose {
		return
	}
	fmt.Fprintf(l.w, "%s "+format+"\n", append([]interface{}{tag}, args...)...)
}

// Errorf always writes an error-level trace line, regardless of the
// verbose setting: best-effort operations log once here and continue
// rather than aborting the supervisor.
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	fmt.Fprintf(l.w, "%s "+format+"\n", append([]interface{}{tag}, args...)...)
}
