// Package util provides logging and process-wide counters.
package util

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// Leveled logging functions backed by pterm's default logger.
// All output goes to stderr by default (pterm's default).

func LogTrace(format string, args ...interface{})   { logf(pterm.LogLevelTrace, format, args) }
func LogDebug(format string, args ...interface{})   { logf(pterm.LogLevelDebug, format, args) }
func LogInfo(format string, args ...interface{})    { logf(pterm.LogLevelInfo, format, args) }
func LogSuccess(format string, args ...interface{}) { logf(pterm.LogLevelInfo, format, args) }
func LogWarning(format string, args ...interface{}) { logf(pterm.LogLevelWarn, format, args) }
func LogError(format string, args ...interface{})   { logf(pterm.LogLevelError, format, args) }

// logf formats the message only when level is enabled; RX/TX debug lines are
// emitted for every signaling frame.
func logf(level pterm.LogLevel, format string, args []interface{}) {
	l := pterm.DefaultLogger
	if !l.CanPrint(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	switch level {
	case pterm.LogLevelTrace:
		l.Trace(msg)
	case pterm.LogLevelDebug:
		l.Debug(msg)
	case pterm.LogLevelWarn:
		l.Warn(msg)
	case pterm.LogLevelError:
		l.Error(msg)
	default:
		l.Info(msg)
	}
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// DebugEnabled reports whether debug messages are shown.
func DebugEnabled() bool {
	return pterm.DefaultLogger.Level <= pterm.LogLevelDebug
}

// SetLogOutput redirects log output, e.g. to io.Discard in tests. Nil
// restores stderr.
func SetLogOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	pterm.DefaultLogger.Writer = w
}
