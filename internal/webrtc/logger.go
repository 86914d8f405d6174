package webrtc

import (
	"fmt"

	"github.com/pion/logging"

	"github.com/1ureka/roomcall/internal/util"
)

// loggerFactory routes pion's scoped loggers into util's leveled logger.
type loggerFactory struct{}

// NewLoggerFactory returns a pion LoggerFactory writing through util.
// pion's Info level is chatty, so it is demoted to debug.
func NewLoggerFactory() logging.LoggerFactory { return loggerFactory{} }

func (loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &scopedLogger{prefix: "[pion/" + scope + "] "}
}

type scopedLogger struct {
	prefix string
}

func (l *scopedLogger) Trace(msg string) { util.LogTrace("%s", l.prefix+msg) }
func (l *scopedLogger) Tracef(format string, args ...interface{}) {
	util.LogTrace("%s", l.prefix+fmt.Sprintf(format, args...))
}

func (l *scopedLogger) Debug(msg string) { util.LogDebug("%s", l.prefix+msg) }
func (l *scopedLogger) Debugf(format string, args ...interface{}) {
	util.LogDebug("%s", l.prefix+fmt.Sprintf(format, args...))
}

func (l *scopedLogger) Info(msg string) { util.LogDebug("%s", l.prefix+msg) }
func (l *scopedLogger) Infof(format string, args ...interface{}) {
	util.LogDebug("%s", l.prefix+fmt.Sprintf(format, args...))
}

func (l *scopedLogger) Warn(msg string) { util.LogWarning("%s", l.prefix+msg) }
func (l *scopedLogger) Warnf(format string, args ...interface{}) {
	util.LogWarning("%s", l.prefix+fmt.Sprintf(format, args...))
}

func (l *scopedLogger) Error(msg string) { util.LogError("%s", l.prefix+msg) }
func (l *scopedLogger) Errorf(format string, args ...interface{}) {
	util.LogError("%s", l.prefix+fmt.Sprintf(format, args...))
}
