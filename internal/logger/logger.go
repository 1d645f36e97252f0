// Package logger configures the process-wide logger. The level comes
// from $LOG_LEVEL; protocol tracing is gated separately on
// $WAYLAND_DEBUG the way the reference C implementations do it.
package logger

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

var Logger *log.Logger

var wire = func(string, ...any) {}

func init() {
	Logger = log.New(os.Stderr)
	SetLevel(os.Getenv("LOG_LEVEL"))

	debugLevel, err := strconv.ParseInt(os.Getenv("WAYLAND_DEBUG"), 10, 0)
	if err == nil && debugLevel > 0 {
		wire = func(str string, args ...any) { Logger.Debugf(str, args...) }
	}
}

// SetLevel overrides the level picked up from the environment.
// Unknown names fall back to info.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		Logger.SetLevel(log.DebugLevel)
	case "WARN", "WARNING":
		Logger.SetLevel(log.WarnLevel)
	case "ERROR":
		Logger.SetLevel(log.ErrorLevel)
	default:
		Logger.SetLevel(log.InfoLevel)
	}
}

func Debug(msg any, keyvals ...any) { Logger.Debug(msg, keyvals...) }
func Info(msg any, keyvals ...any)  { Logger.Info(msg, keyvals...) }
func Warn(msg any, keyvals ...any)  { Logger.Warn(msg, keyvals...) }
func Error(msg any, keyvals ...any) { Logger.Error(msg, keyvals...) }

// Wire logs a protocol message trace. It is a no-op unless
// $WAYLAND_DEBUG is set to a positive integer.
func Wire(str string, args ...any) {
	wire(str, args...)
}
