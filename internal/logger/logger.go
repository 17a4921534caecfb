package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/kirsle/configdir"
)

var Logger *log.Logger

func init() {
	Logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})

	// Set log level from environment variable
	if level, ok := ParseLevel(os.Getenv("LOG_LEVEL")); ok {
		Logger.SetLevel(level)
	} else {
		Logger.SetLevel(log.InfoLevel)
	}
}

// ParseLevel maps a level name to a log level. Unknown names report false.
func ParseLevel(name string) (log.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return log.DebugLevel, true
	case "INFO":
		return log.InfoLevel, true
	case "WARN", "WARNING":
		return log.WarnLevel, true
	case "ERROR":
		return log.ErrorLevel, true
	case "FATAL":
		return log.FatalLevel, true
	default:
		return log.InfoLevel, false
	}
}

// SetLevel overrides the level when name is a known level.
func SetLevel(name string) {
	if level, ok := ParseLevel(name); ok {
		Logger.SetLevel(level)
	}
}

// SetOutput redirects all log output.
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// LogFilePath returns where file logging writes for the given mode.
func LogFilePath(mode string) string {
	name := fmt.Sprintf("waytablet-%s.log", strings.ToLower(mode))
	return filepath.Join(configdir.LocalCache("waytablet"), name)
}

// SetupFileLogging sends log output to a per-mode file in the user cache
// directory. Used while a TUI owns the terminal.
func SetupFileLogging(mode string) (*os.File, error) {
	path := LogFilePath(mode)
	if err := configdir.MakePath(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	Logger.SetOutput(f)
	Logger.SetPrefix(strings.ToUpper(mode))
	return f, nil
}

// Convenience functions for common operations
func Info(msg interface{}, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

func Debug(msg interface{}, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

func Warn(msg interface{}, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

func Error(msg interface{}, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}

func Fatal(msg interface{}, keyvals ...interface{}) {
	Logger.Fatal(msg, keyvals...)
}

func Infof(format string, args ...interface{}) {
	Logger.Infof(format, args...)
}

func Debugf(format string, args ...interface{}) {
	Logger.Debugf(format, args...)
}

func Warnf(format string, args ...interface{}) {
	Logger.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	Logger.Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	Logger.Fatalf(format, args...)
}
