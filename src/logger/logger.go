package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"parking-viewer/src/models"
)

// -----------------------------------------------------------------------------

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

// ParseLevel maps a config string to a Level. Unknown values mean INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARNING", "WARN":
		return LevelWarning
	case "ERROR":
		return LevelError
	case "CRITICAL":
		return LevelCritical
	default:
		return LevelInfo
	}
}

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name   string
	logger *log.Logger
	level  Level
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. A nil config logs at INFO.
func NewLogger(config *models.MConfig, name string) *Logger {
	level := LevelInfo
	if config != nil {
		level = ParseLevel(config.LogLevel)
	}
	return &Logger{
		name:   name,
		logger: log.New(os.Stdout, "", log.LstdFlags),
		level:  level,
	}
}

// -----------------------------------------------------------------------------

// Named returns a logger sharing output and level under another name
func (l *Logger) Named(name string) *Logger {
	return &Logger{name: name, logger: l.logger, level: l.level}
}

// -----------------------------------------------------------------------------

// SetOutput redirects log lines, mostly for tests
func (l *Logger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

// -----------------------------------------------------------------------------

func (l *Logger) printf(level Level, tag, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] %s: %s", l.name, tag, msg)
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.printf(LevelDebug, "DEBUG", format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable anomalies
func (l *Logger) Warning(format string, args ...interface{}) {
	l.printf(LevelWarning, "WARNING", format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.printf(LevelInfo, "INFO", format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.printf(LevelError, "ERROR", format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] CRITICAL: %s", l.name, msg)
	os.Exit(1)
}
