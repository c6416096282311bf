// Package logger provides leveled file logging for the werkbank components.
// Logging goes to a file (never the terminal: stdout/stderr belong to the
// caller protocol and to spawned commands), or to io.Discard when unconfigured.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Level represents a logging level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level, defaulting to LevelInfo
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "none", "off":
		return LevelNone
	default:
		return LevelInfo
	}
}

// Logger writes leveled log lines to a single destination
type Logger struct {
	mu       sync.RWMutex
	level    Level
	logger   *log.Logger
	prefix   string
	file     *os.File
	disabled bool
}

var (
	globalLogger *Logger
	globalOnce   sync.Once
)

// Init sets up the global logger with the given file path and level.
// Safe to call more than once; only the first call takes effect.
func Init(path string, level Level) error {
	var err error
	globalOnce.Do(func() {
		globalLogger, err = New(path, level)
	})
	return err
}

// New creates a logger writing to the given file path. An empty path or
// LevelNone yields a disabled logger that discards everything.
func New(path string, level Level) (*Logger, error) {
	if path == "" || level == LevelNone {
		return &Logger{
			level:    LevelNone,
			logger:   log.New(io.Discard, "", 0),
			disabled: true,
		}, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Logger{
		level:  level,
		logger: log.New(f, "", log.LstdFlags|log.Lmicroseconds),
		file:   f,
	}, nil
}

// Global returns the global logger, or a disabled logger when Init was
// never called.
func Global() *Logger {
	if globalLogger == nil {
		return &Logger{
			level:    LevelNone,
			logger:   log.New(io.Discard, "", 0),
			disabled: true,
		}
	}
	return globalLogger
}

// WithPrefix returns a logger that prepends the given prefix to every line.
// Prefixes accumulate with ":" so subsystems can nest.
func (l *Logger) WithPrefix(prefix string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	combined := prefix
	if l.prefix != "" {
		combined = l.prefix + ":" + prefix
	}
	return &Logger{
		level:    l.level,
		logger:   l.logger,
		prefix:   combined,
		file:     l.file,
		disabled: l.disabled,
	}
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.disabled || level < l.level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		l.logger.Printf("[%s] [%s] %s", level, l.prefix, msg)
	} else {
		l.logger.Printf("[%s] %s", level, msg)
	}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Close closes the underlying log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Debug logs at debug level on the global logger.
func Debug(format string, args ...interface{}) {
	Global().Debug(format, args...)
}

// Info logs at info level on the global logger.
func Info(format string, args ...interface{}) {
	Global().Info(format, args...)
}

// Warn logs at warn level on the global logger.
func Warn(format string, args ...interface{}) {
	Global().Warn(format, args...)
}

// Error logs at error level on the global logger.
func Error(format string, args ...interface{}) {
	Global().Error(format, args...)
}
