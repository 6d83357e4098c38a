// Package logging wires log/slog for the service: text on the console and
// JSON in a weekly rotating file, plus package-level helpers used across the
// codebase.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Options configures the default logger
type Options struct {
	Dir            string // empty disables the file handler
	Level          string
	RetentionWeeks int
	MaxFileSize    int64
	Console        io.Writer
}

type LoggingService struct {
	Logger  *slog.Logger
	rotator *RotatingLogger
}

var (
	DefaultLoggingService *LoggingService
	mu                    sync.RWMutex
)

// InitLogger installs a console and file logger at info level
func InitLogger(logDir string) {
	InitLoggerWithOptions(Options{Dir: logDir, Level: "info", RetentionWeeks: 4})
}

// InitLoggerWithOptions installs the default logger described by opts and
// makes it the slog default.
func InitLoggerWithOptions(opts Options) {
	svc := newLoggingService(opts)

	mu.Lock()
	previous := DefaultLoggingService
	DefaultLoggingService = svc
	mu.Unlock()

	if previous != nil && previous.rotator != nil {
		_ = previous.rotator.Close()
	}
	slog.SetDefault(svc.Logger)
}

// Close flushes and closes the rotating file, if any
func Close() error {
	mu.Lock()
	svc := DefaultLoggingService
	mu.Unlock()

	if svc == nil || svc.rotator == nil {
		return nil
	}
	return svc.rotator.Close()
}

func newLoggingService(opts Options) *LoggingService {
	level := parseLogLevel(opts.Level)
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: level})

	if opts.Dir == "" {
		return &LoggingService{Logger: slog.New(consoleHandler)}
	}

	rotator, err := NewRotatingLoggerWithSizeLimit(opts.Dir, opts.RetentionWeeks, opts.MaxFileSize)
	if err != nil {
		logger := slog.New(consoleHandler)
		logger.Error("Failed to initialize rotating logger, logging to console only", "error", err)
		return &LoggingService{Logger: logger}
	}

	fileHandler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: level})

	return &LoggingService{
		Logger:  slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}}),
		rotator: rotator,
	}
}

// parseLogLevel maps a LOG_LEVEL value to a slog level, defaulting to info
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func current() *slog.Logger {
	mu.RLock()
	svc := DefaultLoggingService
	mu.RUnlock()

	if svc == nil || svc.Logger == nil {
		// Not initialized yet (tests, early startup)
		return slog.Default()
	}
	return svc.Logger
}

// Logger returns the active logger
func Logger() *slog.Logger {
	return current()
}

func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}
