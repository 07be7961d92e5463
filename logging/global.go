package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/farmavigil/farmavigil-api/config"
)

// Options configures the global logger
type Options struct {
	Dir           string
	Env           config.Environment
	Level         string
	RetentionDays int
	MaxFileSize   int64
	// Verbose keeps console output at info level while running tests
	Verbose bool
	// Console defaults to os.Stdout
	Console io.Writer
}

// LoggingService bundles the logger with the file sink it owns
type LoggingService struct {
	Logger   *slog.Logger
	rotating *RotatingLogger
}

// Close flushes and closes the log file
func (s *LoggingService) Close() error {
	if s == nil || s.rotating == nil {
		return nil
	}
	return s.rotating.Close()
}

var (
	DefaultLoggingService *LoggingService
	serviceMu             sync.Mutex
)

// InitLogger initializes the global logger with development defaults
func InitLogger(logDir string) *LoggingService {
	return InitLoggerWithOptions(Options{Dir: logDir, Env: config.EnvDevelopment})
}

// InitLoggerWithOptions initializes the global logger and sets it as the slog default.
// The previous service, if any, is closed.
func InitLoggerWithOptions(opts Options) *LoggingService {
	service := NewLoggingService(opts)

	serviceMu.Lock()
	previous := DefaultLoggingService
	DefaultLoggingService = service
	serviceMu.Unlock()

	slog.SetDefault(service.Logger)
	if previous != nil {
		_ = previous.Close()
	}
	return service
}

// NewLoggingService builds a console (text) plus file (JSON) logger. When the log
// directory cannot be used it falls back to the console only.
func NewLoggingService(opts Options) *LoggingService {
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 28
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}

	consoleHandler := slog.NewTextHandler(opts.Console, &slog.HandlerOptions{
		Level: GetConsoleLogLevel(opts.Env, opts.Level, opts.Verbose),
	})

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		logger := slog.New(consoleHandler)
		logger.Error("Failed to create logs directory", "dir", opts.Dir, "error", err)
		return &LoggingService{Logger: logger}
	}

	rotating := NewRotatingLoggerWithSizeLimit(opts.Dir, opts.RetentionDays, opts.MaxFileSize)

	rotating.mu.Lock()
	rotateErr := rotating.doRotate(getDayKey(rotating.now()))
	rotating.mu.Unlock()
	if rotateErr != nil {
		logger := slog.New(consoleHandler)
		logger.Error("Failed to initialize rotating logger", "error", rotateErr)
		return &LoggingService{Logger: logger}
	}

	rotating.startCleanup(24 * time.Hour)

	fileHandler := slog.NewJSONHandler(rotating, &slog.HandlerOptions{
		Level: GetFileLogLevel(),
	})

	return &LoggingService{
		Logger:   slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}}),
		rotating: rotating,
	}
}

// parseLogLevel maps a LOG_LEVEL value, defaulting to info
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// GetConsoleLogLevel chooses the console level. An explicit level wins, except under
// tests where the console stays at error (info when verbose) to keep output readable.
func GetConsoleLogLevel(env config.Environment, level string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}

	if strings.TrimSpace(level) != "" {
		return parseLogLevel(level)
	}

	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel returns the file level; files always keep debug records
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

func current() *slog.Logger {
	serviceMu.Lock()
	defer serviceMu.Unlock()
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return nil
	}
	return DefaultLoggingService.Logger
}

func fallback(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	if logger := current(); logger != nil {
		logger.Info(msg, args...)
		return
	}
	fallback(slog.LevelInfo).Info(msg, args...)
}

func Error(msg string, args ...any) {
	if logger := current(); logger != nil {
		logger.Error(msg, args...)
		return
	}
	fallback(slog.LevelError).Error(msg, args...)
}

func Warn(msg string, args ...any) {
	if logger := current(); logger != nil {
		logger.Warn(msg, args...)
		return
	}
	fallback(slog.LevelWarn).Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	if logger := current(); logger != nil {
		logger.Debug(msg, args...)
		return
	}
	fallback(slog.LevelDebug).Debug(msg, args...)
}
