package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/giygas/regimen-forecast/config"
)

// Options configures InitLoggerWithOptions
type Options struct {
	LogDir         string // empty disables the file handler
	Env            config.Environment
	Level          string
	Verbose        bool
	RetentionWeeks int
	MaxFileSize    int64
	Console        io.Writer // defaults to os.Stdout
}

// LoggingService owns the process logger and its rotating file
type LoggingService struct {
	Logger *slog.Logger
	file   *RotatingLogger
}

// Close releases the rotating file, if any
func (s *LoggingService) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

var (
	DefaultLoggingService *LoggingService
	mu                    sync.RWMutex
)

// InitLogger initializes the global logger with development defaults
func InitLogger(logDir string) {
	InitLoggerWithOptions(Options{LogDir: logDir, Env: config.EnvDevelopment})
}

// InitLoggerWithOptions builds the console + file logger, installs it as the
// package and slog default, and returns the service so callers can Close it.
func InitLoggerWithOptions(opts Options) *LoggingService {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{
		Level: GetConsoleLogLevel(opts.Env, opts.Level, opts.Verbose),
	})

	service := &LoggingService{Logger: slog.New(consoleHandler)}

	if opts.LogDir != "" {
		retention := opts.RetentionWeeks
		if retention <= 0 {
			retention = 4
		}
		maxSize := opts.MaxFileSize
		if maxSize <= 0 {
			maxSize = 100 * 1024 * 1024
		}

		file, err := NewRotatingLogger(opts.LogDir, retention, maxSize)
		if err != nil {
			service.Logger.Error("Failed to initialize rotating logger, logging to console only", "error", err)
		} else {
			fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: GetFileLogLevel()})
			service.file = file
			service.Logger = slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}})
		}
	}

	mu.Lock()
	DefaultLoggingService = service
	mu.Unlock()
	slog.SetDefault(service.Logger)

	return service
}

// current returns the installed logger or a stderr fallback
func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return DefaultLoggingService.Logger
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}
