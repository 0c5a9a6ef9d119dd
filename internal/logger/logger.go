package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the structured logging interface used throughout the service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	SetLevel(level slog.Level)
	GetLevel() slog.Level
}

// SlogLogger wraps slog.Logger with a level that can change at runtime.
type SlogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// New creates a logger writing text records to stdout at info level.
func New() *SlogLogger {
	return NewWithWriter(os.Stdout, slog.LevelInfo)
}

// NewWithWriter creates a logger writing text records to w.
func NewWithWriter(w io.Writer, level slog.Level) *SlogLogger {
	levelVar := &slog.LevelVar{}
	levelVar.Set(level)
	return &SlogLogger{
		logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar})),
		level:  levelVar,
	}
}

// Discard returns a logger that drops every record. Useful in tests.
func Discard() *SlogLogger {
	return NewWithWriter(io.Discard, slog.LevelError)
}

// ParseLevel converts debug, info, warn or error (any case) to a slog.Level.
// Unrecognised input yields info.
func ParseLevel(level string) slog.Level {
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

func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

func (l *SlogLogger) Info(msg string, args ...any) { l.logger.Info(msg, args...) }

func (l *SlogLogger) Warn(msg string, args ...any) { l.logger.Warn(msg, args...) }

func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// With returns a child logger that shares the level and adds args to every record.
func (l *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{logger: l.logger.With(args...), level: l.level}
}

func (l *SlogLogger) SetLevel(level slog.Level) { l.level.Set(level) }

func (l *SlogLogger) GetLevel() slog.Level { return l.level.Level() }
