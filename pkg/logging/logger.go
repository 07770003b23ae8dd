// Package logging provides structured slog loggers for glint components.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Category represents the subsystem generating the log
type Category string

const (
	CategoryTouch   Category = "touch"
	CategoryRender  Category = "render"
	CategoryFocus   Category = "focus"
	CategoryScroll  Category = "scroll"
	CategoryOverlay Category = "overlay"
	CategoryModule  Category = "module"
	CategoryBus     Category = "bus"
	CategoryDevice  Category = "device"
	CategoryAPI     Category = "api"
)

// Logger is a structured logger scoped to one component.
type Logger struct {
	*slog.Logger
}

// New creates a JSON logger writing to w.
func New(w io.Writer, component string, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With(
		slog.String("component", component),
		slog.String("system", "glint"),
	)
	return &Logger{Logger: logger}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *Logger) *Logger {
	if l == nil || l.Logger == nil {
		return Discard()
	}
	return l
}

// ParseLevel maps a config string to a slog level. Unknown values map to info.
func ParseLevel(s string) slog.Level {
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

// File is a log destination on disk. Close it when the process exits.
type File struct {
	mu sync.Mutex
	f  *os.File
}

// OpenFile opens (creating if needed) an append-only log file.
func OpenFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &File{f: f}, nil
}

// Write implements io.Writer; writes are serialized.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.f.Write(p)
}

// Close closes the underlying file.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.f.Close()
}

// WithContext returns a logger carrying the app id stored on ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	if id, ok := ctx.Value(appIDKey{}).(string); ok && id != "" {
		return &Logger{Logger: l.Logger.With(slog.String("app_id", id))}
	}
	return l
}

// WithCategory tags subsequent records with a subsystem category.
func (l *Logger) WithCategory(c Category) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("category", string(c)))}
}

// WithApp returns a logger with application context fields
func (l *Logger) WithApp(id, name string) *Logger {
	return &Logger{
		Logger: l.Logger.With(
			slog.String("app_id", id),
			slog.String("app_name", name),
		),
	}
}

// WithWidget returns a logger with widget fields
func (l *Logger) WithWidget(name string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("widget", name))}
}

// Fault logs a contained handler failure.
func (l *Logger) Fault(where string, err error, attrs ...any) {
	args := append([]any{slog.String("where", where), slog.Any("error", err)}, attrs...)
	l.Logger.Error("handler fault", args...)
}

type appIDKey struct{}

// ContextWithApp stores an app id on ctx for WithContext.
func ContextWithApp(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, appIDKey{}, id)
}
