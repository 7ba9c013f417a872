package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5/middleware"
)

type ContextKey string

const (
	// KeyNameKey carries the name of the api key that authenticated the request.
	KeyNameKey ContextKey = "key_name"
	// FilterKey carries the raw filter string being compiled.
	FilterKey ContextKey = "filter"
)

type Config struct {
	Level     slog.Level
	Format    string // "json" or "text"
	AddSource bool
	Writer    io.Writer
}

func DefaultConfig() Config {
	return Config{
		Level:  slog.LevelInfo,
		Format: "json",
		Writer: os.Stdout,
	}
}

// LoadConfig reads RSQL_LOG_LEVEL and RSQL_LOG_FORMAT on top of the defaults.
func LoadConfig() Config {
	cfg := DefaultConfig()
	if lvl := os.Getenv("RSQL_LOG_LEVEL"); lvl != "" {
		cfg.Level = ParseLevel(lvl)
	}
	if format := os.Getenv("RSQL_LOG_FORMAT"); format == "text" || format == "json" {
		cfg.Format = format
	}
	return cfg
}

func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func New(cfg Config) *slog.Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(New(LoadConfig()))
}

// Logger returns the process-wide logger.
func Logger() *slog.Logger {
	return current.Load()
}

// Init replaces the process-wide logger, typically once config is loaded.
func Init(cfg Config) *slog.Logger {
	l := New(cfg)
	current.Store(l)
	return l
}

func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

func DebugContext(ctx context.Context, msg string, args ...any) {
	Logger().DebugContext(ctx, msg, appendContextArgs(ctx, args...)...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	Logger().InfoContext(ctx, msg, appendContextArgs(ctx, args...)...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	Logger().WarnContext(ctx, msg, appendContextArgs(ctx, args...)...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	Logger().ErrorContext(ctx, msg, appendContextArgs(ctx, args...)...)
}

func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

func appendContextArgs(ctx context.Context, args ...any) []any {
	if ctx == nil {
		return args
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		args = append(args, "request_id", reqID)
	}
	if name, ok := ctx.Value(KeyNameKey).(string); ok {
		args = append(args, "key_name", name)
	}
	if filter, ok := ctx.Value(FilterKey).(string); ok && filter != "" {
		args = append(args, "filter", filter)
	}
	return args
}
