package logger_i

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/akolanti/GoRAG/internal/config"
)

// Logger resolves slog.Default() on every call so package level loggers
// created before Init still pick up the configured handler.
type Logger struct {
	attrs []any
}

// Init installs the process-wide slog handler on stdout. LOG_LEVEL (debug|info|warn|error) overrides the default.
func Init() {
	InitTo(os.Stdout)
}

// InitTo is Init writing to w. ragctl logs to stderr so stdout stays free for results and MCP stdio.
func InitTo(w io.Writer) {
	options := &slog.HandlerOptions{
		Level: levelFromEnv(slog.LevelDebug),
	}

	var handler slog.Handler
	if config.IS_PROD {
		options.Level = levelFromEnv(config.LOG_LEVEL_PROD)
		handler = slog.NewJSONHandler(w, options)
	} else {
		handler = slog.NewTextHandler(w, options)
	}
	slog.SetDefault(slog.New(handler))
}

func levelFromEnv(fallback slog.Level) slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

func NewLogger(section string) *Logger {
	return &Logger{attrs: []any{"component", section}}
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	inner := slog.Default()
	if !inner.Enabled(context.Background(), level) {
		return
	}
	inner.With(l.attrs...).Log(context.Background(), level, msg, args...)
}

func (l *Logger) With(args ...any) *Logger {
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, args...)
	return &Logger{attrs: attrs}
}

// FromContext returns a child logger tagged with the trace id carried by ctx, if any.
func (l *Logger) FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	if trace := TraceId(ctx); trace != "" {
		return l.With(string(config.TRACE_ID_KEY), trace)
	}
	return l
}

// TraceId returns the trace id stored on ctx or an empty string.
func TraceId(ctx context.Context) string {
	trace, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return trace
}

// WithTraceId stores trace on ctx under the key the middleware and workers share.
func WithTraceId(ctx context.Context, trace string) context.Context {
	return context.WithValue(ctx, config.TRACE_ID_KEY, trace)
}
