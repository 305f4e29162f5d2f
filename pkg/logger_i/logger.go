package logger_i

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/akolanti/JournalRAG/internal/config"
)

type Logger struct {
	inner *slog.Logger
}

// Init installs the process-wide handler. The mcp command passes stderr since stdout carries the protocol.
func Init(level slog.Level) {
	InitWithWriter(os.Stdout, level)
}

func InitWithWriter(w io.Writer, level slog.Level) {
	options := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if config.IS_PROD {
		handler = slog.NewJSONHandler(w, options)
	} else {
		handler = slog.NewTextHandler(w, options)
	}
	slog.SetDefault(slog.New(handler))
}

func NewLogger(section string) *Logger {
	return &Logger{
		inner: slog.Default().With("component", section),
	}
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
	if !l.inner.Enabled(context.Background(), level) {
		return
	}
	l.inner.Log(context.Background(), level, msg, args...)
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		inner: l.inner.With(args...),
	}
}

// WithTrace tags the logger with the request trace id, if the context carries one.
func (l *Logger) WithTrace(ctx context.Context) *Logger {
	if trace, ok := TraceID(ctx); ok {
		return l.With("traceId", trace)
	}
	return l
}

func TraceID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	trace, ok := ctx.Value(config.TRACE_ID_KEY).(string)
	return trace, ok && trace != ""
}

// ContextWithTrace is what the middleware and the worker use to seed a request context.
func ContextWithTrace(ctx context.Context, trace string) context.Context {
	return context.WithValue(ctx, config.TRACE_ID_KEY, trace)
}
