// Package logger provides structured logging and context-aware logger injection.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey struct{}

// L is the global default logger; initialize with Init or use FromContext for request-scoped loggers.
var (
	L      = slog.Default()
	logKey = ctxKey{}
)

// Option configures optional log sinks.
type Option func(*options)

type options struct {
	file      string
	sentryDSN string
	stdout    io.Writer
}

// WithFile additionally writes log records to a size-rotated file.
func WithFile(path string) Option {
	return func(o *options) { o.file = strings.TrimSpace(path) }
}

// WithSentry forwards error records to Sentry when dsn is non-empty.
func WithSentry(dsn string) Option {
	return func(o *options) { o.sentryDSN = strings.TrimSpace(dsn) }
}

// WithOutput replaces stdout as the primary sink.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// Init initializes the global logger with the given level and format (e.g. "debug", "json").
func Init(level, format string, opts ...Option) {
	o := options{stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	var out io.Writer = o.stdout
	if o.file != "" {
		out = io.MultiWriter(o.stdout, &lumberjack.Logger{
			Filename:   o.file,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		})
	}

	handlerOpts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	if o.sentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{Dsn: o.sentryDSN})
		if err == nil {
			handler = slogmulti.Fanout(handler, slogsentry.Option{
				Level: slog.LevelError,
			}.NewSentryHandler())
		}
	}

	L = slog.New(handler)
	slog.SetDefault(L)
}

// Flush waits up to timeout for buffered Sentry events. It is a no-op
// when Sentry is not configured.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// FromContext returns the logger from ctx, or the global logger if not set.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(logKey).(*slog.Logger); ok {
		return l
	}
	return L
}

// WithContext stores the logger in ctx and returns the new context.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, logKey, l)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs at debug level with the global logger (slog.Attr or key-value pairs).
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs at info level with the global logger.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs at warn level with the global logger.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs at error level with the global logger.
func Error(msg string, args ...any) { L.Error(msg, args...) }
