// Package observability provides structured logging, metrics collection,
// health checks and request correlation for billora.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ServiceName tags every log line and metric.
const ServiceName = "billora"

// Version is overridden at build time with -ldflags.
var Version = "dev"

type LogConfig struct {
	Level          LogLevel
	Format         LogFormat
	Output         io.Writer // stderr when nil
	AddSource      bool
	ServiceName    string
	ServiceVersion string

	// LevelVar, when set, is initialised from Level and stays adjustable
	// after the logger is built. The CLI raises it for --verbose.
	LevelVar *slog.LevelVar
}

// DefaultLogConfig is the development layout: text on stderr.
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: LogLevelInfo, Format: LogFormatText, Output: os.Stderr, ServiceName: ServiceName, ServiceVersion: Version}
}

// ProductionLogConfig is JSON on stdout with source locations.
func ProductionLogConfig() LogConfig {
	return LogConfig{Level: LogLevelInfo, Format: LogFormatJSON, Output: os.Stdout, AddSource: true, ServiceName: ServiceName, ServiceVersion: Version}
}

// EnvLogConfig picks the layout from APP_ENV and applies LOG_LEVEL.
// LOG_FORMAT overrides the format when set.
func EnvLogConfig(appEnv, level string) LogConfig {
	cfg := DefaultLogConfig()
	if appEnv == "production" {
		cfg = ProductionLogConfig()
	}
	if level != "" {
		cfg.Level = LogLevel(strings.ToLower(level))
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = LogFormat(strings.ToLower(format))
	}
	return cfg
}

func NewLoggerForEnv(appEnv, level string) *slog.Logger {
	return NewLogger(EnvLogConfig(appEnv, level))
}

func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	var leveler slog.Leveler = parseSlogLevel(cfg.Level)
	if cfg.LevelVar != nil {
		cfg.LevelVar.Set(parseSlogLevel(cfg.Level))
		leveler = cfg.LevelVar
	}
	opts := &slog.HandlerOptions{Level: leveler, AddSource: cfg.AddSource}

	var h slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.Format == LogFormatJSON {
		h = slog.NewJSONHandler(out, opts)
	}

	var static []slog.Attr
	if cfg.ServiceName != "" {
		static = append(static, slog.String("service", cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		static = append(static, slog.String("version", cfg.ServiceVersion))
	}
	return slog.New(&contextHandler{next: h, static: static})
}

func parseSlogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// contextHandler stamps the service attributes plus whichever correlation,
// request and actor ids the record's context carries.
type contextHandler struct {
	next   slog.Handler
	static []slog.Attr
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.static...)
	for _, kv := range [...]struct{ key, val string }{
		{CorrelationIDKey, CorrelationIDFromContext(ctx)},
		{RequestIDKey, RequestIDFromContext(ctx)},
		{ActorIDKey, ActorIDFromContext(ctx)},
	} {
		if kv.val != "" {
			r.AddAttrs(slog.String(kv.key, kv.val))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs), static: h.static}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name), static: h.static}
}

// LogOperation scopes logger to one named operation.
func LogOperation(logger *slog.Logger, operation string, attrs ...any) *slog.Logger {
	return logger.With(append([]any{OperationKey, operation}, attrs...)...)
}
