package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewLogger(t *testing.T) {
	t.Run("text output", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Level: LogLevelInfo, Format: LogFormatText, Output: &buf})

		logger.Info("renewal batch finished", "renewed", 3)
		assert.Contains(t, buf.String(), "renewal batch finished")
		assert.Contains(t, buf.String(), "renewed=3")
	})

	t.Run("respects log level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Level: LogLevelWarn, Output: &buf})

		logger.Debug("debug message")
		logger.Info("info message")
		logger.Warn("warn message")

		assert.NotContains(t, buf.String(), "debug message")
		assert.NotContains(t, buf.String(), "info message")
		assert.Contains(t, buf.String(), "warn message")
	})

	t.Run("adds service and context attributes", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{
			Level:          LogLevelInfo,
			Format:         LogFormatJSON,
			Output:         &buf,
			ServiceName:    ServiceName,
			ServiceVersion: "1.2.3",
		})

		ctx := WithCorrelationID(context.Background(), "corr-1")
		ctx = WithRequestID(ctx, "req-1")
		ctx = WithActorID(ctx, "scheduler")
		logger.InfoContext(ctx, "charged")

		entry := decodeLine(t, &buf)
		assert.Equal(t, "billora", entry["service"])
		assert.Equal(t, "1.2.3", entry["version"])
		assert.Equal(t, "corr-1", entry[CorrelationIDKey])
		assert.Equal(t, "req-1", entry[RequestIDKey])
		assert.Equal(t, "scheduler", entry[ActorIDKey])
	})

	t.Run("keeps attributes across With", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Format: LogFormatJSON, Output: &buf, ServiceName: ServiceName})

		LogOperation(logger, "sweep", "grace_days", 7).Info("done")

		entry := decodeLine(t, &buf)
		assert.Equal(t, "sweep", entry[OperationKey])
		assert.Equal(t, float64(7), entry["grace_days"])
		assert.Equal(t, "billora", entry["service"])
	})
}

func TestParseSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseSlogLevel(LogLevelDebug))
	assert.Equal(t, slog.LevelWarn, parseSlogLevel(LogLevelWarn))
	assert.Equal(t, slog.LevelError, parseSlogLevel(LogLevelError))
	assert.Equal(t, slog.LevelInfo, parseSlogLevel("verbose"))
}

func TestLogConfigs(t *testing.T) {
	dev := DefaultLogConfig()
	assert.Equal(t, LogFormatText, dev.Format)
	assert.Equal(t, ServiceName, dev.ServiceName)

	prod := ProductionLogConfig()
	assert.Equal(t, LogFormatJSON, prod.Format)
	assert.True(t, prod.AddSource)

	assert.NotNil(t, NewLoggerForEnv("production", "DEBUG"))
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CorrelationIDFromContext(ctx))
	assert.Equal(t, "", RequestIDFromContext(nil))

	ctx = NewRequestContext(ctx, "")
	assert.NotEmpty(t, CorrelationIDFromContext(ctx))
	assert.NotEmpty(t, RequestIDFromContext(ctx))
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", CorrelationUUID(ctx).String())

	ctx = WithCorrelationID(ctx, "not-a-uuid")
	assert.Equal(t, "not-a-uuid", CorrelationIDFromContext(ctx))
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", CorrelationUUID(ctx).String())
}

func TestNewLogger_LevelVarAdjustsAfterBuild(t *testing.T) {
	var buf bytes.Buffer
	lv := new(slog.LevelVar)
	logger := NewLogger(LogConfig{Level: LogLevelInfo, Output: &buf, LevelVar: lv})

	logger.Debug("hidden")
	lv.Set(slog.LevelDebug)
	logger.Debug("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestEnvLogConfig(t *testing.T) {
	t.Setenv("LOG_FORMAT", "JSON")
	cfg := EnvLogConfig("development", "WARN")
	assert.Equal(t, LogLevelWarn, cfg.Level)
	assert.Equal(t, LogFormatJSON, cfg.Format)
}
