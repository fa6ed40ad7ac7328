package observability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  LogConfig
		wantErr bool
	}{
		{name: "zero config", config: LogConfig{}},
		{name: "console debug", config: LogConfig{Level: "debug", Format: FormatConsole}},
		{name: "json to stdout", config: LogConfig{Level: "warn", Format: FormatJSON, Output: "stdout"}},
		{name: "invalid level", config: LogConfig{Level: "loud"}, wantErr: true},
		{name: "invalid format", config: LogConfig{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNewLogger_FileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bankctl.log")
	logger, err := NewLogger(LogConfig{Level: "info", Format: FormatJSON, Output: path})
	require.NoError(t, err)

	logger.Debug("dropped")
	logger.Info("kept", String("account", "100002"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"kept"`)
	assert.Contains(t, string(data), `"account":"100002"`)
	assert.NotContains(t, string(data), "dropped")
}

func TestLogger_WithContext(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	logger := NewLoggerFromZap(zap.New(core))

	ctx := ContextWithCorrelationID(context.Background(), "corr-1")
	ctx = ContextWithTraceID(ctx, "trace-1")

	logger.WithContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "corr-1", fields["correlation_id"])
	assert.Equal(t, "trace-1", fields["trace_id"])
}

func TestLogger_WithContext_NoFields(t *testing.T) {
	t.Parallel()

	logger := NopLogger()
	assert.Same(t, logger, logger.WithContext(context.Background()))
}

func TestEnsureCorrelationID(t *testing.T) {
	t.Parallel()

	ctx, id := EnsureCorrelationID(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, CorrelationIDFromContext(ctx))

	again, sameID := EnsureCorrelationID(ctx)
	assert.Equal(t, id, sameID)
	assert.Equal(t, ctx, again)
}

func TestGlobalLogger(t *testing.T) {
	assert.NotNil(t, L(), "a no-op logger is returned before one is set")

	logger := NopLogger()
	SetGlobalLogger(logger)
	defer SetGlobalLogger(nil)

	assert.Same(t, logger, L())
}
