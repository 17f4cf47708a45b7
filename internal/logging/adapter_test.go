package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlogAdapter_WithNil(t *testing.T) {
	adapter := NewSlogAdapter(nil)
	require.NotNil(t, adapter)
	assert.NotNil(t, adapter.Logger())
}

func TestSlogAdapter_WritesLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	adapter := NewSlogAdapter(logger)

	adapter.Debug("debug message", "key", "d")
	adapter.Info("info message", "key", "i")
	adapter.Warn("warn message", "key", "w")
	adapter.Error("error message", "key", "e")

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG msg=\"debug message\" key=d")
	assert.Contains(t, out, "level=INFO msg=\"info message\" key=i")
	assert.Contains(t, out, "level=WARN msg=\"warn message\" key=w")
	assert.Contains(t, out, "level=ERROR msg=\"error message\" key=e")
	assert.Same(t, logger, adapter.Logger())
}

func TestDefaultLogger(t *testing.T) {
	var _ Logger = DefaultLogger()
}
