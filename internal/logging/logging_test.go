package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_StructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core)).With("component", "test")

	logger.Info("flow completed", "flow", "generate-quiz")
	logger.Warn("flow failed", "flow", "ai-tutor", "kind", "invoker")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "flow completed", entries[0].Message)
	assert.Equal(t, map[string]any{"component": "test", "flow": "generate-quiz"}, entries[0].ContextMap())
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestNewLogger_Modes(t *testing.T) {
	for _, mode := range []string{"dev", "prod", ""} {
		logger, err := NewLogger(mode)
		require.NoError(t, err, mode)
		logger.Debug("hello")
	}
	NewNop().Error("discarded")
}
