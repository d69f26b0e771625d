package utils

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "debug", Format: "json", OutputPath: "stdout"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger(LoggerConfig{Level: "bogus"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))

	path := filepath.Join(t.TempDir(), "logs", "server.log")
	logger, err = NewLogger(LoggerConfig{Level: "info", Format: "console", OutputPath: path})
	require.NoError(t, err)
	logger.Info("written")
	assert.FileExists(t, path)
}

func TestKVLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	kv := NewKVLogger(zap.New(core))

	kv.Info("batch submitted", "employee_code", "E001", "levels", 2, "dangling")
	kv.Error("submit failed", "error", errors.New("boom"), 42, "skipped")

	entries := logs.All()
	require.Len(t, entries, 2)

	info := entries[0].ContextMap()
	assert.Equal(t, "E001", info["employee_code"])
	assert.EqualValues(t, 2, info["levels"])
	assert.Len(t, info, 2)

	failed := entries[1].ContextMap()
	assert.Equal(t, "boom", failed["error"])
	assert.Len(t, failed, 1)
}
