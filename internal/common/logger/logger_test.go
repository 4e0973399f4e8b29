package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zap.InfoLevel, parseLevel("info"))
	assert.Equal(t, zap.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zap.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zap.InfoLevel, parseLevel(""))
	assert.Equal(t, zap.InfoLevel, parseLevel("bogus"))
}

func TestNewConsoleOnly(t *testing.T) {
	log := New(Options{Level: "debug"})
	require.NotNil(t, log)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewWithFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embed.log")

	log := New(Options{Level: "warn", FilePath: path})
	require.NotNil(t, log)

	log.Warn("rotating file output works")
	require.NoError(t, log.Sync())

	assert.FileExists(t, path)
}
