package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "vsixgrab.log")
	require.NoError(t, InitLogger("warn", path))
	t.Cleanup(func() { _ = InitLogger("info", "") })

	logger := NewNamedLogger("test")
	logger.LogInfo("hidden %d", 1)
	logger.LogWarning("shown %d", 2)
	logger.LogFileOperation("write", "a.vsix", errors.New("disk full"))
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "disk full")
	assert.Contains(t, out, "test")
}

func TestInitLoggerUnknownLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vsixgrab.log")
	require.NoError(t, InitLogger("chatty", path))
	t.Cleanup(func() { _ = InitLogger("info", "") })

	NewLogger().LogDebug("debug line")
	NewLogger().LogInfo("info line")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "debug line")
	assert.Contains(t, string(data), "info line")
}

func TestNilLoggerIsUsable(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.LogInfo("nothing") })
}
