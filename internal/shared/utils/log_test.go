package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestInitLoggerWritesRotatingFile(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "automation.log")
	out := InitLogger(LogOptions{Level: "warn", File: path, MaxSizeMB: 1})
	rotating, ok := out.(*lumberjack.Logger)
	require.True(t, ok)
	defer rotating.Close()

	LogInfo("dropped", nil)
	LogWarn("kept", map[string]interface{}{"automation_id": "a1"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"automation_id":"a1"`)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}
