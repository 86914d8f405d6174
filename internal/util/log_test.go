package util

import (
	"bytes"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	level := pterm.DefaultLogger.Level
	SetLogOutput(&buf)
	t.Cleanup(func() {
		SetLogOutput(nil)
		pterm.DefaultLogger.Level = level
	})
	return &buf
}

func TestLogLevels(t *testing.T) {
	buf := captureLogs(t)
	pterm.DefaultLogger.Level = pterm.LogLevelInfo

	LogDebug("hidden %d", 1)
	LogTrace("hidden %d", 2)
	assert.Empty(t, buf.String())
	assert.False(t, DebugEnabled())

	LogInfo("joined room %s", "r1")
	LogWarning("media %s", "failed")
	LogError("boom %v", 3)
	out := buf.String()
	assert.Contains(t, out, "joined room r1")
	assert.Contains(t, out, "media failed")
	assert.Contains(t, out, "boom 3")

	buf.Reset()
	EnableDebug()
	assert.True(t, DebugEnabled())
	LogDebug("RX %s", "offer")
	assert.Contains(t, buf.String(), "RX offer")
}
