package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DEBUG},
		{" DEBUG ", DEBUG},
		{"warning", WARN},
		{"error", ERROR},
		{"info", INFO},
		{"", INFO},
		{"verbose", INFO},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: WARN, Console: &buf})
	require.NoError(t, err)

	logger.Slog().Info("hidden")
	logger.With("component", "test").Warn("shown", "run", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "component=test")
}

func TestLoggerWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tome.log")
	var console bytes.Buffer
	logger, err := NewLogger(Config{Level: INFO, OutputFile: path, JSONFormat: true, Console: &console})
	require.NoError(t, err)

	logger.Slog().Info("run finished", "gaps", 2)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"run finished"`)
	assert.Contains(t, string(data), `"gaps":2`)
	assert.Equal(t, strings.TrimSpace(console.String()), strings.TrimSpace(string(data)))
}

func TestRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tome.log")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 64), 0644))

	logger, err := NewLogger(Config{OutputFile: path, MaxSize: 32, Console: &bytes.Buffer{}})
	require.NoError(t, err)
	defer logger.Close()

	backup, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Len(t, backup, 64)
}

func TestInitializeInstallsDefault(t *testing.T) {
	var buf bytes.Buffer
	_, err := Initialize(Config{Level: DEBUG, Console: &buf})
	require.NoError(t, err)
	t.Cleanup(func() { Close() })

	Component("pipeline").Debug("hello")
	assert.Contains(t, buf.String(), "component=pipeline")
}
