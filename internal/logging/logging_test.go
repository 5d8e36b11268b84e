package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"error":   slog.LevelError,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"info":    slog.LevelInfo,
		"":        slog.LevelDebug,
		"trace":   slog.LevelDebug,
	}
	for in, want := range cases {
		assert.Equal(t, want, levelFromString(in), in)
	}
}

func TestJSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("cycle finished", "saved", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "cycle finished", entry["msg"])
	assert.EqualValues(t, 3, entry["saved"])
}
