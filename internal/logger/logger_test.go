package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		require.Equal(t, want, parseLevel(in), "input %q", in)
	}
}

func TestInitDebugFlag(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEBUG", "true")

	var buf bytes.Buffer
	InitWithWriter(&buf)
	Debug("fetching feed", "url", "https://example.com/rss")

	out := buf.String()
	require.True(t, strings.Contains(out, "level=DEBUG"), out)
	require.True(t, strings.Contains(out, "url=https://example.com/rss"), out)
}

func TestInitLogLevelOverridesDebug(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DEBUG", "true")

	var buf bytes.Buffer
	InitWithWriter(&buf)
	Info("dropped")
	Warn("kept")

	require.NotContains(t, buf.String(), "dropped")
	require.Contains(t, buf.String(), "kept")
}
