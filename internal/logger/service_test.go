package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		give string
		want slog.Level
	}{
		{give: "debug", want: slog.LevelDebug},
		{give: " INFO ", want: slog.LevelInfo},
		{give: "warning", want: slog.LevelWarn},
		{give: "error", want: slog.LevelError},
		{give: "", want: slog.LevelInfo},
		{give: "verbose", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.give, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseLevel(tt.give))
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	var jsonBuf bytes.Buffer
	New(&jsonBuf, slog.LevelInfo, FormatJSON).With("chain_id", 1).Info("deployed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &line))
	assert.Equal(t, "deployed", line["msg"])
	assert.InDelta(t, 1, line["chain_id"], 0)

	var textBuf bytes.Buffer
	l := New(&textBuf, slog.LevelWarn, FormatText)
	l.Info("dropped")
	l.Warn("kept", "chain", "base")
	assert.NotContains(t, textBuf.String(), "dropped")
	assert.Contains(t, textBuf.String(), "msg=kept chain=base")
}
