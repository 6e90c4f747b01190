package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewHandler_SimpleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(slog.LevelInfo, &buf, FormatSimple, false))

	log.With("workflow", "general").Info("Run started", "subject", "ACME")
	log.Debug("hidden")

	out := buf.String()
	assert.Equal(t, "INFO Run started workflow=general subject=ACME\n", out)
}

func TestNewHandler_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(slog.LevelWarn, &buf, FormatJSON, false))

	log.Warn("Slow tool", "tool", "search_google")

	assert.True(t, strings.Contains(buf.String(), `"msg":"Slow tool"`))
	assert.True(t, strings.Contains(buf.String(), `"tool":"search_google"`))
}

func TestFilteringHandler_LevelGate(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(slog.LevelError, &buf, FormatSimple, false)

	assert.False(t, h.Enabled(t.Context(), slog.LevelWarn))
	assert.True(t, h.Enabled(t.Context(), slog.LevelError))
}
