package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("api", "info", &buf)

	log.Info("order_created", "Order created", "req-1", map[string]interface{}{
		"order_id": "abc12345",
	})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Order created", line["msg"])
	assert.Equal(t, "api", line["service"])
	assert.Equal(t, "order_created", line["action"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "abc12345", line["order_id"])
}

func TestLoggerErrorGroup(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("api", "info", &buf)

	log.Error("save_failed", "Failed to save", "req-2", errors.New("boom"), nil)

	var line struct {
		Level string `json:"level"`
		Error struct {
			Msg   string `json:"msg"`
			Stack string `json:"stack"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line.Level)
	assert.Equal(t, "boom", line.Error.Msg)
	assert.Empty(t, line.Error.Stack, "stack only at debug level")
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("api", "warn", &buf)

	log.Debug("noise", "dropped", "", nil)
	log.Info("noise", "dropped", "", nil)
	assert.Zero(t, buf.Len())

	log.Warn("kept", "kept", "", nil)
	assert.NotZero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", RequestID(ctx))
	assert.Equal(t, "", RequestID(context.Background()))

	id := GenerateRequestID()
	assert.Len(t, id, 16)
	assert.NotEqual(t, id, GenerateRequestID())
}
