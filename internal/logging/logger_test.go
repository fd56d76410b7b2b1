package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestNew_JSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "template", "roads")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "roads", entry["template"])
}

func TestFromContext_StoredLoggerAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	ctx := NewContext(context.Background(), New(&buf, "info", "text"))
	ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-42")

	WithFields(ctx, "config_id", 7).Info("replaced values")

	out := buf.String()
	assert.Contains(t, out, "request_id=req-42")
	assert.Contains(t, out, "config_id=7")
	assert.Contains(t, out, `msg="replaced values"`)
}

func TestFromContext_DefaultsWithoutStoredLogger(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}
