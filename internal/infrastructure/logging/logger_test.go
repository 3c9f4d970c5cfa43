package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := make(map[string]interface{})
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line %q", line)
		out = append(out, entry)
	}
	return out
}

func TestLoggerIncludesCorrelationIDAndLayer(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(Options{
		Writer:    &buf,
		Level:     "debug",
		Layer:     "application",
		Component: "gate",
	})
	require.NoError(t, err)

	ctx := ports.WithCorrelationID(context.Background(), "abc123")
	logger.Info(ctx, "pipeline rejected", "pipeline_id", "p1")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	entry := entries[0]
	require.Equal(t, "application", entry["layer"])
	require.Equal(t, "gate", entry["component"])
	require.Equal(t, "abc123", entry["correlation_id"])
	require.Equal(t, "p1", entry["pipeline_id"])
	require.Equal(t, "pipeline rejected", entry["message"])
	require.Equal(t, "info", entry["level"])
}

func TestLoggerWithAddsFieldsAndRendersErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf})
	require.NoError(t, err)

	child := logger.With("component", "worker")
	child.Warn(context.Background(), "start request failed", "error", errors.New("boom"), "elapsed", 2*time.Second)

	entry := decodeLines(t, &buf)[0]
	require.Equal(t, "worker", entry["component"])
	require.Equal(t, "boom", entry["error"])
	require.Equal(t, "2s", entry["elapsed"])
	require.Equal(t, "infrastructure", entry["layer"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf, Level: "warn"})
	require.NoError(t, err)

	logger.Debug(context.Background(), "hidden")
	logger.Info(context.Background(), "hidden")
	require.Empty(t, strings.TrimSpace(buf.String()))

	logger.Error(context.Background(), "shown")
	require.Len(t, decodeLines(t, &buf), 1)
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Level: "loud"})
	require.Error(t, err)

	_, err = New(Options{Format: "xml"})
	require.Error(t, err)
}

func TestConsoleFormatWritesHumanReadableOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf, Format: FormatConsole})
	require.NoError(t, err)

	logger.Info(context.Background(), "listening", "address", ":8080")
	require.Contains(t, buf.String(), "listening")
	require.Contains(t, buf.String(), ":8080")
}

func TestStaticFieldsAreIncluded(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf, Fields: map[string]interface{}{"service": "pipegate"}})
	require.NoError(t, err)

	logger.Info(context.Background(), "ready")
	require.Equal(t, "pipegate", decodeLines(t, &buf)[0]["service"])
}

func TestStartupLoggerFlushReplaysInOrder(t *testing.T) {
	t.Parallel()

	startup := NewStartupLogger(2)
	startup.Info(context.Background(), "first")
	startup.With("component", "config").Warn(context.Background(), "second", "path", "gate.yaml")
	startup.Error(context.Background(), "third")
	require.Equal(t, 2, startup.Len(), "oldest entry is dropped past the limit")

	var buf bytes.Buffer
	delegate, err := New(Options{Writer: &buf})
	require.NoError(t, err)
	startup.Flush(delegate)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	require.Equal(t, "second", entries[0]["message"])
	require.Equal(t, "config", entries[0]["component"])
	require.Equal(t, "warn", entries[0]["level"])
	require.Equal(t, "third", entries[1]["message"])
	require.Zero(t, startup.Len())
}

func TestDiscardLoggerWritesNothing(t *testing.T) {
	t.Parallel()

	logger := Discard()
	logger.Error(context.Background(), "ignored", "error", errors.New("boom"))
	derived := logger.With("pipeline_id", "p1")
	require.NotNil(t, derived)
	derived.Info(context.Background(), "ignored")

	var nilLogger *Logger
	require.NotNil(t, nilLogger.With("k", "v"))
}
