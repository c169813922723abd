package logger

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesJSON(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "app.log")
	log, err := NewLogger(
		WithLevel("debug"),
		WithEncoding("json"),
		WithOutputPaths([]string{logFile}),
	)
	require.NoError(t, err)

	log.Info("task enqueued",
		String("taskId", "task-1"),
		Int("priority", 2),
	)
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "task enqueued", entry["message"])
	assert.Equal(t, "task-1", entry["taskId"])
	assert.Equal(t, 2.0, entry["priority"])
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "app.log")
	log, err := NewLogger(
		WithLevel("warn"),
		WithOutputPaths([]string{logFile}),
	)
	require.NoError(t, err)

	log.Info("filtered out")
	log.Warn("kept")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "filtered out")
	assert.Contains(t, string(data), "kept")
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	_, err := NewLogger(WithLevel("loud"))
	assert.Error(t, err)
}

func TestNewLoggerInitialFields(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "app.log")
	log, err := NewLogger(
		WithOutputPaths([]string{logFile}),
		WithInitialFields(map[string]interface{}{"service": "estimation-validator"}),
	)
	require.NoError(t, err)

	log.Info("started")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"estimation-validator"`)
}

func TestWithAttachesFields(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "app.log")
	log, err := NewLogger(WithOutputPaths([]string{logFile}))
	require.NoError(t, err)

	log.With(String("documentId", "EST-2024-001")).Info("processing")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"documentId":"EST-2024-001"`)
}

func TestContextLoggerPicksUpContextValues(t *testing.T) {
	base := NewTestLogger()
	ctxLog := NewContextLogger(base)

	ctx := context.WithValue(context.Background(), "request_id", "req-1")
	ctx = context.WithValue(ctx, "document_id", "doc-1")

	ctxLog.FromContext(ctx).Info("handled")

	entries := base.GetEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "handled", entries[0].Message)
}

func TestTestLoggerRecordsEntries(t *testing.T) {
	log := NewTestLogger()

	log.Debug("d")
	log.Warn("w", Error(errors.New("boom")))
	log.Named("sub").Error("e")

	entries := log.GetEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "DEBUG", entries[0].Level)
	assert.Equal(t, "WARN", entries[1].Level)
	assert.Len(t, entries[1].Fields, 1)
	assert.Equal(t, "ERROR", entries[2].Level)

	log.Clear()
	assert.Empty(t, log.GetEntries())
}
