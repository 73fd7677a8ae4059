package telemetry

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*ParquetHandler, string) {
	t.Helper()
	dir := t.TempDir()
	h, err := NewParquetHandler(slog.NewTextHandler(io.Discard, nil), dir)
	require.NoError(t, err)
	return h, dir
}

func readEvents(t *testing.T, dir string) []EventRecord {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var events []EventRecord
	for _, entry := range entries {
		require.True(t, strings.HasSuffix(entry.Name(), ".parquet"))
		require.True(t, strings.HasPrefix(entry.Name(), "processing_events_"))
		rows, err := parquet.ReadFile[EventRecord](filepath.Join(dir, entry.Name()))
		require.NoError(t, err)
		events = append(events, rows...)
	}
	return events
}

func TestParquetHandlerCapturesOutcomesAndErrors(t *testing.T) {
	h, dir := newTestHandler(t)
	logger := slog.New(h)

	logger.Info("url processed", "url", "https://example.com", "status", "success")
	logger.Info("healing loop started")
	logger.Debug("noise")
	logger.Error("scrape blew up", "url", "https://down.example")

	require.NoError(t, h.Flush())

	events := readEvents(t, dir)
	require.Len(t, events, 2, "only outcomes and errors are captured")

	assert.Equal(t, "url processed", events[0].Message)
	assert.Equal(t, "https://example.com", events[0].URL)
	assert.Equal(t, "success", events[0].Status)
	assert.NotEmpty(t, events[0].ID)
	assert.Contains(t, events[0].Attributes, `"status":"success"`)

	assert.Equal(t, "ERROR", events[1].Level)
	assert.Equal(t, "https://down.example", events[1].URL)
	assert.Empty(t, events[1].Status)
}

func TestParquetHandlerFlushEmptyBufferWritesNothing(t *testing.T) {
	h, dir := newTestHandler(t)

	require.NoError(t, h.Flush())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParquetHandlerPassesRecordsThrough(t *testing.T) {
	dir := t.TempDir()
	var buf strings.Builder
	h, err := NewParquetHandler(slog.NewTextHandler(&buf, nil), dir)
	require.NoError(t, err)

	slog.New(h).Info("hello", "k", "v")

	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "k=v")
}
