package archive

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daracheol/lingotutor/internal/storage_manager"
	"github.com/daracheol/lingotutor/pkg/logger"
)

func newTestLogger() logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:  logger.DebugLevel,
		Output: io.Discard,
	})
}

func TestArchiverAppendsEntries(t *testing.T) {
	provider := storage_manager.NewLocalFileProvider(t.TempDir())
	a := New(Config{Provider: provider, Logger: newTestLogger()})

	ts := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	a.Record("u1", Entry{UserText: "hola", Reply: "Hola! How can I help?", Timestamp: ts})
	a.Record("u1", Entry{UserText: "what is ser?", Reply: "Ser means to be.", Timestamp: ts.Add(time.Minute)})
	a.Close()

	data, err := provider.Read(context.Background(), "transcripts/u1/2026-09-01.json")
	require.NoError(t, err)

	var entries []Entry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "hola", entries[0].UserText)
	assert.Equal(t, "Ser means to be.", entries[1].Reply)
}

func TestArchiverSplitsByDay(t *testing.T) {
	provider := storage_manager.NewLocalFileProvider(t.TempDir())
	a := New(Config{Provider: provider, Logger: newTestLogger()})

	day1 := time.Date(2026, 9, 1, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)
	a.Record("u1", Entry{UserText: "late night", Reply: "ok", Timestamp: day1})
	a.Record("u1", Entry{UserText: "next day", Reply: "ok", Timestamp: day2})
	a.Close()

	files, err := provider.List(context.Background(), "transcripts/u1")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestArchiverIsolatesUsers(t *testing.T) {
	provider := storage_manager.NewLocalFileProvider(t.TempDir())
	a := New(Config{Provider: provider, Logger: newTestLogger()})

	ts := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	a.Record("u1", Entry{UserText: "a", Reply: "b", Timestamp: ts})
	a.Record("u2", Entry{UserText: "c", Reply: "d", Timestamp: ts})
	a.Close()

	ctx := context.Background()
	ok, err := provider.Exists(ctx, "transcripts/u1/2026-09-01.json")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = provider.Exists(ctx, "transcripts/u2/2026-09-01.json")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestArchiverRecordAfterClose(t *testing.T) {
	provider := storage_manager.NewLocalFileProvider(t.TempDir())
	a := New(Config{Provider: provider, Logger: newTestLogger()})

	ts := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	a.Record("u1", Entry{UserText: "before", Reply: "ok", Timestamp: ts})
	a.Close()

	// A handler goroutine outliving shutdown must not panic, and its
	// entry is dropped rather than processed.
	assert.NotPanics(t, func() {
		a.Record("u1", Entry{UserText: "after", Reply: "ok", Timestamp: ts})
	})
	assert.NotPanics(t, a.Close)

	data, err := provider.Read(context.Background(), "transcripts/u1/2026-09-01.json")
	require.NoError(t, err)

	var entries []Entry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "before", entries[0].UserText)
}

func TestArchiverRecordsFileUploads(t *testing.T) {
	provider := storage_manager.NewLocalFileProvider(t.TempDir())
	a := New(Config{Provider: provider, Logger: newTestLogger()})

	ts := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	a.Record("u1", Entry{UserText: "[uploaded quiz.pdf]", Reply: "A grammar quiz.", FileName: "quiz.pdf", Timestamp: ts})
	a.Close()

	data, err := provider.Read(context.Background(), "transcripts/u1/2026-09-01.json")
	require.NoError(t, err)

	var entries []Entry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "quiz.pdf", entries[0].FileName)
}
