package memory_service

import (
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/daracheol/lingotutor/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:  logger.DebugLevel,
		Output: io.Discard,
	})
}

type fakeTelemetry struct {
	usersSeen   atomic.Int64
	filesStored atomic.Int64
}

func (f *fakeTelemetry) UserSeen()   { f.usersSeen.Add(1) }
func (f *fakeTelemetry) FileStored() { f.filesStored.Add(1) }

func newTestService(tel Telemetry) *Service {
	return New(Config{
		Telemetry: tel,
		Logger:    newTestLogger(),
	})
}

func userTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text, Timestamp: time.Now()}
}

func TestAppendTurnBoundedHistory(t *testing.T) {
	svc := newTestService(nil)

	for i := 0; i < DefaultHistoryLimit+15; i++ {
		require.NoError(t, svc.AppendTurn("u1", userTurn(fmt.Sprintf("message %d", i))))

		turns := svc.RecentTurns("u1", DefaultHistoryLimit+1)
		assert.LessOrEqual(t, len(turns), DefaultHistoryLimit)
	}

	// The retained window is the most recent N turns, in original order.
	turns := svc.RecentTurns("u1", DefaultHistoryLimit)
	require.Len(t, turns, DefaultHistoryLimit)
	assert.Equal(t, "message 15", turns[0].Text)
	assert.Equal(t, "message 34", turns[len(turns)-1].Text)
}

func TestRecentTurnsUnknownUser(t *testing.T) {
	svc := newTestService(nil)
	assert.Empty(t, svc.RecentTurns("nobody", 5))
}

func TestRecentTurnsChronologicalOrder(t *testing.T) {
	svc := newTestService(nil)

	require.NoError(t, svc.AppendTurn("u1", Turn{Role: RoleUser, Text: "question"}))
	require.NoError(t, svc.AppendTurn("u1", Turn{Role: RoleAssistant, Text: "answer"}))
	require.NoError(t, svc.AppendTurn("u1", Turn{Role: RoleUser, Text: "follow-up"}))

	turns := svc.RecentTurns("u1", 2)
	require.Len(t, turns, 2)
	assert.Equal(t, "answer", turns[0].Text)
	assert.Equal(t, "follow-up", turns[1].Text)
}

func TestUserSeenCountedOnce(t *testing.T) {
	tel := &fakeTelemetry{}
	svc := newTestService(tel)

	require.NoError(t, svc.AppendTurn("u1", userTurn("first")))
	require.NoError(t, svc.AppendTurn("u1", userTurn("second")))
	_, err := svc.StoreFile("u1", "quiz.pdf", MediaPDF, "a grammar quiz")
	require.NoError(t, err)

	assert.Equal(t, int64(1), tel.usersSeen.Load())

	require.NoError(t, svc.AppendTurn("u2", userTurn("hello")))
	assert.Equal(t, int64(2), tel.usersSeen.Load())
}

func TestStoreFileAssignsIncreasingIDs(t *testing.T) {
	tel := &fakeTelemetry{}
	svc := newTestService(tel)

	r1, err := svc.StoreFile("u1", "quiz.pdf", MediaPDF, "a grammar quiz")
	require.NoError(t, err)
	r2, err := svc.StoreFile("u2", "photo.png", MediaImage, "a street sign")
	require.NoError(t, err)
	r3, err := svc.StoreFile("u1", "essay.pdf", MediaPDF, "an essay draft")
	require.NoError(t, err)

	assert.Greater(t, r2.ID, r1.ID)
	assert.Greater(t, r3.ID, r2.ID)
	assert.Equal(t, int64(3), tel.filesStored.Load())
}

func TestFileEvictionKeepsTenMostRecent(t *testing.T) {
	svc := newTestService(nil)

	var ids []int64
	for i := 1; i <= 11; i++ {
		r, err := svc.StoreFile("u1", fmt.Sprintf("file%d.pdf", i), MediaPDF, fmt.Sprintf("analysis %d", i))
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	recent := svc.RecentFiles("u1", DefaultFileLimit)
	require.Len(t, recent, DefaultFileLimit)

	// Most-recent-first, and the first upload has been evicted.
	assert.Equal(t, ids[10], recent[0].ID)
	assert.Equal(t, ids[1], recent[9].ID)
	for _, r := range recent {
		assert.NotEqual(t, ids[0], r.ID)
	}

	// Ordinal 10 now resolves to what was originally the 2nd upload.
	r, err := svc.FileByOrdinal("u1", 10)
	require.NoError(t, err)
	assert.Equal(t, "file2.pdf", r.Filename)
}

func TestFileByOrdinal(t *testing.T) {
	svc := newTestService(nil)

	for i := 1; i <= 3; i++ {
		_, err := svc.StoreFile("u1", fmt.Sprintf("file%d.pdf", i), MediaPDF, "analysis")
		require.NoError(t, err)
	}

	last, err := svc.FileByOrdinal("u1", 1)
	require.NoError(t, err)
	assert.Equal(t, "file3.pdf", last.Filename)
	assert.Equal(t, svc.RecentFiles("u1", 1)[0], last)

	third, err := svc.FileByOrdinal("u1", 3)
	require.NoError(t, err)
	assert.Equal(t, "file1.pdf", third.Filename)

	_, err = svc.FileByOrdinal("u1", 99)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.FileByOrdinal("u1", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.FileByOrdinal("stranger", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileByID(t *testing.T) {
	svc := newTestService(nil)

	r, err := svc.StoreFile("u1", "quiz.pdf", MediaPDF, "a grammar quiz")
	require.NoError(t, err)

	found, err := svc.FileByID("u1", r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, found)

	_, err = svc.FileByID("u1", r.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)

	// Records are scoped per user.
	_, err = svc.FileByID("u2", r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecentFilesReturnsCopies(t *testing.T) {
	svc := newTestService(nil)

	_, err := svc.StoreFile("u1", "quiz.pdf", MediaPDF, "original analysis")
	require.NoError(t, err)

	recent := svc.RecentFiles("u1", 1)
	recent[0].AnalysisText = "tampered"

	again := svc.RecentFiles("u1", 1)
	assert.Equal(t, "original analysis", again[0].AnalysisText)
}

func TestKnownUser(t *testing.T) {
	svc := newTestService(nil)

	assert.False(t, svc.KnownUser("u1"))
	require.NoError(t, svc.AppendTurn("u1", userTurn("hi")))
	assert.True(t, svc.KnownUser("u1"))
}

func TestCustomLimits(t *testing.T) {
	svc := New(Config{HistoryLimit: 2, FileLimit: 1, Logger: newTestLogger()})

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.AppendTurn("u1", userTurn(fmt.Sprintf("m%d", i))))
	}
	turns := svc.RecentTurns("u1", 10)
	require.Len(t, turns, 2)
	assert.Equal(t, "m3", turns[0].Text)

	_, err := svc.StoreFile("u1", "a.pdf", MediaPDF, "first")
	require.NoError(t, err)
	_, err = svc.StoreFile("u1", "b.pdf", MediaPDF, "second")
	require.NoError(t, err)

	files := svc.RecentFiles("u1", 10)
	require.Len(t, files, 1)
	assert.Equal(t, "b.pdf", files[0].Filename)
}
