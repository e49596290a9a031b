package monitoring

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daracheol/lingotutor/pkg/logger"
	"github.com/daracheol/lingotutor/pkg/metrics"
)

func newTestLogger() logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:  logger.DebugLevel,
		Output: io.Discard,
	})
}

func TestStatsCounters(t *testing.T) {
	s := NewStats(nil)

	s.UserSeen()
	s.UserSeen()
	s.MessageHandled()
	s.MessageHandled()
	s.MessageHandled()
	s.FileStored()
	s.TurnFailed()

	snap := s.Snapshot()
	assert.Equal(t, int64(2), snap.ActiveUsers)
	assert.Equal(t, int64(3), snap.TotalMessages)
	assert.Equal(t, int64(1), snap.FilesStored)
	assert.Equal(t, int64(1), snap.FailedTurns)
	assert.NotEmpty(t, snap.Uptime)
}

func TestStatsConcurrentIncrements(t *testing.T) {
	s := NewStats(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.MessageHandled()
			s.FileStored()
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, int64(50), snap.TotalMessages)
	assert.Equal(t, int64(50), snap.FilesStored)
}

func TestStatsMirrorsPrometheusCounters(t *testing.T) {
	m := metrics.NewMetrics(false, true, newTestLogger())
	s := NewStats(&m)

	s.MessageHandled()
	s.MessageHandled()
	s.TurnFailed()
	s.FileStored()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "lingotutor_total_turns_handled 3")
	assert.Contains(t, string(body), "lingotutor_total_turns_successful 2")
	assert.Contains(t, string(body), "lingotutor_total_turns_failed 1")
	assert.Contains(t, string(body), "lingotutor_total_files_analyzed 1")
}

func TestStatsObservesModelCallDuration(t *testing.T) {
	m := metrics.NewMetrics(false, true, newTestLogger())
	s := NewStats(&m)

	s.ModelCallObserved(1200 * time.Millisecond)
	s.ModelCallObserved(300 * time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "lingotutor_model_call_duration_seconds_count 2")
	assert.Contains(t, string(body), "lingotutor_model_call_duration_seconds_sum 1.5")

	// Metrics disabled is a no-op, not a panic.
	NewStats(nil).ModelCallObserved(time.Second)
}

type fakeConnector struct {
	err error
}

func (f *fakeConnector) Ready() error { return f.err }

func TestHealthEndpoints(t *testing.T) {
	stats := NewStats(nil)
	stats.UserSeen()
	stats.MessageHandled()

	hm := NewHealthMonitor(Config{
		Logger:            newTestLogger(),
		Stats:             stats,
		Version:           "test",
		TelegramConnector: &fakeConnector{},
	})

	t.Run("live", func(t *testing.T) {
		rec := httptest.NewRecorder()
		hm.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ready", func(t *testing.T) {
		rec := httptest.NewRecorder()
		hm.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("combined includes stats", func(t *testing.T) {
		rec := httptest.NewRecorder()
		hm.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body["status"])
		require.Contains(t, body, "stats")
	})

	t.Run("stats endpoint", func(t *testing.T) {
		rec := httptest.NewRecorder()
		hm.StatsHandler()(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		var snap Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		assert.Equal(t, int64(1), snap.ActiveUsers)
		assert.Equal(t, int64(1), snap.TotalMessages)
	})
}

func TestReadinessFailsAfterThreshold(t *testing.T) {
	conn := &fakeConnector{err: errors.New("polling stalled")}
	hm := NewHealthMonitor(Config{
		Logger:            newTestLogger(),
		TelegramConnector: conn,
		FailureThreshold:  2,
	})

	// First failure stays below the threshold.
	rec := httptest.NewRecorder()
	hm.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Second consecutive failure crosses it.
	rec = httptest.NewRecorder()
	hm.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
