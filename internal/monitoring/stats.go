// Package monitoring tracks service activity counters and exposes the
// health and stats endpoints.
package monitoring

import (
	"sync/atomic"
	"time"

	"github.com/daracheol/lingotutor/pkg/metrics"
)

// Stats tracks activity counters for the running service. All counters
// are monotonically non-decreasing for the process lifetime. Counter
// increments are mirrored to Prometheus when metrics are enabled.
type Stats struct {
	activeUsers   atomic.Int64
	totalMessages atomic.Int64
	failedTurns   atomic.Int64
	filesStored   atomic.Int64

	startTime time.Time
	metrics   *metrics.Metrics
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	ActiveUsers   int64     `json:"active_users"`
	TotalMessages int64     `json:"total_messages"`
	FailedTurns   int64     `json:"failed_turns"`
	FilesStored   int64     `json:"files_stored"`
	StartTime     time.Time `json:"start_time"`
	Uptime        string    `json:"uptime"`
}

// NewStats creates an activity tracker. The metrics argument may be
// nil when Prometheus export is disabled.
func NewStats(m *metrics.Metrics) *Stats {
	return &Stats{
		startTime: time.Now(),
		metrics:   m,
	}
}

// UserSeen records a first-time user.
func (s *Stats) UserSeen() {
	s.activeUsers.Add(1)
}

// FileStored records a stored file analysis.
func (s *Stats) FileStored() {
	s.filesStored.Add(1)
	s.inc(metrics.TurnMetricFilesAnalyzed)
}

// MessageHandled records a successfully handled interaction.
func (s *Stats) MessageHandled() {
	s.totalMessages.Add(1)
	s.inc(metrics.TurnMetricTotal)
	s.inc(metrics.TurnMetricSuccess)
}

// TurnFailed records a failed interaction.
func (s *Stats) TurnFailed() {
	s.failedTurns.Add(1)
	s.inc(metrics.TurnMetricTotal)
	s.inc(metrics.TurnMetricFailed)
}

// ModelCallObserved records how long one model call took.
func (s *Stats) ModelCallObserved(d time.Duration) {
	if s.metrics == nil || s.metrics.ModelDurationHistogram == nil {
		return
	}
	s.metrics.ModelDurationHistogram.Observe(d.Seconds())
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		ActiveUsers:   s.activeUsers.Load(),
		TotalMessages: s.totalMessages.Load(),
		FailedTurns:   s.failedTurns.Load(),
		FilesStored:   s.filesStored.Load(),
		StartTime:     s.startTime,
		Uptime:        time.Since(s.startTime).Round(time.Second).String(),
	}
}

func (s *Stats) inc(counter int) {
	if s.metrics == nil || s.metrics.TurnCounters == nil {
		return
	}
	if c, ok := s.metrics.TurnCounters[counter]; ok {
		c.Inc()
	}
}
