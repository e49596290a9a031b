package memory_service

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/daracheol/lingotutor/pkg/logger"
)

// Default per-user bounds.
const (
	DefaultHistoryLimit = 20
	DefaultFileLimit    = 10
)

// ErrNotFound is returned when a referenced file record does not exist
// or an ordinal is out of range.
var ErrNotFound = errors.New("file record not found")

// ErrCapacityInvariant indicates the bounded-store eviction logic
// failed to hold its length invariant. This is a bug class, not a user
// error: callers abort the current turn and log it.
var ErrCapacityInvariant = errors.New("memory capacity invariant violated")

// Telemetry receives store-level counter events.
type Telemetry interface {
	// UserSeen is called exactly once per distinct user, on first allocation.
	UserSeen()
	// FileStored is called on each successful file-record store.
	FileStored()
}

// Config holds configuration for the memory service.
type Config struct {
	HistoryLimit int
	FileLimit    int
	Telemetry    Telemetry
	Logger       logger.Logger
}

// Service owns the UserID -> memory mapping. Created lazily per user;
// lives for the process lifetime. Safe for concurrent use, though
// callers are expected to serialize turns per user.
type Service struct {
	historyLimit int
	fileLimit    int
	telemetry    Telemetry
	log          logger.Logger

	mu    sync.RWMutex
	users map[string]*userMemory

	nextFileID atomic.Int64
}

// New creates a memory service with the given configuration.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.FileLimit <= 0 {
		cfg.FileLimit = DefaultFileLimit
	}

	return &Service{
		historyLimit: cfg.HistoryLimit,
		fileLimit:    cfg.FileLimit,
		telemetry:    cfg.Telemetry,
		log:          cfg.Logger,
		users:        make(map[string]*userMemory),
	}
}

// AppendTurn appends a turn to the user's history, evicting the oldest
// entry when the bound is exceeded. The first append for a new user
// allocates their memory and reports the user to telemetry exactly once.
// The only error condition is a capacity-invariant violation.
func (s *Service) AppendTurn(userID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem := s.getOrCreateLocked(userID)
	mem.history = append(mem.history, turn)
	if len(mem.history) > s.historyLimit {
		mem.history = mem.history[1:]
	}

	if len(mem.history) > s.historyLimit {
		return fmt.Errorf("%w: history length %d exceeds limit %d for user %s",
			ErrCapacityInvariant, len(mem.history), s.historyLimit, userID)
	}
	return nil
}

// RecentTurns returns the last k turns in chronological order. Unknown
// users yield an empty slice.
func (s *Service) RecentTurns(userID string, k int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mem, ok := s.users[userID]
	if !ok || k <= 0 {
		return []Turn{}
	}

	start := len(mem.history) - k
	if start < 0 {
		start = 0
	}

	out := make([]Turn, len(mem.history)-start)
	copy(out, mem.history[start:])
	return out
}

// StoreFile assigns the next sequence id, appends the record, evicts
// the oldest record past the bound, and reports the store to telemetry.
func (s *Service) StoreFile(userID, filename string, kind MediaKind, analysisText string) (FileRecord, error) {
	record := FileRecord{
		ID:           s.nextFileID.Add(1),
		Filename:     filename,
		MediaKind:    kind,
		AnalysisText: analysisText,
		Timestamp:    time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mem := s.getOrCreateLocked(userID)
	mem.files = append(mem.files, record)
	if len(mem.files) > s.fileLimit {
		mem.files = mem.files[1:]
	}

	if len(mem.files) > s.fileLimit {
		return FileRecord{}, fmt.Errorf("%w: file log length %d exceeds limit %d for user %s",
			ErrCapacityInvariant, len(mem.files), s.fileLimit, userID)
	}

	if s.telemetry != nil {
		s.telemetry.FileStored()
	}

	s.log.Debug("Stored file analysis",
		logger.UserIDField(userID),
		logger.Int64Field("file_id", record.ID),
		logger.StringField("filename", filename),
		logger.StringField("media_kind", string(kind)))

	return record, nil
}

// RecentFiles returns up to k file records, most-recent-first.
func (s *Service) RecentFiles(userID string, k int) []FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mem, ok := s.users[userID]
	if !ok || k <= 0 {
		return []FileRecord{}
	}

	n := len(mem.files)
	if k > n {
		k = n
	}

	out := make([]FileRecord, 0, k)
	for i := n - 1; i >= n-k; i-- {
		out = append(out, mem.files[i])
	}
	return out
}

// FileByOrdinal resolves the nth most recent file record (1-indexed,
// so 1 is the latest upload). Out-of-range ordinals fail with
// ErrNotFound rather than a low-level index error.
func (s *Service) FileByOrdinal(userID string, n int) (FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mem, ok := s.users[userID]
	if !ok {
		return FileRecord{}, ErrNotFound
	}
	if n < 1 || n > len(mem.files) {
		return FileRecord{}, ErrNotFound
	}
	return mem.files[len(mem.files)-n], nil
}

// FileByID resolves a file record by its explicit sequence id.
func (s *Service) FileByID(userID string, id int64) (FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mem, ok := s.users[userID]
	if !ok {
		return FileRecord{}, ErrNotFound
	}
	for i := len(mem.files) - 1; i >= 0; i-- {
		if mem.files[i].ID == id {
			return mem.files[i], nil
		}
	}
	return FileRecord{}, ErrNotFound
}

// KnownUser reports whether the user has interacted before.
func (s *Service) KnownUser(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok
}

// getOrCreateLocked returns the user's memory, allocating it on first
// use. Caller must hold the write lock.
func (s *Service) getOrCreateLocked(userID string) *userMemory {
	if mem, ok := s.users[userID]; ok {
		return mem
	}

	mem := &userMemory{firstSeen: time.Now()}
	s.users[userID] = mem

	if s.telemetry != nil {
		s.telemetry.UserSeen()
	}
	s.log.Info("New user registered", logger.UserIDField(userID))

	return mem
}
