// Package archive persists conversation transcripts through a storage
// provider. Archival is best effort and fully asynchronous: a write
// failure is logged and never surfaces to the conversation path.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/daracheol/lingotutor/internal/storage_manager"
	"github.com/daracheol/lingotutor/pkg/logger"
)

const defaultQueueSize = 256

// Entry is one archived exchange.
type Entry struct {
	UserText  string    `json:"user_text"`
	Reply     string    `json:"reply"`
	FileName  string    `json:"file_name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds configuration for the archiver.
type Config struct {
	Provider  storage_manager.FileProvider
	Logger    logger.Logger
	QueueSize int
}

// Archiver appends exchanges to per-user daily transcript files.
type Archiver struct {
	provider storage_manager.FileProvider
	log      logger.Logger

	queue  chan queuedEntry
	stop   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

type queuedEntry struct {
	userID string
	entry  Entry
}

// New creates an archiver and starts its worker.
func New(cfg Config) *Archiver {
	if cfg.Provider == nil {
		panic("provider cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	a := &Archiver{
		provider: cfg.Provider,
		log:      cfg.Logger,
		queue:    make(chan queuedEntry, cfg.QueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

// Record enqueues one exchange for archival. When the queue is full or
// the archiver is shutting down the entry is dropped, since archival
// must never stall a conversation. The queue channel itself is never
// closed, so a connector handler still in flight during shutdown can
// call Record safely.
func (a *Archiver) Record(userID string, entry Entry) {
	if a.closed.Load() {
		return
	}
	select {
	case a.queue <- queuedEntry{userID: userID, entry: entry}:
	default:
		a.log.Warn("Transcript queue full, dropping entry",
			logger.UserIDField(userID))
	}
}

// Close stops accepting entries, drains what was already queued, and
// waits for the worker to finish. Safe to call more than once.
func (a *Archiver) Close() {
	if a.closed.CompareAndSwap(false, true) {
		close(a.stop)
	}
	<-a.done
}

func (a *Archiver) run() {
	defer close(a.done)
	for {
		select {
		case item := <-a.queue:
			a.process(item)
		case <-a.stop:
			for {
				select {
				case item := <-a.queue:
					a.process(item)
				default:
					return
				}
			}
		}
	}
}

func (a *Archiver) process(item queuedEntry) {
	if err := a.append(context.Background(), item.userID, item.entry); err != nil {
		a.log.Warn("Failed to archive transcript entry",
			logger.UserIDField(item.userID),
			logger.ErrorField(err))
	}
}

// append reads the user's transcript for the entry's day, appends the
// entry, and writes it back. The worker is the only writer, so the
// read-modify-write cycle is safe.
func (a *Archiver) append(ctx context.Context, userID string, entry Entry) error {
	path := transcriptPath(userID, entry.Timestamp)

	var entries []Entry
	exists, err := a.provider.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("checking transcript %s: %w", path, err)
	}
	if exists {
		data, err := a.provider.Read(ctx, path)
		if err != nil {
			return fmt.Errorf("reading transcript %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("parsing transcript %s: %w", path, err)
		}
	}

	entries = append(entries, entry)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding transcript %s: %w", path, err)
	}
	return a.provider.Write(ctx, path, data)
}

func transcriptPath(userID string, ts time.Time) string {
	return fmt.Sprintf("transcripts/%s/%s.json", userID, ts.UTC().Format("2006-01-02"))
}
