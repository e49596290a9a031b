// Package prompt_manager assembles model prompts from the per-user
// memory stores. Assembly is deterministic: the same stores and the
// same message always produce the same prompt.
package prompt_manager

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/daracheol/lingotutor/internal/memory_service"
	"github.com/daracheol/lingotutor/pkg/logger"
)

// DefaultContextTurns is how many history turns are included in the
// assembled prompt.
const DefaultContextTurns = 10

// DefaultRecencyWindow bounds how old the most recent upload may be to
// still be included implicitly, without the user referencing it.
const DefaultRecencyWindow = 30 * time.Minute

const defaultSystemPrompt = `You are a friendly and patient language tutor. ` +
	`Help the student practice: answer their questions, correct their mistakes gently, ` +
	`explain grammar with short examples, and keep replies concise and encouraging. ` +
	`When the student shares a document or photo, use your analysis of it to tailor the lesson.`

// Attachment carries the decoded bytes of the file uploaded with the
// current message, ready to be forwarded to a model.
type Attachment struct {
	Data     []byte
	MIMEType string
	Filename string
	Kind     memory_service.MediaKind
}

// Prompt is a fully assembled model request. History is oldest-first.
type Prompt struct {
	System     string
	History    []memory_service.Turn
	FileName   string
	FileText   string
	UserText   string
	Attachment *Attachment
}

// ComposedUserText merges prior-upload context with the user's message
// into a single user-turn text, so model clients only deal with role
// messages plus optional attachment parts.
func (p *Prompt) ComposedUserText() string {
	if p.FileText == "" {
		return p.UserText
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Context from the student's earlier upload %q:\n%s\n\n", p.FileName, p.FileText)
	b.WriteString(p.UserText)
	return b.String()
}

// Store is the read side of the memory service the assembler needs.
type Store interface {
	RecentTurns(userID string, k int) []memory_service.Turn
	RecentFiles(userID string, k int) []memory_service.FileRecord
	FileByOrdinal(userID string, n int) (memory_service.FileRecord, error)
	FileByID(userID string, id int64) (memory_service.FileRecord, error)
}

// Config holds configuration for the assembler.
type Config struct {
	Store         Store
	ContextTurns  int
	RecencyWindow time.Duration
	SystemPrompt  string
	Logger        logger.Logger

	// Now is the clock used for the recency check. Defaults to time.Now.
	Now func() time.Time
}

// Assembler builds prompts from the memory store.
type Assembler struct {
	store         Store
	contextTurns  int
	recencyWindow time.Duration
	system        string
	now           func() time.Time
	log           logger.Logger
}

// New creates a prompt assembler.
func New(cfg Config) *Assembler {
	if cfg.Store == nil {
		panic("store cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	if cfg.ContextTurns <= 0 {
		cfg.ContextTurns = DefaultContextTurns
	}
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = DefaultRecencyWindow
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Assembler{
		store:         cfg.Store,
		contextTurns:  cfg.ContextTurns,
		recencyWindow: cfg.RecencyWindow,
		system:        cfg.SystemPrompt,
		now:           cfg.Now,
		log:           cfg.Logger,
	}
}

// Build assembles the prompt for one user message. When the message
// references a prior upload that does not exist, the error wraps
// memory_service.ErrNotFound so the caller can ask the user to clarify
// instead of calling the model.
func (a *Assembler) Build(userID, text string, attachment *Attachment) (*Prompt, error) {
	p := &Prompt{
		System:     a.system,
		History:    a.store.RecentTurns(userID, a.contextTurns),
		UserText:   text,
		Attachment: attachment,
	}

	record, ok, err := a.resolveFileContext(userID, text, attachment)
	if err != nil {
		return nil, err
	}
	if ok {
		p.FileName = record.Filename
		p.FileText = record.AnalysisText
	}

	a.log.Debug("Assembled prompt",
		logger.UserIDField(userID),
		logger.IntField("history_turns", len(p.History)),
		logger.BoolField("file_context", ok),
		logger.BoolField("attachment", attachment != nil))

	return p, nil
}

// resolveFileContext decides which prior upload, if any, backs the
// current message. Explicit references win; otherwise the most recent
// upload is included only when it is fresh and no new attachment is
// being analyzed this turn.
func (a *Assembler) resolveFileContext(userID, text string, attachment *Attachment) (memory_service.FileRecord, bool, error) {
	ref := ClassifyReference(text)

	switch ref.Kind {
	case RefLast:
		record, err := a.store.FileByOrdinal(userID, 1)
		if err != nil {
			return memory_service.FileRecord{}, false, fmt.Errorf("resolving last upload for user %s: %w", userID, err)
		}
		return record, true, nil

	case RefOrdinal:
		record, err := a.store.FileByOrdinal(userID, ref.Ordinal)
		if err != nil {
			return memory_service.FileRecord{}, false, fmt.Errorf("resolving upload %d for user %s: %w", ref.Ordinal, userID, err)
		}
		return record, true, nil

	case RefID:
		record, err := a.store.FileByID(userID, ref.ID)
		if err != nil {
			return memory_service.FileRecord{}, false, fmt.Errorf("resolving file #%d for user %s: %w", ref.ID, userID, err)
		}
		return record, true, nil
	}

	if attachment != nil {
		return memory_service.FileRecord{}, false, nil
	}

	recent := a.store.RecentFiles(userID, 1)
	if len(recent) == 0 {
		return memory_service.FileRecord{}, false, nil
	}
	if a.now().Sub(recent[0].Timestamp) > a.recencyWindow {
		return memory_service.FileRecord{}, false, nil
	}
	return recent[0], true, nil
}

// IsNotFound reports whether the assembly error means the referenced
// upload does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, memory_service.ErrNotFound)
}
