// Package executor orchestrates one user interaction end to end:
// assemble the prompt, call the model with timeout and retry, and on
// success commit the turn to memory. Memory is never mutated on
// failure.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/daracheol/lingotutor/internal/file_decoder"
	"github.com/daracheol/lingotutor/internal/memory_service"
	"github.com/daracheol/lingotutor/internal/prompt_manager"
	"github.com/daracheol/lingotutor/pkg/logger"
)

// Default model-call settings.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 1
	DefaultRetryBackoff = 2 * time.Second
)

// ErrUpstream marks a model-call failure after retries were exhausted.
var ErrUpstream = errors.New("model request failed")

// Analyzer is a model client capable of answering an assembled prompt.
type Analyzer interface {
	Analyze(ctx context.Context, p *prompt_manager.Prompt) (string, error)
	Name() string
}

// Telemetry receives interaction-level counter events and model-call
// timings.
type Telemetry interface {
	MessageHandled()
	TurnFailed()
	ModelCallObserved(d time.Duration)
}

// RequestKind distinguishes plain text turns from file uploads.
type RequestKind string

// Request kinds.
const (
	KindText RequestKind = "text"
	KindFile RequestKind = "file"
)

// Request is one inbound user interaction.
type Request struct {
	UserID   string
	Kind     RequestKind
	Text     string
	FileData []byte
	FileName string
}

// Result is the outcome of a handled interaction.
type Result struct {
	Reply string
	// File is set when the interaction stored a new file record.
	File *memory_service.FileRecord
}

// Config holds configuration for the executor.
type Config struct {
	Memory       *memory_service.Service
	Assembler    *prompt_manager.Assembler
	Analyzer     Analyzer
	Telemetry    Telemetry
	Logger       logger.Logger
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Executor serializes turns per user and drives the
// assemble/call/commit cycle.
type Executor struct {
	memory       *memory_service.Service
	assembler    *prompt_manager.Assembler
	analyzer     Analyzer
	telemetry    Telemetry
	log          logger.Logger
	timeout      time.Duration
	maxRetries   int
	retryBackoff time.Duration

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates an executor.
func New(cfg Config) *Executor {
	if cfg.Memory == nil {
		panic("memory service cannot be nil")
	}
	if cfg.Assembler == nil {
		panic("assembler cannot be nil")
	}
	if cfg.Analyzer == nil {
		panic("analyzer cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}

	return &Executor{
		memory:       cfg.Memory,
		assembler:    cfg.Assembler,
		analyzer:     cfg.Analyzer,
		telemetry:    cfg.Telemetry,
		log:          cfg.Logger,
		timeout:      cfg.Timeout,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		locks:        make(map[string]*sync.Mutex),
	}
}

// Handle processes one interaction. Turns for the same user run
// strictly one at a time; different users proceed concurrently.
func (e *Executor) Handle(ctx context.Context, req Request) (*Result, error) {
	lock := e.getUserLock(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()

	var (
		result *Result
		err    error
	)
	switch req.Kind {
	case KindFile:
		result, err = e.handleFile(ctx, req)
	default:
		result, err = e.handleText(ctx, req)
	}

	if err != nil {
		if e.telemetry != nil {
			e.telemetry.TurnFailed()
		}
		e.log.Error("Interaction failed",
			logger.UserIDField(req.UserID),
			logger.StringField("kind", string(req.Kind)),
			logger.ErrorField(err))
		return nil, err
	}

	if e.telemetry != nil {
		e.telemetry.MessageHandled()
	}
	e.log.Info("Interaction handled",
		logger.UserIDField(req.UserID),
		logger.StringField("kind", string(req.Kind)),
		logger.DurationField("duration", time.Since(start)))

	return result, nil
}

// handleText runs a plain conversation turn. History gains the
// user/assistant pair only after the model call succeeds.
func (e *Executor) handleText(ctx context.Context, req Request) (*Result, error) {
	prompt, err := e.assembler.Build(req.UserID, req.Text, nil)
	if err != nil {
		return nil, err
	}

	reply, err := e.callModel(ctx, prompt)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := e.memory.AppendTurn(req.UserID, memory_service.Turn{
		Role: memory_service.RoleUser, Text: req.Text, Timestamp: now,
	}); err != nil {
		return nil, err
	}
	if err := e.memory.AppendTurn(req.UserID, memory_service.Turn{
		Role: memory_service.RoleAssistant, Text: reply, Timestamp: now,
	}); err != nil {
		return nil, err
	}

	return &Result{Reply: reply}, nil
}

// handleFile decodes the upload, has the model analyze it, and commits
// the file record before the conversation turns so the analysis is
// addressable from the very next message.
func (e *Executor) handleFile(ctx context.Context, req Request) (*Result, error) {
	decoded, err := file_decoder.Decode(req.FileData)
	if err != nil {
		return nil, err
	}

	text := req.Text
	if text == "" {
		text = "Please analyze this file for our language lesson and summarize what it contains."
	}

	prompt, err := e.assembler.Build(req.UserID, text, &prompt_manager.Attachment{
		Data:     decoded.Data,
		MIMEType: decoded.MIMEType,
		Filename: req.FileName,
		Kind:     decoded.Kind,
	})
	if err != nil {
		return nil, err
	}

	reply, err := e.callModel(ctx, prompt)
	if err != nil {
		return nil, err
	}

	record, err := e.memory.StoreFile(req.UserID, req.FileName, decoded.Kind, reply)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	userText := fmt.Sprintf("[uploaded %s]", req.FileName)
	if req.Text != "" {
		userText = fmt.Sprintf("[uploaded %s] %s", req.FileName, req.Text)
	}
	if err := e.memory.AppendTurn(req.UserID, memory_service.Turn{
		Role: memory_service.RoleUser, Text: userText, Timestamp: now,
	}); err != nil {
		return nil, err
	}
	if err := e.memory.AppendTurn(req.UserID, memory_service.Turn{
		Role: memory_service.RoleAssistant, Text: reply, Timestamp: now,
	}); err != nil {
		return nil, err
	}

	return &Result{Reply: reply, File: &record}, nil
}

// callModel calls the analyzer under the configured timeout, retrying
// once after a backoff. Context cancellation is not retried.
func (e *Executor) callModel(ctx context.Context, prompt *prompt_manager.Prompt) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			e.log.Warn("Retrying model request",
				logger.StringField("model", e.analyzer.Name()),
				logger.IntField("attempt", attempt+1),
				logger.ErrorField(lastErr))

			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrUpstream, ctx.Err())
			case <-time.After(e.retryBackoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		callStart := time.Now()
		reply, err := e.analyzer.Analyze(callCtx, prompt)
		cancel()

		if e.telemetry != nil {
			e.telemetry.ModelCallObserved(time.Since(callStart))
		}

		if err == nil {
			return reply, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return "", fmt.Errorf("%w: %v", ErrUpstream, lastErr)
}

// getUserLock returns the per-user mutex, allocating it on first use.
func (e *Executor) getUserLock(userID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()

	lock, ok := e.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[userID] = lock
	}
	return lock
}

// UserFacingMessage maps an interaction error to the reply the
// connector should send. Internal detail never leaks to the chat.
func UserFacingMessage(err error) string {
	switch {
	case errors.Is(err, memory_service.ErrNotFound):
		return "I couldn't find the upload you mentioned. Could you send the file again, or tell me which one you mean?"
	case errors.Is(err, file_decoder.ErrFileTooLarge):
		return "That file is too large for me to read. Could you send something under 20 MB?"
	case errors.Is(err, file_decoder.ErrUnsupportedFormat):
		return "I can only read PDF documents and photos right now. Could you send one of those?"
	case errors.Is(err, ErrUpstream):
		return "Sorry, I'm having trouble thinking right now. Please try again in a moment."
	default:
		return "Sorry, something went wrong on my side. Please try again."
	}
}
