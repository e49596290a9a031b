// Package telegram connects the tutor to Telegram chats: it polls for
// updates, downloads uploads, runs interactions through the executor,
// and renders replies as HTML messages.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/daracheol/lingotutor/internal/archive"
	"github.com/daracheol/lingotutor/internal/executor"
	"github.com/daracheol/lingotutor/internal/memory_service"
	"github.com/daracheol/lingotutor/pkg/logger"
)

// Handler runs one user interaction. Implemented by the executor.
type Handler interface {
	Handle(ctx context.Context, req executor.Request) (*executor.Result, error)
}

// Config holds configuration for the Telegram connector.
type Config struct {
	BotToken string // Bot token from @BotFather
	Debug    bool   // Enable SDK debug logging
}

// Deps are the collaborators the connector drives.
type Deps struct {
	Handler  Handler
	Memory   *memory_service.Service
	Archiver *archive.Archiver // optional
	Logger   logger.Logger
}

// Connector represents the Telegram connector.
type Connector struct {
	bot      *bot.Bot
	handler  Handler
	memory   *memory_service.Service
	archiver *archive.Archiver
	log      logger.Logger
	commands *CommandRegistry

	started atomic.Bool
}

// NewConnector creates a Telegram connector.
func NewConnector(cfg Config, deps Deps) (*Connector, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if deps.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if deps.Memory == nil {
		return nil, fmt.Errorf("memory service is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	c := &Connector{
		handler:  deps.Handler,
		memory:   deps.Memory,
		archiver: deps.Archiver,
		log:      deps.Logger,
	}
	c.setupCommands()

	opts := []bot.Option{
		bot.WithDefaultHandler(c.handleUpdate),
	}
	if cfg.Debug {
		opts = append(opts, bot.WithDebug())
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	c.bot = b

	c.log.Info("Telegram bot initialized")
	return c, nil
}

// Start begins polling for updates. Blocks until the context is
// cancelled.
func (c *Connector) Start(ctx context.Context) error {
	c.log.Info("Starting Telegram bot polling")
	c.started.Store(true)
	defer c.started.Store(false)
	c.bot.Start(ctx)
	return nil
}

// Ready reports whether the connector is polling.
func (c *Connector) Ready() error {
	if !c.started.Load() {
		return fmt.Errorf("telegram connector not polling")
	}
	return nil
}

// GetBotInfo returns information about the bot account.
func (c *Connector) GetBotInfo(ctx context.Context) (*models.User, error) {
	return c.bot.GetMe(ctx)
}

// handleUpdate routes incoming Telegram updates.
func (c *Connector) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	if msg.From != nil && msg.From.IsBot {
		return
	}

	if c.commands.IsCommand(msg.Text) {
		c.handleCommand(ctx, b, update)
		return
	}

	switch {
	case msg.Document != nil:
		c.handleDocument(ctx, b, msg)
	case len(msg.Photo) > 0:
		c.handlePhoto(ctx, b, msg)
	case msg.Text != "":
		c.handleText(ctx, b, msg)
	}
}

// handleText runs a conversation turn, short-circuiting greetings to
// the welcome flow so no model call is spent on them.
func (c *Connector) handleText(ctx context.Context, b *bot.Bot, msg *models.Message) {
	userID := senderID(msg)
	c.log.Info("Processing message",
		logger.UserIDField(userID),
		logger.IntField("length", len(msg.Text)))

	if isGreeting(msg.Text) {
		c.handleGreeting(ctx, b, msg)
		return
	}

	c.sendTyping(ctx, b, msg.Chat.ID)

	result, err := c.handler.Handle(ctx, executor.Request{
		UserID: userID,
		Kind:   executor.KindText,
		Text:   msg.Text,
	})
	if err != nil {
		c.sendPlain(ctx, b, msg.Chat.ID, executor.UserFacingMessage(err))
		return
	}

	c.sendHTML(ctx, b, msg.Chat.ID, renderHTML(result.Reply, msg.Text))
	c.archiveEntry(userID, archive.Entry{
		UserText:  msg.Text,
		Reply:     result.Reply,
		Timestamp: time.Now(),
	})
}

// handleGreeting sends the full welcome to first-time users and a
// short hello to returning ones. The exchange is committed to history
// so the next greeting is recognized as returning.
func (c *Connector) handleGreeting(ctx context.Context, b *bot.Bot, msg *models.Message) {
	userID := senderID(msg)

	reply := greetingReply
	if !c.memory.KnownUser(userID) {
		reply = welcomeMessage
	}
	c.sendHTML(ctx, b, msg.Chat.ID, reply)

	now := time.Now()
	turns := []memory_service.Turn{
		{Role: memory_service.RoleUser, Text: msg.Text, Timestamp: now},
		{Role: memory_service.RoleAssistant, Text: "Greeted the student.", Timestamp: now},
	}
	for _, turn := range turns {
		if err := c.memory.AppendTurn(userID, turn); err != nil {
			c.log.Error("Failed to record greeting", logger.UserIDField(userID), logger.ErrorField(err))
			return
		}
	}
}

// handleDocument downloads an attached document and runs a file
// analysis turn.
func (c *Connector) handleDocument(ctx context.Context, b *bot.Bot, msg *models.Message) {
	filename := msg.Document.FileName
	if filename == "" {
		filename = "document"
	}
	c.handleUpload(ctx, b, msg, msg.Document.FileID, filename)
}

// handlePhoto downloads the largest rendition of an attached photo and
// runs a file analysis turn.
func (c *Connector) handlePhoto(ctx context.Context, b *bot.Bot, msg *models.Message) {
	largest := msg.Photo[len(msg.Photo)-1]
	c.handleUpload(ctx, b, msg, largest.FileID, "photo.jpg")
}

func (c *Connector) handleUpload(ctx context.Context, b *bot.Bot, msg *models.Message, fileID, filename string) {
	userID := senderID(msg)
	c.log.Info("Processing upload",
		logger.UserIDField(userID),
		logger.StringField("filename", filename))

	c.sendTyping(ctx, b, msg.Chat.ID)

	data, err := c.downloadFile(ctx, b, fileID)
	if err != nil {
		c.log.Error("Failed to download upload",
			logger.UserIDField(userID),
			logger.ErrorField(err))
		c.sendPlain(ctx, b, msg.Chat.ID, "I couldn't download that file from Telegram. Please try sending it again.")
		return
	}

	result, err := c.handler.Handle(ctx, executor.Request{
		UserID:   userID,
		Kind:     executor.KindFile,
		Text:     msg.Caption,
		FileData: data,
		FileName: filename,
	})
	if err != nil {
		c.sendPlain(ctx, b, msg.Chat.ID, executor.UserFacingMessage(err))
		return
	}

	caption := msg.Caption
	if caption == "" {
		caption = "explain this file"
	}
	c.sendHTML(ctx, b, msg.Chat.ID, renderHTML(result.Reply, caption))
	c.archiveEntry(userID, archive.Entry{
		UserText:  msg.Caption,
		Reply:     result.Reply,
		FileName:  filename,
		Timestamp: time.Now(),
	})
}

// downloadFile fetches the file bytes through the bot API file
// endpoint.
func (c *Connector) downloadFile(ctx context.Context, b *bot.Bot, fileID string) ([]byte, error) {
	file, err := b.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("getting file metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.FileDownloadLink(file), nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Connector) archiveEntry(userID string, entry archive.Entry) {
	if c.archiver != nil {
		c.archiver.Record(userID, entry)
	}
}

func (c *Connector) sendTyping(ctx context.Context, b *bot.Bot, chatID int64) {
	_, err := b.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})
	if err != nil {
		c.log.Debug("Failed to send typing action", logger.ErrorField(err))
	}
}

func (c *Connector) sendHTML(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		c.log.Error("Failed to send message", logger.ErrorField(err))
	}
}

func (c *Connector) sendPlain(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		c.log.Error("Failed to send message", logger.ErrorField(err))
	}
}

func senderID(msg *models.Message) string {
	if msg.From != nil {
		return strconv.FormatInt(msg.From.ID, 10)
	}
	return strconv.FormatInt(msg.Chat.ID, 10)
}
