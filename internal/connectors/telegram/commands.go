package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/daracheol/lingotutor/internal/memory_service"
	"github.com/daracheol/lingotutor/pkg/logger"
)

// CommandHandler handles a specific bot command.
type CommandHandler func(ctx context.Context, b *bot.Bot, update *models.Update) (string, error)

// CommandRegistry manages bot command handlers.
type CommandRegistry struct {
	handlers map[string]CommandHandler
}

// NewCommandRegistry creates an empty command registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		handlers: make(map[string]CommandHandler),
	}
}

// Register adds a command handler to the registry.
func (r *CommandRegistry) Register(command string, handler CommandHandler) {
	r.handlers[command] = handler
}

// Handle dispatches a command update to its handler.
func (r *CommandRegistry) Handle(ctx context.Context, b *bot.Bot, update *models.Update) (string, error) {
	if update.Message == nil || update.Message.Text == "" {
		return "", nil
	}

	text := update.Message.Text
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}

	parts := strings.SplitN(text, " ", 2)
	command := parts[0]

	handler, exists := r.handlers[command]
	if !exists {
		return "Unknown command: " + command, nil
	}
	return handler(ctx, b, update)
}

// IsCommand checks if a message is a command.
func (r *CommandRegistry) IsCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

const helpText = `I'm your language tutor. Send me a message and I'll help you learn.

What I can do:
- Correct your grammar and explain the fixes
- Translate between English, Khmer, and French
- Build vocabulary and run practice quizzes
- Read a PDF or a photo of your homework and discuss it

Commands:
/start - show the welcome message
/help - show this help`

// setupCommands registers the built-in commands.
func (c *Connector) setupCommands() {
	c.commands = NewCommandRegistry()

	c.commands.Register("/start", func(ctx context.Context, b *bot.Bot, update *models.Update) (string, error) {
		c.sendHTML(ctx, b, update.Message.Chat.ID, welcomeMessage)
		return "", nil
	})

	c.commands.Register("/help", func(ctx context.Context, b *bot.Bot, update *models.Update) (string, error) {
		return helpText, nil
	})

	c.commands.Register("/files", func(ctx context.Context, b *bot.Bot, update *models.Update) (string, error) {
		return c.listFiles(senderID(update.Message)), nil
	})
}

// listFiles renders the user's remembered uploads, most recent first.
func (c *Connector) listFiles(userID string) string {
	files := c.memory.RecentFiles(userID, memory_service.DefaultFileLimit)
	if len(files) == 0 {
		return "I don't have any of your files on record yet. Send me a PDF or a photo to get started."
	}

	var sb strings.Builder
	sb.WriteString("Your recent uploads, newest first:\n")
	for i, f := range files {
		fmt.Fprintf(&sb, "%d. %s (file #%d, %s)\n", i+1, f.Filename, f.ID, f.Timestamp.Format("Jan 2 15:04"))
	}
	sb.WriteString("\nAsk about one with \"my last upload\" or \"file #N\".")
	return sb.String()
}

// handleCommand processes a command update.
func (c *Connector) handleCommand(ctx context.Context, b *bot.Bot, update *models.Update) {
	c.log.Info("Processing command",
		logger.UserIDField(senderID(update.Message)),
		logger.StringField("command", update.Message.Text))

	response, err := c.commands.Handle(ctx, b, update)
	if err != nil {
		c.log.Error("Command failed",
			logger.StringField("command", update.Message.Text),
			logger.ErrorField(err))
		response = "An error occurred while processing your command."
	}

	if response != "" {
		c.sendPlain(ctx, b, update.Message.Chat.ID, response)
	}
}
