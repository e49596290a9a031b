// Package anthropic adapts Anthropic's Claude models to the tutor's
// analyzer interface.
package anthropic

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/daracheol/lingotutor/internal/memory_service"
	"github.com/daracheol/lingotutor/internal/prompt_manager"
	"github.com/daracheol/lingotutor/pkg/logger"
)

const defaultMaxTokens = 4000

// ClaudeModel talks to the Anthropic Messages API.
type ClaudeModel struct {
	client    anthropic.Client
	modelName string
	log       logger.Logger
}

// NewClaudeModel creates a Claude-backed analyzer.
func NewClaudeModel(apiKey, modelName string, log logger.Logger, opts ...option.RequestOption) (*ClaudeModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if modelName == "" {
		modelName = "claude-3-5-sonnet-latest"
	}

	client := anthropic.NewClient(
		append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...,
	)

	return &ClaudeModel{
		client:    client,
		modelName: modelName,
		log:       log,
	}, nil
}

// Name returns the configured model name.
func (c *ClaudeModel) Name() string {
	return c.modelName
}

// Analyze sends the assembled prompt to Claude and returns the reply
// text.
func (c *ClaudeModel) Analyze(ctx context.Context, p *prompt_manager.Prompt) (string, error) {
	messages, err := transformPrompt(p)
	if err != nil {
		return "", fmt.Errorf("failed to transform request: %w", err)
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.modelName),
		MaxTokens: defaultMaxTokens,
		Messages:  messages,
	}
	if p.System != "" {
		req.System = []anthropic.TextBlockParam{{Text: p.System}}
	}

	c.log.Debug("Sending request to anthropic",
		logger.StringField("model", c.modelName),
		logger.IntField("messages", len(messages)))

	resp, err := c.client.Messages.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("claude api error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("claude returned an empty response")
	}
	return text, nil
}

// transformPrompt maps the assembled prompt to Anthropic messages.
func transformPrompt(p *prompt_manager.Prompt) ([]anthropic.MessageParam, error) {
	messages := make([]anthropic.MessageParam, 0, len(p.History)+1)

	for _, turn := range p.History {
		block := anthropic.NewTextBlock(turn.Text)
		if turn.Role == memory_service.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	blocks := []anthropic.ContentBlockParamUnion{}
	if text := p.ComposedUserText(); text != "" {
		blocks = append(blocks, anthropic.NewTextBlock(text))
	}
	if att := p.Attachment; att != nil {
		b64 := base64.StdEncoding.EncodeToString(att.Data)
		switch att.Kind {
		case memory_service.MediaImage:
			blocks = append(blocks, anthropic.NewImageBlockBase64(att.MIMEType, b64))
		case memory_service.MediaPDF:
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfDocument: &anthropic.DocumentBlockParam{
					Source: anthropic.DocumentBlockParamSourceUnion{
						OfBase64: &anthropic.Base64PDFSourceParam{Data: b64},
					},
				},
			})
		default:
			return nil, fmt.Errorf("unsupported media kind %q", att.Kind)
		}
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("empty user message")
	}
	messages = append(messages, anthropic.NewUserMessage(blocks...))

	return messages, nil
}
