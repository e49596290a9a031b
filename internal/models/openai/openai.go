// Package openai adapts OpenAI's GPT models to the tutor's analyzer
// interface.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/daracheol/lingotutor/internal/memory_service"
	"github.com/daracheol/lingotutor/internal/prompt_manager"
	"github.com/daracheol/lingotutor/pkg/logger"
)

const defaultMaxTokens = 4096

// Model talks to the OpenAI chat completions API.
type Model struct {
	client    *openai.Client
	modelName string
	log       logger.Logger
}

// New creates an OpenAI-backed analyzer.
func New(apiKey, modelName string, log logger.Logger) (*Model, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	return &Model{
		client:    &client,
		modelName: modelName,
		log:       log,
	}, nil
}

// Name returns the configured model name.
func (o *Model) Name() string {
	return o.modelName
}

// Analyze sends the assembled prompt to OpenAI and returns the reply
// text.
func (o *Model) Analyze(ctx context.Context, p *prompt_manager.Prompt) (string, error) {
	messages, err := transformPrompt(p)
	if err != nil {
		return "", fmt.Errorf("failed to transform request: %w", err)
	}

	params := openai.ChatCompletionNewParams{
		Model:     o.modelName,
		MaxTokens: openai.Int(defaultMaxTokens),
		Messages:  messages,
	}

	o.log.Debug("Sending request to openai",
		logger.StringField("model", o.modelName),
		logger.IntField("messages", len(messages)))

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai returned an empty response")
	}
	return completion.Choices[0].Message.Content, nil
}

// transformPrompt maps the assembled prompt to chat completion
// messages. Attachments ride as content parts on the final user
// message: images as data URLs, PDFs as inline file parts.
func transformPrompt(p *prompt_manager.Prompt) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(p.History)+2)

	if p.System != "" {
		messages = append(messages, openai.SystemMessage(p.System))
	}
	for _, turn := range p.History {
		if turn.Role == memory_service.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(turn.Text))
		} else {
			messages = append(messages, openai.UserMessage(turn.Text))
		}
	}

	if p.Attachment == nil {
		messages = append(messages, openai.UserMessage(p.ComposedUserText()))
		return messages, nil
	}

	parts := []openai.ChatCompletionContentPartUnionParam{}
	if text := p.ComposedUserText(); text != "" {
		parts = append(parts, openai.TextContentPart(text))
	}

	att := p.Attachment
	b64 := base64.StdEncoding.EncodeToString(att.Data)
	switch att.Kind {
	case memory_service.MediaImage:
		dataURL := fmt.Sprintf("data:%s;base64,%s", att.MIMEType, b64)
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL,
		}))
	case memory_service.MediaPDF:
		parts = append(parts, openai.FileContentPart(openai.ChatCompletionContentPartFileFileParam{
			FileData: openai.String(fmt.Sprintf("data:%s;base64,%s", att.MIMEType, b64)),
			Filename: openai.String(att.Filename),
		}))
	default:
		return nil, fmt.Errorf("unsupported media kind %q", att.Kind)
	}

	messages = append(messages, openai.UserMessage(parts))
	return messages, nil
}
