// Package gemini adapts Google's Gemini models to the tutor's analyzer
// interface.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/daracheol/lingotutor/internal/memory_service"
	"github.com/daracheol/lingotutor/internal/prompt_manager"
	"github.com/daracheol/lingotutor/pkg/logger"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

// Model talks to the Gemini API.
type Model struct {
	client    *genai.Client
	modelName string
	log       logger.Logger
}

// New creates a Gemini-backed analyzer.
func New(ctx context.Context, apiKey, modelName string, log logger.Logger) (*Model, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Model{
		client:    client,
		modelName: modelName,
		log:       log,
	}, nil
}

// Name returns the configured model name.
func (m *Model) Name() string {
	return m.modelName
}

// Analyze sends the assembled prompt to Gemini and returns the reply
// text.
func (m *Model) Analyze(ctx context.Context, p *prompt_manager.Prompt) (string, error) {
	contents := transformPrompt(p)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
	}

	m.log.Debug("Sending request to gemini",
		logger.StringField("model", m.modelName),
		logger.IntField("contents", len(contents)))

	resp, err := m.client.Models.GenerateContent(ctx, m.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini api error: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}

// transformPrompt maps the assembled prompt to Gemini contents. History
// turns become alternating user/model contents; the final user content
// carries the composed text plus any attachment bytes.
func transformPrompt(p *prompt_manager.Prompt) []*genai.Content {
	contents := make([]*genai.Content, 0, len(p.History)+1)

	for _, turn := range p.History {
		role := genai.Role(genai.RoleUser)
		if turn.Role == memory_service.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}

	parts := []*genai.Part{}
	if text := p.ComposedUserText(); text != "" {
		parts = append(parts, genai.NewPartFromText(text))
	}
	if p.Attachment != nil {
		parts = append(parts, genai.NewPartFromBytes(p.Attachment.Data, p.Attachment.MIMEType))
	}
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	return contents
}
