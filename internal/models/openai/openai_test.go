package openai

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daracheol/lingotutor/internal/memory_service"
	"github.com/daracheol/lingotutor/internal/prompt_manager"
	"github.com/daracheol/lingotutor/pkg/logger"
)

func newTestLogger() logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:  logger.DebugLevel,
		Output: io.Discard,
	})
}

func TestNew(t *testing.T) {
	m, err := New("test-api-key", "gpt-4o", newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", m.Name())

	_, err = New("", "gpt-4o", newTestLogger())
	assert.Error(t, err)

	_, err = New("test-api-key", "", newTestLogger())
	assert.Error(t, err)
}

func TestTransformPromptMessageOrder(t *testing.T) {
	p := &prompt_manager.Prompt{
		System: "You are a tutor.",
		History: []memory_service.Turn{
			{Role: memory_service.RoleUser, Text: "hola"},
			{Role: memory_service.RoleAssistant, Text: "Hola! How can I help?"},
		},
		UserText: "what does ser mean?",
	}

	messages, err := transformPrompt(p)
	require.NoError(t, err)
	require.Len(t, messages, 4)

	assert.NotNil(t, messages[0].OfSystem)
	assert.NotNil(t, messages[1].OfUser)
	assert.NotNil(t, messages[2].OfAssistant)
	assert.NotNil(t, messages[3].OfUser)
}

func TestTransformPromptAttachmentParts(t *testing.T) {
	t.Run("image", func(t *testing.T) {
		p := &prompt_manager.Prompt{
			UserText: "what does this sign say?",
			Attachment: &prompt_manager.Attachment{
				Data:     []byte{0xFF, 0xD8, 0xFF},
				MIMEType: "image/jpeg",
				Filename: "sign.jpg",
				Kind:     memory_service.MediaImage,
			},
		}

		messages, err := transformPrompt(p)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		require.NotNil(t, messages[0].OfUser)
	})

	t.Run("pdf", func(t *testing.T) {
		p := &prompt_manager.Prompt{
			UserText: "analyze this",
			Attachment: &prompt_manager.Attachment{
				Data:     []byte("%PDF-1.4"),
				MIMEType: "application/pdf",
				Filename: "quiz.pdf",
				Kind:     memory_service.MediaPDF,
			},
		}

		messages, err := transformPrompt(p)
		require.NoError(t, err)
		require.Len(t, messages, 1)
	})

	t.Run("unknown kind fails", func(t *testing.T) {
		p := &prompt_manager.Prompt{
			UserText: "analyze this",
			Attachment: &prompt_manager.Attachment{
				Data: []byte("..."),
				Kind: memory_service.MediaKind("audio"),
			},
		}

		_, err := transformPrompt(p)
		assert.Error(t, err)
	})
}
