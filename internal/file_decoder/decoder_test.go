package file_decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daracheol/lingotutor/internal/memory_service"
)

func TestDecodePDF(t *testing.T) {
	d, err := Decode([]byte("%PDF-1.7\n%some pdf body"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", d.MIMEType)
	assert.Equal(t, memory_service.MediaPDF, d.Kind)
}

func TestDecodeImages(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		mime string
	}{
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, "image/png"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, "image/jpeg"},
		{"webp", append([]byte("RIFF\x00\x00\x00\x00WEBP"), 0x56), "image/webp"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Decode(tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.mime, d.MIMEType)
			assert.Equal(t, memory_service.MediaImage, d.Kind)
		})
	}
}

func TestDecodeUnsupported(t *testing.T) {
	_, err := Decode([]byte("PK\x03\x04 this is a zip"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Decode([]byte("plain text essay"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Decode(nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	// RIFF without the WEBP marker is not an image we accept.
	_, err = Decode([]byte("RIFF\x00\x00\x00\x00WAVE"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	// GIF is not accepted by every model backend, so it is rejected here.
	_, err = Decode([]byte("GIF89a...."))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeTooLarge(t *testing.T) {
	data := make([]byte, MaxFileSize+1)
	copy(data, "%PDF-")
	_, err := Decode(data)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}
