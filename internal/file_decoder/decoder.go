// Package file_decoder validates and classifies uploaded file bytes
// before they are forwarded to a model. Classification is done by
// content sniffing, not by trusting filenames or transport metadata.
package file_decoder

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/daracheol/lingotutor/internal/memory_service"
)

// MaxFileSize is the largest upload accepted for analysis. Telegram's
// bot API refuses downloads above 20 MB anyway, so this is the
// effective ceiling either way.
const MaxFileSize = 20 << 20

// ErrUnsupportedFormat is returned when the bytes are not a format the
// models can analyze.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrFileTooLarge is returned when the upload exceeds MaxFileSize.
var ErrFileTooLarge = errors.New("file too large")

// Decoded is a validated upload ready for model submission.
type Decoded struct {
	Data     []byte
	MIMEType string
	Kind     memory_service.MediaKind
}

// Accepted formats are the intersection of what every model backend
// takes as inline media. WEBP is in (all three accept it); GIF is out
// (Gemini does not take it).
var (
	magicPDF  = []byte("%PDF-")
	magicPNG  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
	magicWEBP = []byte("RIFF")
)

// Decode sniffs the payload and returns it with its MIME type. Unknown
// formats fail with ErrUnsupportedFormat; oversized payloads fail with
// ErrFileTooLarge before any sniffing.
func Decode(data []byte) (Decoded, error) {
	if len(data) > MaxFileSize {
		return Decoded{}, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, len(data), MaxFileSize)
	}
	if len(data) == 0 {
		return Decoded{}, fmt.Errorf("%w: empty payload", ErrUnsupportedFormat)
	}

	switch {
	case bytes.HasPrefix(data, magicPDF):
		return Decoded{Data: data, MIMEType: "application/pdf", Kind: memory_service.MediaPDF}, nil
	case bytes.HasPrefix(data, magicPNG):
		return Decoded{Data: data, MIMEType: "image/png", Kind: memory_service.MediaImage}, nil
	case bytes.HasPrefix(data, magicJPEG):
		return Decoded{Data: data, MIMEType: "image/jpeg", Kind: memory_service.MediaImage}, nil
	case isWEBP(data):
		return Decoded{Data: data, MIMEType: "image/webp", Kind: memory_service.MediaImage}, nil
	}

	return Decoded{}, fmt.Errorf("%w: unrecognized magic bytes", ErrUnsupportedFormat)
}

// isWEBP checks the RIFF container carries a WEBP payload, since RIFF
// alone also covers WAV and AVI.
func isWEBP(data []byte) bool {
	return len(data) >= 12 && bytes.HasPrefix(data, magicWEBP) && bytes.Equal(data[8:12], []byte("WEBP"))
}
