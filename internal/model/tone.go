package model

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// MaxToneBytes caps custom tone uploads.
const MaxToneBytes = 5 << 20

var (
	ErrUnsupportedMIME = errors.New("model: unsupported tone mime type")
	ErrToneTooLarge    = errors.New("model: tone payload too large")
	ErrEmptyTone       = errors.New("model: tone payload is empty")
)

var allowedToneMIME = map[string]bool{
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/wave":  true,
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/ogg":   true,
	"audio/webm":  true,
	"audio/aac":   true,
	"audio/mp4":   true,
}

var toneExtensions = map[string]string{
	".wav":  "audio/wav",
	".wave": "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".webm": "audio/webm",
	".aac":  "audio/aac",
	".m4a":  "audio/mp4",
}

// CustomTone is an uploaded audio payload, stored opaquely.
type CustomTone struct {
	ID        string
	Name      string
	MIME      string
	Size      int64
	Payload   []byte
	CreatedAt time.Time
}

// IsWAV reports whether the payload claims to be RIFF/WAVE audio.
func (t CustomTone) IsWAV() bool {
	switch t.MIME {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return true
	default:
		return false
	}
}

// NormalizeMIME lowercases the media type and strips parameters.
func NormalizeMIME(raw string) string {
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return mt
}

// MIMEForFile guesses an audio media type from a file extension.
func MIMEForFile(path string) string {
	return toneExtensions[strings.ToLower(filepath.Ext(path))]
}

func ValidateToneUpload(mimeType string, size int) error {
	mt := NormalizeMIME(mimeType)
	if !allowedToneMIME[mt] {
		return fmt.Errorf("%w: %q", ErrUnsupportedMIME, mimeType)
	}
	if size <= 0 {
		return ErrEmptyTone
	}
	if size > MaxToneBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrToneTooLarge, size, MaxToneBytes)
	}
	return nil
}
