package audio

import (
	"errors"
	"io"
	"sync"
)

var ErrHapticsUnavailable = errors.New("audio: haptics unavailable")

// Haptics emits one vibration pulse.
type Haptics interface {
	Pulse() error
}

type NoopHaptics struct{}

func (NoopHaptics) Pulse() error { return nil }

// TerminalHaptics rings the terminal bell as a pulse pattern.
type TerminalHaptics struct {
	mu      sync.Mutex
	W       io.Writer
	Pattern string
}

func NewTerminalHaptics(w io.Writer) *TerminalHaptics {
	return &TerminalHaptics{W: w, Pattern: "\a"}
}

func (h *TerminalHaptics) Pulse() error {
	if h == nil || h.W == nil {
		return ErrHapticsUnavailable
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	pattern := h.Pattern
	if pattern == "" {
		pattern = "\a"
	}
	_, err := io.WriteString(h.W, pattern)
	return err
}
