package audio

import "context"

// Source is what to play: a custom payload when present, otherwise the
// synthesized Preset.
type Source struct {
	ToneID  string
	Preset  string
	MIME    string
	Payload []byte
}

// Output is an audio device that plays PCM buffers in its Format.
type Output interface {
	Open(ctx context.Context) error
	Format() Format
	Start(pcm []byte, volume float64) (Voice, error)
	Close() error
}

// Voice is one buffer playing on an Output. Done closes when playback ends
// or the voice is closed. Close is idempotent.
type Voice interface {
	SetVolume(v float64)
	Done() <-chan struct{}
	Close() error
}
