package audio

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process.
var (
	otoCtx     *oto.Context
	otoReady   chan struct{}
	otoFormat  Format
	otoErr     error
	otoCtxOnce sync.Once
)

func initOtoContext(f Format) {
	otoCtxOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   f.SampleRate,
			ChannelCount: f.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = fmt.Errorf("init audio context: %w", err)
			return
		}
		otoCtx = ctx
		otoReady = ready
		otoFormat = f
	})
}

// OtoOutput plays through the process-wide oto context.
type OtoOutput struct {
	mu     sync.Mutex
	want   Format
	format Format
	ctx    *oto.Context
}

func NewOtoOutput(sampleRate int) *OtoOutput {
	f := DefaultFormat()
	if sampleRate > 0 {
		f.SampleRate = sampleRate
	}
	return &OtoOutput{want: f, format: f}
}

// Open waits for the audio device. A context created earlier in the process
// keeps its format.
func (o *OtoOutput) Open(ctx context.Context) error {
	initOtoContext(o.want)
	if otoErr != nil {
		return otoErr
	}
	select {
	case <-otoReady:
	case <-ctx.Done():
		return ctx.Err()
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ctx = otoCtx
	o.format = otoFormat
	return nil
}

func (o *OtoOutput) Format() Format {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.format
}

func (o *OtoOutput) Start(pcm []byte, volume float64) (Voice, error) {
	o.mu.Lock()
	ctx := o.ctx
	o.mu.Unlock()
	if ctx == nil {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("audio context: %w", err)
	}
	player := ctx.NewPlayer(bytes.NewReader(pcm))
	player.SetVolume(volume)
	player.Play()
	return newOtoVoice(player), nil
}

// Close releases this handle. The shared context lives until process exit.
func (o *OtoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ctx = nil
	return nil
}

type otoVoice struct {
	player *oto.Player
	done   chan struct{}
	stop   chan struct{}
	once   sync.Once
	err    error
}

func newOtoVoice(p *oto.Player) *otoVoice {
	v := &otoVoice{player: p, done: make(chan struct{}), stop: make(chan struct{})}
	go v.watch()
	return v
}

// watch polls the player the same way the device reports completion.
func (v *otoVoice) watch() {
	defer close(v.done)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-v.stop:
			return
		case <-ticker.C:
			if !v.player.IsPlaying() {
				return
			}
		}
	}
}

func (v *otoVoice) SetVolume(level float64) {
	v.player.SetVolume(level)
}

func (v *otoVoice) Done() <-chan struct{} {
	return v.done
}

func (v *otoVoice) Close() error {
	v.once.Do(func() {
		close(v.stop)
		v.player.Pause()
		v.err = v.player.Close()
	})
	return v.err
}
