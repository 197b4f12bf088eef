package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/vigil/internal/clock"
	"github.com/sandeepkv93/vigil/internal/logging"
)

var (
	ErrClosed   = errors.New("audio: engine not open")
	ErrPlayback = errors.New("audio: playback failed")
)

type Options struct {
	// Gap is the silence between loop repetitions.
	Gap            time.Duration
	RampStep       time.Duration
	HapticInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		Gap:            1500 * time.Millisecond,
		RampStep:       100 * time.Millisecond,
		HapticInterval: 2 * time.Second,
	}
}

// Engine owns exclusive playback of one looping tone at a time.
type Engine struct {
	out     Output
	haptics Haptics
	clock   clock.Clock
	opts    Options
	logger  *slog.Logger

	mu      sync.Mutex
	opened  bool
	closed  bool
	current *session
}

func NewEngine(out Output, haptics Haptics, clk clock.Clock, opts Options, logger *slog.Logger) *Engine {
	defaults := DefaultOptions()
	if opts.Gap < 0 {
		opts.Gap = 0
	}
	if opts.RampStep <= 0 {
		opts.RampStep = defaults.RampStep
	}
	if opts.HapticInterval <= 0 {
		opts.HapticInterval = defaults.HapticInterval
	}
	if haptics == nil {
		haptics = NoopHaptics{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Engine{
		out:     out,
		haptics: haptics,
		clock:   clk,
		opts:    opts,
		logger:  logging.OrDiscard(logger),
	}
}

func (e *Engine) Open(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.opened {
		return nil
	}
	if err := e.out.Open(ctx); err != nil {
		return fmt.Errorf("open audio output: %w", err)
	}
	e.opened = true
	return nil
}

// Play stops any current session, then loops src until Stop. Haptics run
// even when no sound can be produced.
func (e *Engine) Play(src Source, volume int, vibrate bool, fade time.Duration) error {
	e.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opened || e.closed {
		return ErrClosed
	}

	format := e.out.Format()
	pcm, custom := e.resolve(src, format)
	ramp := NewRamp(volume, fade)
	s := &session{
		engine:  e,
		ramp:    ramp,
		start:   e.clock.Now(),
		level:   ramp.At(0),
		vibrate: vibrate,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	voice, err := e.out.Start(pcm, s.level)
	if err != nil && custom {
		e.logger.Warn("custom tone playback failed; trying synthesized tone", "tone_id", src.ToneID, logging.Err(err))
		pcm = Synthesize(src.Preset, format)
		voice, err = e.out.Start(pcm, s.level)
	}
	s.pcm = pcm
	e.current = s

	if err != nil {
		close(s.done)
		s.startHaptics()
		e.logger.Error("audio output unavailable", "tone_id", src.ToneID, logging.Err(err))
		return fmt.Errorf("%w: %v", ErrPlayback, err)
	}

	s.voice = voice
	s.startRamp()
	s.startHaptics()
	go s.loop()
	return nil
}

func (e *Engine) resolve(src Source, format Format) ([]byte, bool) {
	if len(src.Payload) > 0 {
		pcm, err := DecodeWAV(src.Payload, format)
		if err == nil {
			return pcm, true
		}
		e.logger.Warn("custom tone unusable; using synthesized tone", "tone_id", src.ToneID, "mime", src.MIME, logging.Err(err))
	}
	return Synthesize(src.Preset, format), false
}

// Stop cancels the loop, ramp and haptic timers and closes the voice. It is
// safe to call at any time.
func (e *Engine) Stop() {
	e.mu.Lock()
	s := e.current
	e.current = nil
	e.mu.Unlock()
	if s != nil {
		s.halt()
	}
}

func (e *Engine) Close() error {
	e.Stop()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if !e.opened {
		return nil
	}
	return e.out.Close()
}

func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

// Level is the gain currently applied, or zero when idle.
func (e *Engine) Level() float64 {
	e.mu.Lock()
	s := e.current
	e.mu.Unlock()
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

type session struct {
	engine  *Engine
	pcm     []byte
	ramp    Ramp
	start   time.Time
	vibrate bool

	mu      sync.Mutex
	voice   Voice
	level   float64
	ramper  clock.Timer
	pulser  clock.Timer
	stopped bool

	stop chan struct{}
	done chan struct{}
}

func (s *session) startRamp() {
	if s.ramp.Duration <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ramper = s.engine.clock.AfterFunc(s.engine.opts.RampStep, s.rampStep)
}

func (s *session) rampStep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	elapsed := s.engine.clock.Now().Sub(s.start)
	s.level = s.ramp.At(elapsed)
	if s.voice != nil {
		s.voice.SetVolume(s.level)
	}
	if elapsed < s.ramp.Duration {
		s.ramper = s.engine.clock.AfterFunc(s.engine.opts.RampStep, s.rampStep)
	}
}

// startHaptics pulses now when there is no fade, otherwise once the fade
// has reached its target.
func (s *session) startHaptics() {
	if !s.vibrate {
		return
	}
	if s.ramp.Duration <= 0 {
		s.pulse()
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulser = s.engine.clock.AfterFunc(s.ramp.Duration, s.pulse)
}

func (s *session) pulse() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.engine.haptics.Pulse(); err != nil {
		s.engine.logger.Debug("haptic pulse failed", logging.Err(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.pulser = s.engine.clock.AfterFunc(s.engine.opts.HapticInterval, s.pulse)
	}
}

// loop replays the buffer after a silent gap each time a voice finishes.
func (s *session) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		voice := s.voice
		s.mu.Unlock()
		if voice == nil {
			return
		}

		select {
		case <-voice.Done():
			_ = voice.Close()
		case <-s.stop:
			return
		}
		select {
		case <-s.stop:
			return
		default:
		}

		if s.engine.opts.Gap > 0 {
			select {
			case <-s.engine.clock.After(s.engine.opts.Gap):
			case <-s.stop:
				return
			}
		}

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		next, err := s.engine.out.Start(s.pcm, s.level)
		if err != nil {
			s.voice = nil
			s.mu.Unlock()
			s.engine.logger.Error("audio loop restart failed", logging.Err(err))
			return
		}
		s.voice = next
		s.mu.Unlock()
	}
}

func (s *session) halt() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.stopped = true
	close(s.stop)
	if s.ramper != nil {
		s.ramper.Stop()
	}
	if s.pulser != nil {
		s.pulser.Stop()
	}
	voice := s.voice
	s.voice = nil
	s.mu.Unlock()

	if voice != nil {
		_ = voice.Close()
	}
	<-s.done
}
