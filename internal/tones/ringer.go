package tones

import (
	"context"
	"time"

	"github.com/sandeepkv93/vigil/internal/audio"
	"github.com/sandeepkv93/vigil/internal/model"
)

// Player is the playback surface of the audio engine.
type Player interface {
	Play(src audio.Source, volume int, vibrate bool, fade time.Duration) error
	Stop()
}

// Ringer sounds alarms through the library and a player.
type Ringer struct {
	library *Library
	player  Player
}

func NewRinger(library *Library, player Player) *Ringer {
	return &Ringer{library: library, player: player}
}

func (r *Ringer) Ring(ctx context.Context, alarm model.Alarm) error {
	src := r.library.Resolve(ctx, alarm.ToneID)
	return r.player.Play(src, alarm.Volume, alarm.Vibrate, alarm.FadeIn())
}

func (r *Ringer) Silence() {
	r.player.Stop()
}
