package audio

import "time"

// FloorRatio is the starting level of a fade-in, relative to the target.
const FloorRatio = 0.05

// Ramp is a linear fade from Floor to Target over Duration.
type Ramp struct {
	Target   float64
	Floor    float64
	Duration time.Duration
}

// NewRamp builds the fade for a 0-100 volume. A zero fade starts at target.
func NewRamp(volume int, fade time.Duration) Ramp {
	target := float64(clampVolume(volume)) / 100
	if fade < 0 {
		fade = 0
	}
	return Ramp{Target: target, Floor: target * FloorRatio, Duration: fade}
}

// At returns the gain elapsed into the ramp.
func (r Ramp) At(elapsed time.Duration) float64 {
	if r.Duration <= 0 || elapsed >= r.Duration {
		return r.Target
	}
	if elapsed <= 0 {
		return r.Floor
	}
	progress := float64(elapsed) / float64(r.Duration)
	return r.Floor + (r.Target-r.Floor)*progress
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
