package audio

import (
	"math"
	"sort"
	"sync"
)

const (
	PresetBell  = "bell"
	PresetChime = "chime"
	PresetGong  = "gong"
)

// Bell partials, as multiples of the fundamental, with their relative
// amplitudes. Upper partials decay faster.
var (
	partialRatios     = [5]float64{1, 2, 3, 4.2, 5.4}
	partialAmplitudes = [5]float64{1, 0.6, 0.4, 0.25, 0.2}
)

type preset struct {
	fundamental float64
	seconds     float64
	decay       float64
}

var presets = map[string]preset{
	PresetBell:  {fundamental: 660, seconds: 2.5, decay: 1.6},
	PresetChime: {fundamental: 1046.5, seconds: 1.8, decay: 2.4},
	PresetGong:  {fundamental: 196, seconds: 4, decay: 0.9},
}

// Presets lists the synthesized tone names.
func Presets() []string {
	out := make([]string, 0, len(presets))
	for name := range presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func HasPreset(name string) bool {
	_, ok := presets[name]
	return ok
}

type synthKey struct {
	name   string
	format Format
}

var synthCache sync.Map

// Synthesize renders the named preset, or the bell for unknown names, as PCM
// in format f.
func Synthesize(name string, f Format) []byte {
	if _, ok := presets[name]; !ok {
		name = PresetBell
	}
	key := synthKey{name: name, format: f}
	if cached, ok := synthCache.Load(key); ok {
		return cached.([]byte)
	}
	pcm := renderBell(presets[name], f)
	synthCache.Store(key, pcm)
	return pcm
}

func renderBell(p preset, f Format) []byte {
	n := int(float64(f.SampleRate) * p.seconds)
	samples := make([]float64, n)
	peak := 0.0
	for i := 0; i < n; i++ {
		t := float64(i) / float64(f.SampleRate)
		var s float64
		for k, ratio := range partialRatios {
			envelope := math.Exp(-t * p.decay * (1 + 0.6*float64(k)))
			s += partialAmplitudes[k] * envelope * math.Sin(2*math.Pi*p.fundamental*ratio*t)
		}
		samples[i] = s
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	gain := 0.0
	if peak > 0 {
		gain = 0.8 / peak
	}
	frames := make([][]float64, n)
	for i, s := range samples {
		frames[i] = []float64{s * gain}
	}
	return encodeFrames(frames, f)
}
