package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Format describes interleaved signed 16-bit little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

func DefaultFormat() Format {
	return Format{SampleRate: 44100, Channels: 2}
}

func (f Format) BytesPerFrame() int {
	return f.Channels * 2
}

// Duration is the play time of a PCM buffer in this format.
func (f Format) Duration(pcm []byte) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := len(pcm) / f.BytesPerFrame()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// encodeFrames writes mono or multichannel float samples in [-1, 1] as
// int16 LE, duplicating or dropping channels to match f.
func encodeFrames(frames [][]float64, f Format) []byte {
	out := make([]byte, 0, len(frames)*f.BytesPerFrame())
	var buf [2]byte
	for _, frame := range frames {
		for ch := 0; ch < f.Channels; ch++ {
			var v float64
			switch {
			case len(frame) == 0:
			case ch < len(frame):
				v = frame[ch]
			default:
				v = frame[len(frame)-1]
			}
			binary.LittleEndian.PutUint16(buf[:], uint16(toInt16(v)))
			out = append(out, buf[:]...)
		}
	}
	return out
}

func toInt16(v float64) int16 {
	if math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int16(math.Round(v * math.MaxInt16))
}
