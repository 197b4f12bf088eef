package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var ErrUnsupportedWAV = errors.New("audio: unsupported wav payload")

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

type wavFormat struct {
	AudioFormat int
	SampleRate  int
	Channels    int
	BitDepth    int
}

// DecodeWAV converts a RIFF/WAVE payload to PCM in the output format,
// resampling and remapping channels as needed.
func DecodeWAV(data []byte, out Format) ([]byte, error) {
	format, raw, err := parseWAV(data)
	if err != nil {
		return nil, err
	}
	frames, err := decodeSamples(format, raw)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no audio frames", ErrUnsupportedWAV)
	}
	return encodeFrames(resample(frames, format.SampleRate, out.SampleRate), out), nil
}

func parseWAV(data []byte) (wavFormat, []byte, error) {
	reader := bytes.NewReader(data)

	var header [12]byte
	if _, err := io.ReadFull(reader, header[:]); err != nil {
		return wavFormat{}, nil, fmt.Errorf("%w: short header", ErrUnsupportedWAV)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return wavFormat{}, nil, fmt.Errorf("%w: not RIFF/WAVE", ErrUnsupportedWAV)
	}

	var format wavFormat
	var haveFormat bool
	for {
		var chunkID [4]byte
		if _, err := io.ReadFull(reader, chunkID[:]); err != nil {
			return wavFormat{}, nil, fmt.Errorf("%w: missing data chunk", ErrUnsupportedWAV)
		}
		var chunkSize uint32
		if err := binary.Read(reader, binary.LittleEndian, &chunkSize); err != nil {
			return wavFormat{}, nil, fmt.Errorf("%w: truncated chunk", ErrUnsupportedWAV)
		}

		switch string(chunkID[:]) {
		case "fmt ":
			if chunkSize < 16 {
				return wavFormat{}, nil, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedWAV)
			}
			var fmtChunk struct {
				AudioFormat   uint16
				Channels      uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if err := binary.Read(reader, binary.LittleEndian, &fmtChunk); err != nil {
				return wavFormat{}, nil, fmt.Errorf("%w: truncated fmt chunk", ErrUnsupportedWAV)
			}
			if _, err := reader.Seek(int64(chunkSize-16)+int64(chunkSize%2), io.SeekCurrent); err != nil {
				return wavFormat{}, nil, fmt.Errorf("%w: %v", ErrUnsupportedWAV, err)
			}
			format = wavFormat{
				AudioFormat: int(fmtChunk.AudioFormat),
				SampleRate:  int(fmtChunk.SampleRate),
				Channels:    int(fmtChunk.Channels),
				BitDepth:    int(fmtChunk.BitsPerSample),
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return wavFormat{}, nil, fmt.Errorf("%w: data before fmt", ErrUnsupportedWAV)
			}
			size := int(chunkSize)
			if size > reader.Len() {
				size = reader.Len()
			}
			raw := make([]byte, size)
			if _, err := io.ReadFull(reader, raw); err != nil {
				return wavFormat{}, nil, fmt.Errorf("%w: %v", ErrUnsupportedWAV, err)
			}
			return format, raw, nil
		default:
			if _, err := reader.Seek(int64(chunkSize)+int64(chunkSize%2), io.SeekCurrent); err != nil {
				return wavFormat{}, nil, fmt.Errorf("%w: %v", ErrUnsupportedWAV, err)
			}
		}
	}
}

func decodeSamples(f wavFormat, raw []byte) ([][]float64, error) {
	if f.Channels <= 0 || f.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedWAV, f.Channels, f.SampleRate)
	}
	var read func([]byte) float64
	switch {
	case f.AudioFormat == wavFormatPCM && f.BitDepth == 8:
		read = func(b []byte) float64 { return (float64(b[0]) - 128) / 128 }
	case f.AudioFormat == wavFormatPCM && f.BitDepth == 16:
		read = func(b []byte) float64 { return float64(int16(binary.LittleEndian.Uint16(b))) / 32768 }
	case f.AudioFormat == wavFormatPCM && f.BitDepth == 24:
		read = func(b []byte) float64 {
			v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
			return float64(v) / 8388608
		}
	case f.AudioFormat == wavFormatPCM && f.BitDepth == 32:
		read = func(b []byte) float64 { return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648 }
	case f.AudioFormat == wavFormatFloat && f.BitDepth == 32:
		read = func(b []byte) float64 { return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))) }
	default:
		return nil, fmt.Errorf("%w: format %d with %d bits", ErrUnsupportedWAV, f.AudioFormat, f.BitDepth)
	}

	width := f.BitDepth / 8
	frameSize := width * f.Channels
	frames := make([][]float64, 0, len(raw)/frameSize)
	for off := 0; off+frameSize <= len(raw); off += frameSize {
		frame := make([]float64, f.Channels)
		for ch := 0; ch < f.Channels; ch++ {
			start := off + ch*width
			frame[ch] = read(raw[start : start+width])
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// resample converts frames between rates with linear interpolation.
func resample(frames [][]float64, from, to int) [][]float64 {
	if from == to || from <= 0 || to <= 0 || len(frames) < 2 {
		return frames
	}
	n := int(int64(len(frames)) * int64(to) / int64(from))
	out := make([][]float64, n)
	step := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(frames)-1 {
			out[i] = frames[len(frames)-1]
			continue
		}
		frac := pos - float64(idx)
		a, b := frames[idx], frames[idx+1]
		frame := make([]float64, len(a))
		for ch := range a {
			frame[ch] = a[ch] + (b[ch]-a[ch])*frac
		}
		out[i] = frame
	}
	return out
}
