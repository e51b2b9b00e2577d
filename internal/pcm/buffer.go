package pcm

import (
	"errors"
	"math"
)

// Buffer holds planar float32 audio. Every channel slice has the same length.
type Buffer struct {
	SampleRate int
	Data       [][]float32
}

// New allocates a silent buffer.
func New(sampleRate, channels, frames int) *Buffer {
	if channels < 1 {
		channels = 1
	}
	if frames < 0 {
		frames = 0
	}
	b := &Buffer{SampleRate: sampleRate, Data: make([][]float32, channels)}
	for i := range b.Data {
		b.Data[i] = make([]float32, frames)
	}
	return b
}

// FromInterleaved splits interleaved samples into a planar buffer. A trailing
// partial frame is dropped.
func FromInterleaved(samples []float32, sampleRate, channels int) *Buffer {
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	b := New(sampleRate, channels, frames)
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			b.Data[c][f] = samples[f*channels+c]
		}
	}
	return b
}

// Validate reports structural problems (no channels, ragged channels, bad rate).
func (b *Buffer) Validate() error {
	if b == nil || len(b.Data) == 0 {
		return errors.New("buffer has no channels")
	}
	if b.SampleRate <= 0 {
		return errors.New("buffer sample rate must be positive")
	}
	n := len(b.Data[0])
	for _, ch := range b.Data[1:] {
		if len(ch) != n {
			return errors.New("buffer channels differ in length")
		}
	}
	return nil
}

func (b *Buffer) Channels() int { return len(b.Data) }

func (b *Buffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Channel returns channel i; a mono buffer answers every index with its only
// channel so callers can read it as dual-mono.
func (b *Buffer) Channel(i int) []float32 {
	if i >= len(b.Data) {
		return b.Data[len(b.Data)-1]
	}
	return b.Data[i]
}

// FrameIndex converts seconds to a frame offset, rounded to nearest and
// clamped at zero.
func (b *Buffer) FrameIndex(sec float64) int {
	return SecondsToFrames(sec, b.SampleRate)
}

func (b *Buffer) Clone() *Buffer {
	out := &Buffer{SampleRate: b.SampleRate, Data: make([][]float32, len(b.Data))}
	for i, ch := range b.Data {
		out.Data[i] = append([]float32(nil), ch...)
	}
	return out
}

// Interleaved returns the samples frame by frame.
func (b *Buffer) Interleaved() []float32 {
	ch := b.Channels()
	n := b.Frames()
	out := make([]float32, n*ch)
	for f := 0; f < n; f++ {
		for c := 0; c < ch; c++ {
			out[f*ch+c] = b.Data[c][f]
		}
	}
	return out
}

// Stereo returns a two-channel view: mono is duplicated, extra channels are
// dropped. Stereo input is returned as is.
func (b *Buffer) Stereo() *Buffer {
	switch len(b.Data) {
	case 2:
		return b
	case 1:
		return &Buffer{SampleRate: b.SampleRate, Data: [][]float32{b.Data[0], append([]float32(nil), b.Data[0]...)}}
	default:
		return &Buffer{SampleRate: b.SampleRate, Data: [][]float32{b.Data[0], b.Data[1]}}
	}
}

// Slice copies frames [from, to) into a new buffer.
func (b *Buffer) Slice(from, to int) *Buffer {
	n := b.Frames()
	from = clampInt(from, 0, n)
	to = clampInt(to, from, n)
	out := &Buffer{SampleRate: b.SampleRate, Data: make([][]float32, len(b.Data))}
	for i, ch := range b.Data {
		out.Data[i] = append([]float32(nil), ch[from:to]...)
	}
	return out
}

// Peak returns the largest absolute sample value.
func (b *Buffer) Peak() float32 {
	var peak float32
	for _, ch := range b.Data {
		for _, s := range ch {
			if s < 0 {
				s = -s
			}
			if s > peak {
				peak = s
			}
		}
	}
	return peak
}

// RMS returns the root mean square over all channels.
func (b *Buffer) RMS() float64 {
	var sum float64
	var n int
	for _, ch := range b.Data {
		for _, s := range ch {
			sum += float64(s) * float64(s)
		}
		n += len(ch)
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

// Equal reports whether two buffers are bit-identical.
func Equal(a, b *Buffer) bool {
	if a.SampleRate != b.SampleRate || len(a.Data) != len(b.Data) {
		return false
	}
	for c := range a.Data {
		if len(a.Data[c]) != len(b.Data[c]) {
			return false
		}
		for i := range a.Data[c] {
			if math.Float32bits(a.Data[c][i]) != math.Float32bits(b.Data[c][i]) {
				return false
			}
		}
	}
	return true
}

// SecondsToFrames rounds to the nearest frame, never negative.
func SecondsToFrames(sec float64, sampleRate int) int {
	if sec <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(math.Round(sec * float64(sampleRate)))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
