// Package analysis measures rendered audio: level, spectrum and dominant
// pitch.
package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"

	"github.com/cbegin/mixsynth-go/internal/pcm"
)

const DefaultFFTSize = 4096

// Spectrum is an averaged magnitude spectrum.
type Spectrum struct {
	Mag   []float64 // bins 0..size/2
	BinHz float64
}

// Analyze averages Hann-windowed frames of size samples with 50% overlap.
// Input shorter than one frame is zero-padded. size must be even.
func Analyze(samples []float64, sampleRate, size int) (Spectrum, error) {
	if size < 2 || size%2 != 0 {
		return Spectrum{}, errors.New("fft size must be even and at least 2")
	}
	if sampleRate <= 0 {
		return Spectrum{}, errors.New("sample rate must be positive")
	}
	plan, err := algofft.NewPlanReal64(size)
	if err != nil {
		return Spectrum{}, err
	}
	hann := make([]float64, size)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(size-1))
	}
	frame := make([]float64, size)
	bins := make([]complex128, size/2+1)
	mag := make([]float64, size/2+1)
	hop := size / 2
	frames := 0
	for pos := 0; pos == 0 || pos+size <= len(samples); pos += hop {
		clear(frame)
		for i := 0; i < size && pos+i < len(samples); i++ {
			frame[i] = samples[pos+i] * hann[i]
		}
		if err := plan.Forward(bins, frame); err != nil {
			return Spectrum{}, err
		}
		for k := range mag {
			mag[k] += cmplx.Abs(bins[k])
		}
		frames++
	}
	for k := range mag {
		mag[k] /= float64(frames)
	}
	return Spectrum{Mag: mag, BinHz: float64(sampleRate) / float64(size)}, nil
}

// Peak returns the strongest bin above DC, refined by parabolic
// interpolation, in Hz.
func (s Spectrum) Peak() float64 {
	best := 1
	for k := 2; k < len(s.Mag); k++ {
		if s.Mag[k] > s.Mag[best] {
			best = k
		}
	}
	if best <= 0 || best >= len(s.Mag)-1 {
		return float64(best) * s.BinHz
	}
	a, b, c := s.Mag[best-1], s.Mag[best], s.Mag[best+1]
	den := a - 2*b + c
	off := 0.0
	if den != 0 {
		off = 0.5 * (a - c) / den
	}
	return (float64(best) + off) * s.BinHz
}

// Band sums magnitudes for bins whose centre lies in [loHz, hiHz).
func (s Spectrum) Band(loHz, hiHz float64) float64 {
	var sum float64
	for k, m := range s.Mag {
		f := float64(k) * s.BinHz
		if f >= loHz && f < hiHz {
			sum += m
		}
	}
	return sum
}

// Mono averages the channels of b.
func Mono(b *pcm.Buffer) []float64 {
	n := b.Frames()
	out := make([]float64, n)
	if len(b.Data) == 0 {
		return out
	}
	for _, ch := range b.Data {
		for i := range out {
			out[i] += float64(ch[i])
		}
	}
	inv := 1 / float64(len(b.Data))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// DominantFrequency returns the strongest frequency in b, in Hz.
func DominantFrequency(b *pcm.Buffer) (float64, error) {
	s, err := Analyze(Mono(b), b.SampleRate, DefaultFFTSize)
	if err != nil {
		return 0, err
	}
	return s.Peak(), nil
}

// Summary is what the inspect command prints.
type Summary struct {
	SampleRate  int
	Channels    int
	Frames      int
	DurationSec float64
	Peak        float64
	PeakDB      float64
	RMS         float64
	RMSDB       float64
	DominantHz  float64
}

func Summarize(b *pcm.Buffer) (Summary, error) {
	if err := b.Validate(); err != nil {
		return Summary{}, err
	}
	s := Summary{
		SampleRate:  b.SampleRate,
		Channels:    b.Channels(),
		Frames:      b.Frames(),
		DurationSec: b.Duration(),
		Peak:        float64(b.Peak()),
		RMS:         b.RMS(),
	}
	s.PeakDB = toDB(s.Peak)
	s.RMSDB = toDB(s.RMS)
	if s.Frames > 0 {
		hz, err := DominantFrequency(b)
		if err != nil {
			return Summary{}, err
		}
		s.DominantHz = hz
	}
	return s, nil
}

func toDB(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}
