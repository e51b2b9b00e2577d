package effects

import (
	"fmt"
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// FilterKind selects a biquad response.
type FilterKind int

const (
	Lowpass FilterKind = iota
	Highpass
	Bandpass
	Notch
	Peaking
	LowShelf
	HighShelf
	Allpass
)

var filterNames = [...]string{"lowpass", "highpass", "bandpass", "notch", "peaking", "lowshelf", "highshelf", "allpass"}

func (k FilterKind) String() string {
	if k < 0 || int(k) >= len(filterNames) {
		return fmt.Sprintf("FilterKind(%d)", int(k))
	}
	return filterNames[k]
}

// ParseFilterKind maps a filter name to its kind.
func ParseFilterKind(s string) (FilterKind, bool) {
	for i, n := range filterNames {
		if n == s {
			return FilterKind(i), true
		}
	}
	return Lowpass, false
}

// Design returns biquad coefficients for kind. freq is kept inside the
// usable band and a non-positive q falls back to Butterworth.
func Design(kind FilterKind, freq, q, gainDB, sampleRate float64) biquad.Coefficients {
	freq = dspcore.Clamp(freq, 10, sampleRate*0.49)
	if q <= 0 {
		q = math.Sqrt2 / 2
	}
	switch kind {
	case Highpass:
		return design.Highpass(freq, q, sampleRate)
	case Bandpass:
		return design.Bandpass(freq, q, sampleRate)
	case Notch:
		return design.Notch(freq, q, sampleRate)
	case Peaking:
		return design.Peak(freq, gainDB, q, sampleRate)
	case LowShelf:
		return design.LowShelf(freq, gainDB, q, sampleRate)
	case HighShelf:
		return design.HighShelf(freq, gainDB, q, sampleRate)
	case Allpass:
		return design.Allpass(freq, q, sampleRate)
	default:
		return design.Lowpass(freq, q, sampleRate)
	}
}

// NewFilter creates a static stereo biquad.
func NewFilter(sampleRate int, kind FilterKind, freq, q, gainDB float64) Effector {
	c := Design(kind, freq, q, gainDB, float64(sampleRate))
	d, _ := newDual(func() (*biquad.Section, error) { return biquad.NewSection(c), nil }, 0)
	return d
}

// EQ3Band is a low shelf, a mid peak and a high shelf in series. Gains are
// in dB.
type EQ3Band struct {
	l, r *biquad.Chain
}

// NewEQ3Band creates a three band EQ with shelves at lowFreq and highFreq and
// the peak at midFreq.
func NewEQ3Band(sampleRate int, lowDB, midDB, highDB, lowFreq, midFreq, highFreq float64) *EQ3Band {
	sr := float64(sampleRate)
	coeffs := []biquad.Coefficients{
		Design(LowShelf, lowFreq, math.Sqrt2/2, lowDB, sr),
		Design(Peaking, midFreq, 0.9, midDB, sr),
		Design(HighShelf, highFreq, math.Sqrt2/2, highDB, sr),
	}
	return &EQ3Band{l: biquad.NewChain(coeffs), r: biquad.NewChain(coeffs)}
}

func (eq *EQ3Band) Process(l, r float32) (float32, float32) {
	return float32(eq.l.ProcessSample(float64(l))), float32(eq.r.ProcessSample(float64(r)))
}

func (eq *EQ3Band) Reset() {
	eq.l.Reset()
	eq.r.Reset()
}
