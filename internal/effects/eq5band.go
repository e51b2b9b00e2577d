package effects

import (
	"math"
	"sync/atomic"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
)

// EQ5Band is the master equalizer: a low shelf, three peaks and a high shelf
// whose gains can be changed from any goroutine while the audio thread runs.
// Gains are stored as float32 bit patterns; the audio thread redesigns its
// sections when the version counter moves.
type EQ5Band struct {
	sr      float64
	gains   [5]atomic.Uint32
	version atomic.Uint64
	seen    uint64
	l, r    *biquad.Chain
}

// EQBandFrequencies are the band centres in Hz.
var EQBandFrequencies = [5]float64{100, 400, 1200, 3500, 9000}

// NewEQ5Band creates a 5-band EQ with all gains at unity.
func NewEQ5Band(sampleRate int) *EQ5Band {
	eq := &EQ5Band{sr: float64(sampleRate)}
	for i := range eq.gains {
		eq.gains[i].Store(math.Float32bits(1))
	}
	c := eq.design()
	eq.l = biquad.NewChain(c)
	eq.r = biquad.NewChain(c)
	return eq
}

// SetGain sets the linear gain for band (0-4); 1 is unity, 2 is about +6 dB.
func (eq *EQ5Band) SetGain(band int, gain float32) {
	if band >= 0 && band < 5 {
		eq.gains[band].Store(math.Float32bits(max(gain, 0)))
		eq.version.Add(1)
	}
}

// Gain returns the current linear gain for band (0-4).
func (eq *EQ5Band) Gain(band int) float32 {
	if band >= 0 && band < 5 {
		return math.Float32frombits(eq.gains[band].Load())
	}
	return 1
}

func (eq *EQ5Band) design() []biquad.Coefficients {
	out := make([]biquad.Coefficients, 5)
	for i, f := range EQBandFrequencies {
		g := float64(math.Float32frombits(eq.gains[i].Load()))
		db := dspcore.LinearToDB(math.Max(g, 1e-4))
		kind := Peaking
		switch i {
		case 0:
			kind = LowShelf
		case 4:
			kind = HighShelf
		}
		out[i] = Design(kind, f, 0.9, db, eq.sr)
	}
	return out
}

func (eq *EQ5Band) Process(l, r float32) (float32, float32) {
	if v := eq.version.Load(); v != eq.seen {
		eq.seen = v
		c := eq.design()
		for i := range c {
			eq.l.Section(i).Coefficients = c[i]
			eq.r.Section(i).Coefficients = c[i]
		}
	}
	return float32(eq.l.ProcessSample(float64(l))), float32(eq.r.ProcessSample(float64(r)))
}

func (eq *EQ5Band) Reset() {
	eq.l.Reset()
	eq.r.Reset()
}
