package graph

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/delay"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"

	"github.com/cbegin/mixsynth-go/internal/automation"
	"github.com/cbegin/mixsynth-go/internal/effects"
)

// Modulator adds a per-sample offset to a parameter. *lfo.LFO satisfies it.
type Modulator interface {
	Sample(sampleRate float64) float64
}

// Gain multiplies its input by an automatable gain plus optional modulation.
type Gain struct {
	id   NodeID
	sr   float64
	mod  Modulator
	Gain *automation.Param
}

func (g *Gain) ID() NodeID { return g.id }

// Modulate adds m's output to the gain every sample.
func (g *Gain) Modulate(m Modulator) { g.mod = m }

func (g *Gain) process(_ int64, t float64, in stereo) stereo {
	k := g.Gain.ValueAt(t)
	if g.mod != nil {
		k += g.mod.Sample(g.sr)
	}
	return stereo{in[0] * k, in[1] * k}
}

// FilterKind selects the biquad response.
type FilterKind = effects.FilterKind

const (
	Lowpass   = effects.Lowpass
	Highpass  = effects.Highpass
	Bandpass  = effects.Bandpass
	Notch     = effects.Notch
	Peaking   = effects.Peaking
	LowShelf  = effects.LowShelf
	HighShelf = effects.HighShelf
	Allpass   = effects.Allpass
)

// coefficient refresh interval in frames while parameters are automated
const filterUpdateFrames = 16

// Filter is a stereo biquad whose frequency, Q and gain (dB, peaking and
// shelving kinds only) can be automated.
type Filter struct {
	id        NodeID
	sr        float64
	kind      FilterKind
	l, r      *biquad.Section
	last      [3]float64
	fresh     bool
	Frequency *automation.Param
	Q         *automation.Param
	GainDB    *automation.Param
}

func (f *Filter) ID() NodeID { return f.id }

// Coefficients designs the filter for the parameter values at t.
func (f *Filter) Coefficients(t float64) biquad.Coefficients {
	freq := f.Frequency.ValueAt(t)
	q := f.Q.ValueAt(t)
	gain := f.GainDB.ValueAt(t)
	return effects.Design(f.kind, freq, q, gain, f.sr)
}

func (f *Filter) process(frame int64, t float64, in stereo) stereo {
	if !f.fresh || frame%filterUpdateFrames == 0 {
		v := [3]float64{f.Frequency.ValueAt(t), f.Q.ValueAt(t), f.GainDB.ValueAt(t)}
		if !f.fresh || v != f.last {
			c := effects.Design(f.kind, v[0], v[1], v[2], f.sr)
			f.l.Coefficients = c
			f.r.Coefficients = c
			f.last = v
			f.fresh = true
		}
	}
	return stereo{f.l.ProcessSample(in[0]), f.r.ProcessSample(in[1])}
}

// Shaper is a soft-saturation waveshaper: tanh(drive*x)/tanh(drive).
type Shaper struct {
	id    NodeID
	drive float64
	norm  float64
}

func (s *Shaper) ID() NodeID { return s.id }

func (s *Shaper) process(_ int64, _ float64, in stereo) stereo {
	if s.drive <= 0 {
		return in
	}
	return stereo{math.Tanh(in[0]*s.drive) * s.norm, math.Tanh(in[1]*s.drive) * s.norm}
}

// Delay is a stereo feedback delay that outputs the delayed signal only.
type Delay struct {
	id       NodeID
	sr       float64
	lines    [2]*delay.Line
	maxDelay float64
	Time     *automation.Param // seconds
	Feedback *automation.Param
}

func (d *Delay) ID() NodeID { return d.id }

func (d *Delay) process(_ int64, t float64, in stereo) stereo {
	samples := dspcore.Clamp(d.Time.ValueAt(t), 0, d.maxDelay) * d.sr
	fb := dspcore.Clamp(d.Feedback.ValueAt(t), 0, 0.98)
	var out stereo
	for c, line := range d.lines {
		y := line.ReadFractional(samples)
		line.Write(dspcore.FlushDenormals(in[c] + y*fb))
		out[c] = y
	}
	return out
}

// Panner applies the balance law from effects.PanGains.
type Panner struct {
	id  NodeID
	Pan *automation.Param
}

func (p *Panner) ID() NodeID { return p.id }

func (p *Panner) process(_ int64, t float64, in stereo) stereo {
	l, r := effects.PanGains(p.Pan.ValueAt(t))
	return stereo{in[0] * l, in[1] * r}
}

// Insert runs an effects.Effector over its input.
type Insert struct {
	id NodeID
	fx effects.Effector
}

func (i *Insert) ID() NodeID { return i.id }

func (i *Insert) process(_ int64, _ float64, in stereo) stereo {
	l, r := i.fx.Process(float32(in[0]), float32(in[1]))
	return stereo{float64(l), float64(r)}
}
