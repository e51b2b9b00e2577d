package synth

import (
	"math"

	"github.com/cbegin/mixsynth-go/internal/envelope"
	"github.com/cbegin/mixsynth-go/internal/graph"
)

// BrightParams configures the bright architecture.
type BrightParams struct {
	SectionSize   int     // ensemble members per note
	DetuneCents   float64 // total detune spread across the section
	TimingSpreadS float64 // onset spread across the section
	PanSpread     float64
	Envelope      envelope.Params
	Level         float64
}

func DefaultBrightParams() BrightParams {
	return BrightParams{
		SectionSize:   3,
		DetuneCents:   12,
		TimingSpreadS: 0.012,
		PanSpread:     0.5,
		Envelope: envelope.Params{
			Attack:              0.012,
			Decay:               0.25,
			Sustain:             0.65,
			Release:             0.22,
			AttackCurve:         envelope.Linear,
			DecayCurve:          envelope.Exponential,
			ReleaseCurve:        envelope.Exponential,
			VelocitySensitivity: 0.8,
		},
		Level: 0.5,
	}
}

// Bright is the metallic, transient-led design: a band-passed noise burst
// over detuned saw pulses and a square/saw fundamental, saturated, then
// shaped by a velocity-driven lowpass sweep, a formant peak and a shelf plus
// peak "bell" stage, with an ensemble of detuned, staggered members.
type Bright struct {
	p BrightParams
}

func NewBright(p BrightParams) *Bright {
	p.SectionSize = max(p.SectionSize, 1)
	return &Bright{p: p}
}

func (a *Bright) Name() string { return "bright" }

func (a *Bright) TailSec() float64 { return 0 }

func (a *Bright) Dispose() {}

// burstSec is how long the attack transient's noise source runs.
const burstSec = 0.06

func (a *Bright) BuildVoice(b *graph.Builder, req VoiceRequest) (*VoiceHandle, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	vel := clampVelocity(req.Velocity)
	h := newHandle(b, req.AtSec)
	n := a.p.SectionSize
	sr := float64(b.Graph().SampleRate())
	memberLevel := a.p.Level / math.Sqrt(float64(n))

	for i := 0; i < n; i++ {
		spread := 0.0
		if n > 1 {
			spread = float64(i)/float64(n-1)*2 - 1 // -1..1
		}
		at := req.AtSec + float64(i)*a.p.TimingSpreadS/float64(n)
		detune := spread * a.p.DetuneCents / 2
		f := req.Freq

		mix := b.Gain(1)

		noise := b.Noise(graph.White, noiseSeed(req.Note, i))
		bp := b.Filter(graph.Bandpass, math.Min(f*4, sr*0.45), 1.2, 0)
		burst := b.Gain(0)
		b.Chain(noise, bp, burst, mix)
		h.addSource(noise, at)
		noise.Stop(at + burstSec)
		burst.Gain.SetValueAtTime(0, at)
		burst.Gain.LinearRampToValueAtTime(0.35+0.4*vel, at+0.002)
		burst.Gain.ExponentialRampToValueAtTime(0.001, at+burstSec)

		pulses := b.Gain(0.3)
		for _, cents := range []float64{-7, 7} {
			o := b.Oscillator(graph.ShapeSawtooth, f)
			o.Detune.Reset(detune + cents)
			b.Connect(o, pulses)
			h.addSource(o, at)
		}
		b.Connect(pulses, mix)

		fund := b.Gain(0.3)
		sq := b.Oscillator(graph.ShapeSquare, f)
		sw := b.Oscillator(graph.ShapeSawtooth, f)
		for _, o := range []*graph.Oscillator{sq, sw} {
			o.Detune.Reset(detune)
			b.Connect(o, fund)
			h.addSource(o, at)
		}
		b.Connect(fund, mix)

		shaper := b.Shaper(1.2 + 1.5*vel)

		// brightness sweep opens wider with velocity
		peakCut := math.Min(f*(3+9*vel), sr*0.45)
		restCut := math.Max(peakCut*0.55, f*1.5)
		lp := b.Filter(graph.Lowpass, restCut*0.6, 0.9, 0)
		lp.Frequency.SetValueAtTime(restCut*0.6, at)
		lp.Frequency.ExponentialRampToValueAtTime(peakCut, at+a.p.Envelope.Attack+0.01)
		lp.Frequency.ExponentialRampToValueAtTime(restCut, at+a.p.Envelope.Attack+a.p.Envelope.Decay)

		formant := b.Filter(graph.Peaking, 700+1400*vel, 2.5, 5)
		shelf := b.Filter(graph.HighShelf, 3200, 0.7, 3+2*vel)
		bell := b.Filter(graph.Peaking, 2600, 1.4, 2.5)

		amp := b.Gain(0)
		level := b.Gain(memberLevel)
		pan := b.Panner(spread * a.p.PanSpread)
		b.Chain(mix, shaper, lp, formant, shelf, bell, amp, level, pan, req.Out)
		h.amp(a.p.Envelope, amp, req, at)
	}
	if err := b.Err(); err != nil {
		b.Release()
		return nil, err
	}
	h.settle()
	return h, nil
}
