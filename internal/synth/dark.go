package synth

import (
	"math"

	"github.com/cbegin/mixsynth-go/internal/effects"
	"github.com/cbegin/mixsynth-go/internal/envelope"
	"github.com/cbegin/mixsynth-go/internal/graph"
	"github.com/cbegin/mixsynth-go/internal/lfo"
)

// DarkParams configures the dark architecture and its shared bus.
type DarkParams struct {
	Envelope     envelope.Params
	Level        float64
	PreDelaySec  float64
	Resonances   [3]float64 // Hz of the peaking comb resonances
	CombDelaySec float64
	CombFeedback float64
	ShelfDB      float64
}

func DefaultDarkParams() DarkParams {
	return DarkParams{
		Envelope: envelope.Params{
			Attack:              0.45,
			Decay:               0.6,
			Sustain:             0.8,
			Release:             0.9,
			AttackCurve:         envelope.Logarithmic,
			DecayCurve:          envelope.Exponential,
			ReleaseCurve:        envelope.Exponential,
			VelocitySensitivity: 0.5,
		},
		Level:        0.45,
		PreDelaySec:  0.03,
		Resonances:   [3]float64{230, 470, 940},
		CombDelaySec: 0.037,
		CombFeedback: 0.55,
		ShelfDB:      -9,
	}
}

// inharmonic partial ratios and levels of the "wood" layer
var woodPartials = [...]struct{ ratio, level float64 }{
	{2.76, 0.08},
	{5.40, 0.04},
}

// Dark is the inverse of Bright: a slow swell of sine and triangle through
// two harmonic notches, inharmonic wood partials with slow random amplitude
// drift, a pink-noise bed, and inverted velocity (harder notes are darker
// and send more into a longer shared resonant bus).
type Dark struct {
	p   DarkParams
	bus *darkBus
}

type darkBus struct {
	g     *graph.Graph
	b     *graph.Builder
	input *graph.Gain
}

func NewDark(p DarkParams) *Dark {
	return &Dark{p: p}
}

func (a *Dark) Name() string { return "dark" }

// TailSec covers the pre-delay and the decay of the feedback comb.
func (a *Dark) TailSec() float64 {
	fb := math.Min(math.Abs(a.p.CombFeedback), 0.98)
	tail := a.p.CombDelaySec
	if fb > 0 {
		tail = a.p.CombDelaySec * math.Log(1e-3) / math.Log(fb)
	}
	return a.p.PreDelaySec + math.Min(tail, effects.MaxTail)
}

// Dispose releases the shared bus. Safe to call more than once.
func (a *Dark) Dispose() {
	if a.bus != nil {
		a.bus.b.Release()
		a.bus = nil
	}
}

// sharedBus returns the bus on g, building it on first use.
func (a *Dark) sharedBus(g *graph.Graph, out graph.Node) (*darkBus, error) {
	if a.bus != nil && a.bus.g == g {
		return a.bus, nil
	}
	b := g.Builder()
	in := b.Gain(1)
	pre, err := b.Delay(a.p.PreDelaySec, a.p.PreDelaySec, 0)
	if err != nil {
		return nil, err
	}
	b.Connect(in, pre)
	var last graph.Node = pre
	for _, f := range a.p.Resonances {
		peak := b.Filter(graph.Peaking, f, 6, 6)
		b.Connect(last, peak)
		last = peak
	}
	comb, err := b.Delay(a.p.CombDelaySec, a.p.CombDelaySec, a.p.CombFeedback)
	if err != nil {
		b.Release()
		return nil, err
	}
	shelf := b.Filter(graph.HighShelf, 2500, 0.7, a.p.ShelfDB)
	wet := b.Gain(0.6)
	b.Connect(last, comb)
	b.Connect(last, shelf)
	b.Connect(comb, shelf)
	b.Chain(shelf, wet, out)
	if err := b.Err(); err != nil {
		b.Release()
		return nil, err
	}
	a.bus = &darkBus{g: g, b: b, input: in}
	return a.bus, nil
}

func (a *Dark) BuildVoice(b *graph.Builder, req VoiceRequest) (*VoiceHandle, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	bus, err := a.sharedBus(b.Graph(), req.Out)
	if err != nil {
		return nil, err
	}
	vel := clampVelocity(req.Velocity)
	at := req.AtSec
	f := req.Freq
	sr := float64(b.Graph().SampleRate())
	h := newHandle(b, at)

	body := b.Gain(1)
	sine := b.Oscillator(graph.ShapeSine, f)
	tri := b.Oscillator(graph.ShapeTriangle, f)
	tri.Detune.Reset(-4)
	sineLevel := b.Gain(0.5)
	triLevel := b.Gain(0.35)
	b.Chain(sine, sineLevel, body)
	b.Chain(tri, triLevel, body)
	h.addSource(sine, at)
	h.addSource(tri, at)

	// hollow out the 2nd and 4th harmonics
	n2 := b.Filter(graph.Notch, math.Min(2*f, sr*0.45), 4, 0)
	n4 := b.Filter(graph.Notch, math.Min(4*f, sr*0.45), 4, 0)
	b.Chain(body, n2, n4)

	// inverted velocity: harder notes close the filter
	cut := math.Max(f*(8-5*vel), 200)
	lp := b.Filter(graph.Lowpass, math.Min(cut, sr*0.45), 0.7, 0)
	b.Connect(n4, lp)

	for i, w := range woodPartials {
		pf := f * w.ratio
		if pf >= sr*0.45 {
			continue
		}
		o := b.Oscillator(graph.ShapeSine, pf)
		g := b.Gain(w.level)
		drift := lfo.New(w.level*0.7, 0.4+0.2*float64(i), lfo.Random)
		drift.Seed(noiseSeed(req.Note, i))
		g.Modulate(drift)
		b.Chain(o, g, lp)
		h.addSource(o, at)
	}

	noise := b.Noise(graph.Pink, noiseSeed(req.Note, 99))
	murk := b.Filter(graph.Lowpass, 400, 0.7, 0)
	bed := b.Gain(0.05)
	b.Chain(noise, murk, bed, lp)
	h.addSource(noise, at)

	env := a.p.Envelope
	env.Release *= 1 + vel
	amp := b.Gain(0)
	level := b.Gain(a.p.Level)
	b.Chain(lp, amp, level)

	send := 0.2 + 0.5*vel
	dry := b.Gain(1 - send*0.5)
	wet := b.Gain(send)
	b.Chain(level, dry, req.Out)
	b.Connect(level, wet)
	b.Connect(wet, bus.input)
	h.amp(env, amp, req, at)

	if err := b.Err(); err != nil {
		b.Release()
		return nil, err
	}
	h.settle()
	return h, nil
}
