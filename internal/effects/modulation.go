package effects

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"

	"github.com/cbegin/mixsynth-go/internal/lfo"
)

// PanGains is the engine's pan law, a cosine balance: the near channel stays
// at unity and the far one tapers by cos(|pan|*pi/2). Pan 0 passes both
// channels unchanged, -1 silences the right and +1 the left.
func PanGains(pan float64) (left, right float64) {
	pan = dspcore.Clamp(pan, -1, 1)
	left, right = 1, 1
	switch {
	case pan == 1:
		left = 0
	case pan == -1:
		right = 0
	case pan > 0:
		left = math.Cos(pan * math.Pi / 2)
	case pan < 0:
		right = math.Cos(-pan * math.Pi / 2)
	}
	return left, right
}

// Tremolo modulates amplitude with an LFO. depth in [0, 1] is the dip at the
// bottom of the cycle.
type Tremolo struct {
	sr    float64
	depth float64
	mod   *lfo.LFO
}

func NewTremolo(sampleRate int, rateHz, depth float64, shape lfo.Waveform) *Tremolo {
	depth = dspcore.Clamp(depth, 0, 1)
	return &Tremolo{sr: float64(sampleRate), depth: depth, mod: lfo.New(1, rateHz, shape)}
}

func (t *Tremolo) Process(l, r float32) (float32, float32) {
	g := float32(1 - t.depth*0.5*(1-t.mod.Sample(t.sr)))
	return l * g, r * g
}

func (t *Tremolo) Reset() { t.mod.Reset() }

// AutoPan sweeps the stereo position with an LFO using PanGains.
type AutoPan struct {
	sr  float64
	mod *lfo.LFO
}

func NewAutoPan(sampleRate int, rateHz, width float64) *AutoPan {
	return &AutoPan{sr: float64(sampleRate), mod: lfo.New(dspcore.Clamp(width, 0, 1), rateHz, lfo.Sine)}
}

func (a *AutoPan) Process(l, r float32) (float32, float32) {
	gl, gr := PanGains(a.mod.Sample(a.sr))
	return l * float32(gl), r * float32(gr)
}

func (a *AutoPan) Reset() { a.mod.Reset() }

// Phaser sweeps a cascade of allpass stages and mixes the result with the
// dry signal, producing moving notches.
type Phaser struct {
	sr         float64
	stagesL    []*biquad.Section
	stagesR    []*biquad.Section
	mod        *lfo.LFO
	center     float64
	octaves    float64
	feedback   float64
	mix        float64
	fbL, fbR   float64
	n          int
	lastCenter float64
}

// NewPhaser creates a phaser sweeping ±octaves around centerHz.
func NewPhaser(sampleRate int, stages int, centerHz, octaves, rateHz, feedback, mix float64) *Phaser {
	stages = max(stages, 1)
	p := &Phaser{
		sr:       float64(sampleRate),
		stagesL:  make([]*biquad.Section, stages),
		stagesR:  make([]*biquad.Section, stages),
		mod:      lfo.New(1, rateHz, lfo.Triangle),
		center:   centerHz,
		octaves:  octaves,
		feedback: dspcore.Clamp(feedback, 0, 0.9),
		mix:      dspcore.Clamp(mix, 0, 1),
	}
	c := Design(Allpass, centerHz, 0.7, 0, p.sr)
	for i := range p.stagesL {
		p.stagesL[i] = biquad.NewSection(c)
		p.stagesR[i] = biquad.NewSection(c)
	}
	return p
}

func (p *Phaser) Process(l, r float32) (float32, float32) {
	m := p.mod.Sample(p.sr)
	if p.n%16 == 0 {
		f := p.center * math.Pow(2, m*p.octaves)
		if f != p.lastCenter {
			c := Design(Allpass, f, 0.7, 0, p.sr)
			for i := range p.stagesL {
				p.stagesL[i].Coefficients = c
				p.stagesR[i].Coefficients = c
			}
			p.lastCenter = f
		}
	}
	p.n++

	wl := float64(l) + p.fbL*p.feedback
	wr := float64(r) + p.fbR*p.feedback
	for i := range p.stagesL {
		wl = p.stagesL[i].ProcessSample(wl)
		wr = p.stagesR[i].ProcessSample(wr)
	}
	p.fbL = dspcore.FlushDenormals(wl)
	p.fbR = dspcore.FlushDenormals(wr)
	outL := float64(l)*(1-p.mix*0.5) + wl*p.mix*0.5
	outR := float64(r)*(1-p.mix*0.5) + wr*p.mix*0.5
	return float32(outL), float32(outR)
}

func (p *Phaser) Reset() {
	for i := range p.stagesL {
		p.stagesL[i].Reset()
		p.stagesR[i].Reset()
	}
	p.fbL, p.fbR = 0, 0
	p.n = 0
	p.lastCenter = 0
	p.mod.Reset()
}

func (p *Phaser) Tail() float64 { return feedbackTail(0.01, p.feedback) }
