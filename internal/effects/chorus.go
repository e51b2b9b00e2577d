package effects

import (
	"math"

	dspfx "github.com/cwbudde/algo-dsp/dsp/effects"
)

// NewChorus creates a multi-voice chorus. depthSec is the modulation sweep,
// mix in [0, 1].
func NewChorus(sampleRate int, rateHz, depthSec, mix float64) (Effector, error) {
	const base = 0.018
	return newDual(func() (*dspfx.Chorus, error) {
		c, err := dspfx.NewChorus()
		if err != nil {
			return nil, err
		}
		for _, set := range []func() error{
			func() error { return c.SetSampleRate(float64(sampleRate)) },
			func() error { return c.SetSpeedHz(rateHz) },
			func() error { return c.SetDepth(depthSec) },
			func() error { return c.SetBaseDelay(base) },
			func() error { return c.SetMix(mix) },
		} {
			if err := set(); err != nil {
				return nil, err
			}
		}
		return c, nil
	}, base+depthSec)
}

// Flanger is a short modulated delay with feedback.
type Flanger struct {
	bufL, bufR []float32
	pos        int
	size       int
	depth      float32 // samples
	rate       float64 // radians per sample
	phase      float64
	feedback   float32
	wet        float32
	tail       float64
}

// NewFlanger creates a flanger. delaySec is the centre delay (typically 1 to
// 10 ms), depthSec the sweep around it.
func NewFlanger(sampleRate int, delaySec, depthSec, rateHz float64, feedback, wet float32) *Flanger {
	sr := float64(sampleRate)
	depth := depthSec * sr
	size := int(delaySec*sr) + int(depth) + 2
	if size < 4 {
		size = 4
	}
	fb := clamp(feedback, 0, 0.9)
	return &Flanger{
		bufL:     make([]float32, size),
		bufR:     make([]float32, size),
		size:     size,
		depth:    float32(depth),
		rate:     2 * math.Pi * rateHz / sr,
		feedback: fb,
		wet:      clamp(wet, 0, 1),
		tail:     feedbackTail(float64(size)/sr, float64(fb)),
	}
}

func (f *Flanger) Process(l, r float32) (float32, float32) {
	mod := float32(math.Sin(f.phase)) * f.depth
	f.phase += f.rate
	if f.phase > 2*math.Pi {
		f.phase -= 2 * math.Pi
	}
	f.bufL[f.pos] = l
	f.bufR[f.pos] = r

	delay := float32(f.size/2) + mod
	readPos := float32(f.pos) - delay
	for readPos < 0 {
		readPos += float32(f.size)
	}
	idx := int(readPos) % f.size
	frac := readPos - float32(int(readPos))
	idx2 := idx + 1
	if idx2 >= f.size {
		idx2 = 0
	}
	delL := f.bufL[idx]*(1-frac) + f.bufL[idx2]*frac
	delR := f.bufR[idx]*(1-frac) + f.bufR[idx2]*frac

	f.bufL[f.pos] += delL * f.feedback
	f.bufR[f.pos] += delR * f.feedback

	f.pos++
	if f.pos >= f.size {
		f.pos = 0
	}
	return l*(1-f.wet) + delL*f.wet, r*(1-f.wet) + delR*f.wet
}

func (f *Flanger) Reset() {
	clear(f.bufL)
	clear(f.bufR)
	f.pos = 0
	f.phase = 0
}

func (f *Flanger) Tail() float64 { return f.tail }
