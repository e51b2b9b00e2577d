package effects

import (
	"fmt"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/delay"
)

// Delay is a stereo feedback delay. Cross routes part of each channel's
// feedback into the other, which at 1 gives a ping-pong echo.
type Delay struct {
	l, r     *delay.Line
	samples  int
	seconds  float64
	feedback float64
	cross    float64
	wet      float64
}

// NewDelay creates a delay of delaySec with feedback, cross and wet in [0, 1].
func NewDelay(sampleRate int, delaySec float64, feedback, cross, wet float32) (*Delay, error) {
	samples := max(int(delaySec*float64(sampleRate)), 1)
	l, err := delay.New(samples + 1)
	if err != nil {
		return nil, fmt.Errorf("delay: %w", err)
	}
	r, err := delay.New(samples + 1)
	if err != nil {
		return nil, fmt.Errorf("delay: %w", err)
	}
	return &Delay{
		l:        l,
		r:        r,
		samples:  samples,
		seconds:  float64(samples) / float64(sampleRate),
		feedback: float64(clamp(feedback, 0, 0.95)),
		cross:    float64(clamp(cross, 0, 1)),
		wet:      float64(clamp(wet, 0, 1)),
	}, nil
}

func (d *Delay) Process(l, r float32) (float32, float32) {
	inL, inR := float64(l), float64(r)
	delL := d.l.Read(d.samples)
	delR := d.r.Read(d.samples)
	keep := d.feedback * (1 - d.cross)
	swap := d.feedback * d.cross
	d.l.Write(dspcore.FlushDenormals(inL + delL*keep + delR*swap))
	d.r.Write(dspcore.FlushDenormals(inR + delR*keep + delL*swap))
	return float32(inL*(1-d.wet) + delL*d.wet), float32(inR*(1-d.wet) + delR*d.wet)
}

func (d *Delay) Reset() {
	d.l.Reset()
	d.r.Reset()
}

func (d *Delay) Tail() float64 {
	if d.wet == 0 {
		return 0
	}
	return d.seconds + feedbackTail(d.seconds, d.feedback)
}
