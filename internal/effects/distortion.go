package effects

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
)

// ClipCurve selects the distortion transfer function.
type ClipCurve int

const (
	SoftClip ClipCurve = iota // tanh
	HardClip
	Asymmetric // tube-like, even harmonics
)

// Distortion is a waveshaper with pre and post gain and an optional
// lowpass tone filter.
type Distortion struct {
	curve    ClipCurve
	preGain  float32
	postGain float32
	toneL    *biquad.Section
	toneR    *biquad.Section
}

// NewDistortion creates a distortion. A toneHz of 0 disables the tone filter.
func NewDistortion(sampleRate int, curve ClipCurve, preGain, postGain float32, toneHz float64) *Distortion {
	d := &Distortion{curve: curve, preGain: preGain, postGain: postGain}
	if toneHz > 0 && toneHz < float64(sampleRate)/2 {
		c := Design(Lowpass, toneHz, math.Sqrt2/2, 0, float64(sampleRate))
		d.toneL = biquad.NewSection(c)
		d.toneR = biquad.NewSection(c)
	}
	return d
}

func (d *Distortion) shape(x float32) float32 {
	v := float64(x * d.preGain)
	switch d.curve {
	case HardClip:
		v = math.Max(-1, math.Min(1, v))
	case Asymmetric:
		if v >= 0 {
			v = math.Tanh(v)
		} else {
			v = math.Tanh(v*0.6) / 0.6 * 0.8
			v = math.Max(v, -1)
		}
	default:
		v = math.Tanh(v)
	}
	return float32(v) * d.postGain
}

func (d *Distortion) Process(l, r float32) (float32, float32) {
	l, r = d.shape(l), d.shape(r)
	if d.toneL != nil {
		l = float32(d.toneL.ProcessSample(float64(l)))
		r = float32(d.toneR.ProcessSample(float64(r)))
	}
	return l, r
}

func (d *Distortion) Reset() {
	if d.toneL != nil {
		d.toneL.Reset()
		d.toneR.Reset()
	}
}

// Bitcrusher reduces bit depth and holds samples to lower the effective
// sample rate.
type Bitcrusher struct {
	levels     float32
	downsample int
	n          int
	holdL      float32
	holdR      float32
}

// NewBitcrusher creates a crusher with bits of resolution (1..24) holding
// each sample for downsample frames.
func NewBitcrusher(bits, downsample int) *Bitcrusher {
	bits = min(max(bits, 1), 24)
	return &Bitcrusher{
		levels:     float32(int(1) << (bits - 1)),
		downsample: max(downsample, 1),
	}
}

func (b *Bitcrusher) Process(l, r float32) (float32, float32) {
	if b.n%b.downsample == 0 {
		b.holdL = b.quantize(l)
		b.holdR = b.quantize(r)
	}
	b.n++
	return b.holdL, b.holdR
}

func (b *Bitcrusher) quantize(x float32) float32 {
	return float32(math.Round(float64(x*b.levels))) / b.levels
}

func (b *Bitcrusher) Reset() {
	b.n = 0
	b.holdL, b.holdR = 0, 0
}
