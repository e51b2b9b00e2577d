package effects

import (
	"math"

	dspfx "github.com/cwbudde/algo-dsp/dsp/effects"
)

// Room is a small Schroeder reverb: four combs into two allpasses, summed to
// mono and spread back to both channels.
type Room struct {
	combs   [4]combFilter
	allpass [2]allpassFilter
	wet     float32
	tail    float64
}

type combFilter struct {
	buf []float32
	pos int
	fb  float32
}

type allpassFilter struct {
	buf []float32
	pos int
	fb  float32
}

// NewRoom creates a room reverb. size in [0, 1] scales the delay lengths,
// decay in [0, 1] the comb feedback.
func NewRoom(sampleRate int, size, decay, wet float32) *Room {
	base := int(float32(sampleRate) * size * 0.05)
	if base < 10 {
		base = 10
	}
	fb := clamp(decay, 0, 0.95)
	r := &Room{wet: clamp(wet, 0, 1)}
	lens := [4]int{base, base * 1117 / 1000, base * 1271 / 1000, base * 1437 / 1000}
	for i := range r.combs {
		r.combs[i] = combFilter{buf: make([]float32, lens[i]), fb: fb}
	}
	apLens := [2]int{base * 347 / 1000, base * 213 / 1000}
	for i := range r.allpass {
		r.allpass[i] = allpassFilter{buf: make([]float32, max(apLens[i], 1)), fb: 0.5}
	}
	r.tail = feedbackTail(float64(lens[3])/float64(sampleRate), float64(fb))
	return r
}

func (r *Room) Process(l, r2 float32) (float32, float32) {
	mono := (l + r2) * 0.5
	var out float32
	for i := range r.combs {
		out += r.combs[i].process(mono)
	}
	out *= 0.25
	for i := range r.allpass {
		out = r.allpass[i].process(out)
	}
	return l*(1-r.wet) + out*r.wet, r2*(1-r.wet) + out*r.wet
}

func (r *Room) Reset() {
	for i := range r.combs {
		clear(r.combs[i].buf)
		r.combs[i].pos = 0
	}
	for i := range r.allpass {
		clear(r.allpass[i].buf)
		r.allpass[i].pos = 0
	}
}

func (r *Room) Tail() float64 { return r.tail }

func (c *combFilter) process(in float32) float32 {
	out := c.buf[c.pos]
	c.buf[c.pos] = in + out*c.fb
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpassFilter) process(in float32) float32 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*a.fb
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}

// longest comb of the algo-dsp Freeverb tuning, in samples at 44.1 kHz
const freeverbLongestComb = 1617

// NewPlate creates a Freeverb-style plate. roomSize is the comb feedback in
// [0, 0.98], damp in [0, 1], wet and dry are linear gains.
func NewPlate(roomSize, damp, wet, dry float64) (Effector, error) {
	roomSize = math.Min(math.Max(roomSize, 0), 0.98)
	tail := feedbackTail(freeverbLongestComb/44100.0, roomSize)
	return newDual(func() (*dspfx.Reverb, error) {
		r := dspfx.NewReverb()
		r.SetRoomSize(roomSize)
		r.SetDamp(math.Min(math.Max(damp, 0), 1))
		r.SetWet(wet)
		r.SetDry(dry)
		return r, nil
	}, tail)
}

// HallParams configures the FDN hall.
type HallParams struct {
	RT60     float64 // seconds
	Damp     float64 // [0, 1]
	PreDelay float64 // seconds
	Wet      float64
	Dry      float64
}

func DefaultHallParams() HallParams {
	return HallParams{RT60: 2.4, Damp: 0.3, PreDelay: 0.02, Wet: 0.35, Dry: 1}
}

// NewHall creates a feedback-delay-network hall reverb.
func NewHall(sampleRate int, p HallParams) (Effector, error) {
	tail := math.Min(p.RT60+p.PreDelay, MaxTail)
	return newDual(func() (*dspfx.FDNReverb, error) {
		r, err := dspfx.NewFDNReverb(float64(sampleRate))
		if err != nil {
			return nil, err
		}
		for _, set := range []func() error{
			func() error { return r.SetRT60(p.RT60) },
			func() error { return r.SetDamp(p.Damp) },
			func() error { return r.SetPreDelay(p.PreDelay) },
			func() error { return r.SetWet(p.Wet) },
			func() error { return r.SetDry(p.Dry) },
		} {
			if err := set(); err != nil {
				return nil, err
			}
		}
		return r, nil
	}, tail)
}
