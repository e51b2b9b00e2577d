package synth

import (
	"math"

	"github.com/cbegin/mixsynth-go/internal/envelope"
	"github.com/cbegin/mixsynth-go/internal/graph"
	"github.com/cbegin/mixsynth-go/internal/wavetable"
)

// Wavetable plays a bank table through a detuned oscillator pair and a
// velocity-scaled lowpass.
type Wavetable struct {
	bank     *wavetable.Bank
	Envelope envelope.Params
	Level    float64
}

func NewWavetable(bank *wavetable.Bank) *Wavetable {
	if bank == nil {
		bank = wavetable.Default()
	}
	return &Wavetable{bank: bank, Envelope: envelope.DefaultParams(), Level: 0.3}
}

func (a *Wavetable) Name() string { return "wavetable" }

func (a *Wavetable) TailSec() float64 { return 0 }

func (a *Wavetable) Dispose() {}

func (a *Wavetable) BuildVoice(b *graph.Builder, req VoiceRequest) (*VoiceHandle, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	vel := clampVelocity(req.Velocity)
	sr := float64(b.Graph().SampleRate())
	h := newHandle(b, req.AtSec)
	table := a.bank.Table(req.Timbre)

	mix := b.Gain(0.5)
	for _, cents := range []float64{-3, 3} {
		o := b.TableOscillator(table, req.Freq)
		o.Detune.Reset(cents)
		b.Connect(o, mix)
		h.addSource(o, req.AtSec)
	}
	cut := math.Min(req.Freq*6+2000*vel, sr*0.45)
	lp := b.Filter(graph.Lowpass, cut, 0.8, 0)
	amp := b.Gain(0)
	level := b.Gain(a.Level)
	b.Chain(mix, lp, amp, level, req.Out)
	h.amp(a.Envelope, amp, req, req.AtSec)

	if err := b.Err(); err != nil {
		b.Release()
		return nil, err
	}
	h.settle()
	return h, nil
}
