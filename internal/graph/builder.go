package graph

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/delay"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"

	"github.com/cbegin/mixsynth-go/internal/automation"
	"github.com/cbegin/mixsynth-go/internal/effects"
	"github.com/cbegin/mixsynth-go/internal/pcm"
	"github.com/cbegin/mixsynth-go/internal/wavetable"
)

// Builder creates nodes on a Graph and remembers them, so the subgraph it
// built can be released as a unit.
type Builder struct {
	g       *Graph
	owned   []NodeID
	sources []NodeID
	err     error
}

func (b *Builder) Graph() *Graph { return b.g }

// Nodes returns every node created through b.
func (b *Builder) Nodes() []NodeID { return append([]NodeID(nil), b.owned...) }

// Sources returns the source nodes created through b.
func (b *Builder) Sources() []NodeID { return append([]NodeID(nil), b.sources...) }

// Err returns the first connection error seen by Connect or Chain.
func (b *Builder) Err() error { return b.err }

// Release frees everything the builder created.
func (b *Builder) Release() {
	b.g.Release(b.owned...)
	b.owned = nil
	b.sources = nil
}

func (b *Builder) track(p processor) NodeID {
	id := b.g.add(p)
	b.owned = append(b.owned, id)
	if _, ok := p.(scheduled); ok {
		b.sources = append(b.sources, id)
	}
	return id
}

// Oscillator creates a built-in waveform oscillator.
func (b *Builder) Oscillator(shape Shape, freq float64) *Oscillator {
	o := &Oscillator{
		schedule:  newSchedule(),
		sr:        b.g.sampleRate,
		shape:     shape,
		Frequency: automation.NewParam(freq),
		Detune:    automation.NewParam(0),
	}
	o.id = b.track(o)
	return o
}

// TableOscillator creates an oscillator reading a single-cycle table.
func (b *Builder) TableOscillator(table wavetable.Table, freq float64) *Oscillator {
	o := b.Oscillator(ShapeTable, freq)
	o.table = table
	return o
}

// Noise creates a noise source; equal seeds give equal sequences.
func (b *Builder) Noise(color NoiseColor, seed uint32) *Noise {
	n := &Noise{schedule: newSchedule(), color: color, state: seed*2654435761 | 1}
	n.id = b.track(n)
	return n
}

// BufferSource creates a player for buf.
func (b *Builder) BufferSource(buf *pcm.Buffer) *BufferSource {
	s := &BufferSource{schedule: newSchedule(), sr: b.g.sampleRate, buf: buf, Gain: 1}
	s.id = b.track(s)
	return s
}

func (b *Builder) Gain(gain float64) *Gain {
	n := &Gain{sr: b.g.sampleRate, Gain: automation.NewParam(gain)}
	n.id = b.track(n)
	return n
}

// Filter creates a biquad; gainDB only affects peaking and shelving kinds.
func (b *Builder) Filter(kind FilterKind, freq, q, gainDB float64) *Filter {
	f := &Filter{
		sr:        b.g.sampleRate,
		kind:      kind,
		l:         biquad.NewSection(biquad.Coefficients{}),
		r:         biquad.NewSection(biquad.Coefficients{}),
		Frequency: automation.NewParam(freq),
		Q:         automation.NewParam(q),
		GainDB:    automation.NewParam(gainDB),
	}
	f.id = b.track(f)
	return f
}

func (b *Builder) Shaper(drive float64) *Shaper {
	s := &Shaper{drive: drive}
	if drive > 0 {
		s.norm = 1 / math.Tanh(drive)
	}
	s.id = b.track(s)
	return s
}

// Delay creates a feedback delay able to reach maxDelaySec.
func (b *Builder) Delay(delaySec, maxDelaySec, feedback float64) (*Delay, error) {
	if maxDelaySec < delaySec {
		maxDelaySec = delaySec
	}
	size := int(math.Ceil(maxDelaySec*b.g.sampleRate)) + 4
	d := &Delay{
		sr:       b.g.sampleRate,
		maxDelay: maxDelaySec,
		Time:     automation.NewParam(delaySec),
		Feedback: automation.NewParam(feedback),
	}
	for c := range d.lines {
		line, err := delay.New(size)
		if err != nil {
			return nil, fmt.Errorf("delay node: %w", err)
		}
		d.lines[c] = line
	}
	d.id = b.track(d)
	return d, nil
}

func (b *Builder) Panner(pan float64) *Panner {
	p := &Panner{Pan: automation.NewParam(pan)}
	p.id = b.track(p)
	return p
}

// Insert wraps an effect kernel as a node.
func (b *Builder) Insert(fx effects.Effector) *Insert {
	n := &Insert{fx: fx}
	n.id = b.track(n)
	return n
}

// Connect wires from into to; the first failure is kept in Err.
func (b *Builder) Connect(from, to Node) {
	if err := b.g.Connect(from, to); err != nil && b.err == nil {
		b.err = err
	}
}

// Chain connects nodes in series and returns the last one.
func (b *Builder) Chain(nodes ...Node) Node {
	for i := 1; i < len(nodes); i++ {
		b.Connect(nodes[i-1], nodes[i])
	}
	return nodes[len(nodes)-1]
}
