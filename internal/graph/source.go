package graph

import (
	"math"

	"github.com/cbegin/mixsynth-go/internal/automation"
	"github.com/cbegin/mixsynth-go/internal/pcm"
	"github.com/cbegin/mixsynth-go/internal/wavetable"
)

// Shape is a built-in oscillator waveform.
type Shape int

const (
	ShapeSine Shape = iota
	ShapeTriangle
	ShapeSawtooth
	ShapeSquare
	ShapeTable
)

// schedule is the start/stop window shared by every source. Stop only ever
// moves earlier.
type schedule struct {
	started bool
	start   float64
	stop    float64
}

func newSchedule() schedule { return schedule{stop: math.Inf(1)} }

func (s *schedule) Start(at float64) {
	s.started = true
	s.start = at
}

func (s *schedule) Stop(at float64) {
	if at < s.stop {
		s.stop = at
	}
}

func (s *schedule) window() (float64, float64) { return s.start, s.stop }

func (s *schedule) finished(t float64) bool {
	return s.started && t >= s.stop
}

func (s *schedule) playing(t float64) bool {
	return s.started && t >= s.start && t < s.stop
}

// StopTime is the scheduled stop, +Inf when none.
func (s *schedule) StopTime() float64 { return s.stop }

// Oscillator is a periodic source. Frequency is in Hz, Detune in cents.
type Oscillator struct {
	schedule
	id        NodeID
	sr        float64
	shape     Shape
	table     wavetable.Table
	phase     float64
	Frequency *automation.Param
	Detune    *automation.Param
}

func (o *Oscillator) ID() NodeID { return o.id }

// SetPhase sets the starting phase in cycles.
func (o *Oscillator) SetPhase(p float64) { o.phase = p - math.Floor(p) }

func (o *Oscillator) process(_ int64, t float64, _ stereo) stereo {
	if !o.playing(t) {
		return stereo{}
	}
	f := o.Frequency.ValueAt(t)
	if d := o.Detune.ValueAt(t); d != 0 {
		f *= math.Pow(2, d/1200)
	}
	dt := f / o.sr
	var v float64
	switch o.shape {
	case ShapeTriangle:
		if o.phase < 0.5 {
			v = 4*o.phase - 1
		} else {
			v = 3 - 4*o.phase
		}
	case ShapeSawtooth:
		v = 2*o.phase - 1 - polyBLEP(o.phase, dt)
	case ShapeSquare:
		if o.phase < 0.5 {
			v = 1
		} else {
			v = -1
		}
		v += polyBLEP(o.phase, dt)
		v -= polyBLEP(math.Mod(o.phase+0.5, 1), dt)
	case ShapeTable:
		v = o.table.At(o.phase)
	default:
		v = math.Sin(2 * math.Pi * o.phase)
	}
	o.phase += dt
	o.phase -= math.Floor(o.phase)
	return stereo{v, v}
}

// polyBLEP smooths the discontinuity of a naive saw/square at phase 0.
func polyBLEP(phase, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	if phase < dt {
		x := phase / dt
		return x + x - x*x - 1
	}
	if phase > 1-dt {
		x := (phase - 1) / dt
		return x*x + x + x + 1
	}
	return 0
}

// NoiseColor selects the noise spectrum.
type NoiseColor int

const (
	White NoiseColor = iota
	Pink
)

// Noise is a seeded noise source.
type Noise struct {
	schedule
	id    NodeID
	color NoiseColor
	state uint32
	b     [7]float64
}

func (n *Noise) ID() NodeID { return n.id }

func (n *Noise) process(_ int64, t float64, _ stereo) stereo {
	if !n.playing(t) {
		return stereo{}
	}
	w := n.white()
	if n.color == Pink {
		// Paul Kellet's refined pink filter
		b := &n.b
		b[0] = 0.99886*b[0] + w*0.0555179
		b[1] = 0.99332*b[1] + w*0.0750759
		b[2] = 0.96900*b[2] + w*0.1538520
		b[3] = 0.86650*b[3] + w*0.3104856
		b[4] = 0.55000*b[4] + w*0.5329522
		b[5] = -0.7616*b[5] - w*0.0168980
		p := b[0] + b[1] + b[2] + b[3] + b[4] + b[5] + b[6] + w*0.5362
		b[6] = w * 0.115926
		w = p * 0.11
	}
	return stereo{w, w}
}

func (n *Noise) white() float64 {
	x := n.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	n.state = x
	return float64(x)/float64(1<<31) - 1
}

// BufferSource plays a pcm.Buffer. Offset and Duration are in seconds of the
// buffer; a zero Duration plays to the end.
type BufferSource struct {
	schedule
	id         NodeID
	sr         float64
	buf        *pcm.Buffer
	startFrame int64
	offset     float64
	duration   float64
	Gain       float64
}

func (b *BufferSource) ID() NodeID { return b.id }

// Play starts playback at graph time at from offsetSec into the buffer for
// durationSec (0 = to the end). The stop time is derived from the duration.
func (b *BufferSource) Play(at, offsetSec, durationSec float64) {
	b.Start(at)
	b.startFrame = int64(math.Round(at * b.sr))
	b.offset = math.Max(offsetSec, 0)
	remain := b.buf.Duration() - b.offset
	if durationSec <= 0 || durationSec > remain {
		durationSec = remain
	}
	b.duration = math.Max(durationSec, 0)
	b.Stop(at + b.duration)
}

func (b *BufferSource) process(frame int64, t float64, _ stereo) stereo {
	if !b.playing(t) || frame < b.startFrame {
		return stereo{}
	}
	rate := float64(b.buf.SampleRate)
	var pos float64
	if b.buf.SampleRate == int(b.sr) {
		pos = float64(frame-b.startFrame) + math.Round(b.offset*rate)
	} else {
		pos = float64(frame-b.startFrame)*rate/b.sr + b.offset*rate
	}
	i := int(pos)
	n := b.buf.Frames()
	if i >= n {
		return stereo{}
	}
	frac := pos - float64(i)
	var out stereo
	for c := 0; c < 2; c++ {
		ch := b.buf.Channel(c)
		v := float64(ch[i])
		if frac > 0 && i+1 < n {
			v += (float64(ch[i+1]) - v) * frac
		}
		out[c] = v * b.Gain
	}
	return out
}
