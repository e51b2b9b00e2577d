package lfo

import "math"

// Waveform selects the LFO shape.
type Waveform int

const (
	Sine Waveform = iota
	Saw
	Square
	Triangle
	Random
)

// ParseWaveform maps a shape name; unknown names give Sine.
func ParseWaveform(s string) Waveform {
	switch s {
	case "saw":
		return Saw
	case "square":
		return Square
	case "triangle":
		return Triangle
	case "random":
		return Random
	}
	return Sine
}

// LFO is a low-frequency oscillator producing per-sample modulation in
// [-depth, +depth]. Random is a smoothed sample-and-hold whose sequence is
// fixed by Seed, so offline renders stay reproducible.
type LFO struct {
	depth    float64
	rateHz   float64
	waveform Waveform
	phase    float64 // [0, 1)
	seed     uint32
	state    uint32
	prev     float64
	next     float64
}

func New(depth, rateHz float64, waveform Waveform) *LFO {
	l := &LFO{}
	l.Set(depth, rateHz, waveform)
	l.Reset()
	return l
}

// Set configures the LFO parameters.
func (l *LFO) Set(depth, rateHz float64, waveform Waveform) {
	l.depth = depth
	l.rateHz = rateHz
	if waveform < Sine || waveform > Random {
		waveform = Sine
	}
	l.waveform = waveform
}

// Seed fixes the random sequence and restarts it.
func (l *LFO) Seed(seed uint32) {
	l.seed = seed
	l.Reset()
}

// SetPhase moves the cycle position, in cycles.
func (l *LFO) SetPhase(phase float64) {
	l.phase = phase - math.Floor(phase)
}

// Sample advances the LFO by one sample and returns a value in [-depth, +depth].
// Returns 0 if depth or rate is zero.
func (l *LFO) Sample(sampleRate float64) float64 {
	if l.depth == 0 || l.rateHz == 0 || sampleRate == 0 {
		return 0
	}

	var v float64
	switch l.waveform {
	case Saw:
		v = 1.0 - 2.0*l.phase
	case Square:
		if l.phase < 0.5 {
			v = 1.0
		} else {
			v = -1.0
		}
	case Triangle:
		if l.phase < 0.5 {
			v = 4.0*l.phase - 1.0
		} else {
			v = 3.0 - 4.0*l.phase
		}
	case Random:
		// cosine glide between held values
		w := 0.5 - 0.5*math.Cos(math.Pi*l.phase)
		v = l.prev + (l.next-l.prev)*w
	default:
		v = math.Sin(2 * math.Pi * l.phase)
	}

	l.phase += l.rateHz / sampleRate
	for l.phase >= 1.0 {
		l.phase -= 1.0
		if l.waveform == Random {
			l.prev = l.next
			l.next = l.rand()
		}
	}
	return v * l.depth
}

// Active returns true if the LFO has non-zero depth and rate.
func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}

// Reset zeros the phase and restarts the random sequence.
func (l *LFO) Reset() {
	l.phase = 0
	l.state = l.seed*2654435761 + 1
	l.prev = l.rand()
	l.next = l.rand()
}

// rand returns a value in [-1, 1) from a 32-bit xorshift.
func (l *LFO) rand() float64 {
	if l.state == 0 {
		l.state = 0x9e3779b9
	}
	x := l.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	l.state = x
	return float64(x)/float64(1<<31) - 1
}
