package wavetable

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"sync"
)

const twoPi = math.Pi * 2

// TableSize is the number of points in every generated single-cycle table.
const TableSize = 2048

type Timbre int

const (
	Sine Timbre = iota
	Triangle
	Sawtooth
	Square
	Organ
	Strings
	Brass
	Pad
	Bell
	Pluck
	numTimbres
)

var timbreNames = [numTimbres]string{
	"sine", "triangle", "sawtooth", "square", "organ",
	"strings", "brass", "pad", "bell", "pluck",
}

func (t Timbre) String() string {
	if t < 0 || t >= numTimbres {
		return "sine"
	}
	return timbreNames[t]
}

// ParseTimbre maps a timbre name (case-insensitive) to its Timbre.
func ParseTimbre(s string) (Timbre, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "saw" {
		return Sawtooth, nil
	}
	for i, n := range timbreNames {
		if n == name {
			return Timbre(i), nil
		}
	}
	return Sine, fmt.Errorf("unknown timbre %q", s)
}

// Timbres lists every named timbre in declaration order.
func Timbres() []Timbre {
	out := make([]Timbre, numTimbres)
	for i := range out {
		out[i] = Timbre(i)
	}
	return out
}

// Table is one cycle of a periodic waveform.
type Table []float64

// At reads the table at phase (in cycles) with linear interpolation.
func (t Table) At(phase float64) float64 {
	n := len(t)
	if n == 0 {
		return 0
	}
	pos := (phase - math.Floor(phase)) * float64(n)
	idx := math.Floor(pos)
	frac := pos - idx
	i0 := int(idx) % n
	i1 := (i0 + 1) % n
	return t[i0]*(1-frac) + t[i1]*frac
}

// Bank holds one table per timbre. A Bank is immutable once built and may be
// shared by any number of synthesizers.
type Bank struct {
	tables [numTimbres]Table
}

var (
	defaultOnce sync.Once
	defaultBank *Bank
)

// Default returns the process-wide bank, built on first use.
func Default() *Bank {
	defaultOnce.Do(func() {
		defaultBank = NewBank()
	})
	return defaultBank
}

// NewBank builds every timbre by additive synthesis.
func NewBank() *Bank {
	b := &Bank{}
	for t := Timbre(0); t < numTimbres; t++ {
		b.tables[t] = Additive(recipe(t), TableSize)
	}
	return b
}

// Table returns the table for t; out-of-range timbres get the sine table.
func (b *Bank) Table(t Timbre) Table {
	if t < 0 || t >= numTimbres {
		return b.tables[Sine]
	}
	return b.tables[t]
}

// Partial is one harmonic component: Harmonic is the integer multiple of the
// fundamental, Amp its signed amplitude.
type Partial struct {
	Harmonic int
	Amp      float64
}

// Additive sums sine partials into a table of size points and normalises the
// peak to 1.
func Additive(partials []Partial, size int) Table {
	t := make(Table, size)
	for _, p := range partials {
		if p.Harmonic <= 0 || p.Amp == 0 {
			continue
		}
		for i := range t {
			t[i] += p.Amp * math.Sin(twoPi*float64(p.Harmonic)*float64(i)/float64(size))
		}
	}
	var peak float64
	for _, v := range t {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak > 0 {
		for i := range t {
			t[i] /= peak
		}
	}
	return t
}

func recipe(t Timbre) []Partial {
	var ps []Partial
	switch t {
	case Triangle:
		for n := 1; n <= 31; n += 2 {
			sign := 1.0
			if (n/2)%2 == 1 {
				sign = -1
			}
			ps = append(ps, Partial{n, sign / float64(n*n)})
		}
	case Sawtooth:
		for n := 1; n <= 48; n++ {
			sign := 1.0
			if n%2 == 0 {
				sign = -1
			}
			ps = append(ps, Partial{n, sign / float64(n)})
		}
	case Square:
		for n := 1; n <= 47; n += 2 {
			ps = append(ps, Partial{n, 1 / float64(n)})
		}
	case Organ:
		// drawbar registration 8' 4' 2-2/3' 2' 1-3/5' 1'
		ps = []Partial{{1, 1}, {2, 0.7}, {3, 0.5}, {4, 0.4}, {5, 0.15}, {6, 0.3}, {8, 0.25}, {10, 0.1}}
	case Strings:
		for n := 1; n <= 32; n++ {
			ps = append(ps, Partial{n, math.Exp(-float64(n)/12) / float64(n)})
		}
	case Brass:
		for n := 1; n <= 24; n++ {
			amp := 1 / math.Pow(float64(n), 0.8)
			if n >= 2 && n <= 6 {
				amp *= 1.4
			}
			ps = append(ps, Partial{n, amp})
		}
	case Pad:
		for n := 1; n <= 16; n++ {
			ps = append(ps, Partial{n, 1 / float64(n*n) * (1 + 0.5*math.Cos(float64(n)))})
		}
	case Bell:
		ps = []Partial{{1, 1}, {2, 0.6}, {3, 0.45}, {5, 0.35}, {7, 0.25}, {9, 0.2}, {11, 0.12}, {13, 0.08}}
	case Pluck:
		const pos = 0.2
		for n := 1; n <= 40; n++ {
			amp := math.Abs(math.Sin(float64(n)*math.Pi*pos)) / float64(n*n) * math.Exp(-float64(n)/10)
			ps = append(ps, Partial{n, amp})
		}
	default:
		ps = []Partial{{1, 1}}
	}
	return ps
}

// ParseWAVB converts a hex string (pairs of hex digits representing signed
// 8-bit values) into a table normalised to [-1, 1].
func ParseWAVB(h string) (Table, error) {
	data, err := hex.DecodeString(strings.TrimSpace(h))
	if err != nil {
		return nil, fmt.Errorf("parse wavetable hex: %w", err)
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("wavetable needs at least 2 points, got %d", len(data))
	}
	out := make(Table, len(data))
	for i, b := range data {
		out[i] = float64(int8(b)) / 127.0
	}
	return out, nil
}
