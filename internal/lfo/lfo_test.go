package lfo

import (
	"math"
	"testing"
)

func TestShapeAtPhase(t *testing.T) {
	tests := []struct {
		name     string
		waveform Waveform
		phase    float64
		want     float64
	}{
		{"sine start", Sine, 0, 0},
		{"sine peak", Sine, 0.25, 1},
		{"sine wraps whole cycles", Sine, 1.25, 1},
		{"sine negative phase", Sine, -0.25, -1},
		{"saw start", Saw, 0, 1},
		{"saw middle", Saw, 0.5, 0},
		{"square high", Square, 0.1, 1},
		{"square low", Square, 0.6, -1},
		{"triangle trough", Triangle, 0, -1},
		{"triangle rising", Triangle, 0.25, 0},
		{"triangle crest", Triangle, 0.5, 1},
		{"triangle falling", Triangle, 0.75, 0},
		{"unknown shape is sine", Waveform(42), 0.25, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(1, 1, tt.waveform)
			l.SetPhase(tt.phase)
			if got := l.Sample(1000); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("Sample = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDepthScalesOutput(t *testing.T) {
	l := New(0.3, 4, Square)
	for i := 0; i < 1000; i++ {
		v := l.Sample(1000)
		if math.Abs(math.Abs(v)-0.3) > 1e-12 {
			t.Fatalf("sample %d = %v, want ±0.3", i, v)
		}
	}
}

func TestActive(t *testing.T) {
	tests := []struct {
		name        string
		depth, rate float64
		active      bool
	}{
		{"running", 1, 2, true},
		{"no depth", 0, 2, false},
		{"no rate", 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.depth, tt.rate, Triangle)
			l.SetPhase(0.5)
			if l.Active() != tt.active {
				t.Fatalf("Active = %v", l.Active())
			}
			if v := l.Sample(1000); !tt.active && v != 0 {
				t.Fatalf("inactive LFO produced %v", v)
			}
		})
	}
}

func TestSeedFixesRandomSequence(t *testing.T) {
	run := func(seed uint32) []float64 {
		l := New(0.8, 20, Random)
		l.Seed(seed)
		out := make([]float64, 2000)
		for i := range out {
			out[i] = l.Sample(1000)
		}
		return out
	}
	a, b, c := run(7), run(7), run(8)
	differs := false
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at %d", i)
		}
		if math.Abs(a[i]) > 0.8 {
			t.Fatalf("sample %d = %v exceeds depth", i, a[i])
		}
		if a[i] != c[i] {
			differs = true
		}
	}
	if !differs {
		t.Fatal("different seeds gave the same sequence")
	}

	l := New(0.8, 20, Random)
	l.Seed(7)
	for i := 0; i < 300; i++ {
		l.Sample(1000)
	}
	l.Seed(7)
	for i := 0; i < 100; i++ {
		if v := l.Sample(1000); v != a[i] {
			t.Fatalf("reseeding did not restart the sequence at %d", i)
		}
	}
}

func TestResetRestartsCycle(t *testing.T) {
	l := New(1, 3, Sine)
	first := make([]float64, 50)
	for i := range first {
		first[i] = l.Sample(1000)
	}
	l.Reset()
	for i, want := range first {
		if got := l.Sample(1000); got != want {
			t.Fatalf("sample %d after Reset = %v, want %v", i, got, want)
		}
	}
}

func TestParseWaveform(t *testing.T) {
	tests := map[string]Waveform{
		"saw":      Saw,
		"square":   Square,
		"triangle": Triangle,
		"random":   Random,
		"sine":     Sine,
		"bogus":    Sine,
	}
	for name, want := range tests {
		if got := ParseWaveform(name); got != want {
			t.Errorf("ParseWaveform(%q) = %v, want %v", name, got, want)
		}
	}
}
