package effects

import (
	"math"
	"testing"

	"github.com/cbegin/mixsynth-go/internal/lfo"
)

func newDelay(t *testing.T, sampleRate int, delaySec float64, feedback, cross, wet float32) *Delay {
	t.Helper()
	d, err := NewDelay(sampleRate, delaySec, feedback, cross, wet)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestDelayProducesOutput(t *testing.T) {
	d := newDelay(t, 44100, 0.1, 0.5, 0, 0.5)
	d.Process(1.0, 1.0)
	for i := 0; i < 4409; i++ {
		d.Process(0, 0)
	}
	l, r := d.Process(0, 0)
	if math.Abs(float64(l)) < 0.01 || math.Abs(float64(r)) < 0.01 {
		t.Errorf("expected delayed output, got l=%f r=%f", l, r)
	}
}

func TestDelayEchoTimingAndReset(t *testing.T) {
	d := newDelay(t, 1000, 0.05, 0, 0, 1)
	out := make([]float32, 120)
	for i := range out {
		in := float32(0)
		if i == 0 {
			in = 1
		}
		out[i], _ = d.Process(in, 0)
	}
	for i, v := range out {
		want := float32(0)
		if i == 50 {
			want = 1
		}
		if v != want {
			t.Fatalf("frame %d = %v, want %v", i, v, want)
		}
	}

	d.Process(1, 1)
	d.Reset()
	for i := 0; i < 60; i++ {
		if l, r := d.Process(0, 0); l != 0 || r != 0 {
			t.Fatalf("frame %d after Reset = (%v, %v)", i, l, r)
		}
	}
}

func TestDelayCrossFeedsOtherChannel(t *testing.T) {
	d := newDelay(t, 1000, 0.01, 0.5, 1, 1)
	d.Process(1, 0)
	var sawRight bool
	for i := 0; i < 25; i++ {
		_, r := d.Process(0, 0)
		if r > 0.1 {
			sawRight = true
		}
	}
	if !sawRight {
		t.Error("ping-pong delay never reached the right channel")
	}
}

func TestDelayTailGrowsWithFeedback(t *testing.T) {
	short := newDelay(t, 44100, 0.2, 0.1, 0, 0.5).Tail()
	long := newDelay(t, 44100, 0.2, 0.8, 0, 0.5).Tail()
	if !(long > short && short >= 0.2) {
		t.Errorf("tails short=%v long=%v", short, long)
	}
	if newDelay(t, 44100, 0.2, 0.8, 0, 0).Tail() != 0 {
		t.Error("fully dry delay should have no tail")
	}
}

func TestRoomProducesTail(t *testing.T) {
	r := NewRoom(44100, 0.5, 0.7, 0.5)
	r.Process(1.0, 1.0)
	var maxOut float32
	for i := 0; i < 10000; i++ {
		l, _ := r.Process(0, 0)
		if l > maxOut {
			maxOut = l
		}
	}
	if maxOut < 0.001 {
		t.Error("expected reverb tail")
	}
	if r.Tail() <= 0 {
		t.Error("room should report a tail")
	}
}

func TestPlateAndHallRing(t *testing.T) {
	plate, err := NewPlate(0.8, 0.4, 0.5, 1)
	if err != nil {
		t.Fatal(err)
	}
	hall, err := NewHall(44100, DefaultHallParams())
	if err != nil {
		t.Fatal(err)
	}
	for name, fx := range map[string]Effector{"plate": plate, "hall": hall} {
		fx.Process(1, 1)
		var energy float64
		for i := 0; i < 44100; i++ {
			l, _ := fx.Process(0, 0)
			energy += float64(l) * float64(l)
		}
		if energy < 1e-6 {
			t.Errorf("%s: no tail energy", name)
		}
		if TailOf(fx) <= 0 {
			t.Errorf("%s: no tail reported", name)
		}
	}
}

func TestHallRejectsBadParams(t *testing.T) {
	p := DefaultHallParams()
	p.Damp = 2
	if _, err := NewHall(44100, p); err == nil {
		t.Error("expected error for damp out of range")
	}
}

func TestDistortionBounded(t *testing.T) {
	for _, curve := range []ClipCurve{SoftClip, HardClip, Asymmetric} {
		d := NewDistortion(44100, curve, 10, 0.5, 0)
		for _, in := range []float32{-1, -0.5, 0.5, 1} {
			l, r := d.Process(in, in)
			if math.Abs(float64(l)) > 0.5001 || math.Abs(float64(r)) > 0.5001 {
				t.Errorf("curve %d: output %v exceeds post gain", curve, l)
			}
			if math.Abs(float64(l)) < 0.01 {
				t.Errorf("curve %d: expected non-zero output", curve)
			}
		}
	}
}

func TestChainAppliesEffectsInOrder(t *testing.T) {
	c := NewChain(
		NewDistortion(44100, SoftClip, 2, 1, 0),
		newDelay(t, 44100, 0.01, 0, 0, 0.5),
	)
	l, r := c.Process(0.5, 0.5)
	if l == 0 || r == 0 {
		t.Error("chain should produce output")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestChainTailSumsMembers(t *testing.T) {
	d1 := newDelay(t, 1000, 0.1, 0, 0, 1)
	d2 := newDelay(t, 1000, 0.2, 0, 0, 1)
	c := NewChain(d1, NewBitcrusher(8, 1), d2)
	want := d1.Tail() + d2.Tail()
	if got := c.Tail(); math.Abs(got-want) > 1e-12 {
		t.Errorf("Tail = %v, want %v", got, want)
	}
}

func TestEQ3BandUnityGain(t *testing.T) {
	eq := NewEQ3Band(44100, 0, 0, 0, 200, 1000, 5000)
	for i := 0; i < 1000; i++ {
		eq.Process(0.5, 0.5)
	}
	l, r := eq.Process(0.5, 0.5)
	if math.Abs(float64(l)-0.5) > 0.01 || math.Abs(float64(r)-0.5) > 0.01 {
		t.Errorf("expected ~0.5 with flat gains, got l=%f r=%f", l, r)
	}
}

func TestEQ5BandGainChangeTakesEffect(t *testing.T) {
	eq := NewEQ5Band(44100)
	dc := func() float32 {
		var l float32
		for i := 0; i < 4000; i++ {
			l, _ = eq.Process(0.5, 0.5)
		}
		return l
	}
	if v := dc(); math.Abs(float64(v)-0.5) > 0.01 {
		t.Fatalf("unity EQ passed %v", v)
	}
	eq.SetGain(0, 2)
	if eq.Gain(0) != 2 {
		t.Fatalf("Gain(0) = %v", eq.Gain(0))
	}
	if v := dc(); v < 0.9 {
		t.Fatalf("low shelf boost gave %v at DC", v)
	}
	if eq.Gain(9) != 1 {
		t.Error("out of range band should report unity")
	}
}

func TestCompressorReducesLoud(t *testing.T) {
	c, err := NewCompressor(44100, CompressorParams{ThresholdDB: -10, Ratio: 4, AttackMs: 1, ReleaseMs: 50})
	if err != nil {
		t.Fatal(err)
	}
	var out float32
	for i := 0; i < 2000; i++ {
		out, _ = c.Process(1.0, 1.0)
	}
	if out >= 0.9 {
		t.Errorf("compressor should reduce loud signals, got %f", out)
	}
}

func TestCompressorRejectsBadRatio(t *testing.T) {
	p := DefaultCompressorParams()
	p.Ratio = 0.5
	if _, err := NewCompressor(44100, p); err == nil {
		t.Error("expected error")
	}
}

func TestLimiterHoldsCeiling(t *testing.T) {
	l, err := NewLimiter(44100, -6, 50)
	if err != nil {
		t.Fatal(err)
	}
	var out float32
	for i := 0; i < 4000; i++ {
		out, _ = l.Process(1, 1)
	}
	if out > 0.6 {
		t.Errorf("limiter output %v above -6 dB ceiling", out)
	}
}

func TestGateClosesOnQuietSignal(t *testing.T) {
	g := NewGate(1000, -20, 1, 5, 5)
	var loud float32
	for i := 0; i < 50; i++ {
		loud, _ = g.Process(0.5, 0.5)
	}
	if loud < 0.4 {
		t.Fatalf("gate did not open: %v", loud)
	}
	var quiet float32
	for i := 0; i < 200; i++ {
		quiet, _ = g.Process(0.01, 0.01)
	}
	if quiet > 0.001 {
		t.Fatalf("gate did not close: %v", quiet)
	}
}

func TestTremoloStaysWithinDepth(t *testing.T) {
	tr := NewTremolo(1000, 5, 0.5, lfo.Sine)
	lo, hi := float32(1), float32(0)
	for i := 0; i < 1000; i++ {
		l, _ := tr.Process(1, 1)
		lo = min(lo, l)
		hi = max(hi, l)
	}
	if lo < 0.499 || hi > 1.0001 || hi-lo < 0.4 {
		t.Errorf("tremolo range [%v, %v]", lo, hi)
	}
}

func TestAutoPanMovesSignal(t *testing.T) {
	ap := NewAutoPan(1000, 2, 1)
	var minL, minR float32 = 1, 1
	for i := 0; i < 1000; i++ {
		l, r := ap.Process(1, 1)
		minL = min(minL, l)
		minR = min(minR, r)
	}
	if minL > 0.1 || minR > 0.1 {
		t.Errorf("full-width autopan should nearly silence each side: minL=%v minR=%v", minL, minR)
	}
}

func TestPhaserAltersSignal(t *testing.T) {
	p := NewPhaser(44100, 4, 800, 1, 0.5, 0.3, 1)
	var diff float64
	for i := 0; i < 4410; i++ {
		x := float32(math.Sin(2 * math.Pi * 800 * float64(i) / 44100))
		l, _ := p.Process(x, x)
		diff += math.Abs(float64(l - x))
	}
	if diff < 1 {
		t.Errorf("phaser left signal unchanged (diff %v)", diff)
	}
}

func TestBitcrusherQuantizes(t *testing.T) {
	b := NewBitcrusher(2, 1)
	l, _ := b.Process(0.3, 0.3)
	if l != 0.5 {
		t.Errorf("2-bit crush of 0.3 = %v, want 0.5", l)
	}
	b = NewBitcrusher(16, 4)
	first, _ := b.Process(0.25, 0.25)
	held, _ := b.Process(0.75, 0.75)
	if held != first {
		t.Errorf("downsample did not hold: %v then %v", first, held)
	}
}

func TestLowpassFilterAttenuates(t *testing.T) {
	f := NewFilter(44100, Lowpass, 300, 0.707, 0)
	var peak float64
	for i := 0; i < 4410; i++ {
		x := float32(math.Sin(2 * math.Pi * 10000 * float64(i) / 44100))
		l, _ := f.Process(x, x)
		if i > 1000 {
			peak = math.Max(peak, math.Abs(float64(l)))
		}
	}
	if peak > 0.01 {
		t.Errorf("10 kHz leaked through 300 Hz lowpass at %v", peak)
	}
}

func TestParseFilterKind(t *testing.T) {
	for _, name := range []string{"lowpass", "highpass", "bandpass", "notch", "allpass"} {
		k, ok := ParseFilterKind(name)
		if !ok || k.String() != name {
			t.Errorf("ParseFilterKind(%q) = %v, %v", name, k, ok)
		}
	}
	if _, ok := ParseFilterKind("wobble"); ok {
		t.Error("unknown name accepted")
	}
}

func TestPanGains(t *testing.T) {
	if l, r := PanGains(0); l != 1 || r != 1 {
		t.Errorf("center = %v, %v", l, r)
	}
	if l, r := PanGains(-1); l != 1 || r != 0 {
		t.Errorf("hard left = %v, %v", l, r)
	}
	if l, r := PanGains(1); l != 0 || r != 1 {
		t.Errorf("hard right = %v, %v", l, r)
	}
}

func TestFlangerProducesOutput(t *testing.T) {
	f := NewFlanger(44100, 0.003, 0.002, 0.5, 0.5, 0.5)
	var sum float64
	for i := 0; i < 1000; i++ {
		x := float32(math.Sin(2 * math.Pi * 440 * float64(i) / 44100))
		l, _ := f.Process(x, x)
		sum += math.Abs(float64(l))
	}
	if sum < 1 {
		t.Error("flanger produced near silence")
	}
}

func TestChorusConstructs(t *testing.T) {
	c, err := NewChorus(44100, 0.5, 0.003, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewChorus(44100, 0.5, 0.003, 2); err == nil {
		t.Error("expected error for mix > 1")
	}
	l, _ := c.Process(0.5, 0.5)
	if math.IsNaN(float64(l)) {
		t.Error("NaN output")
	}
}
