package pcm

import (
	"math"
	"testing"
)

func TestFromInterleavedRoundTrip(t *testing.T) {
	in := []float32{0.1, -0.1, 0.2, -0.2, 0.3, -0.3}
	b := FromInterleaved(in, 48000, 2)
	if b.Channels() != 2 || b.Frames() != 3 {
		t.Fatalf("got %d ch x %d frames", b.Channels(), b.Frames())
	}
	if b.Data[1][2] != -0.3 {
		t.Fatalf("right channel frame 2 = %f", b.Data[1][2])
	}
	out := b.Interleaved()
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d: got %f want %f", i, out[i], in[i])
		}
	}
}

func TestStereoUpmixesMono(t *testing.T) {
	b := FromInterleaved([]float32{0.5, 0.25}, 44100, 1)
	s := b.Stereo()
	if s.Channels() != 2 {
		t.Fatalf("channels = %d", s.Channels())
	}
	s.Data[1][0] = 0
	if b.Data[0][0] != 0.5 {
		t.Fatal("stereo copy must not alias the mono source")
	}
}

func TestSliceClampsBounds(t *testing.T) {
	b := New(8000, 1, 10)
	for i := range b.Data[0] {
		b.Data[0][i] = float32(i)
	}
	s := b.Slice(8, 20)
	if s.Frames() != 2 || s.Data[0][0] != 8 {
		t.Fatalf("slice = %v", s.Data[0])
	}
	if b.Slice(-3, 2).Frames() != 2 {
		t.Fatal("negative start should clamp to zero")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		buf  *Buffer
		ok   bool
	}{
		{"ok", New(44100, 2, 4), true},
		{"no channels", &Buffer{SampleRate: 44100}, false},
		{"bad rate", &Buffer{SampleRate: 0, Data: [][]float32{{0}}}, false},
		{"ragged", &Buffer{SampleRate: 44100, Data: [][]float32{{0, 0}, {0}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.buf.Validate()
			if (err == nil) != tc.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestEqualIsBitExact(t *testing.T) {
	a := FromInterleaved([]float32{0, 1}, 44100, 1)
	b := a.Clone()
	if !Equal(a, b) {
		t.Fatal("clone should be equal")
	}
	b.Data[0][0] = float32(math.Copysign(0, -1))
	if Equal(a, b) {
		t.Fatal("negative zero differs bitwise")
	}
}

func TestResampleDoublesLengthAndKeepsLevel(t *testing.T) {
	const inRate = 22050
	b := New(inRate, 1, inRate/2)
	for i := range b.Data[0] {
		b.Data[0][i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/inRate))
	}
	out, err := Resample(b, 44100)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if out.Frames() != 2*b.Frames() {
		t.Fatalf("frames = %d, want %d", out.Frames(), 2*b.Frames())
	}
	mid := out.Slice(out.Frames()/4, 3*out.Frames()/4)
	if p := mid.Peak(); p < 0.45 || p > 0.55 {
		t.Fatalf("peak after resampling = %f, want ~0.5", p)
	}
}
