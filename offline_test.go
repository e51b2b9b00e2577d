package mixsynth

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"strings"
	"testing"
)

func sineBuffer(freq float64, rate int, sec float64) *Buffer {
	b := NewBuffer(rate, 1, int(sec*float64(rate)))
	for i := range b.Data[0] {
		b.Data[0][i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return b
}

const demoProject = `{
  "name": "demo",
  "tracks": [
    {"id": "vox", "kind": "audio", "clips": [
      {"id": "c1", "startSec": 0, "durationSec": 0.5, "sourceRef": "a"},
      {"id": "c2", "startSec": 0.25, "durationSec": 0.5, "sourceRef": "b", "sourceOffsetSec": 0.1}
    ]},
    {"id": "keys", "kind": "midi", "pan": -0.5,
     "instrument": {"architecture": "bright"},
     "notes": [{"note": 60, "velocity": 0.8, "atSec": 0.1, "durationSec": 0.3}]},
    {"id": "muted", "kind": "audio", "muted": true, "clips": [
      {"id": "c3", "startSec": 0, "durationSec": 1, "sourceRef": "b"}
    ]}
  ]
}`

func demoLoader() MapLoader {
	return MapLoader{
		"a": sineBuffer(440, 44100, 1),
		"b": sineBuffer(660, 22050, 1),
	}
}

func TestMixdownProjectIsDeterministic(t *testing.T) {
	hash := func() string {
		p, err := LoadProject(strings.NewReader(demoProject))
		if err != nil {
			t.Fatal(err)
		}
		buf, err := MixdownProject(context.Background(), p, demoLoader())
		if err != nil {
			t.Fatal(err)
		}
		wav, err := EncodeWAVBytes(buf)
		if err != nil {
			t.Fatal(err)
		}
		if want := 44 + 2*2*buf.Frames(); len(wav) != want {
			t.Fatalf("wav length = %d, want %d", len(wav), want)
		}
		sum := sha256.Sum256(wav)
		return hex.EncodeToString(sum[:])
	}
	if a, b := hash(), hash(); a != b {
		t.Fatalf("mixdown not reproducible\nfirst:  %s\nsecond: %s", a, b)
	}
}

func TestMixdownProjectShape(t *testing.T) {
	p, err := LoadProject(strings.NewReader(demoProject))
	if err != nil {
		t.Fatal(err)
	}
	if p.Tracks[0].Gain != 1 {
		t.Fatalf("default gain = %v", p.Tracks[0].Gain)
	}
	buf, err := MixdownProject(context.Background(), p, demoLoader())
	if err != nil {
		t.Fatal(err)
	}
	if buf.SampleRate != 44100 || buf.Channels() != 2 {
		t.Fatalf("rate=%d channels=%d", buf.SampleRate, buf.Channels())
	}
	// project end is the muted track's clip
	if buf.Frames() != 44100 {
		t.Fatalf("frames = %d, want 44100", buf.Frames())
	}
	if buf.Peak() == 0 {
		t.Fatal("silent mixdown")
	}
}

func TestMixdownEmptySet(t *testing.T) {
	p, err := LoadProject(strings.NewReader(`{"tracks":[{"id":"x","muted":true,"clips":[{"id":"c","durationSec":1,"sourceRef":"a"}]}]}`))
	if err != nil {
		t.Fatal(err)
	}
	_, err = MixdownProject(context.Background(), p, demoLoader())
	if !errors.Is(err, ErrEmptyMixdownSet) {
		t.Fatalf("err = %v, want ErrEmptyMixdownSet", err)
	}
}

func TestEncodeWAVMonoLength(t *testing.T) {
	for _, n := range []int{0, 1, 100, 44100} {
		var buf bytes.Buffer
		if err := EncodeWAV(&buf, NewBuffer(8000, 1, n)); err != nil {
			t.Fatal(err)
		}
		if buf.Len() != 44+2*n {
			t.Errorf("%d frames: %d bytes, want %d", n, buf.Len(), 44+2*n)
		}
	}
}

func TestDecodeAudioRoundTrip(t *testing.T) {
	src := sineBuffer(440, 16000, 0.1)
	wav, err := EncodeWAVBytes(src)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeAudio(bytes.NewReader(wav), "")
	if err != nil {
		t.Fatal(err)
	}
	if got.SampleRate != 16000 || got.Frames() != src.Frames() {
		t.Fatalf("decoded %d Hz x %d frames", got.SampleRate, got.Frames())
	}
	for i := range src.Data[0] {
		want := float64(src.Data[0][i]) * 0.95
		if math.Abs(float64(got.Data[0][i])-want) > 1.0/16000 {
			t.Fatalf("sample %d = %v, want about %v", i, got.Data[0][i], want)
		}
	}
}

func TestMixdownGainSurvivesWAVExport(t *testing.T) {
	src := sineBuffer(440, 22050, 0.25)
	req := MixdownRequest{
		Tracks: []Track{{
			ID:    "tone",
			Kind:  TrackAudio,
			Gain:  0.5,
			Clips: []Clip{{ID: "c", DurationSec: 0.25, SourceRef: "tone"}},
		}},
		TotalDurationSec: 0.25,
	}
	mixed, err := Mixdown(context.Background(), req, MapLoader{"tone": src})
	if err != nil {
		t.Fatal(err)
	}
	wav, err := EncodeWAVBytes(mixed)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeAudio(bytes.NewReader(wav), "wav")
	if err != nil {
		t.Fatal(err)
	}
	if got.SampleRate != 22050 || got.Channels() != 2 || got.Frames() != mixed.Frames() || got.Frames() < src.Frames() {
		t.Fatalf("decoded %d Hz x %d ch x %d frames", got.SampleRate, got.Channels(), got.Frames())
	}
	for c := 0; c < 2; c++ {
		for i, v := range src.Data[0] {
			want := 0.5 * float64(v) * 0.95
			if math.Abs(float64(got.Data[c][i])-want) > 1.0/16000 {
				t.Fatalf("ch %d sample %d = %v, want about %v", c, i, got.Data[c][i], want)
			}
		}
	}
}

func TestProcessRegion(t *testing.T) {
	ctx := context.Background()
	src := sineBuffer(440, 22050, 0.5)

	_, err := ProcessRegion(ctx, src, EffectRequest{Kind: "warble"})
	if !errors.Is(err, ErrUnknownEffectKind) {
		t.Fatalf("err = %v, want ErrUnknownEffectKind", err)
	}

	res, err := ProcessRegion(ctx, src, EffectRequest{Kind: "vocoder"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied || !errors.Is(res.Status, ErrNotImplementedEffect) {
		t.Fatalf("stub result applied=%v status=%v", res.Applied, res.Status)
	}

	res, err = ProcessRegion(ctx, src, EffectRequest{
		Kind: "gain", Params: EffectParams{"db": -6.0206}, RegionStartSec: 0.1, RegionEndSec: 0.2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Applied || res.Buffer.Frames() != src.Frames() {
		t.Fatalf("applied=%v frames=%d", res.Applied, res.Buffer.Frames())
	}
	i := 2205 + 100
	if math.Abs(float64(res.Buffer.Data[0][i])-0.5*float64(src.Data[0][i])) > 1e-4 {
		t.Fatalf("gain not applied inside region: %v vs %v", res.Buffer.Data[0][i], src.Data[0][i])
	}
	if res.Buffer.Data[0][100] != src.Data[0][100] {
		t.Fatal("sample outside the region changed")
	}
}

func TestEffectKinds(t *testing.T) {
	kinds := EffectKinds()
	has := map[string]bool{}
	for _, k := range kinds {
		has[k] = true
	}
	for _, want := range []string{"reverb", "delay", "eq", "normalize"} {
		if !has[want] {
			t.Errorf("EffectKinds missing %q", want)
		}
	}
	if has["vocoder"] {
		t.Error("stub listed as implemented")
	}
}
