package mixsynth

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

func newTestPlayer(t *testing.T, opts ...PlayerOption) *Player {
	t.Helper()
	opts = append([]PlayerOption{WithOutput(false), WithLoader(demoLoader())}, opts...)
	pl, err := NewPlayer(44100, opts...)
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	t.Cleanup(func() { _ = pl.Close() })
	return pl
}

// pull renders sec of audio in 10 ms blocks, ticking between blocks, and
// returns the peak.
func pull(pl *Player, sec float64) float64 {
	block := make([]float32, 2*441)
	peak := 0.0
	for n := int(sec * 100); n > 0; n-- {
		pl.Tick()
		pl.Process(block)
		for _, v := range block {
			peak = math.Max(peak, math.Abs(float64(v)))
		}
	}
	return peak
}

func TestPlayerMasterVolumeRuntimeAPI(t *testing.T) {
	pl := newTestPlayer(t)
	if got := pl.MasterVolume(); got != 1 {
		t.Fatalf("default master volume = %v, want 1", got)
	}
	pl.SetMasterVolume(0.35)
	if got := pl.MasterVolume(); got != 0.35 {
		t.Fatalf("master volume = %v, want 0.35", got)
	}
	pl.SetMasterVolume(-2)
	if got := pl.MasterVolume(); got != 0 {
		t.Fatalf("master volume should clamp to 0, got %v", got)
	}
}

func TestPlayerEQBand(t *testing.T) {
	pl := newTestPlayer(t)
	pl.SetEQBand(2, 1.5)
	if got := pl.EQBand(2); got != 1.5 {
		t.Fatalf("EQBand(2) = %v", got)
	}
	if got := pl.EQBand(9); got != 1 {
		t.Fatalf("out of range band = %v, want 1", got)
	}
}

func TestPlayerPlaysLoadedProject(t *testing.T) {
	pl := newTestPlayer(t)
	p, err := LoadProject(strings.NewReader(demoProject))
	if err != nil {
		t.Fatal(err)
	}
	if err := pl.Load(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if err := pl.Play(); err != nil {
		t.Fatal(err)
	}
	if !pl.IsPlaying() {
		t.Fatal("not playing after Play")
	}
	if peak := pull(pl, 0.3); peak < 0.2 {
		t.Fatalf("peak = %v, want audible output", peak)
	}
	if got := pl.CurrentTime(); math.Abs(got-0.3) > 0.02 {
		t.Fatalf("CurrentTime = %v, want about 0.3", got)
	}

	pl.Pause()
	at := pl.CurrentTime()
	pull(pl, 0.5) // let release tails finish
	if peak := pull(pl, 0.1); peak > 1e-3 {
		t.Fatalf("output after pause peak = %v", peak)
	}
	if got := pl.CurrentTime(); got != at {
		t.Fatalf("paused playhead moved from %v to %v", at, got)
	}
}

func TestPlayerStopsAtProjectEnd(t *testing.T) {
	pl := newTestPlayer(t)
	p, err := LoadProject(strings.NewReader(demoProject))
	if err != nil {
		t.Fatal(err)
	}
	if err := pl.Load(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	var last float64
	unsub := pl.OnTime(func(sec float64) { last = sec })
	defer unsub()
	if err := pl.PlayFrom(0.8); err != nil {
		t.Fatal(err)
	}
	pull(pl, 0.4)
	if pl.IsPlaying() {
		t.Fatal("still playing past the project end")
	}
	if last != 1 {
		t.Fatalf("last emitted time = %v, want 1", last)
	}
}

func TestPlayerSeekAndStop(t *testing.T) {
	pl := newTestPlayer(t)
	p, err := LoadProject(strings.NewReader(demoProject))
	if err != nil {
		t.Fatal(err)
	}
	if err := pl.Load(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if err := pl.Seek(0.5); err != nil {
		t.Fatal(err)
	}
	if pl.CurrentTime() != 0.5 || pl.IsPlaying() {
		t.Fatalf("after seek: time=%v playing=%v", pl.CurrentTime(), pl.IsPlaying())
	}
	if err := pl.Play(); err != nil {
		t.Fatal(err)
	}
	pull(pl, 0.1)
	if err := pl.Seek(0.2); err != nil {
		t.Fatal(err)
	}
	if got := pl.CurrentTime(); math.Abs(got-0.2) > 1e-9 {
		t.Fatalf("CurrentTime after seek = %v", got)
	}
	pl.Stop()
	if pl.CurrentTime() != 0 || pl.IsPlaying() {
		t.Fatalf("after stop: time=%v playing=%v", pl.CurrentTime(), pl.IsPlaying())
	}
}

func TestPlayerTrackMix(t *testing.T) {
	pl := newTestPlayer(t)
	p, err := LoadProject(strings.NewReader(`{"tracks":[{"id":"a","clips":[{"id":"c","durationSec":1,"sourceRef":"a"}]}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := pl.Load(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if err := pl.SetTrackMix("a", 1, 0, true, false); err != nil {
		t.Fatal(err)
	}
	if err := pl.Play(); err != nil {
		t.Fatal(err)
	}
	if peak := pull(pl, 0.1); peak > 1e-3 {
		t.Fatalf("muted track audible: peak %v", peak)
	}
	if err := pl.SetTrackMix("a", 1, 0, false, false); err != nil {
		t.Fatal(err)
	}
	if peak := pull(pl, 0.1); peak < 0.2 {
		t.Fatalf("unmuted track silent: peak %v", peak)
	}
	if err := pl.SetTrackMix("nope", 1, 0, false, false); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
	if err := pl.SetTrackMix("a", 1, 2, false, false); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("err = %v, want ErrInvalidParameter", err)
	}
}

func TestPlayerLiveNotes(t *testing.T) {
	pl := newTestPlayer(t, WithLiveInstrument(Instrument{Timbre: "organ"}))
	if err := pl.NoteOn(69, 0.8); err != nil {
		t.Fatal(err)
	}
	if err := pl.NoteOn(72, 0.8); err != nil {
		t.Fatal(err)
	}
	if got := pl.ActiveNotes(); len(got) != 2 || got[0] != 69 || got[1] != 72 {
		t.Fatalf("ActiveNotes = %v", got)
	}
	if peak := pull(pl, 0.2); peak == 0 {
		t.Fatal("live notes silent")
	}
	pl.NoteOff(69)
	pl.NoteOff(72)
	if got := pl.ActiveNotes(); len(got) != 0 {
		t.Fatalf("ActiveNotes after off = %v", got)
	}
	if err := pl.NoteOn(200, 1); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("err = %v, want ErrInvalidParameter", err)
	}
}

func TestPlayerSampleTap(t *testing.T) {
	var seen int
	pl := newTestPlayer(t, WithSampleTap(func(b []float32) { seen += len(b) }))
	pl.Process(make([]float32, 64))
	if seen != 64 {
		t.Fatalf("tap saw %d samples", seen)
	}
}

func TestPlayerClose(t *testing.T) {
	pl, err := NewPlayer(22050, WithOutput(false))
	if err != nil {
		t.Fatal(err)
	}
	if err := pl.Close(); err != nil {
		t.Fatal(err)
	}
	if err := pl.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := pl.NoteOn(60, 1); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("NoteOn after close: %v", err)
	}
	if _, err := NewPlayer(0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestPlayerLoadRejectsBadInstrument(t *testing.T) {
	pl := newTestPlayer(t)
	p, err := LoadProject(strings.NewReader(`{"tracks":[{"id":"k","kind":"midi","instrument":{"timbre":"kazoo"},"notes":[{"note":60,"velocity":1}]}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := pl.Load(context.Background(), p); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("err = %v, want ErrInvalidParameter", err)
	}
}
