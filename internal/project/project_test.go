package project

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/cbegin/mixsynth-go/internal/errors"
)

const snapshot = `{
  "name": "demo",
  "tracks": [
    {"id": "drums", "kind": "audio", "pan": -0.5,
     "clips": [{"id": "c1", "startSec": 1, "durationSec": 2, "sourceRef": "drums.wav"}]},
    {"id": "keys", "gain": 0.5,
     "notes": [{"note": 60, "velocity": 0.8, "atSec": 0, "durationSec": 4}],
     "instrument": {"timbre": "pad"}},
    {"id": "take", "kind": "recordingInProgress"}
  ]
}`

func TestLoadDefaults(t *testing.T) {
	p, err := Load(strings.NewReader(snapshot))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Tracks) != 3 {
		t.Fatalf("tracks = %d", len(p.Tracks))
	}
	drums, keys := p.Tracks[0], p.Tracks[1]
	if drums.Gain != 1 || drums.Pan != -0.5 {
		t.Fatalf("drums gain/pan = %v/%v", drums.Gain, drums.Pan)
	}
	if keys.Kind != MIDI || keys.Gain != 0.5 || keys.Instrument.Timbre != "pad" {
		t.Fatalf("keys = %+v", keys)
	}
	if got := p.EndSec(); got != 4 {
		t.Fatalf("EndSec = %v, want 4", got)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{"syntax", `{"tracks": [`, apperrors.ErrInvalidRequest},
		{"kind", `{"tracks": [{"id": "a", "kind": "video"}]}`, apperrors.ErrInvalidRequest},
		{"pan", `{"tracks": [{"id": "a", "pan": 2}]}`, apperrors.ErrInvalidParameter},
		{"gain", `{"tracks": [{"id": "a", "gain": -1}]}`, apperrors.ErrInvalidParameter},
		{"source", `{"tracks": [{"id": "a", "clips": [{"id": "c", "durationSec": 1}]}]}`, apperrors.ErrNoAudioLoaded},
		{"note", `{"tracks": [{"id": "a", "notes": [{"note": 200}]}]}`, apperrors.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.json))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAudible(t *testing.T) {
	ids := func(ts []Track) string {
		var s []string
		for _, t := range ts {
			s = append(s, t.ID)
		}
		return strings.Join(s, ",")
	}
	tests := []struct {
		name   string
		tracks []Track
		want   string
	}{
		{"mute", []Track{{ID: "a"}, {ID: "b", Muted: true}}, "a"},
		{"solo wins over mute", []Track{{ID: "a"}, {ID: "b", Muted: true, Soloed: true}}, "b"},
		{"recording never plays", []Track{{ID: "a"}, {ID: "r", Kind: RecordingInProgress}}, "a"},
		{"recording solo ignored", []Track{{ID: "a"}, {ID: "r", Kind: RecordingInProgress, Soloed: true}}, "a"},
		{"all muted", []Track{{ID: "a", Muted: true}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ids(Audible(tt.tracks)); got != tt.want {
				t.Fatalf("Audible = %q, want %q", got, tt.want)
			}
		})
	}
}
