// Package project holds the timeline records a session is made of and loads
// them from JSON snapshots.
package project

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	apperrors "github.com/cbegin/mixsynth-go/internal/errors"
	"github.com/cbegin/mixsynth-go/internal/voice"
)

type TrackKind string

const (
	Audio               TrackKind = "audio"
	MIDI                TrackKind = "midi"
	RecordingInProgress TrackKind = "recordingInProgress"
)

// Clip is an audio region on a track's timeline.
type Clip struct {
	ID              string  `json:"id"`
	Name            string  `json:"name,omitempty"`
	Color           string  `json:"color,omitempty"`
	StartSec        float64 `json:"startSec"`
	DurationSec     float64 `json:"durationSec"`
	SourceRef       string  `json:"sourceRef"`
	SourceOffsetSec float64 `json:"sourceOffsetSec,omitempty"`
}

// EndSec is where the clip stops on the timeline.
func (c Clip) EndSec() float64 { return c.StartSec + c.DurationSec }

// Instrument selects the synth for a midi track.
type Instrument struct {
	Architecture string `json:"architecture,omitempty"` // bright, dark, wavetable; empty picks by timbre
	Timbre       string `json:"timbre,omitempty"`
	MaxVoices    int    `json:"maxVoices,omitempty"`
	SampleRate   int    `json:"sampleRate,omitempty"`
}

type Track struct {
	ID         string            `json:"id"`
	Name       string            `json:"name,omitempty"`
	Kind       TrackKind         `json:"kind"`
	Clips      []Clip            `json:"clips,omitempty"`
	Notes      []voice.NoteEvent `json:"notes,omitempty"`
	Instrument *Instrument       `json:"instrument,omitempty"`
	Gain       float64           `json:"gain"`
	Pan        float64           `json:"pan"`
	Muted      bool              `json:"muted,omitempty"`
	Soloed     bool              `json:"soloed,omitempty"`
}

// HasContent reports whether the track has anything to render.
func (t Track) HasContent() bool {
	if t.Kind == MIDI {
		return len(t.Notes) > 0
	}
	return len(t.Clips) > 0
}

// EndSec is the end of the last clip or note. Held notes count from their
// start only.
func (t Track) EndSec() float64 {
	end := 0.0
	for _, c := range t.Clips {
		end = math.Max(end, c.EndSec())
	}
	for _, n := range t.Notes {
		end = math.Max(end, n.AtSec+math.Max(n.DurationSec, 0))
	}
	return end
}

type Project struct {
	Name        string  `json:"name,omitempty"`
	Tempo       float64 `json:"tempo,omitempty"`
	DurationSec float64 `json:"durationSec,omitempty"`
	Tracks      []Track `json:"tracks"`
}

// EndSec is DurationSec when set, otherwise the end of the latest track.
func (p *Project) EndSec() float64 {
	if p.DurationSec > 0 {
		return p.DurationSec
	}
	end := 0.0
	for _, t := range p.Tracks {
		end = math.Max(end, t.EndSec())
	}
	return end
}

// Audible filters tracks by mute and solo: when any track is soloed only
// soloed tracks play, otherwise every unmuted track does. Tracks still being
// recorded never play.
func Audible(tracks []Track) []Track {
	solo := false
	for _, t := range tracks {
		if t.Soloed && t.Kind != RecordingInProgress {
			solo = true
			break
		}
	}
	var out []Track
	for _, t := range tracks {
		if t.Kind == RecordingInProgress {
			continue
		}
		if solo && !t.Soloed || !solo && t.Muted {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Validate normalises defaults and rejects malformed records.
func (p *Project) Validate() error {
	for i := range p.Tracks {
		t := &p.Tracks[i]
		if t.Kind == "" {
			t.Kind = Audio
			if len(t.Notes) > 0 {
				t.Kind = MIDI
			}
		}
		switch t.Kind {
		case Audio, MIDI, RecordingInProgress:
		default:
			return fmt.Errorf("track %q: kind %q: %w", t.ID, t.Kind, apperrors.ErrInvalidRequest)
		}
		if t.Gain < 0 || math.IsNaN(t.Gain) {
			return fmt.Errorf("track %q: gain %v: %w", t.ID, t.Gain, apperrors.ErrInvalidParameter)
		}
		if t.Pan < -1 || t.Pan > 1 || math.IsNaN(t.Pan) {
			return fmt.Errorf("track %q: pan %v: %w", t.ID, t.Pan, apperrors.ErrInvalidParameter)
		}
		for _, c := range t.Clips {
			if c.DurationSec < 0 || c.StartSec < 0 || c.SourceOffsetSec < 0 {
				return fmt.Errorf("track %q clip %q: negative time: %w", t.ID, c.ID, apperrors.ErrInvalidParameter)
			}
			if strings.TrimSpace(c.SourceRef) == "" {
				return fmt.Errorf("track %q clip %q: %w", t.ID, c.ID, apperrors.ErrNoAudioLoaded)
			}
		}
		for _, n := range t.Notes {
			if n.Note < 0 || n.Note > 127 {
				return fmt.Errorf("track %q: note %d: %w", t.ID, n.Note, apperrors.ErrInvalidParameter)
			}
		}
	}
	return nil
}

// Load decodes a project snapshot. Tracks without a gain field play at
// unity.
func Load(r io.Reader) (*Project, error) {
	var raw struct {
		Project
		Tracks []json.RawMessage `json:"tracks"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode project: %w: %v", apperrors.ErrInvalidRequest, err)
	}
	p := raw.Project
	p.Tracks = make([]Track, 0, len(raw.Tracks))
	for _, msg := range raw.Tracks {
		t := Track{Gain: 1}
		if err := json.Unmarshal(msg, &t); err != nil {
			return nil, fmt.Errorf("decode track: %w: %v", apperrors.ErrInvalidRequest, err)
		}
		p.Tracks = append(p.Tracks, t)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func LoadFile(path string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
