// Package mixsynth is an audio synthesis and mixing engine: polyphonic synth
// voices, timeline clip playback, region effects and stereo mixdown to WAV.
package mixsynth

import (
	"context"
	"io"

	"github.com/cbegin/mixsynth-go/internal/clip"
	"github.com/cbegin/mixsynth-go/internal/codec"
	apperrors "github.com/cbegin/mixsynth-go/internal/errors"
	"github.com/cbegin/mixsynth-go/internal/mixdown"
	"github.com/cbegin/mixsynth-go/internal/pcm"
	"github.com/cbegin/mixsynth-go/internal/project"
	"github.com/cbegin/mixsynth-go/internal/regionfx"
	"github.com/cbegin/mixsynth-go/internal/voice"
)

type (
	Buffer         = pcm.Buffer
	Project        = project.Project
	Track          = project.Track
	TrackKind      = project.TrackKind
	Clip           = project.Clip
	Instrument     = project.Instrument
	NoteEvent      = voice.NoteEvent
	MixdownRequest = mixdown.Request
	EffectRequest  = regionfx.Request
	EffectParams   = regionfx.Params
	EffectResult   = regionfx.Result
	Loader         = clip.Loader
	MapLoader      = clip.MapLoader
	MixdownOption  = mixdown.Option
)

const (
	TrackAudio               = project.Audio
	TrackMIDI                = project.MIDI
	TrackRecordingInProgress = project.RecordingInProgress
)

var (
	ErrUnknownEffectKind    = apperrors.ErrUnknownEffectKind
	ErrNotImplementedEffect = apperrors.ErrNotImplementedEffect
	ErrNoAudioLoaded        = apperrors.ErrNoAudioLoaded
	ErrEmptyMixdownSet      = apperrors.ErrEmptyMixdownSet
	ErrInvalidParameter     = apperrors.ErrInvalidParameter
	ErrInvalidRequest       = apperrors.ErrInvalidRequest
)

var (
	WithMixdownLogger  = mixdown.WithLogger
	WithInstrumentRate = mixdown.WithInstrumentRate
)

// NewBuffer allocates a silent buffer.
func NewBuffer(sampleRate, channels, frames int) *Buffer {
	return pcm.New(sampleRate, channels, frames)
}

// NewFileLoader decodes clip sources from files under root, caching them.
func NewFileLoader(root string) Loader { return clip.NewFileLoader(root) }

// LoadProject decodes a project snapshot.
func LoadProject(r io.Reader) (*Project, error) { return project.Load(r) }

func LoadProjectFile(path string) (*Project, error) { return project.LoadFile(path) }

// Mixdown renders the eligible tracks of req to a stereo buffer at the
// highest contributing sample rate.
func Mixdown(ctx context.Context, req MixdownRequest, loader Loader, opts ...MixdownOption) (*Buffer, error) {
	return mixdown.Render(ctx, req, loader, opts...)
}

// MixdownProject mixes every track of p over its duration.
func MixdownProject(ctx context.Context, p *Project, loader Loader, opts ...MixdownOption) (*Buffer, error) {
	return mixdown.Render(ctx, MixdownRequest{Tracks: p.Tracks, TotalDurationSec: p.EndSec()}, loader, opts...)
}

// ProcessRegion applies an effect to a region of buf. buf is not modified.
func ProcessRegion(ctx context.Context, buf *Buffer, req EffectRequest) (EffectResult, error) {
	return regionfx.Process(ctx, buf, req)
}

// EffectKinds lists the implemented effect kinds.
func EffectKinds() []string { return regionfx.Kinds() }

// EncodeWAV writes buf as canonical 16-bit PCM WAV with 0.95 headroom.
func EncodeWAV(w io.Writer, buf *Buffer) error { return codec.EncodeWAV(w, buf) }

func EncodeWAVBytes(buf *Buffer) ([]byte, error) { return codec.EncodeWAVBytes(buf) }

// DecodeAudio decodes WAV, AIFF, MP3 or Ogg Vorbis. ext may be empty to
// detect the format from the data.
func DecodeAudio(r io.Reader, ext string) (*Buffer, error) {
	return codec.Default().Decode(r, ext)
}
