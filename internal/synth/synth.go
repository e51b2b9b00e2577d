// Package synth holds the voice architectures. Each one builds the node
// subgraph for a single note on a graph.Builder and hands back a VoiceHandle
// that owns it.
package synth

import (
	"fmt"
	"math"
	"strings"

	"github.com/cbegin/mixsynth-go/internal/envelope"
	"github.com/cbegin/mixsynth-go/internal/graph"
	"github.com/cbegin/mixsynth-go/internal/wavetable"
)

// Architecture builds voices of one design.
type Architecture interface {
	Name() string
	// BuildVoice creates one note's nodes on b and connects them to req.Out.
	// With a positive DurationSec every source stop is scheduled before it
	// returns.
	BuildVoice(b *graph.Builder, req VoiceRequest) (*VoiceHandle, error)
	// TailSec is how long shared processing keeps ringing after the last
	// voice has stopped.
	TailSec() float64
	// Dispose releases nodes shared between voices.
	Dispose()
}

// VoiceRequest describes one note to build.
type VoiceRequest struct {
	Note        int
	Freq        float64
	Velocity    float64
	AtSec       float64
	DurationSec float64 // <= 0 holds until Stop
	Timbre      wavetable.Timbre
	Out         graph.Node
}

// source is the start/stop surface shared by oscillators and noise.
type source interface {
	Start(at float64)
	Stop(at float64)
	StopTime() float64
}

// VoiceHandle owns the nodes of one voice.
type VoiceHandle struct {
	b       *graph.Builder
	sources []source
	envs    []*envelope.Generator
	start   float64
	end     float64
}

func newHandle(b *graph.Builder, at float64) *VoiceHandle {
	return &VoiceHandle{b: b, start: at, end: math.Inf(1)}
}

func (h *VoiceHandle) addSource(s source, at float64) {
	s.Start(at)
	h.sources = append(h.sources, s)
}

// settle aligns every source stop with the envelope end once it is known.
func (h *VoiceHandle) settle() {
	end := 0.0
	for _, e := range h.envs {
		end = math.Max(end, e.EndSec())
	}
	if len(h.envs) == 0 {
		end = math.Inf(1)
	}
	h.end = end
	if math.IsInf(end, 1) {
		return
	}
	for _, s := range h.sources {
		s.Stop(end)
	}
}

// Stop releases the voice at atSec and returns when every source has
// stopped. A stop after an earlier scheduled one keeps the earlier one.
func (h *VoiceHandle) Stop(atSec float64) float64 {
	for _, e := range h.envs {
		e.Stop(atSec)
	}
	h.settle()
	return h.end
}

// StartSec is when the voice began.
func (h *VoiceHandle) StartSec() float64 { return h.start }

// EndSec is when the release finishes, +Inf while held.
func (h *VoiceHandle) EndSec() float64 { return h.end }

// Level reports the main envelope level at atSec.
func (h *VoiceHandle) Level(atSec float64) float64 {
	if len(h.envs) == 0 {
		return 0
	}
	return h.envs[0].Level(atSec)
}

// Envelope returns the main amplitude envelope.
func (h *VoiceHandle) Envelope() *envelope.Generator {
	if len(h.envs) == 0 {
		return nil
	}
	return h.envs[0]
}

// SourceStops returns each source's scheduled stop time, +Inf when unset.
func (h *VoiceHandle) SourceStops() []float64 {
	out := make([]float64, len(h.sources))
	for i, s := range h.sources {
		out[i] = s.StopTime()
	}
	return out
}

// Nodes returns every node the voice owns.
func (h *VoiceHandle) Nodes() []graph.NodeID { return h.b.Nodes() }

// Release frees the voice's nodes. Safe to call more than once.
func (h *VoiceHandle) Release() {
	h.b.Release()
	h.sources = nil
}

// amp wires an amplitude envelope onto gain and starts it.
func (h *VoiceHandle) amp(p envelope.Params, gain *graph.Gain, req VoiceRequest, at float64) *envelope.Generator {
	gain.Gain.Reset(0)
	env := envelope.New(p, gain.Gain)
	env.Start(at, req.Velocity, req.DurationSec)
	h.envs = append(h.envs, env)
	return env
}

// NoteFrequency converts a MIDI note number to Hz (A4 = 69 = 440 Hz).
func NoteFrequency(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

// Select returns the architecture family for a timbre: "bright" for the
// brass, string and hard-edged timbres, "dark" for pad and bell, "wavetable"
// otherwise.
func Select(t wavetable.Timbre) string {
	switch t {
	case wavetable.Brass, wavetable.Strings, wavetable.Sawtooth, wavetable.Square:
		return "bright"
	case wavetable.Pad, wavetable.Bell:
		return "dark"
	}
	return "wavetable"
}

// ByName constructs an architecture from its name.
func ByName(name string, bank *wavetable.Bank) (Architecture, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bright":
		return NewBright(DefaultBrightParams()), nil
	case "dark":
		return NewDark(DefaultDarkParams()), nil
	case "wavetable", "":
		return NewWavetable(bank), nil
	}
	return nil, fmt.Errorf("unknown architecture %q", name)
}

// ForTimbre constructs the architecture Select picks for t.
func ForTimbre(t wavetable.Timbre, bank *wavetable.Bank) Architecture {
	a, _ := ByName(Select(t), bank)
	return a
}

func validate(req VoiceRequest) error {
	if req.Out == nil {
		return fmt.Errorf("voice for note %d: no output node", req.Note)
	}
	if !(req.Freq > 0) || math.IsInf(req.Freq, 0) {
		return fmt.Errorf("voice for note %d: invalid frequency %v", req.Note, req.Freq)
	}
	return nil
}

func clampVelocity(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// noiseSeed derives a per-note, per-member seed so renders repeat exactly.
func noiseSeed(note, member int) uint32 {
	return uint32(note*131+member*17) + 1
}
