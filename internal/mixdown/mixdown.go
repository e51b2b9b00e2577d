// Package mixdown renders a set of tracks into one stereo buffer: audio clips
// and synthesised midi notes, each track through its own gain and pan, summed
// on a private offline graph.
package mixdown

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cbegin/mixsynth-go/internal/clip"
	apperrors "github.com/cbegin/mixsynth-go/internal/errors"
	"github.com/cbegin/mixsynth-go/internal/graph"
	"github.com/cbegin/mixsynth-go/internal/pcm"
	"github.com/cbegin/mixsynth-go/internal/project"
	"github.com/cbegin/mixsynth-go/internal/synth"
	"github.com/cbegin/mixsynth-go/internal/voice"
	"github.com/cbegin/mixsynth-go/internal/wavetable"
)

const DefaultInstrumentRate = 44100

const blockFrames = 16384

// Request is a mixdown of Tracks over TotalDurationSec. A zero or negative
// total renders up to the end of the last eligible track.
type Request struct {
	Tracks           []project.Track `json:"tracks"`
	TotalDurationSec float64         `json:"totalDurationSec"`
}

type Option func(*config)

type config struct {
	logger         *slog.Logger
	instrumentRate int
	bank           *wavetable.Bank
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithInstrumentRate is the rate midi tracks contribute when their
// instrument does not name one.
func WithInstrumentRate(sr int) Option {
	return func(c *config) {
		if sr > 0 {
			c.instrumentRate = sr
		}
	}
}

func WithBank(b *wavetable.Bank) Option {
	return func(c *config) { c.bank = b }
}

// Eligible returns the tracks a mixdown of tracks would render.
func Eligible(tracks []project.Track) []project.Track {
	var out []project.Track
	for _, t := range project.Audible(tracks) {
		if t.HasContent() {
			out = append(out, t)
		}
	}
	return out
}

// Render mixes req into a stereo buffer of ceil(total*rate) frames at the
// highest sample rate among the contributing sources.
func Render(ctx context.Context, req Request, loader clip.Loader, opts ...Option) (*pcm.Buffer, error) {
	cfg := config{
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		instrumentRate: DefaultInstrumentRate,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	tracks := Eligible(req.Tracks)
	if len(tracks) == 0 {
		return nil, apperrors.NewOpError("mixdown", "", apperrors.ErrEmptyMixdownSet)
	}
	total := req.TotalDurationSec
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("mixdown: total duration %v: %w", total, apperrors.ErrInvalidParameter)
	}
	if total <= 0 {
		for _, t := range tracks {
			total = math.Max(total, t.EndSec())
		}
		if total <= 0 {
			return nil, fmt.Errorf("mixdown: nothing to render: %w", apperrors.ErrInvalidRequest)
		}
	}

	var refs []string
	for _, t := range tracks {
		if t.Kind == project.MIDI {
			continue
		}
		for _, c := range t.Clips {
			if c.DurationSec > 0 {
				refs = append(refs, c.SourceRef)
			}
		}
	}
	sources, err := clip.Preload(ctx, loader, refs)
	if err != nil {
		return nil, fmt.Errorf("mixdown: %w", err)
	}

	rate := 0
	for _, b := range sources {
		rate = max(rate, b.SampleRate)
	}
	for _, t := range tracks {
		if t.Kind == project.MIDI {
			rate = max(rate, cfg.rateFor(t.Instrument))
		}
	}
	if rate <= 0 {
		rate = cfg.instrumentRate
	}
	if sources, err = conform(ctx, sources, rate); err != nil {
		return nil, fmt.Errorf("mixdown: %w", err)
	}

	g := graph.New(rate)
	var managers []*voice.Manager
	defer func() {
		for _, m := range managers {
			m.Dispose()
		}
	}()
	for _, t := range tracks {
		b := g.Builder()
		bus := b.Gain(t.Gain)
		pan := b.Panner(t.Pan)
		b.Chain(bus, pan, g.Destination())
		if err := b.Err(); err != nil {
			return nil, fmt.Errorf("mixdown track %q: %w", t.ID, err)
		}
		if t.Kind == project.MIDI {
			m, err := cfg.playNotes(g, t, bus, total)
			if m != nil {
				managers = append(managers, m)
			}
			if err != nil {
				return nil, fmt.Errorf("mixdown track %q: %w", t.ID, err)
			}
			continue
		}
		if _, err := clip.ScheduleLoaded(g, t.Clips, sources, 0, 0, bus); err != nil {
			return nil, fmt.Errorf("mixdown track %q: %w", t.ID, err)
		}
	}

	frames := int(math.Ceil(total * float64(rate)))
	cfg.logger.Debug("mixdown", "tracks", len(tracks), "rate", rate, "frames", frames)
	out := pcm.New(rate, 2, frames)
	block := make([]float32, 2*blockFrames)
	for pos := 0; pos < frames; pos += blockFrames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := min(blockFrames, frames-pos)
		g.Process(block[:2*n])
		for i := 0; i < n; i++ {
			out.Data[0][pos+i] = block[2*i]
			out.Data[1][pos+i] = block[2*i+1]
		}
		for _, m := range managers {
			m.Collect(g.Now())
		}
	}
	return out, nil
}

func (c config) rateFor(inst *project.Instrument) int {
	if inst != nil && inst.SampleRate > 0 {
		return inst.SampleRate
	}
	return c.instrumentRate
}

// conform resamples every source below rate.
func conform(ctx context.Context, sources map[string]*pcm.Buffer, rate int) (map[string]*pcm.Buffer, error) {
	out := make(map[string]*pcm.Buffer, len(sources))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for ref, b := range sources {
		if b.SampleRate == rate {
			out[ref] = b
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := pcm.Resample(b, rate)
			if err != nil {
				return fmt.Errorf("source %q: %w", ref, err)
			}
			mu.Lock()
			out[ref] = r
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// playNotes schedules a midi track's notes on a voice manager feeding bus.
// Held notes are released at total.
func (c config) playNotes(g *graph.Graph, t project.Track, bus graph.Node, total float64) (*voice.Manager, error) {
	inst := project.Instrument{}
	if t.Instrument != nil {
		inst = *t.Instrument
	}
	timbre := wavetable.Sine
	if strings.TrimSpace(inst.Timbre) != "" {
		var err error
		if timbre, err = wavetable.ParseTimbre(inst.Timbre); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidParameter, err)
		}
	}
	var arch synth.Architecture
	if inst.Architecture != "" {
		var err error
		if arch, err = synth.ByName(inst.Architecture, c.bank); err != nil {
			return nil, err
		}
	} else {
		arch = synth.ForTimbre(timbre, c.bank)
	}
	opts := []voice.Option{
		voice.WithOutput(bus),
		voice.WithTimbre(timbre),
		voice.WithLogger(c.logger),
	}
	if inst.MaxVoices > 0 {
		opts = append(opts, voice.WithMaxVoices(inst.MaxVoices))
	}
	m := voice.New(g, arch, opts...)

	notes := append([]voice.NoteEvent(nil), t.Notes...)
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].AtSec < notes[j].AtSec })
	for _, n := range notes {
		if n.AtSec >= total {
			break
		}
		if err := m.PlayNote(n); err != nil {
			return m, err
		}
	}
	m.StopAllNotes(total)
	return m, nil
}
