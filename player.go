package mixsynth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	intaudio "github.com/cbegin/mixsynth-go/internal/audio"
	"github.com/cbegin/mixsynth-go/internal/clip"
	intfx "github.com/cbegin/mixsynth-go/internal/effects"
	"github.com/cbegin/mixsynth-go/internal/graph"
	"github.com/cbegin/mixsynth-go/internal/pcm"
	"github.com/cbegin/mixsynth-go/internal/project"
	"github.com/cbegin/mixsynth-go/internal/synth"
	"github.com/cbegin/mixsynth-go/internal/transport"
	"github.com/cbegin/mixsynth-go/internal/voice"
	"github.com/cbegin/mixsynth-go/internal/wavetable"
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	clock     transport.Clock
	lookahead float64
	logger    *slog.Logger
	sampleTap func([]float32)
	output    bool
	loader    clip.Loader
	live      project.Instrument
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		lookahead: transport.DefaultLookahead,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		output:    true,
	}
}

// WithClock replaces the time source. By default project time follows the
// device's playback position, or the rendered frame count without a device.
func WithClock(c transport.Clock) PlayerOption {
	return func(cfg *playerConfig) { cfg.clock = c }
}

// WithLookahead sets how far ahead of the playhead notes are scheduled.
func WithLookahead(sec float64) PlayerOption {
	return func(cfg *playerConfig) {
		if sec >= 0 {
			cfg.lookahead = sec
		}
	}
}

func WithLogger(l *slog.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// WithOutput enables the audio device. Without it the host pulls audio
// through Process.
func WithOutput(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.output = enabled
	}
}

// WithLoader sets where clip sources come from. The default decodes files
// relative to the working directory.
func WithLoader(l clip.Loader) PlayerOption {
	return func(cfg *playerConfig) {
		if l != nil {
			cfg.loader = l
		}
	}
}

// WithLiveInstrument selects the synth NoteOn plays.
func WithLiveInstrument(inst Instrument) PlayerOption {
	return func(cfg *playerConfig) { cfg.live = inst }
}

// Player plays a project live. Transport calls come from the host; Process
// runs on the audio thread. The host must call Tick regularly (once per UI
// frame) while playing so scheduled notes are dispatched.
type Player struct {
	mu         sync.Mutex
	sampleRate int
	log        *slog.Logger
	loader     clip.Loader
	tap        func([]float32)
	output     bool
	transport  *transport.Transport

	// gmu guards the graph and everything that builds or frees its nodes.
	gmu    sync.Mutex
	g      *graph.Graph
	input  *graph.Gain
	master *graph.Gain
	frames atomic.Int64

	masterEQ *intfx.EQ5Band
	volume   float64
	live     *voice.Manager
	device   atomic.Pointer[intaudio.Player]

	project *project.Project
	sources map[string]*pcm.Buffer
	tracks  []*liveTrack
	running bool
	closed  bool
}

type liveTrack struct {
	track    project.Track
	bus      *graph.Gain
	pan      *graph.Panner
	nodes    *graph.Builder
	synth    *voice.Manager
	playback *clip.Playback
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.loader == nil {
		cfg.loader = clip.NewFileLoader("")
	}
	p := &Player{
		sampleRate: sampleRate,
		log:        cfg.logger,
		loader:     cfg.loader,
		tap:        cfg.sampleTap,
		output:     cfg.output,
		g:          graph.New(sampleRate),
		masterEQ:   intfx.NewEQ5Band(sampleRate),
		volume:     1,
	}
	b := p.g.Builder()
	p.input = b.Gain(1)
	eq := b.Insert(p.masterEQ)
	p.master = b.Gain(1)
	b.Chain(p.input, eq, p.master, p.g.Destination())
	if err := b.Err(); err != nil {
		return nil, err
	}

	live, err := newManager(p.g, cfg.live, p.input, cfg.logger)
	if err != nil {
		return nil, err
	}
	p.live = live

	clock := cfg.clock
	if clock == nil {
		clock = transport.FuncClock(p.clockNow)
	}
	p.transport = transport.New(clock,
		transport.WithLookahead(cfg.lookahead),
		transport.WithLogger(cfg.logger))
	return p, nil
}

func resolveInstrument(inst Instrument) (wavetable.Timbre, synth.Architecture, error) {
	timbre := wavetable.Sine
	if inst.Timbre != "" {
		t, err := wavetable.ParseTimbre(inst.Timbre)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
		}
		timbre = t
	}
	if inst.Architecture != "" {
		a, err := synth.ByName(inst.Architecture, nil)
		if err != nil {
			return 0, nil, err
		}
		return timbre, a, nil
	}
	return timbre, synth.ForTimbre(timbre, nil), nil
}

func newManager(g *graph.Graph, inst Instrument, out graph.Node, log *slog.Logger) (*voice.Manager, error) {
	timbre, arch, err := resolveInstrument(inst)
	if err != nil {
		return nil, err
	}
	opts := []voice.Option{voice.WithOutput(out), voice.WithTimbre(timbre), voice.WithLogger(log)}
	if inst.MaxVoices > 0 {
		opts = append(opts, voice.WithMaxVoices(inst.MaxVoices))
	}
	return voice.New(g, arch, opts...), nil
}

// clockNow is the device position when a device is open, else rendered time.
func (p *Player) clockNow() float64 {
	if d := p.device.Load(); d != nil {
		return d.Now()
	}
	return float64(p.frames.Load()) / float64(p.sampleRate)
}

// Process fills dst with interleaved stereo frames from the graph.
func (p *Player) Process(dst []float32) {
	p.gmu.Lock()
	p.g.Process(dst)
	p.frames.Store(p.g.Frame())
	p.gmu.Unlock()
	if p.tap != nil {
		p.tap(dst)
	}
}

// Load replaces the session with proj: playback stops, every source is
// decoded and conformed to the player's rate, and one bus per track is
// built. On error the previous session is kept.
func (p *Player) Load(ctx context.Context, proj *Project) error {
	if err := proj.Validate(); err != nil {
		return err
	}
	for _, t := range proj.Tracks {
		if t.Kind == project.MIDI && t.Instrument != nil {
			if _, _, err := resolveInstrument(*t.Instrument); err != nil {
				return fmt.Errorf("track %q: %w", t.ID, err)
			}
		}
	}
	var refs []string
	for _, t := range proj.Tracks {
		if t.Kind == project.Audio {
			for _, c := range t.Clips {
				refs = append(refs, c.SourceRef)
			}
		}
	}
	sources, err := clip.Preload(ctx, p.loader, refs)
	if err != nil {
		return err
	}
	for ref, b := range sources {
		if b.SampleRate != p.sampleRate {
			r, err := pcm.Resample(b, p.sampleRate)
			if err != nil {
				return fmt.Errorf("source %q: %w", ref, err)
			}
			sources[ref] = r
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("load: player closed: %w", ErrInvalidRequest)
	}
	p.transport.Stop()
	p.gmu.Lock()
	defer p.gmu.Unlock()
	p.stopLocked()
	p.releaseTracksLocked()

	p.project = nil
	for _, t := range proj.Tracks {
		lt := &liveTrack{track: t, nodes: p.g.Builder()}
		lt.bus = lt.nodes.Gain(t.Gain)
		lt.pan = lt.nodes.Panner(t.Pan)
		lt.nodes.Chain(lt.bus, lt.pan, p.input)
		if t.Kind == project.MIDI {
			inst := Instrument{}
			if t.Instrument != nil {
				inst = *t.Instrument
			}
			m, err := newManager(p.g, inst, lt.bus, p.log)
			if err != nil {
				return fmt.Errorf("track %q: %w", t.ID, err)
			}
			lt.synth = m
		}
		p.tracks = append(p.tracks, lt)
	}
	p.project = proj
	p.sources = sources
	p.applyMixLocked()
	p.transport.SetDuration(proj.EndSec())
	if proj.Tempo > 0 {
		if err := p.transport.SetTempo(proj.Tempo); err != nil {
			return err
		}
	}
	p.log.Debug("project loaded", "tracks", len(p.tracks), "sources", len(sources), "duration", proj.EndSec())
	return nil
}

// applyMixLocked sets every bus from its track's gain, pan, mute and solo.
func (p *Player) applyMixLocked() {
	all := make([]project.Track, len(p.tracks))
	for i, lt := range p.tracks {
		all[i] = lt.track
	}
	audible := map[string]bool{}
	for _, t := range project.Audible(all) {
		audible[t.ID] = true
	}
	for _, lt := range p.tracks {
		g := 0.0
		if audible[lt.track.ID] {
			g = lt.track.Gain
		}
		lt.bus.Gain.Reset(g)
		lt.pan.Pan.Reset(lt.track.Pan)
	}
}

func (p *Player) releaseTracksLocked() {
	for _, lt := range p.tracks {
		if lt.playback != nil {
			lt.playback.Release()
		}
		if lt.synth != nil {
			lt.synth.Dispose()
		}
		lt.nodes.Release()
	}
	p.tracks = nil
}

// Play resumes from the current position.
func (p *Player) Play() error {
	return p.PlayFrom(p.transport.CurrentTime())
}

// PlayFrom starts playback at sec.
func (p *Player) PlayFrom(sec float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.openDeviceLocked(); err != nil {
		return err
	}
	sec = math.Max(sec, 0)
	p.gmu.Lock()
	p.stopLocked()
	p.gmu.Unlock()
	p.transport.PlayFrom(sec)
	return p.scheduleLocked(sec)
}

// Pause holds the playhead. Scheduled audio stops; held notes release.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transport.Pause()
	p.gmu.Lock()
	p.stopLocked()
	p.gmu.Unlock()
}

// Stop pauses and rewinds to the start.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transport.Stop()
	p.gmu.Lock()
	p.stopLocked()
	p.gmu.Unlock()
}

// Seek moves the playhead, rescheduling if playing.
func (p *Player) Seek(sec float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	sec = math.Max(sec, 0)
	p.gmu.Lock()
	p.stopLocked()
	p.gmu.Unlock()
	p.transport.Seek(sec)
	if p.transport.IsPlaying() {
		return p.scheduleLocked(sec)
	}
	return nil
}

func (p *Player) CurrentTime() float64 { return p.transport.CurrentTime() }

func (p *Player) IsPlaying() bool { return p.transport.IsPlaying() }

// OnTime registers a listener for the times Tick emits.
func (p *Player) OnTime(fn func(sec float64)) (unsubscribe func()) {
	return p.transport.OnTime(fn)
}

// Tick dispatches notes inside the lookahead window, frees finished voices
// and emits the playhead. It returns the emitted time and whether anything
// was emitted.
func (p *Player) Tick() (float64, bool) {
	sec, emitted := p.transport.Tick()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.gmu.Lock()
	defer p.gmu.Unlock()
	if p.running && !p.transport.IsPlaying() {
		p.stopLocked()
	}
	now := p.g.Now()
	p.live.Collect(now)
	for _, lt := range p.tracks {
		if lt.synth != nil {
			lt.synth.Collect(now)
		}
	}
	return sec, emitted
}

// scheduleLocked places clips and queues notes for a run from project time
// from. p.mu must be held.
func (p *Player) scheduleLocked(from float64) error {
	if p.project == nil {
		p.running = true
		return nil
	}
	p.gmu.Lock()
	defer p.gmu.Unlock()
	graphStart := math.Max(p.transport.ClockTime(from), p.g.Now())
	for _, lt := range p.tracks {
		switch lt.track.Kind {
		case project.Audio:
			pb, err := clip.ScheduleLoaded(p.g, lt.track.Clips, p.sources, from, graphStart, lt.bus)
			if err != nil {
				return fmt.Errorf("track %q: %w", lt.track.ID, err)
			}
			lt.playback = pb
		case project.MIDI:
			for _, n := range lt.track.Notes {
				if n.AtSec < from {
					continue
				}
				ev, m := n, lt.synth
				p.transport.Schedule(n.AtSec, func(at float64) {
					ev.AtSec = graphStart + (at - from)
					p.gmu.Lock()
					defer p.gmu.Unlock()
					if err := m.PlayNote(ev); err != nil {
						p.log.Warn("note dropped", "note", ev.Note, "err", err)
					}
				})
			}
		}
	}
	p.running = true
	return nil
}

// stopLocked silences everything scheduled by the current run. p.gmu must be
// held.
func (p *Player) stopLocked() {
	at := p.g.Now()
	for _, lt := range p.tracks {
		if lt.playback != nil {
			lt.playback.Stop(at)
			lt.playback.Release()
			lt.playback = nil
		}
		if lt.synth != nil {
			lt.synth.StopAllNotes(at)
		}
	}
	p.running = false
}

func (p *Player) openDeviceLocked() error {
	if p.closed {
		return fmt.Errorf("player closed: %w", ErrInvalidRequest)
	}
	if !p.output || p.device.Load() != nil {
		return nil
	}
	d, err := intaudio.NewPlayer(p.sampleRate, p, nil)
	if err != nil {
		return err
	}
	p.device.Store(d)
	d.Play()
	return nil
}

// NoteOn starts a live note on the player's instrument. A velocity outside
// [0, 1] is clamped.
func (p *Player) NoteOn(note int, velocity float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.openDeviceLocked(); err != nil {
		return err
	}
	p.gmu.Lock()
	defer p.gmu.Unlock()
	return p.live.PlayNote(NoteEvent{Note: note, Velocity: velocity, AtSec: p.g.Now()})
}

// NoteOff releases a live note.
func (p *Player) NoteOff(note int) {
	p.gmu.Lock()
	defer p.gmu.Unlock()
	p.live.StopNote(note, p.g.Now())
}

// ActiveNotes lists the live notes currently held.
func (p *Player) ActiveNotes() []int { return p.live.ActiveNotes() }

// SetTrackMix updates a loaded track's gain, pan, mute and solo while
// playing.
func (p *Player) SetTrackMix(id string, gain, pan float64, muted, soloed bool) error {
	if gain < 0 || math.IsNaN(gain) || pan < -1 || pan > 1 || math.IsNaN(pan) {
		return fmt.Errorf("track %q mix: %w", id, ErrInvalidParameter)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gmu.Lock()
	defer p.gmu.Unlock()
	for _, lt := range p.tracks {
		if lt.track.ID == id {
			lt.track.Gain, lt.track.Pan = gain, pan
			lt.track.Muted, lt.track.Soloed = muted, soloed
			p.applyMixLocked()
			return nil
		}
	}
	return fmt.Errorf("track %q: %w", id, ErrInvalidRequest)
}

// SetMasterVolume sets runtime volume scalar. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 || math.IsNaN(volume) {
		volume = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	p.gmu.Lock()
	p.master.Gain.Reset(volume)
	p.gmu.Unlock()
}

func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetEQBand sets the gain for a master EQ band (0-4). 1.0 = unity.
// Band frequencies: 0=<200Hz, 1=200-800Hz, 2=800-2.5kHz, 3=2.5-8kHz, 4=>8kHz.
// This takes effect immediately on the audio thread (lock-free).
func (p *Player) SetEQBand(band int, gain float32) {
	p.masterEQ.SetGain(band, gain)
}

// EQBand returns the current gain for a master EQ band (0-4).
func (p *Player) EQBand(band int) float32 {
	return p.masterEQ.Gain(band)
}

// PlaybackPosition returns the current output position of the audio driver,
// i.e. what the listener actually hears right now. Returns 0 without a
// device.
func (p *Player) PlaybackPosition() int64 {
	d := p.device.Load()
	if d == nil {
		return 0
	}
	return int64(d.Position().Seconds() * float64(p.sampleRate))
}

// Close stops playback, frees every node and closes the device.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.transport.Stop()
	p.gmu.Lock()
	p.stopLocked()
	p.releaseTracksLocked()
	p.live.Dispose()
	p.gmu.Unlock()
	if d := p.device.Swap(nil); d != nil {
		return d.Close()
	}
	return nil
}
