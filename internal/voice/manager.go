// Package voice allocates synth voices per note on a graph, steals the
// oldest voice when the polyphony limit is reached and frees each voice's
// nodes once its release tail has finished.
package voice

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"

	apperrors "github.com/cbegin/mixsynth-go/internal/errors"
	"github.com/cbegin/mixsynth-go/internal/graph"
	"github.com/cbegin/mixsynth-go/internal/scheduler"
	"github.com/cbegin/mixsynth-go/internal/synth"
	"github.com/cbegin/mixsynth-go/internal/wavetable"
)

const DefaultMaxVoices = 16

// NoteEvent is a note-on. A DurationSec of zero or less holds the note until
// StopNote.
type NoteEvent struct {
	Note        int     `json:"note"`
	Velocity    float64 `json:"velocity"`
	AtSec       float64 `json:"atSec"`
	DurationSec float64 `json:"durationSec,omitempty"`
}

// Voice is one sounding note.
type Voice struct {
	Note             int
	Frequency        float64
	Velocity         float64
	StartSec         float64
	Timbre           wavetable.Timbre
	Handle           *synth.VoiceHandle
	Active           bool
	ScheduledStopSec float64
	HasScheduledStop bool

	seq      uint64
	released bool
}

type Option func(*config)

type config struct {
	maxVoices int
	timbre    wavetable.Timbre
	logger    *slog.Logger
	queue     *scheduler.Queue
	out       graph.Node
}

func WithMaxVoices(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxVoices = n
		}
	}
}

func WithTimbre(t wavetable.Timbre) Option {
	return func(c *config) { c.timbre = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithQueue shares an event queue keyed by graph time. Without it the
// manager keeps its own.
func WithQueue(q *scheduler.Queue) Option {
	return func(c *config) {
		if q != nil {
			c.queue = q
		}
	}
}

// WithOutput routes the manager's output bus into n instead of the graph
// destination.
func WithOutput(n graph.Node) Option {
	return func(c *config) { c.out = n }
}

// Manager owns every voice it creates and the architecture it was given.
type Manager struct {
	mu        sync.Mutex
	g         *graph.Graph
	arch      synth.Architecture
	bus       *graph.Builder
	out       *graph.Gain
	timbre    wavetable.Timbre
	maxVoices int
	active    map[int]*Voice
	releasing map[*Voice]struct{}
	queue     *scheduler.Queue
	log       *slog.Logger
	seq       uint64
	disposed  bool
}

func New(g *graph.Graph, arch synth.Architecture, opts ...Option) *Manager {
	cfg := config{
		maxVoices: DefaultMaxVoices,
		timbre:    wavetable.Sine,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.queue == nil {
		cfg.queue = scheduler.New()
	}
	if cfg.out == nil {
		cfg.out = g.Destination()
	}
	if arch == nil {
		arch = synth.ForTimbre(cfg.timbre, nil)
	}
	b := g.Builder()
	out := b.Gain(1)
	b.Connect(out, cfg.out)
	return &Manager{
		g:         g,
		arch:      arch,
		bus:       b,
		out:       out,
		timbre:    cfg.timbre,
		maxVoices: cfg.maxVoices,
		active:    map[int]*Voice{},
		releasing: map[*Voice]struct{}{},
		queue:     cfg.queue,
		log:       cfg.logger,
	}
}

// Output is the bus every voice feeds.
func (m *Manager) Output() *graph.Gain { return m.out }

func (m *Manager) Architecture() synth.Architecture { return m.arch }

// PlayNote builds exactly one voice for ev. Voices whose stop is at or
// before ev.AtSec no longer count toward polyphony. A voice already sounding
// the same note is released first; at the polyphony limit the voice that
// started earliest is stolen.
func (m *Manager) PlayNote(ev NoteEvent) error {
	if ev.Note < 0 || ev.Note > 127 {
		return fmt.Errorf("note %d: %w", ev.Note, apperrors.ErrInvalidParameter)
	}
	if math.IsNaN(ev.Velocity) || math.IsNaN(ev.AtSec) || math.IsNaN(ev.DurationSec) {
		return fmt.Errorf("note %d: NaN field: %w", ev.Note, apperrors.ErrInvalidParameter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return fmt.Errorf("play note %d: manager disposed: %w", ev.Note, apperrors.ErrInvalidRequest)
	}
	m.retireEndedLocked(ev.AtSec)
	if v, ok := m.active[ev.Note]; ok {
		m.stopLocked(v, ev.AtSec)
	}
	for len(m.active) >= m.maxVoices {
		v := m.oldestLocked()
		m.log.Debug("stealing voice", "note", v.Note, "started", v.StartSec, "for", ev.Note)
		m.stopLocked(v, ev.AtSec)
	}

	freq := synth.NoteFrequency(ev.Note)
	h, err := m.arch.BuildVoice(m.g.Builder(), synth.VoiceRequest{
		Note:        ev.Note,
		Freq:        freq,
		Velocity:    ev.Velocity,
		AtSec:       ev.AtSec,
		DurationSec: ev.DurationSec,
		Timbre:      m.timbre,
		Out:         m.out,
	})
	if err != nil {
		return fmt.Errorf("play note %d: %w", ev.Note, err)
	}
	m.seq++
	v := &Voice{
		Note:      ev.Note,
		Frequency: freq,
		Velocity:  ev.Velocity,
		StartSec:  ev.AtSec,
		Timbre:    m.timbre,
		Handle:    h,
		Active:    true,
		seq:       m.seq,
	}
	m.active[ev.Note] = v
	if ev.DurationSec > 0 {
		v.ScheduledStopSec = ev.AtSec + ev.DurationSec
		v.HasScheduledStop = true
		m.queue.Schedule(v.ScheduledStopSec, func(float64) { m.deactivate(v) })
		m.queue.Schedule(h.EndSec(), func(float64) { m.destroy(v) })
	}
	return nil
}

// StopNote releases the voice sounding note at atSec. Stopping a note that
// is not sounding does nothing.
func (m *Manager) StopNote(note int, atSec float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.active[note]; ok {
		m.stopLocked(v, atSec)
	}
}

// StopAllNotes releases every active voice at atSec.
func (m *Manager) StopAllNotes(atSec float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.activeLocked() {
		m.stopLocked(v, atSec)
	}
}

func (m *Manager) stopLocked(v *Voice, atSec float64) {
	end := v.Handle.Stop(atSec)
	if !v.HasScheduledStop || atSec < v.ScheduledStopSec {
		v.ScheduledStopSec = atSec
		v.HasScheduledStop = true
	}
	m.retireLocked(v)
	m.queue.Schedule(end, func(float64) { m.destroy(v) })
}

// retireLocked moves v from the active set to the releasing set.
func (m *Manager) retireLocked(v *Voice) {
	v.Active = false
	if m.active[v.Note] == v {
		delete(m.active, v.Note)
	}
	if !v.released {
		m.releasing[v] = struct{}{}
	}
}

// retireEndedLocked retires voices whose scheduled stop is at or before
// atSec. Notes can be queued ahead of the render cursor, so their queued
// deactivation may not have run yet.
func (m *Manager) retireEndedLocked(atSec float64) {
	for _, v := range m.activeLocked() {
		if v.HasScheduledStop && v.ScheduledStopSec <= atSec {
			m.retireLocked(v)
		}
	}
}

func (m *Manager) deactivate(v *Voice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.Active {
		m.retireLocked(v)
	}
}

func (m *Manager) destroy(v *Voice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.released || v.Active {
		return
	}
	m.releaseLocked(v)
}

func (m *Manager) releaseLocked(v *Voice) {
	v.Active = false
	v.released = true
	v.Handle.Release()
	delete(m.releasing, v)
	if m.active[v.Note] == v {
		delete(m.active, v.Note)
	}
}

// Collect runs queued stops and frees voices whose tails ended by nowSec.
func (m *Manager) Collect(nowSec float64) int {
	return m.queue.RunDue(nowSec)
}

func (m *Manager) oldestLocked() *Voice {
	var oldest *Voice
	for _, v := range m.active {
		if oldest == nil || v.StartSec < oldest.StartSec ||
			(v.StartSec == oldest.StartSec && v.seq < oldest.seq) {
			oldest = v
		}
	}
	return oldest
}

func (m *Manager) activeLocked() []*Voice {
	out := make([]*Voice, 0, len(m.active))
	for _, v := range m.active {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// ActiveNotes returns the held notes in allocation order.
func (m *Manager) ActiveNotes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs := m.activeLocked()
	notes := make([]int, len(vs))
	for i, v := range vs {
		notes[i] = v.Note
	}
	return notes
}

// Voice returns the active voice for note.
func (m *Manager) Voice(note int) (*Voice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.active[note]
	return v, ok
}

// Sounding counts active voices plus those still in their release tail.
func (m *Manager) Sounding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active) + len(m.releasing)
}

// EndSec is when every scheduled voice has finished, +Inf if a voice is held
// without a stop.
func (m *Manager) EndSec() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := 0.0
	for _, v := range m.active {
		end = math.Max(end, v.Handle.EndSec())
	}
	for v := range m.releasing {
		end = math.Max(end, v.Handle.EndSec())
	}
	return end
}

// TailSec is the architecture's shared tail.
func (m *Manager) TailSec() float64 { return m.arch.TailSec() }

// Dispose frees every voice, the architecture's shared nodes and the output
// bus. Safe to call more than once.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	m.disposed = true
	for _, v := range m.activeLocked() {
		m.releaseLocked(v)
	}
	for v := range m.releasing {
		m.releaseLocked(v)
	}
	m.arch.Dispose()
	m.g.Disconnect(m.out)
	m.bus.Release()
}
