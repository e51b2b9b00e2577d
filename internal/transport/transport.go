// Package transport keeps project time in step with a hardware clock. It has
// no timer of its own: the host calls Tick once per frame, and Tick emits the
// current time to listeners at a fixed cadence and dispatches scheduled
// events a lookahead window before they are due.
package transport

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	apperrors "github.com/cbegin/mixsynth-go/internal/errors"
	"github.com/cbegin/mixsynth-go/internal/scheduler"
)

const (
	DefaultLookahead = 0.1
	DefaultInterval  = 1.0 / 60
	DefaultTempo     = 120.0
)

type Option func(*config)

type config struct {
	lookahead float64
	interval  float64
	tempo     float64
	logger    *slog.Logger
}

// WithLookahead sets how far ahead of the playhead Tick dispatches events.
func WithLookahead(sec float64) Option {
	return func(c *config) {
		if sec >= 0 {
			c.lookahead = sec
		}
	}
}

// WithInterval sets the minimum clock time between emitted ticks.
func WithInterval(sec float64) Option {
	return func(c *config) {
		if sec >= 0 {
			c.interval = sec
		}
	}
}

func WithTempo(bpm float64) Option {
	return func(c *config) {
		if bpm > 0 {
			c.tempo = bpm
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Transport is safe for concurrent use. Listener callbacks and event actions
// run on the goroutine that calls Tick, outside the transport's lock.
type Transport struct {
	mu         sync.Mutex
	clock      Clock
	playing    bool
	startAt    float64 // project time when the transport last started
	clockStart float64 // clock reading at that moment
	bound      float64
	tempo      float64
	lastEmit   float64
	emitted    bool
	listeners  map[int]func(float64)
	nextID     int
	queue      *scheduler.Queue
	lookahead  float64
	interval   float64
	log        *slog.Logger
}

func New(clock Clock, opts ...Option) *Transport {
	cfg := config{
		lookahead: DefaultLookahead,
		interval:  DefaultInterval,
		tempo:     DefaultTempo,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if clock == nil {
		clock = &ManualClock{}
	}
	return &Transport{
		clock:     clock,
		tempo:     cfg.tempo,
		listeners: map[int]func(float64){},
		queue:     scheduler.New(),
		lookahead: cfg.lookahead,
		interval:  cfg.interval,
		log:       cfg.logger,
	}
}

// Play resumes from the current position. It is a no-op while playing.
func (t *Transport) Play() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing {
		return
	}
	t.startLocked(t.startAt)
}

// PlayFrom starts playback at sec, restarting if already playing.
func (t *Transport) PlayFrom(sec float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing {
		t.queue.Clear()
	}
	t.startLocked(math.Max(sec, 0))
}

func (t *Transport) startLocked(at float64) {
	t.startAt = at
	t.clockStart = t.clock.Now()
	t.playing = true
	t.emitted = false
	t.log.Debug("transport play", "at", at)
}

// Pause holds the current position and drops every pending event.
func (t *Transport) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pauseLocked(t.currentLocked())
}

func (t *Transport) pauseLocked(at float64) {
	t.startAt = at
	t.playing = false
	t.queue.Clear()
	t.log.Debug("transport pause", "at", at)
}

// Stop pauses and rewinds to zero.
func (t *Transport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pauseLocked(0)
}

// Seek moves the playhead, keeping the play state. Pending events are
// dropped since they were scheduled against the old position.
func (t *Transport) Seek(sec float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue.Clear()
	t.startAt = math.Max(sec, 0)
	if t.playing {
		t.clockStart = t.clock.Now()
		t.emitted = false
	}
}

// CurrentTime is the project position in seconds.
func (t *Transport) CurrentTime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentLocked()
}

func (t *Transport) currentLocked() float64 {
	if !t.playing {
		return t.startAt
	}
	return t.startAt + (t.clock.Now() - t.clockStart)
}

func (t *Transport) IsPlaying() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

// ClockTime maps a project time to the clock's timeline for the current run.
func (t *Transport) ClockTime(projectSec float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.playing {
		return t.clock.Now() + (projectSec - t.startAt)
	}
	return t.clockStart + (projectSec - t.startAt)
}

// SetDuration bounds playback; Tick auto-pauses on reaching it. A bound of
// zero or less removes it.
func (t *Transport) SetDuration(sec float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bound = math.Max(sec, 0)
}

// OnTime registers a listener for emitted times and returns a function that
// removes it.
func (t *Transport) OnTime(fn func(sec float64)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// Schedule queues action for project time atSec. Tick runs it once the
// playhead is within the lookahead window, passing atSec.
func (t *Transport) Schedule(atSec float64, action scheduler.Action) uint64 {
	return t.queue.Schedule(atSec, action)
}

// Pending reports how many scheduled events have not fired.
func (t *Transport) Pending() int { return t.queue.Len() }

// Tick is the host's per-frame callback. It dispatches due events and, at
// most once per interval, emits the current time. On reaching the duration
// bound it pauses and emits the bound itself, once. It returns the emitted
// time and whether anything was emitted.
func (t *Transport) Tick() (float64, bool) {
	t.mu.Lock()
	if !t.playing {
		t.mu.Unlock()
		return 0, false
	}
	now := t.currentLocked()
	clockNow := t.clock.Now()
	if t.bound > 0 && now >= t.bound {
		// events inside the bound still fire before the pause clears them
		t.mu.Unlock()
		t.queue.RunDue(t.bound)
		t.mu.Lock()
		if !t.playing {
			t.mu.Unlock()
			return 0, false
		}
		t.pauseLocked(t.bound)
		t.log.Debug("transport reached bound", "bound", t.bound)
		return t.emitUnlock(t.bound, clockNow)
	}
	horizon := now + t.lookahead
	due := !t.emitted || clockNow-t.lastEmit >= t.interval
	t.mu.Unlock()

	t.queue.RunDue(horizon)
	if !due {
		return now, false
	}
	t.mu.Lock()
	return t.emitUnlock(now, clockNow)
}

// emitUnlock records the emission, releases the lock and notifies listeners.
func (t *Transport) emitUnlock(sec, clockNow float64) (float64, bool) {
	t.lastEmit = clockNow
	t.emitted = true
	fns := make([]func(float64), 0, len(t.listeners))
	for id := 0; id < t.nextID; id++ {
		if fn, ok := t.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn(sec)
	}
	return sec, true
}

// SetTempo changes the tempo keeping the current beat position: the playhead
// in seconds is re-derived from the beat, not carried over.
func (t *Transport) SetTempo(bpm float64) error {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return fmt.Errorf("tempo %v: %w", bpm, apperrors.ErrInvalidParameter)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	beat := t.currentLocked() * t.tempo / 60
	t.tempo = bpm
	t.startAt = beat * 60 / bpm
	if t.playing {
		t.clockStart = t.clock.Now()
	}
	return nil
}

func (t *Transport) Tempo() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tempo
}

// BeatsToSeconds converts at the current tempo.
func (t *Transport) BeatsToSeconds(beats float64) float64 {
	return BeatsToSeconds(beats, t.Tempo())
}

// SecondsToBeats converts at the current tempo.
func (t *Transport) SecondsToBeats(sec float64) float64 {
	return SecondsToBeats(sec, t.Tempo())
}

// CurrentBeat is the playhead in beats.
func (t *Transport) CurrentBeat() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentLocked() * t.tempo / 60
}

func BeatsToSeconds(beats, bpm float64) float64 { return beats * 60 / bpm }

func SecondsToBeats(sec, bpm float64) float64 { return sec * bpm / 60 }
