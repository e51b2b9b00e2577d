// Package envelope schedules ADSR amplitude curves onto an automation.Param.
// Attack, decay and sustain are placed on the timeline in advance at Start;
// Stop captures the level the timeline actually has at the stop time and
// releases from there, so a release never jumps.
package envelope

import (
	"math"

	"github.com/cbegin/mixsynth-go/internal/automation"
)

// Floor is the silence floor releases ramp to before the final drop to zero.
const Floor = automation.MinPositive

// logSegments approximates the logarithmic curve 1-(1-t)^2.
const logSegments = 8

type Curve int

const (
	Linear Curve = iota
	Exponential
	Logarithmic
)

func (c Curve) String() string {
	switch c {
	case Exponential:
		return "exponential"
	case Logarithmic:
		return "logarithmic"
	default:
		return "linear"
	}
}

// ParseCurve maps a curve name; unknown names yield Linear and false.
func ParseCurve(s string) (Curve, bool) {
	switch s {
	case "linear", "":
		return Linear, true
	case "exponential", "exp":
		return Exponential, true
	case "logarithmic", "log":
		return Logarithmic, true
	}
	return Linear, false
}

type Phase int

const (
	Idle Phase = iota
	Attack
	Decay
	Sustain
	Release
)

func (p Phase) String() string {
	return [...]string{"idle", "attack", "decay", "sustain", "release"}[p]
}

// Params describes one envelope. Times are in seconds, Sustain is a fraction
// of the velocity-scaled peak.
type Params struct {
	Attack              float64
	Decay               float64
	Sustain             float64
	Release             float64
	AttackCurve         Curve
	DecayCurve          Curve
	ReleaseCurve        Curve
	VelocitySensitivity float64
}

func DefaultParams() Params {
	return Params{
		Attack:              0.01,
		Decay:               0.12,
		Sustain:             0.7,
		Release:             0.3,
		AttackCurve:         Linear,
		DecayCurve:          Exponential,
		ReleaseCurve:        Exponential,
		VelocitySensitivity: 0.8,
	}
}

// State is a snapshot of the generator at a point in time.
type State struct {
	Params
	Phase         Phase
	PhaseStartSec float64
	PeakLevel     float64
}

// Generator drives one Param. It is not safe for concurrent use.
type Generator struct {
	p       Params
	target  *automation.Param
	started bool
	startAt float64
	stopped bool
	stopAt  float64
	endAt   float64
	peak    float64
}

func New(p Params, target *automation.Param) *Generator {
	p.Attack = math.Max(p.Attack, 0)
	p.Decay = math.Max(p.Decay, 0)
	p.Sustain = clamp(p.Sustain, 0, 1)
	p.VelocitySensitivity = clamp(p.VelocitySensitivity, 0, 1)
	return &Generator{p: p, target: target}
}

// PeakLevel returns vs*velocity + (1-vs).
func PeakLevel(velocitySensitivity, velocity float64) float64 {
	vs := clamp(velocitySensitivity, 0, 1)
	return vs*clamp(velocity, 0, 1) + (1 - vs)
}

// Start schedules attack, decay and sustain from atSec. A positive
// durationSec also schedules the release at atSec+durationSec; otherwise the
// note holds until Stop.
func (g *Generator) Start(atSec, velocity, durationSec float64) {
	g.peak = PeakLevel(g.p.VelocitySensitivity, velocity)
	sustain := g.p.Sustain * g.peak
	g.started = true
	g.startAt = atSec
	g.stopped = false
	g.endAt = math.Inf(1)

	g.target.CancelScheduledValues(atSec)
	g.target.SetValueAtTime(0, atSec)

	attackEnd := atSec + g.p.Attack
	if g.p.Attack > 0 {
		g.ramp(g.p.AttackCurve, 0, g.peak, atSec, attackEnd)
	} else {
		g.target.SetValueAtTime(g.peak, atSec)
	}
	decayEnd := attackEnd + g.p.Decay
	if g.p.Decay > 0 {
		g.ramp(g.p.DecayCurve, g.peak, sustain, attackEnd, decayEnd)
	} else {
		g.target.SetValueAtTime(sustain, attackEnd)
	}

	if durationSec > 0 {
		g.Stop(atSec + durationSec)
	}
}

// Stop releases from the level the timeline holds at atSec and returns the
// time the envelope reaches silence. A stop at or after an already scheduled
// stop is ignored.
func (g *Generator) Stop(atSec float64) float64 {
	if !g.started {
		return atSec
	}
	if g.stopped && atSec >= g.stopAt {
		return g.endAt
	}
	level := g.target.ValueAt(atSec)
	g.target.CancelScheduledValues(atSec)
	g.target.SetValueAtTime(level, atSec)
	g.stopped = true
	g.stopAt = atSec

	if g.p.Release <= 0 {
		g.target.SetValueAtTime(0, atSec)
		g.endAt = atSec
		return g.endAt
	}
	g.endAt = atSec + g.p.Release
	g.ramp(g.p.ReleaseCurve, level, Floor, atSec, g.endAt)
	g.target.SetValueAtTime(0, g.endAt)
	return g.endAt
}

// Level returns the scheduled amplitude at atSec.
func (g *Generator) Level(atSec float64) float64 {
	return g.target.ValueAt(atSec)
}

// PhaseAt derives the envelope phase at atSec from the schedule.
func (g *Generator) PhaseAt(atSec float64) Phase {
	ph, _ := g.phaseAt(atSec)
	return ph
}

// StateAt returns the full snapshot at atSec.
func (g *Generator) StateAt(atSec float64) State {
	ph, since := g.phaseAt(atSec)
	return State{Params: g.p, Phase: ph, PhaseStartSec: since, PeakLevel: g.peak}
}

// EndSec is the time the release finishes, +Inf while the note is held.
func (g *Generator) EndSec() float64 {
	if !g.stopped {
		return math.Inf(1)
	}
	return g.endAt
}

// Stopped reports whether a release has been scheduled.
func (g *Generator) Stopped() bool { return g.stopped }

func (g *Generator) Params() Params { return g.p }

func (g *Generator) phaseAt(t float64) (Phase, float64) {
	if !g.started || t < g.startAt {
		return Idle, 0
	}
	if g.stopped && t >= g.stopAt {
		if t < g.endAt {
			return Release, g.stopAt
		}
		return Idle, g.endAt
	}
	attackEnd := g.startAt + g.p.Attack
	if t < attackEnd {
		return Attack, g.startAt
	}
	decayEnd := attackEnd + g.p.Decay
	if t < decayEnd {
		return Decay, attackEnd
	}
	return Sustain, decayEnd
}

func (g *Generator) ramp(c Curve, from, to, t0, t1 float64) {
	switch c {
	case Exponential:
		if to < Floor {
			g.target.LinearRampToValueAtTime(to, t1)
			return
		}
		g.target.ExponentialRampToValueAtTime(to, t1)
	case Logarithmic:
		for i := 1; i <= logSegments; i++ {
			u := float64(i) / logSegments
			shape := 1 - (1-u)*(1-u)
			g.target.LinearRampToValueAtTime(from+(to-from)*shape, t0+u*(t1-t0))
		}
	default:
		g.target.LinearRampToValueAtTime(to, t1)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
