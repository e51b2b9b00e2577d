// Package automation implements scheduled parameter timelines. A Param's
// value is a pure function of time: events are placed in advance and
// evaluated on demand, never polled.
package automation

import (
	"math"
	"sort"
)

// MinPositive is the floor used for exponential ramps, which are undefined
// at zero.
const MinPositive = 1e-4

type eventKind int

const (
	eventSet eventKind = iota
	eventLinear
	eventExponential
)

type event struct {
	kind  eventKind
	time  float64
	value float64
}

// Param is an automatable value. Ramp events interpolate from the previous
// event's value and time to their own; a Set event jumps.
type Param struct {
	initial float64
	events  []event
}

func NewParam(initial float64) *Param {
	return &Param{initial: initial}
}

// SetValueAtTime jumps to v at t.
func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(event{kind: eventSet, time: t, value: v})
}

// LinearRampToValueAtTime ramps linearly from the previous event to v at t.
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.insert(event{kind: eventLinear, time: t, value: v})
}

// ExponentialRampToValueAtTime ramps multiplicatively from the previous event
// to v at t. Both endpoints are clamped to MinPositive.
func (p *Param) ExponentialRampToValueAtTime(v, t float64) {
	p.insert(event{kind: eventExponential, time: t, value: math.Max(v, MinPositive)})
}

// CancelScheduledValues removes every event at or after t.
func (p *Param) CancelScheduledValues(t float64) {
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time >= t })
	p.events = p.events[:i]
}

// Reset drops all events and sets a new resting value.
func (p *Param) Reset(v float64) {
	p.initial = v
	p.events = p.events[:0]
}

// Len returns the number of scheduled events.
func (p *Param) Len() int { return len(p.events) }

// LastEventTime returns the time of the final event, or 0 when none exist.
func (p *Param) LastEventTime() float64 {
	if len(p.events) == 0 {
		return 0
	}
	return p.events[len(p.events)-1].time
}

// ValueAt evaluates the timeline at t.
func (p *Param) ValueAt(t float64) float64 {
	prevT := math.Inf(-1)
	prevV := p.initial
	for _, e := range p.events {
		if e.time <= t {
			prevT, prevV = e.time, e.value
			continue
		}
		switch e.kind {
		case eventLinear:
			if math.IsInf(prevT, -1) {
				return prevV
			}
			frac := (t - prevT) / (e.time - prevT)
			return prevV + (e.value-prevV)*frac
		case eventExponential:
			if math.IsInf(prevT, -1) {
				return prevV
			}
			from := math.Max(prevV, MinPositive)
			frac := (t - prevT) / (e.time - prevT)
			return from * math.Pow(e.value/from, frac)
		default:
			return prevV
		}
	}
	return prevV
}

// insert keeps events ordered by time; equal times keep insertion order.
func (p *Param) insert(e event) {
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > e.time })
	p.events = append(p.events, event{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}
