package audio

import (
	"sync"
	"time"
)

// Positioner reports how much audio the listener has heard.
type Positioner interface {
	Position() time.Duration
}

// PositionClock turns a Positioner into a clock that never runs backwards.
// Device positions can jitter between buffer callbacks.
type PositionClock struct {
	mu   sync.Mutex
	src  Positioner
	last float64
}

func NewPositionClock(src Positioner) *PositionClock {
	return &PositionClock{src: src}
}

func (c *PositionClock) Now() float64 {
	t := c.src.Position().Seconds()
	c.mu.Lock()
	defer c.mu.Unlock()
	if t > c.last {
		c.last = t
	}
	return c.last
}

// FrameClock reads time from the frames a StreamReader has rendered. It runs
// ahead of the device by the device buffer and needs no hardware.
type FrameClock struct {
	Reader     *StreamReader
	SampleRate int
}

func (c FrameClock) Now() float64 {
	return float64(c.Reader.Frames()) / float64(c.SampleRate)
}
