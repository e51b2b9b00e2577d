package transport

import "sync"

// Clock is a monotonic time source in seconds, normally the audio device's
// playback position.
type Clock interface {
	Now() float64
}

// FuncClock adapts a function to Clock.
type FuncClock func() float64

func (f FuncClock) Now() float64 { return f() }

// ManualClock only moves when told to. Offline renders and tests use it.
type ManualClock struct {
	mu  sync.Mutex
	now float64
}

func (c *ManualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d seconds. Negative values are ignored.
func (c *ManualClock) Advance(d float64) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// Set jumps to t if it is not earlier than the current time.
func (c *ManualClock) Set(t float64) {
	c.mu.Lock()
	if t > c.now {
		c.now = t
	}
	c.mu.Unlock()
}
