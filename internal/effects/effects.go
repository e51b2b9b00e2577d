package effects

import "math"

// Effector processes stereo audio one frame at a time.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Tailer is implemented by effects that keep sounding after their input goes
// silent. Tail returns that ring-out in seconds.
type Tailer interface {
	Tail() float64
}

// TailOf returns e's tail, 0 for effects without one.
func TailOf(e Effector) float64 {
	if t, ok := e.(Tailer); ok {
		return t.Tail()
	}
	return 0
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(l, r float32) (float32, float32) {
	for _, e := range c.effects {
		l, r = e.Process(l, r)
	}
	return l, r
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int { return len(c.effects) }

// Tail is the sum of the member tails, since each stage can extend the
// ring-out of the one before it.
func (c *Chain) Tail() float64 {
	var sum float64
	for _, e := range c.effects {
		sum += TailOf(e)
	}
	return sum
}

// MaxTail bounds any tail estimate.
const MaxTail = 12.0

// feedbackTail estimates the time for a recirculating loop of period
// seconds and gain fb to decay by 60 dB.
func feedbackTail(period, fb float64) float64 {
	fb = math.Abs(fb)
	if fb <= 0 {
		return period
	}
	if fb >= 1 {
		return MaxTail
	}
	return math.Min(period*math.Log(1e-3)/math.Log(fb), MaxTail)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
