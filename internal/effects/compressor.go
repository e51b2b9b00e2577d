package effects

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
	dspfx "github.com/cwbudde/algo-dsp/dsp/effects"
)

// CompressorParams configures NewCompressor. MakeupDB is ignored when
// AutoMakeup is set.
type CompressorParams struct {
	ThresholdDB float64
	Ratio       float64
	KneeDB      float64
	AttackMs    float64
	ReleaseMs   float64
	MakeupDB    float64
	AutoMakeup  bool
}

func DefaultCompressorParams() CompressorParams {
	return CompressorParams{ThresholdDB: -20, Ratio: 4, KneeDB: 6, AttackMs: 10, ReleaseMs: 100, AutoMakeup: true}
}

// NewCompressor creates a feed-forward stereo compressor.
func NewCompressor(sampleRate int, p CompressorParams) (Effector, error) {
	return newDual(func() (*dspfx.Compressor, error) {
		c, err := dspfx.NewCompressor(float64(sampleRate))
		if err != nil {
			return nil, err
		}
		for _, set := range []func() error{
			func() error { return c.SetThreshold(p.ThresholdDB) },
			func() error { return c.SetRatio(p.Ratio) },
			func() error { return c.SetKnee(p.KneeDB) },
			func() error { return c.SetAttack(p.AttackMs) },
			func() error { return c.SetRelease(p.ReleaseMs) },
		} {
			if err := set(); err != nil {
				return nil, err
			}
		}
		if !p.AutoMakeup {
			if err := c.SetMakeupGain(p.MakeupDB); err != nil {
				return nil, err
			}
		}
		return c, nil
	}, p.ReleaseMs/1000)
}

// NewLimiter creates a brickwall-style limiter with ceiling in dB.
func NewLimiter(sampleRate int, ceilingDB, releaseMs float64) (Effector, error) {
	return newDual(func() (*dspfx.Limiter, error) {
		l, err := dspfx.NewLimiter(float64(sampleRate))
		if err != nil {
			return nil, err
		}
		if err := l.SetThreshold(ceilingDB); err != nil {
			return nil, err
		}
		if err := l.SetRelease(releaseMs); err != nil {
			return nil, err
		}
		return l, nil
	}, releaseMs/1000)
}

// Gate mutes the signal while its linked stereo envelope stays below the
// threshold for longer than hold.
type Gate struct {
	threshold float32
	attack    float32 // coefficient
	release   float32 // coefficient
	hold      int     // samples
	env       float32
	gain      float32
	below     int
	releaseS  float64
}

// NewGate creates a noise gate.
func NewGate(sampleRate int, thresholdDB, attackMs, holdMs, releaseMs float64) *Gate {
	sr := float64(sampleRate)
	coef := func(ms float64) float32 {
		if ms <= 0 {
			return 1
		}
		return float32(1 - math.Exp(-1/(ms*sr/1000)))
	}
	return &Gate{
		threshold: float32(dspcore.DBToLinear(thresholdDB)),
		attack:    coef(attackMs),
		release:   coef(releaseMs),
		hold:      int(holdMs * sr / 1000),
		releaseS:  releaseMs / 1000,
	}
}

func (g *Gate) Process(l, r float32) (float32, float32) {
	level := max(abs32(l), abs32(r))
	if level > g.env {
		g.env += g.attack * (level - g.env)
	} else {
		g.env += g.release * (level - g.env)
	}

	target := float32(1)
	if g.env < g.threshold {
		g.below++
		if g.below > g.hold {
			target = 0
		}
	} else {
		g.below = 0
	}
	if target > g.gain {
		g.gain += g.attack * (target - g.gain)
	} else {
		g.gain += g.release * (target - g.gain)
	}
	return l * g.gain, r * g.gain
}

func (g *Gate) Reset() {
	g.env = 0
	g.gain = 0
	g.below = 0
}

func (g *Gate) Tail() float64 { return g.releaseS }

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
