package regionfx

import (
	"math"
	"sort"

	"github.com/cbegin/mixsynth-go/internal/effects"
	"github.com/cbegin/mixsynth-go/internal/lfo"
	"github.com/cbegin/mixsynth-go/internal/pcm"
)

// streamFn builds a per-sample kernel for one invocation.
type streamFn func(r *reader, sr int) (effects.Effector, error)

// bufferFn transforms a whole region at once.
type bufferFn func(r *reader, region *pcm.Buffer) *pcm.Buffer

var streaming = map[string]streamFn{
	"reverb": func(r *reader, sr int) (effects.Effector, error) {
		return effects.NewPlate(
			r.num("roomSize", 0.8, 0, 0.98),
			r.num("damp", 0.5, 0, 1),
			r.num("wet", 0.33, 0, 1),
			r.num("dry", 1, 0, 1),
		)
	},
	"room": func(r *reader, sr int) (effects.Effector, error) {
		return effects.NewRoom(sr,
			float32(r.num("size", 0.7, 0.05, 1)),
			float32(r.num("decay", 0.5, 0, 0.95)),
			float32(r.num("wet", 0.3, 0, 1)),
		), nil
	},
	"hall": func(r *reader, sr int) (effects.Effector, error) {
		d := effects.DefaultHallParams()
		return effects.NewHall(sr, effects.HallParams{
			RT60:     r.num("rt60", d.RT60, 0.05, 30),
			Damp:     r.num("damp", d.Damp, 0, 1),
			PreDelay: r.num("preDelay", d.PreDelay, 0, 0.5),
			Wet:      r.num("wet", d.Wet, 0, 1),
			Dry:      r.num("dry", d.Dry, 0, 1),
		})
	},
	"delay": func(r *reader, sr int) (effects.Effector, error) {
		d, err := effects.NewDelay(sr,
			r.num("time", 0.25, 0.001, 4),
			float32(r.num("feedback", 0.35, 0, 0.95)),
			float32(r.num("cross", 0, 0, 1)),
			float32(r.num("wet", 0.35, 0, 1)),
		)
		if err != nil {
			return nil, err
		}
		return d, nil
	},
	"echo": func(r *reader, sr int) (effects.Effector, error) {
		d, err := effects.NewDelay(sr,
			r.num("time", 0.375, 0.001, 4),
			float32(r.num("feedback", 0.5, 0, 0.95)),
			float32(r.num("cross", 1, 0, 1)),
			float32(r.num("wet", 0.4, 0, 1)),
		)
		if err != nil {
			return nil, err
		}
		return d, nil
	},
	"chorus": func(r *reader, sr int) (effects.Effector, error) {
		return effects.NewChorus(sr,
			r.num("rate", 1.5, 0.01, 20),
			r.num("depth", 0.003, 0, 0.02),
			r.num("mix", 0.5, 0, 1),
		)
	},
	"flanger": func(r *reader, sr int) (effects.Effector, error) {
		return effects.NewFlanger(sr,
			r.num("delay", 0.003, 0.0005, 0.02),
			r.num("depth", 0.002, 0, 0.01),
			r.num("rate", 0.25, 0.01, 20),
			float32(r.num("feedback", 0.5, 0, 0.9)),
			float32(r.num("wet", 0.5, 0, 1)),
		), nil
	},
	"phaser": func(r *reader, sr int) (effects.Effector, error) {
		return effects.NewPhaser(sr,
			r.int("stages", 4, 1, 12),
			r.num("center", 1000, 20, 0.4*float64(sr)),
			r.num("octaves", 2, 0, 6),
			r.num("rate", 0.5, 0.01, 20),
			r.num("feedback", 0.3, 0, 0.95),
			r.num("mix", 0.5, 0, 1),
		), nil
	},
	"distortion": func(r *reader, sr int) (effects.Effector, error) {
		return effects.NewDistortion(sr, effects.SoftClip,
			float32(r.num("drive", 8, 1, 100)),
			float32(r.num("output", 0.5, 0, 2)),
			r.num("tone", 6000, 0, 0.49*float64(sr)),
		), nil
	},
	"overdrive": func(r *reader, sr int) (effects.Effector, error) {
		return effects.NewDistortion(sr, effects.Asymmetric,
			float32(r.num("drive", 3, 1, 100)),
			float32(r.num("output", 0.7, 0, 2)),
			r.num("tone", 3500, 0, 0.49*float64(sr)),
		), nil
	},
	"compressor": func(r *reader, sr int) (effects.Effector, error) {
		p := effects.DefaultCompressorParams()
		p.ThresholdDB = r.num("threshold", p.ThresholdDB, -80, 0)
		p.Ratio = r.num("ratio", p.Ratio, 1, 100)
		p.KneeDB = r.num("knee", p.KneeDB, 0, 24)
		p.AttackMs = r.num("attack", p.AttackMs, 0.1, 1000)
		p.ReleaseMs = r.num("release", p.ReleaseMs, 1, 5000)
		if r.has("makeup") {
			p.MakeupDB = r.num("makeup", 0, -24, 24)
			p.AutoMakeup = false
		}
		return effects.NewCompressor(sr, p)
	},
	"limiter": func(r *reader, sr int) (effects.Effector, error) {
		return effects.NewLimiter(sr,
			r.num("ceiling", -1, -60, 0),
			r.num("release", 50, 1, 5000),
		)
	},
	"gate": func(r *reader, sr int) (effects.Effector, error) {
		return effects.NewGate(sr,
			r.num("threshold", -40, -100, 0),
			r.num("attack", 1, 0.01, 500),
			r.num("hold", 20, 0, 2000),
			r.num("release", 80, 1, 5000),
		), nil
	},
	"eq": func(r *reader, sr int) (effects.Effector, error) {
		low, mid, high := r.num("low", 0, -24, 24), r.num("mid", 0, -24, 24), r.num("high", 0, -24, 24)
		if g := r.list("gains", 3); g != nil {
			for i, v := range g {
				if v < -24 || v > 24 {
					r.fail("gains", "band %d gain %v outside [-24, 24]", i, v)
				}
			}
			low, mid, high = g[0], g[1], g[2]
		}
		nyq := 0.49 * float64(sr)
		return effects.NewEQ3Band(sr, low, mid, high,
			r.num("lowFreq", 250, 20, nyq),
			r.num("midFreq", 1000, 20, nyq),
			r.num("highFreq", 4000, 20, nyq),
		), nil
	},
	"lowpass":  filterKind(effects.Lowpass, 1000),
	"highpass": filterKind(effects.Highpass, 200),
	"bandpass": filterKind(effects.Bandpass, 1000),
	"tremolo": func(r *reader, sr int) (effects.Effector, error) {
		return effects.NewTremolo(sr,
			r.num("rate", 5, 0.01, 40),
			r.num("depth", 0.5, 0, 1),
			lfo.Waveform(r.int("shape", int(lfo.Sine), int(lfo.Sine), int(lfo.Random))),
		), nil
	},
	"autopan": func(r *reader, sr int) (effects.Effector, error) {
		return effects.NewAutoPan(sr,
			r.num("rate", 0.5, 0.01, 40),
			r.num("width", 1, 0, 1),
		), nil
	},
	"bitcrusher": func(r *reader, sr int) (effects.Effector, error) {
		return effects.NewBitcrusher(
			r.int("bits", 8, 1, 24),
			r.int("downsample", 1, 1, 64),
		), nil
	},
}

func filterKind(kind effects.FilterKind, defFreq float64) streamFn {
	return func(r *reader, sr int) (effects.Effector, error) {
		return effects.NewFilter(sr, kind,
			r.num("frequency", defFreq, 10, 0.49*float64(sr)),
			r.num("q", math.Sqrt2/2, 0.05, 40),
			0,
		), nil
	}
}

var bufferOps = map[string]bufferFn{
	"gain": func(r *reader, region *pcm.Buffer) *pcm.Buffer {
		g := math.Pow(10, r.num("db", 0, -96, 24)/20)
		return scale(region, func(int) float64 { return g })
	},
	"normalize": func(r *reader, region *pcm.Buffer) *pcm.Buffer {
		target := math.Pow(10, r.num("peak", -1, -60, 0)/20)
		peak := float64(region.Peak())
		if peak == 0 {
			return region.Clone()
		}
		g := target / peak
		return scale(region, func(int) float64 { return g })
	},
	"fadein": func(r *reader, region *pcm.Buffer) *pcm.Buffer {
		curve := r.num("curve", 1, 0.1, 10)
		n := region.Frames()
		return scale(region, func(i int) float64 { return math.Pow(float64(i)/float64(max(n, 1)), curve) })
	},
	"fadeout": func(r *reader, region *pcm.Buffer) *pcm.Buffer {
		curve := r.num("curve", 1, 0.1, 10)
		n := region.Frames()
		return scale(region, func(i int) float64 { return math.Pow(float64(n-1-i)/float64(max(n, 1)), curve) })
	},
	"reverse": func(r *reader, region *pcm.Buffer) *pcm.Buffer {
		out := region.Clone()
		for _, ch := range out.Data {
			for i, j := 0, len(ch)-1; i < j; i, j = i+1, j-1 {
				ch[i], ch[j] = ch[j], ch[i]
			}
		}
		return out
	},
}

func scale(b *pcm.Buffer, gain func(frame int) float64) *pcm.Buffer {
	out := b.Clone()
	for _, ch := range out.Data {
		for i := range ch {
			ch[i] = float32(float64(ch[i]) * gain(i))
		}
	}
	return out
}

// stubs are recognised kinds that pass audio through unchanged.
var stubs = map[string]bool{
	"pitchshift":  true,
	"timestretch": true,
	"vocoder":     true,
	"denoise":     true,
}

// Kinds lists the kinds that transform audio.
func Kinds() []string {
	out := make([]string, 0, len(streaming)+len(bufferOps))
	for k := range streaming {
		out = append(out, k)
	}
	for k := range bufferOps {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Stubs lists recognised kinds that are not implemented.
func Stubs() []string {
	out := make([]string, 0, len(stubs))
	for k := range stubs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Known reports whether kind is recognised, implemented or not.
func Known(kind string) bool {
	_, s := streaming[kind]
	_, b := bufferOps[kind]
	return s || b || stubs[kind]
}
