package effects

// monoKernel is the per-channel processor shape used by the algo-dsp effects
// and biquad sections.
type monoKernel interface {
	ProcessSample(x float64) float64
	Reset()
}

// dual runs an independent mono kernel on each channel.
type dual struct {
	l, r monoKernel
	tail float64
}

func (d *dual) Process(l, r float32) (float32, float32) {
	return float32(d.l.ProcessSample(float64(l))), float32(d.r.ProcessSample(float64(r)))
}

func (d *dual) Reset() {
	d.l.Reset()
	d.r.Reset()
}

func (d *dual) Tail() float64 { return d.tail }

// newDual builds one kernel per channel with mk.
func newDual[K monoKernel](mk func() (K, error), tail float64) (*dual, error) {
	l, err := mk()
	if err != nil {
		return nil, err
	}
	r, err := mk()
	if err != nil {
		return nil, err
	}
	return &dual{l: l, r: r, tail: tail}, nil
}
