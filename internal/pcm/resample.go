package pcm

import (
	"fmt"
	"math"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
)

// Resample converts b to sampleRate with a polyphase FIR. The output has
// ceil(frames*out/in) frames and the filter's group delay is compensated.
func Resample(b *Buffer, sampleRate int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("resample: target rate must be positive, got %d", sampleRate)
	}
	if b.SampleRate == sampleRate {
		return b.Clone(), nil
	}
	inFrames := b.Frames()
	outFrames := int(math.Ceil(float64(inFrames) * float64(sampleRate) / float64(b.SampleRate)))
	out := &Buffer{SampleRate: sampleRate, Data: make([][]float32, len(b.Data))}
	for c, ch := range b.Data {
		r, err := dspresample.NewForRates(float64(b.SampleRate), float64(sampleRate),
			dspresample.WithQuality(dspresample.QualityBest))
		if err != nil {
			return nil, fmt.Errorf("resample %d -> %d Hz: %w", b.SampleRate, sampleRate, err)
		}
		_, down := r.Ratio()
		skip := int(math.Round(float64(len(r.Prototype())-1) / float64(2*down)))
		pad := int(math.Ceil(float64(skip)*float64(b.SampleRate)/float64(sampleRate))) + 1

		in := make([]float64, inFrames+pad)
		for i, s := range ch {
			in[i] = float64(s)
		}
		y := r.Process(in)

		dst := make([]float32, outFrames)
		for i := range dst {
			j := i + skip
			if j < len(y) {
				dst[i] = float32(y[j])
			}
		}
		out.Data[c] = dst
	}
	return out, nil
}
