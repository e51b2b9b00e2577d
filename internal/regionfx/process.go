// Package regionfx applies a named effect to a time region of a buffer. Each
// call renders the region through its own offline graph and merges the
// result, including any ring-out past the region, back into a copy of the
// input.
package regionfx

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cbegin/mixsynth-go/internal/effects"
	apperrors "github.com/cbegin/mixsynth-go/internal/errors"
	"github.com/cbegin/mixsynth-go/internal/graph"
	"github.com/cbegin/mixsynth-go/internal/pcm"
)

// Request names the effect and the region to apply it to. A RegionEndSec of
// zero or less means the end of the buffer.
type Request struct {
	Kind           string  `json:"kind"`
	Params         Params  `json:"params,omitempty"`
	RegionStartSec float64 `json:"regionStartSec"`
	RegionEndSec   float64 `json:"regionEndSec"`
}

// Result carries the processed buffer. Applied is false when a recognised
// kind is not implemented; Buffer is then an exact copy of the input and
// Status wraps ErrNotImplementedEffect.
type Result struct {
	Buffer  *pcm.Buffer
	Applied bool
	Status  error
}

// silenceFloor trims ring-out below about -100 dBFS past the original end.
const silenceFloor = 1e-5

// renderBlock is how many frames are rendered between cancellation checks.
const renderBlock = 1 << 14

// Process runs req over buf. The input is never modified. Failures leave no
// partial result: either a complete buffer or an error.
func Process(ctx context.Context, buf *pcm.Buffer, req Request) (Result, error) {
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	if !Known(kind) {
		return Result{}, apperrors.NewOpError("process_region", req.Kind, apperrors.ErrUnknownEffectKind)
	}
	if err := buf.Validate(); err != nil {
		return Result{}, apperrors.NewOpError("process_region", kind, fmt.Errorf("%w: %v", apperrors.ErrNoAudioLoaded, err))
	}
	if buf.Channels() > 2 {
		return Result{}, apperrors.NewOpError("process_region", kind,
			fmt.Errorf("%d channels: %w", buf.Channels(), apperrors.ErrInvalidRequest))
	}
	start, end, err := regionFrames(buf, req.RegionStartSec, req.RegionEndSec)
	if err != nil {
		return Result{}, apperrors.NewOpError("process_region", kind, err)
	}
	if stubs[kind] {
		return Result{
			Buffer: buf.Clone(),
			Status: apperrors.NewOpError("process_region", kind, apperrors.ErrNotImplementedEffect),
		}, nil
	}

	r := newReader(kind, req.Params)
	region := buf.Slice(start, end)
	var rendered *pcm.Buffer
	if op, ok := bufferOps[kind]; ok {
		rendered = op(r, region)
		r.unknown()
		if r.err != nil {
			return Result{}, r.err
		}
	} else {
		fx, err := streaming[kind](r, buf.SampleRate)
		r.unknown()
		if r.err != nil {
			return Result{}, r.err
		}
		if err != nil {
			return Result{}, apperrors.NewOpError("process_region", kind,
				fmt.Errorf("%w: %v", apperrors.ErrInvalidParameter, err))
		}
		rendered, err = renderOffline(ctx, region, fx, buf.Frames()-start)
		if err != nil {
			return Result{}, apperrors.NewOpError("process_region", kind, err)
		}
	}
	out := Merge(buf, rendered, start, end)
	return Result{Buffer: trimTail(out, buf.Frames()), Applied: true}, nil
}

// regionFrames converts the region to frame indices clamped to the buffer.
func regionFrames(buf *pcm.Buffer, startSec, endSec float64) (int, int, error) {
	if math.IsNaN(startSec) || math.IsNaN(endSec) || startSec < 0 {
		return 0, 0, fmt.Errorf("region [%v, %v]: %w", startSec, endSec, apperrors.ErrInvalidParameter)
	}
	n := buf.Frames()
	start := min(pcm.SecondsToFrames(startSec, buf.SampleRate), n)
	end := n
	if endSec > 0 {
		if endSec <= startSec {
			return 0, 0, fmt.Errorf("region [%v, %v] is empty: %w", startSec, endSec, apperrors.ErrInvalidParameter)
		}
		end = min(pcm.SecondsToFrames(endSec, buf.SampleRate), n)
	}
	if end <= start {
		return 0, 0, fmt.Errorf("region [%v, %v] lies outside the buffer: %w", startSec, endSec, apperrors.ErrInvalidParameter)
	}
	return start, end, nil
}

// renderOffline plays region through fx on a private graph for the rest of
// the source plus the effect's tail.
func renderOffline(ctx context.Context, region *pcm.Buffer, fx effects.Effector, remaining int) (*pcm.Buffer, error) {
	sr := region.SampleRate
	frames := max(remaining, region.Frames()) + int(math.Ceil(effects.TailOf(fx)*float64(sr)))

	g := graph.New(sr)
	b := g.Builder()
	src := b.BufferSource(region)
	src.Play(0, 0, 0)
	b.Chain(src, b.Insert(fx), g.Destination())
	if err := b.Err(); err != nil {
		return nil, err
	}

	out := pcm.New(sr, region.Channels(), frames)
	for done := 0; done < frames; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := min(renderBlock, frames-done)
		block := g.Render(n)
		if len(out.Data) == 1 {
			// fold back to mono; identical channels stay bit-exact
			l, r := block.Data[0], block.Data[1]
			for i := 0; i < n; i++ {
				out.Data[0][done+i] = (l[i] + r[i]) / 2
			}
		} else {
			copy(out.Data[0][done:], block.Data[0])
			copy(out.Data[1][done:], block.Data[1])
		}
		done += n
	}
	return out, nil
}

// Merge rebuilds a buffer from original and a render that began at frame
// start: frames before start are copied; frames in [start, end) come from the
// render; past end the render's remaining frames are summed onto the
// original; the output is max(len(original), start+len(rendered)) long.
func Merge(original, rendered *pcm.Buffer, start, end int) *pcm.Buffer {
	n := original.Frames()
	start = max(0, min(start, n))
	end = max(start, min(end, n))
	total := max(n, start+rendered.Frames())
	out := pcm.New(original.SampleRate, original.Channels(), total)
	for c := range out.Data {
		src := original.Data[c]
		ren := rendered.Channel(c)
		dst := out.Data[c]
		copy(dst, src)
		for i, v := range ren {
			f := start + i
			if f < end {
				dst[f] = v
			} else {
				dst[f] += v
			}
		}
	}
	return out
}

// trimTail drops trailing frames beyond minFrames that are below the
// silence floor on every channel.
func trimTail(b *pcm.Buffer, minFrames int) *pcm.Buffer {
	n := b.Frames()
	last := n
	for last > minFrames {
		quiet := true
		for _, ch := range b.Data {
			if math.Abs(float64(ch[last-1])) >= silenceFloor {
				quiet = false
				break
			}
		}
		if !quiet {
			break
		}
		last--
	}
	if last == n {
		return b
	}
	for c := range b.Data {
		b.Data[c] = b.Data[c][:last]
	}
	return b
}
