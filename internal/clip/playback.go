// Package clip schedules timeline clips as buffer sources on a graph.
// Clips that overlap on one track are summed.
package clip

import (
	"context"
	"math"
	"sync"

	"github.com/cbegin/mixsynth-go/internal/graph"
	"github.com/cbegin/mixsynth-go/internal/pcm"
	"github.com/cbegin/mixsynth-go/internal/project"
)

// Playback holds the sources scheduled for one pass over a track so they can
// be stopped on pause or seek.
type Playback struct {
	mu      sync.Mutex
	g       *graph.Graph
	b       *graph.Builder
	entries []entry
}

type entry struct {
	clip project.Clip
	src  *graph.BufferSource
}

// Schedule places every clip that ends after fromSec. Project time fromSec
// maps to graph time graphStartSec; a clip already under the playhead starts
// immediately, advanced into its source. Sources are loaded before any node
// is created, so a failed load leaves the graph untouched.
func Schedule(ctx context.Context, g *graph.Graph, clips []project.Clip, fromSec, graphStartSec float64, loader Loader, out graph.Node) (*Playback, error) {
	bufs := make([]*pcm.Buffer, len(clips))
	for i, c := range clips {
		if !audible(c, fromSec) {
			continue
		}
		buf, err := loader.Load(ctx, c.SourceRef)
		if err != nil {
			return nil, err
		}
		bufs[i] = buf
	}
	return place(g, clips, bufs, fromSec, graphStartSec, out)
}

// ScheduleLoaded is Schedule with sources already resolved by ref.
func ScheduleLoaded(g *graph.Graph, clips []project.Clip, sources map[string]*pcm.Buffer, fromSec, graphStartSec float64, out graph.Node) (*Playback, error) {
	bufs := make([]*pcm.Buffer, len(clips))
	for i, c := range clips {
		if audible(c, fromSec) {
			bufs[i] = sources[c.SourceRef]
		}
	}
	return place(g, clips, bufs, fromSec, graphStartSec, out)
}

func audible(c project.Clip, fromSec float64) bool {
	return c.DurationSec > 0 && c.EndSec() > fromSec
}

func place(g *graph.Graph, clips []project.Clip, bufs []*pcm.Buffer, fromSec, graphStartSec float64, out graph.Node) (*Playback, error) {
	p := &Playback{g: g, b: g.Builder()}
	for i, c := range clips {
		buf := bufs[i]
		if buf == nil {
			continue
		}
		at := graphStartSec + (c.StartSec - fromSec)
		offset := c.SourceOffsetSec
		dur := c.DurationSec
		if c.StartSec < fromSec {
			into := fromSec - c.StartSec
			at = graphStartSec
			offset += into
			dur -= into
		}
		src := p.b.BufferSource(buf)
		src.Play(at, offset, dur)
		p.b.Connect(src, out)
		p.entries = append(p.entries, entry{clip: c, src: src})
	}
	if err := p.b.Err(); err != nil {
		p.b.Release()
		return nil, err
	}
	return p, nil
}

// Len is the number of scheduled sources.
func (p *Playback) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Sources returns the scheduled buffer sources in clip order.
func (p *Playback) Sources() []*graph.BufferSource {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*graph.BufferSource, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.src
	}
	return out
}

// EndSec is the graph time the last source finishes.
func (p *Playback) EndSec() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	end := 0.0
	for _, e := range p.entries {
		end = math.Max(end, e.src.StopTime())
	}
	return end
}

// Stop silences every source from graph time atSec.
func (p *Playback) Stop(atSec float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		e.src.Stop(atSec)
	}
}

// Release frees the sources' nodes. Safe to call more than once.
func (p *Playback) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.b.Release()
	p.entries = nil
}
