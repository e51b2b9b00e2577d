// Package graph is a small audio node graph. Nodes live in an arena owned by
// a Graph and are addressed by NodeID; time is the graph's own frame cursor,
// so offline renders are deterministic and need no audio device.
package graph

import (
	"errors"
	"fmt"
	"math"

	"github.com/cbegin/mixsynth-go/internal/pcm"
)

type NodeID int

// Node is anything that lives in a Graph.
type Node interface {
	ID() NodeID
}

type stereo [2]float64

type processor interface {
	process(frame int64, t float64, in stereo) stereo
}

// scheduled is implemented by source nodes.
type scheduled interface {
	window() (start, stop float64)
	finished(t float64) bool
}

type slot struct {
	alive   bool
	proc    processor
	inputs  []NodeID
	outputs []NodeID
	stamp   int64
	cache   stereo
}

// Graph owns every node created on it. It is not safe for concurrent use;
// live playback serialises access, offline renders build their own Graph.
type Graph struct {
	sampleRate float64
	rate       int
	nodes      []slot
	free       []NodeID
	frame      int64
	dest       *Destination
}

var errDeadNode = errors.New("node released")

func New(sampleRate int) *Graph {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	g := &Graph{sampleRate: float64(sampleRate), rate: sampleRate}
	d := &Destination{}
	d.id = g.add(d)
	g.dest = d
	return g
}

func (g *Graph) SampleRate() int { return g.rate }

// Now is the time of the next frame to be rendered, in seconds.
func (g *Graph) Now() float64 { return float64(g.frame) / g.sampleRate }

func (g *Graph) Frame() int64 { return g.frame }

// Destination is the graph output.
func (g *Graph) Destination() Node { return g.dest }

// Builder returns a builder that records the nodes it creates.
func (g *Graph) Builder() *Builder { return &Builder{g: g} }

// Len returns the number of live nodes, including the destination.
func (g *Graph) Len() int {
	n := 0
	for i := range g.nodes {
		if g.nodes[i].alive {
			n++
		}
	}
	return n
}

// Connect routes from's output into to's input sum.
func (g *Graph) Connect(from, to Node) error {
	f, t := from.ID(), to.ID()
	if !g.alive(f) || !g.alive(t) {
		return fmt.Errorf("connect %d -> %d: %w", f, t, errDeadNode)
	}
	if f == t || g.upstream(f, t) {
		return fmt.Errorf("connect %d -> %d: would create a cycle", f, t)
	}
	for _, in := range g.nodes[t].inputs {
		if in == f {
			return nil
		}
	}
	g.nodes[t].inputs = append(g.nodes[t].inputs, f)
	g.nodes[f].outputs = append(g.nodes[f].outputs, t)
	return nil
}

// Disconnect removes every outgoing connection of n.
func (g *Graph) Disconnect(n Node) {
	id := n.ID()
	if !g.alive(id) {
		return
	}
	for _, out := range g.nodes[id].outputs {
		g.nodes[out].inputs = removeID(g.nodes[out].inputs, id)
	}
	g.nodes[id].outputs = g.nodes[id].outputs[:0]
}

// Release disconnects and frees nodes. Releasing the destination or an
// already released node is a no-op.
func (g *Graph) Release(ids ...NodeID) {
	for _, id := range ids {
		if id == g.dest.id || !g.alive(id) {
			continue
		}
		s := &g.nodes[id]
		for _, out := range s.outputs {
			g.nodes[out].inputs = removeID(g.nodes[out].inputs, id)
		}
		for _, in := range s.inputs {
			g.nodes[in].outputs = removeID(g.nodes[in].outputs, id)
		}
		*s = slot{}
		g.free = append(g.free, id)
	}
}

// ActiveSources counts sources that have not finished at t, including
// sources whose start lies in the future.
func (g *Graph) ActiveSources(t float64) int {
	n := 0
	for i := range g.nodes {
		if !g.nodes[i].alive {
			continue
		}
		if src, ok := g.nodes[i].proc.(scheduled); ok && !src.finished(t) {
			n++
		}
	}
	return n
}

// LastStop returns the latest stop time among live sources; +Inf if any
// source has no stop scheduled.
func (g *Graph) LastStop() float64 {
	last := 0.0
	for i := range g.nodes {
		if !g.nodes[i].alive {
			continue
		}
		if src, ok := g.nodes[i].proc.(scheduled); ok {
			_, stop := src.window()
			last = math.Max(last, stop)
		}
	}
	return last
}

// Next renders one stereo frame and advances the clock.
func (g *Graph) Next() (float64, float64) {
	out := g.pull(g.dest.id)
	g.frame++
	return out[0], out[1]
}

// Process fills dst with interleaved stereo float32 frames.
func (g *Graph) Process(dst []float32) {
	for i := 0; i+1 < len(dst); i += 2 {
		l, r := g.Next()
		dst[i] = float32(l)
		dst[i+1] = float32(r)
	}
}

// Render renders frames into a new stereo buffer.
func (g *Graph) Render(frames int) *pcm.Buffer {
	buf := pcm.New(g.rate, 2, frames)
	for i := 0; i < frames; i++ {
		l, r := g.Next()
		buf.Data[0][i] = float32(l)
		buf.Data[1][i] = float32(r)
	}
	return buf
}

// RenderUntilIdle renders until every source has finished plus tailSec, or
// maxFrames, whichever comes first. A source that is never stopped keeps the
// render running to maxFrames.
func (g *Graph) RenderUntilIdle(maxFrames int, tailSec float64) *pcm.Buffer {
	end := g.LastStop()
	frames := maxFrames
	if !math.IsInf(end, 1) {
		want := int(math.Ceil((end+tailSec)*g.sampleRate)) - int(g.frame)
		if want < frames {
			frames = max(want, 0)
		}
	}
	return g.Render(frames)
}

func (g *Graph) pull(id NodeID) stereo {
	s := &g.nodes[id]
	if s.stamp == g.frame+1 {
		return s.cache
	}
	var in stereo
	for _, src := range s.inputs {
		v := g.pull(src)
		in[0] += v[0]
		in[1] += v[1]
	}
	s = &g.nodes[id]
	out := s.proc.process(g.frame, float64(g.frame)/g.sampleRate, in)
	s.cache = out
	s.stamp = g.frame + 1
	return out
}

func (g *Graph) add(p processor) NodeID {
	if n := len(g.free); n > 0 {
		id := g.free[n-1]
		g.free = g.free[:n-1]
		g.nodes[id] = slot{alive: true, proc: p}
		return id
	}
	g.nodes = append(g.nodes, slot{alive: true, proc: p})
	return NodeID(len(g.nodes) - 1)
}

func (g *Graph) alive(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes) && g.nodes[id].alive
}

// upstream reports whether target feeds id, directly or indirectly.
func (g *Graph) upstream(id, target NodeID) bool {
	seen := map[NodeID]bool{}
	stack := []NodeID{id}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == target {
			return true
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.nodes[n].inputs...)
	}
	return false
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Destination sums its inputs.
type Destination struct{ id NodeID }

func (d *Destination) ID() NodeID { return d.id }

func (d *Destination) process(_ int64, _ float64, in stereo) stereo { return in }
