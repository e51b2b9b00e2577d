// Package scheduler is a time-ordered action queue. Events run when a host
// advances time past them with RunDue; nothing fires on its own.
package scheduler

import (
	"container/heap"
	"sync"
)

// Action runs with the time the event was scheduled for.
type Action func(atSec float64)

// Event is one queued action.
type Event struct {
	AtSec  float64
	Seq    uint64
	Action Action
}

type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].AtSec != h[j].AtSec {
		return h[i].AtSec < h[j].AtSec
	}
	return h[i].Seq < h[j].Seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(Event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = Event{}
	*h = old[:n-1]
	return e
}

// Queue is a min-heap of events, FIFO among equal times. It is safe for
// concurrent use; actions run outside the lock and may schedule more events.
type Queue struct {
	mu   sync.Mutex
	h    eventHeap
	next uint64
}

func New() *Queue { return &Queue{} }

// Schedule queues action at atSec and returns its sequence number.
func (q *Queue) Schedule(atSec float64, action Action) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	heap.Push(&q.h, Event{AtSec: atSec, Seq: q.next, Action: action})
	return q.next
}

// RunDue runs every event at or before nowSec in time order and returns how
// many ran. Events cleared by an action do not run.
func (q *Queue) RunDue(nowSec float64) int {
	ran := 0
	for {
		q.mu.Lock()
		if len(q.h) == 0 || q.h[0].AtSec > nowSec {
			q.mu.Unlock()
			return ran
		}
		e := heap.Pop(&q.h).(Event)
		q.mu.Unlock()
		if e.Action != nil {
			e.Action(e.AtSec)
		}
		ran++
	}
}

// Clear drops every pending event.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.h)
	q.h = q.h[:0]
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

// Peek returns the earliest pending event.
func (q *Queue) Peek() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return Event{}, false
	}
	return q.h[0], true
}
