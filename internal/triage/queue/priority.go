// Package queue holds processed items in urgency order for later retrieval.
package queue

import (
	"container/heap"
	"sync"
	"time"

	"triage-backend/internal/triage/domain"
)

// entry pairs an item with its ordering key, fixed at push time
type entry struct {
	urgency  int
	pushedAt time.Time
	id       string
	item     *domain.ProcessedItem
}

// less orders by urgency descending, push time ascending, then message id
func (a *entry) less(b *entry) bool {
	if a.urgency != b.urgency {
		return a.urgency > b.urgency
	}
	if !a.pushedAt.Equal(b.pushedAt) {
		return a.pushedAt.Before(b.pushedAt)
	}
	return a.id < b.id
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].less(h[j]) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(*entry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// PriorityQueue always yields the most urgent unseen item first.
// Items with equal urgency come out in push order. Safe for concurrent use.
type PriorityQueue struct {
	mu    sync.Mutex
	heap  entryHeap
	now   func() time.Time
	last  time.Time
	stats Stats
}

// Stats counts queue traffic since creation
type Stats struct {
	Pushed int `json:"pushed"`
	Popped int `json:"popped"`
	Depth  int `json:"depth"`
}

// Option customizes a PriorityQueue
type Option func(*PriorityQueue)

// WithClock replaces the clock used to stamp pushes
func WithClock(now func() time.Time) Option {
	return func(q *PriorityQueue) {
		if now != nil {
			q.now = now
		}
	}
}

// NewPriorityQueue creates an empty queue
func NewPriorityQueue(opts ...Option) *PriorityQueue {
	q := &PriorityQueue{now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push adds item. The same message id may be pushed more than once; each push is a separate entry.
func (q *PriorityQueue) Push(item *domain.ProcessedItem) {
	if item == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	// stamps are taken under the lock and kept strictly increasing so that
	// push order among equal urgencies survives coarse or skewed clocks
	ts := q.now()
	if !q.last.IsZero() && !ts.After(q.last) {
		ts = q.last.Add(time.Nanosecond)
	}
	q.last = ts

	heap.Push(&q.heap, &entry{
		urgency:  item.Urgency(),
		pushedAt: ts,
		id:       item.ID(),
		item:     item,
	})
	q.stats.Pushed++
}

// Pop removes and returns the next item. ok is false when the queue is empty,
// which is a normal condition rather than an error.
func (q *PriorityQueue) Pop() (item *domain.ProcessedItem, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == 0 {
		return nil, false
	}
	e := heap.Pop(&q.heap).(*entry)
	q.stats.Popped++
	return e.item, true
}

// Len returns the number of items waiting
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Stats returns a snapshot of queue counters
func (q *PriorityQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Depth = len(q.heap)
	return s
}
