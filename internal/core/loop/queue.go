package loop

import (
	"container/heap"
	"time"
)

type timer struct {
	due      time.Time
	every    time.Duration
	seq      uint64
	fn       func(now time.Time)
	canceled bool
	index    int
}

// timerQueue orders timers by due time, then by scheduling order.
type timerQueue struct {
	items []*timer
}

func (q *timerQueue) Len() int {
	return len(q.items)
}

func (q *timerQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.due.Equal(b.due) {
		return a.seq < b.seq
	}
	return a.due.Before(b.due)
}

func (q *timerQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *timerQueue) Push(x any) {
	item := x.(*timer)
	item.index = len(q.items)
	q.items = append(q.items, item)
}

func (q *timerQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	q.items = old[0 : n-1]
	return item
}

func (q *timerQueue) push(t *timer) {
	heap.Push(q, t)
}

// popDue removes and returns the earliest timer due at or before now.
func (q *timerQueue) popDue(now time.Time) (*timer, bool) {
	for q.Len() > 0 {
		head := q.items[0]
		if head.canceled {
			heap.Pop(q)
			continue
		}
		if head.due.After(now) {
			return nil, false
		}
		return heap.Pop(q).(*timer), true
	}
	return nil, false
}

func (q *timerQueue) remove(t *timer) {
	if t.index >= 0 && t.index < q.Len() && q.items[t.index] == t {
		heap.Remove(q, t.index)
	}
}
