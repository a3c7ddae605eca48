package timer

import "container/heap"

// dueQueue is a min-heap of entries ordered by their due instant.
type dueQueue struct {
	entries []*entry
}

func newDueQueue() *dueQueue {
	q := &dueQueue{entries: []*entry{}}
	heap.Init(q)
	return q
}

func (q dueQueue) Len() int {
	return len(q.entries)
}

func (q dueQueue) Less(i, j int) bool {
	return q.entries[i].at.Before(q.entries[j].at)
}

func (q dueQueue) Swap(i, j int) {
	q.entries[j], q.entries[i] = q.entries[i], q.entries[j]
}

func (q *dueQueue) Push(e any) {
	ent, ok := e.(*entry)
	if !ok {
		return
	}
	q.entries = append(q.entries, ent)
}

func (q *dueQueue) Pop() any {
	n := len(q.entries)
	if n == 0 {
		return nil
	}

	popped := q.entries[n-1]
	q.entries = q.entries[:n-1]
	return popped
}

func (q *dueQueue) Peek() (*entry, bool) {
	if len(q.entries) == 0 {
		return nil, false
	}
	return q.entries[0], true
}
