// Package queue implements the bounded result heap used by the index search
// paths.
package queue

// Item is a candidate neighbor with its ordering key.
// Value-based to keep the heap allocation-free on the hot path.
type Item struct {
	ID       uint32
	Distance float32
}

// TopK keeps the k items with the smallest Distance seen so far.
// Internally it is a max-heap on Distance, so the current worst candidate is
// at the root and can be evicted in O(log k).
type TopK struct {
	k     int
	items []Item
}

// NewTopK creates a bounded heap holding at most k items.
func NewTopK(k int) *TopK {
	return &TopK{
		k:     k,
		items: make([]Item, 0, k),
	}
}

// Push offers a candidate. Items worse than the current k-th best are dropped.
func (q *TopK) Push(it Item) {
	if len(q.items) < q.k {
		q.items = append(q.items, it)
		q.siftUp(len(q.items) - 1)
		return
	}
	if q.k == 0 || it.Distance >= q.items[0].Distance {
		return
	}
	q.items[0] = it
	q.siftDown(0)
}

// Worst returns the largest distance currently held, or false when empty.
func (q *TopK) Worst() (float32, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	return q.items[0].Distance, true
}

// Len returns the number of items currently held.
func (q *TopK) Len() int { return len(q.items) }

// Full reports whether the heap holds k items.
func (q *TopK) Full() bool { return len(q.items) == q.k }

// Sorted drains the heap and returns the items ordered from best to worst.
// The heap is empty afterwards.
func (q *TopK) Sorted() []Item {
	out := make([]Item, len(q.items))
	for i := len(q.items) - 1; i >= 0; i-- {
		out[i] = q.pop()
	}
	return out
}

// Reset clears the heap for reuse.
func (q *TopK) Reset() { q.items = q.items[:0] }

func (q *TopK) pop() Item {
	n := len(q.items)
	root := q.items[0]
	q.items[0] = q.items[n-1]
	q.items = q.items[:n-1]
	if len(q.items) > 0 {
		q.siftDown(0)
	}
	return root
}

func (q *TopK) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if q.items[i].Distance <= q.items[p].Distance {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *TopK) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		largest := l
		if r := l + 1; r < n && q.items[r].Distance > q.items[l].Distance {
			largest = r
		}
		if q.items[largest].Distance <= q.items[i].Distance {
			return
		}
		q.items[i], q.items[largest] = q.items[largest], q.items[i]
		i = largest
	}
}
