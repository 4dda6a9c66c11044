// Package queue implements the bounded priority queue used for top-k search.
package queue

// Item represents an item in the priority queue.
// Value-based (no pointers) for cache locality.
type Item struct {
	ID    uint32  // vector id
	Score float32 // priority of the item in the queue
}

// Min is a binary min-heap over Item.Score.
//
// Keeping the worst candidate on top makes it the eviction point for a
// fixed-size top-k scan: push until full, then replace the top whenever a
// better score arrives.
type Min struct {
	items []Item
}

// NewMin creates a min-heap with capacity hint n.
func NewMin(n int) *Min {
	return &Min{items: make([]Item, 0, n)}
}

// Len returns the number of items in the heap.
func (q *Min) Len() int { return len(q.items) }

// Top returns the smallest-score item without removing it.
func (q *Min) Top() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Push inserts an item while maintaining the heap invariant.
func (q *Min) Push(item Item) {
	q.items = append(q.items, item)
	q.siftUp(len(q.items) - 1)
}

// Pop removes and returns the smallest-score item.
func (q *Min) Pop() (Item, bool) {
	n := len(q.items)
	if n == 0 {
		return Item{}, false
	}
	root := q.items[0]
	last := q.items[n-1]
	q.items[n-1] = Item{}
	q.items = q.items[:n-1]
	if n-1 > 0 {
		q.items[0] = last
		q.siftDown(0)
	}
	return root, true
}

func (q *Min) less(i, j int) bool {
	return q.items[i].Score < q.items[j].Score
}

func (q *Min) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.less(i, p) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *Min) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.less(r, l) {
			best = r
		}
		if !q.less(best, i) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}
