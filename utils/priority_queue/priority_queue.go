package priority_queue

import (
	"container/heap"
	"sync"
)

// QueueItem is a wrapper around the item to be stored in the priority queue.
type QueueItem[T any] struct {
	Item     T
	Priority int
	seq      uint64
	index    int
}

// PriorityQueue is a thread-safe, stable priority queue. Items with equal
// priority are returned in insertion (FIFO) order, enforced by a monotonic
// sequence number assigned on Push.
type PriorityQueue[T any] struct {
	queue   *heapQueue[T]
	nextSeq uint64
	mutex   sync.Mutex
}

// NewMaxPriorityQueue creates a max heap (higher priority values come first).
func NewMaxPriorityQueue[T any]() *PriorityQueue[T] {
	pq := &PriorityQueue[T]{
		queue: &heapQueue[T]{
			items:  make([]*QueueItem[T], 0),
			higher: func(i, j int) bool { return i > j },
		},
	}

	heap.Init(pq.queue)
	return pq
}

// NewMinPriorityQueue creates a min heap (lower priority values come first).
func NewMinPriorityQueue[T any]() *PriorityQueue[T] {
	pq := &PriorityQueue[T]{
		queue: &heapQueue[T]{
			items:  make([]*QueueItem[T], 0),
			higher: func(i, j int) bool { return i < j },
		},
	}

	heap.Init(pq.queue)
	return pq
}

// Push adds an item to the queue and returns the new size.
func (pq *PriorityQueue[T]) Push(item *QueueItem[T]) int {
	pq.mutex.Lock()
	defer pq.mutex.Unlock()

	item.seq = pq.nextSeq
	pq.nextSeq++
	heap.Push(pq.queue, item)
	return len(pq.queue.items)
}

// Pop removes and returns the frontmost item plus the remaining size.
// The boolean is false when the queue is empty.
func (pq *PriorityQueue[T]) Pop() (T, int, bool) {
	pq.mutex.Lock()
	defer pq.mutex.Unlock()

	if len(pq.queue.items) == 0 {
		var zero T
		return zero, 0, false
	}

	item := heap.Pop(pq.queue).(*QueueItem[T])
	return item.Item, len(pq.queue.items), true
}

// Peek returns the frontmost item without removing it.
func (pq *PriorityQueue[T]) Peek() (T, bool) {
	pq.mutex.Lock()
	defer pq.mutex.Unlock()

	if len(pq.queue.items) == 0 {
		var zero T
		return zero, false
	}

	return pq.queue.items[0].Item, true
}

// Size returns the number of items in the priority queue.
func (pq *PriorityQueue[T]) Size() int {
	pq.mutex.Lock()
	defer pq.mutex.Unlock()
	return len(pq.queue.items)
}

// Drain removes and returns all items in pop order.
func (pq *PriorityQueue[T]) Drain() []T {
	pq.mutex.Lock()
	defer pq.mutex.Unlock()

	items := make([]T, 0, len(pq.queue.items))
	for len(pq.queue.items) > 0 {
		item := heap.Pop(pq.queue).(*QueueItem[T])
		items = append(items, item.Item)
	}
	return items
}

// heapQueue is the container/heap implementation backing PriorityQueue.
// Ties on priority fall back to the sequence number, so ordering among
// equal priorities is deterministic FIFO.
type heapQueue[T any] struct {
	items  []*QueueItem[T]
	higher func(i, j int) bool
}

var _ heap.Interface = &heapQueue[any]{}

func (hq heapQueue[T]) Len() int { return len(hq.items) }

func (hq heapQueue[T]) Less(i, j int) bool {
	a, b := hq.items[i], hq.items[j]
	if a.Priority == b.Priority {
		return a.seq < b.seq
	}
	return hq.higher(a.Priority, b.Priority)
}

func (hq heapQueue[T]) Swap(i, j int) {
	hq.items[i], hq.items[j] = hq.items[j], hq.items[i]
	hq.items[i].index = i
	hq.items[j].index = j
}

func (hq *heapQueue[T]) Push(item any) {
	qi := item.(*QueueItem[T])
	qi.index = len(hq.items)
	hq.items = append(hq.items, qi)
}

func (hq *heapQueue[T]) Pop() any {
	old := hq.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // let the GC reclaim the slot
	item.index = -1 // for safety
	hq.items = old[:n-1]
	return item
}
