package usecase

import (
	"sync"

	"github.com/msrptw/backend/internal/domain"
)

// DeferredQueue collects new, unclassified products pushed by concurrent fetch
// workers. It is drained once by a single consumer after all workers finished;
// pushes after the drain are rejected.
type DeferredQueue struct {
	mu      sync.Mutex
	items   []domain.PendingItem
	drained bool
}

// NewDeferredQueue creates an empty queue
func NewDeferredQueue() *DeferredQueue {
	return &DeferredQueue{}
}

// Push appends an item in arrival order. It returns false once the queue was drained.
func (q *DeferredQueue) Push(item domain.PendingItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.drained {
		return false
	}
	q.items = append(q.items, item)
	return true
}

// Len returns the number of pending items
func (q *DeferredQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain closes the queue and returns its items in the order they were pushed.
// Only the first call returns items.
func (q *DeferredQueue) Drain() []domain.PendingItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.drained {
		return nil
	}
	q.drained = true
	items := q.items
	q.items = nil
	return items
}
