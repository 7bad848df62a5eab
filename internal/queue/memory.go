package queue

import (
	"errors"
	"sync"
)

// ErrQueueEmpty is returned by Pop on an empty queue.
var ErrQueueEmpty = errors.New("queue is empty")

// MemoryQueue is a thread-safe in-memory FIFO queue. Items pop in the order
// they were pushed, which makes crawl coverage reproducible under an
// iteration cap.
type MemoryQueue struct {
	mu     sync.RWMutex
	items  []*Item
	head   int
	urlSet map[string]struct{}
}

// NewMemoryQueue creates an empty, unbounded queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		urlSet: make(map[string]struct{}),
	}
}

// Push appends an item. Pushing a URL that is already queued is a no-op.
func (mq *MemoryQueue) Push(item *Item) {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if _, exists := mq.urlSet[item.URL]; exists {
		return
	}

	mq.urlSet[item.URL] = struct{}{}
	mq.items = append(mq.items, item)
}

// Pop removes and returns the oldest item.
func (mq *MemoryQueue) Pop() (*Item, error) {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if mq.lenLocked() == 0 {
		return nil, ErrQueueEmpty
	}

	item := mq.items[mq.head]
	mq.items[mq.head] = nil
	mq.head++
	delete(mq.urlSet, item.URL)

	// Reclaim the consumed prefix once it dominates the backing array.
	if mq.head > 64 && mq.head*2 >= len(mq.items) {
		mq.items = append([]*Item(nil), mq.items[mq.head:]...)
		mq.head = 0
	}

	return item, nil
}

// Len returns the number of items in the queue.
func (mq *MemoryQueue) Len() int {
	mq.mu.RLock()
	defer mq.mu.RUnlock()
	return mq.lenLocked()
}

func (mq *MemoryQueue) lenLocked() int {
	return len(mq.items) - mq.head
}
