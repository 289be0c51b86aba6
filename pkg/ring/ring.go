// Package ring provides a thread-safe bounded ring buffer that evicts the
// oldest entry on overflow. It backs the state event history, which keeps
// the most recent changes and silently ages out the rest.
package ring

import (
	"sync"
	"sync/atomic"
)

// Buffer is a fixed-capacity ring that drops the oldest entry when full.
type Buffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // oldest entry

	appends atomic.Int64
	drops   atomic.Int64
}

// New creates a ring buffer with the given capacity.
// Capacity below 1 is clamped to 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Append adds an item, evicting the oldest entry if the buffer is full.
// Returns true if an eviction occurred.
func (b *Buffer[T]) Append(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := false
	if b.size == b.capacity {
		var zero T
		b.items[b.tail] = zero
		b.tail = (b.tail + 1) % b.capacity
		b.size--
		b.drops.Add(1)
		evicted = true
	}

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	b.size++
	b.appends.Add(1)

	return evicted
}

// Snapshot returns the current contents ordered oldest to newest.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.tail+i)%b.capacity]
	}
	return out
}

// Last returns the most recently appended item.
func (b *Buffer[T]) Last() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var zero T
	if b.size == 0 {
		return zero, false
	}
	idx := (b.head - 1 + b.capacity) % b.capacity
	return b.items[idx], true
}

// Len returns the current number of items.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return b.capacity
}

// Clear removes all items.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.tail = 0
	b.size = 0
}

// Appends returns the total number of appended items since creation.
func (b *Buffer[T]) Appends() int64 {
	return b.appends.Load()
}

// Drops returns the total number of evicted items since creation.
func (b *Buffer[T]) Drops() int64 {
	return b.drops.Load()
}
