package game

import "sync"

// DefaultMaxSessionID is where the sequential allocator wraps around.
const DefaultMaxSessionID = 1000000

// Allocator hands out session ids.
type Allocator interface {
	Next() uint64
}

type sequentialAllocator struct {
	mu   sync.Mutex
	next uint64
	max  uint64
}

// NewSequentialAllocator returns ids 0, 1, ... max-1 and then starts over at 0.
func NewSequentialAllocator(max uint64) Allocator {
	if max == 0 {
		max = DefaultMaxSessionID
	}
	return &sequentialAllocator{max: max}
}

func (a *sequentialAllocator) Next() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	if a.next >= a.max {
		a.next = 0
	}
	return id
}
