package moderation

import "sync/atomic"

// IDAllocator hands out submission ids. The first id is last+1, so a fresh
// allocator (last = 0) starts at 1.
type IDAllocator struct {
	n atomic.Int64
}

func NewIDAllocator(last int64) *IDAllocator {
	a := &IDAllocator{}
	if last > 0 {
		a.n.Store(last)
	}
	return a
}

func (a *IDAllocator) Next() int64 {
	return a.n.Add(1)
}
