// Package memory holds reusable allocation helpers for hot write paths.
package memory

import "sync"

// Pool is a typed sync.Pool. Values are reset before they go back, so
// Get always returns a clean value.
type Pool[T any] struct {
	p     *sync.Pool
	reset func(*T)
}

// NewPool creates a pool. reset may be nil.
func NewPool[T any](ctor func() *T, reset func(*T)) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
		reset: reset,
	}
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.p.Put(v)
}

// maxPooledBuffer caps what NewBufferPool keeps, so one large frame does
// not pin its backing array forever.
const maxPooledBuffer = 64 << 10

// NewBufferPool returns a pool of byte slices with the given starting
// capacity. Put truncates them to zero length.
func NewBufferPool(capacity int) *Pool[[]byte] {
	return NewPool(
		func() *[]byte {
			b := make([]byte, 0, capacity)
			return &b
		},
		func(b *[]byte) {
			if cap(*b) > maxPooledBuffer {
				*b = make([]byte, 0, capacity)
				return
			}
			*b = (*b)[:0]
		},
	)
}
