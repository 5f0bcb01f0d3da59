// Package history keeps the most recent counter events in memory.
package history

import "sync"

// Ring holds the last N pushed elements; older ones are overwritten.
type Ring[T any] struct {
	values   []T
	position int
	full     bool
	mu       sync.Mutex
}

func New[T any](size int) *Ring[T] {
	if size < 1 {
		size = 1
	}

	return &Ring[T]{
		values: make([]T, size),
	}
}

func (r *Ring[T]) Push(element T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.values[r.position] = element
	r.position++

	if r.position >= len(r.values) {
		r.position = 0
		r.full = true
	}
}

// Len is the number of elements held, at most the ring size.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.full {
		return len(r.values)
	}
	return r.position
}

// Items returns the held elements oldest first.
func (r *Ring[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		return append([]T(nil), r.values[:r.position]...)
	}

	items := make([]T, 0, len(r.values))
	items = append(items, r.values[r.position:]...)
	items = append(items, r.values[:r.position]...)
	return items
}
