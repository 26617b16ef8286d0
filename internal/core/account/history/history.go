// Package history provides a fixed-capacity buffer that keeps the most
// recent entries pushed into it.
package history

import "iter"

// Buffer is a ring of at most Cap entries. When full, Push overwrites the
// oldest entry. Buffer is not safe for concurrent use; callers serialize
// access.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest entry.
	size  int
}

// New returns an empty buffer holding at most capacity entries.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		panic("history: capacity must be positive")
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest entry first if the buffer is full.
func (b *Buffer[T]) Push(v T) {
	if b.size < len(b.items) {
		b.items[(b.head+b.size)%len(b.items)] = v
		b.size++
		return
	}

	b.items[b.head] = v
	b.head = (b.head + 1) % len(b.items)
}

// Len returns the number of entries in the buffer.
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// Snapshot returns the entries newest-first. The entries are copied when
// Snapshot is called, so later pushes do not change the returned sequence
// and it can be iterated any number of times.
func (b *Buffer[T]) Snapshot() iter.Seq[T] {
	out := make([]T, b.size)
	for i := range b.size {
		out[i] = b.items[(b.head+b.size-1-i)%len(b.items)]
	}

	return func(yield func(T) bool) {
		for _, v := range out {
			if !yield(v) {
				return
			}
		}
	}
}
