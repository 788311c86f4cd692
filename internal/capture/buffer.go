// Package capture buffers samples arriving from a stream: a growing FIFO for
// recording and a fixed-size history that keeps only the newest samples.
package capture

import (
	"sync"
)

const bufferGrowthFactor = 2

// Buffer is a growing FIFO of samples, safe for concurrent use.
type Buffer[T any] struct {
	data     []T
	capacity int
	size     int
	readPos  int
	writePos int
	mu       sync.Mutex
}

// NewBuffer creates a buffer with the given initial capacity.
func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}
}

// Write appends samples, growing the buffer when it is full.
func (b *Buffer[T]) Write(samples []T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(samples) == 0 {
		return
	}
	if b.size+len(samples) > b.capacity {
		b.grow(b.size + len(samples))
	}

	for _, s := range samples {
		b.data[b.writePos] = s
		b.writePos = (b.writePos + 1) % b.capacity
	}
	b.size += len(samples)
}

// Read removes and returns up to n samples.
func (b *Buffer[T]) Read(n int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.peek(n)
	b.readPos = (b.readPos + len(out)) % b.capacity
	b.size -= len(out)
	return out
}

// Peek returns up to n samples without removing them.
func (b *Buffer[T]) Peek(n int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peek(n)
}

func (b *Buffer[T]) peek(n int) []T {
	n = min(n, b.size)
	if n <= 0 {
		return []T{}
	}
	out := make([]T, n)
	first := copy(out, b.data[b.readPos:min(b.capacity, b.readPos+n)])
	copy(out[first:], b.data[:n-first])
	return out
}

// ReadAll removes and returns everything buffered.
func (b *Buffer[T]) ReadAll() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.peek(b.size)
	b.size, b.readPos, b.writePos = 0, 0, 0
	return out
}

// Available returns the number of buffered samples.
func (b *Buffer[T]) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Capacity returns the current allocation.
func (b *Buffer[T]) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// Clear drops all samples.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.size, b.readPos, b.writePos = 0, 0, 0
}

// grow doubles the capacity until minCapacity fits, keeping sample order.
func (b *Buffer[T]) grow(minCapacity int) {
	newCapacity := b.capacity
	for newCapacity < minCapacity {
		newCapacity *= bufferGrowthFactor
	}

	data := make([]T, newCapacity)
	copy(data, b.peek(b.size))

	b.data = data
	b.capacity = newCapacity
	b.readPos = 0
	b.writePos = b.size
}
