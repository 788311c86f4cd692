package capture

import "sync"

// History keeps the newest Cap samples, overwriting the oldest. It is safe for
// concurrent use.
type History[T any] struct {
	mu    sync.Mutex
	data  []T
	next  int // write position
	full  bool
	total int64
}

// NewHistory creates a history of the given capacity (at least 1).
func NewHistory[T any](capacity int) *History[T] {
	return &History[T]{data: make([]T, max(1, capacity))}
}

// Write appends samples; only the newest Cap of them survive.
func (h *History[T]) Write(samples []T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.total += int64(len(samples))
	if len(samples) >= len(h.data) {
		copy(h.data, samples[len(samples)-len(h.data):])
		h.next, h.full = 0, true
		return
	}
	for _, s := range samples {
		h.data[h.next] = s
		h.next++
		if h.next == len(h.data) {
			h.next, h.full = 0, true
		}
	}
}

// Snapshot returns the retained samples, oldest first.
func (h *History[T]) Snapshot() []T {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full {
		return append([]T(nil), h.data[:h.next]...)
	}
	out := make([]T, 0, len(h.data))
	out = append(out, h.data[h.next:]...)
	return append(out, h.data[:h.next]...)
}

// Len is the number of retained samples.
func (h *History[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return len(h.data)
	}
	return h.next
}

// Cap is the capacity.
func (h *History[T]) Cap() int { return len(h.data) }

// Total is the number of samples ever written.
func (h *History[T]) Total() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}
