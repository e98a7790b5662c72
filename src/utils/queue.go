package utils

import "sync"

// -----------------------------------------------------------------------------
// Queue is an unbounded FIFO safe for concurrent producers and consumers.
// -----------------------------------------------------------------------------

type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
}

// -----------------------------------------------------------------------------

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

// -----------------------------------------------------------------------------

// Push appends an item at the tail
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// -----------------------------------------------------------------------------

// TryPop removes the head item, if any
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.head >= len(q.items) {
		return zero, false
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// Compact once the consumed prefix dominates the backing array
	if q.head >= len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 >= len(q.items) {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}

	return item, true
}

// -----------------------------------------------------------------------------

// Clear drops every queued item and returns how many were dropped
func (q *Queue[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items) - q.head
	q.items = nil
	q.head = 0
	return n
}

// -----------------------------------------------------------------------------

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
