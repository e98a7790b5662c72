package utils

import "sync"

// -----------------------------------------------------------------------------
// SetQueue is a FIFO whose membership is set-like: a key can be queued at most
// once at a time. Push is an atomic test-and-insert.
// -----------------------------------------------------------------------------

type SetQueue[K comparable, V any] struct {
	mu      sync.Mutex
	order   []K
	members map[K]V
}

// -----------------------------------------------------------------------------

func NewSetQueue[K comparable, V any]() *SetQueue[K, V] {
	return &SetQueue[K, V]{
		members: make(map[K]V),
	}
}

// -----------------------------------------------------------------------------

// Push enqueues the value unless the key is already queued.
// Returns true when the value was added.
func (q *SetQueue[K, V]) Push(key K, value V) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.members[key]; exists {
		return false
	}
	q.members[key] = value
	q.order = append(q.order, key)
	return true
}

// -----------------------------------------------------------------------------

// PushIf enqueues the value when the key is absent and cond() holds.
// cond runs under the queue lock, so it must not call back into the queue.
func (q *SetQueue[K, V]) PushIf(key K, value V, cond func() bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.members[key]; exists {
		return false
	}
	if cond != nil && !cond() {
		return false
	}
	q.members[key] = value
	q.order = append(q.order, key)
	return true
}

// -----------------------------------------------------------------------------

// TryPop removes the oldest entry
func (q *SetQueue[K, V]) TryPop() (V, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero V
	if len(q.order) == 0 {
		return zero, false
	}

	key := q.order[0]
	q.order = q.order[1:]
	value := q.members[key]
	delete(q.members, key)
	return value, true
}

// -----------------------------------------------------------------------------

func (q *SetQueue[K, V]) Contains(key K) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, exists := q.members[key]
	return exists
}

// -----------------------------------------------------------------------------

func (q *SetQueue[K, V]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// -----------------------------------------------------------------------------

func (q *SetQueue[K, V]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.order = nil
	q.members = make(map[K]V)
}
