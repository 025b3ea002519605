package queue

import "sync"

// Stack is a generic thread-safe LIFO with an optional size limit. When the
// limit is exceeded the oldest items are dropped.
type Stack[T any] struct {
	mu    sync.Mutex
	items []T
	limit int
}

// NewStack creates an empty stack. limit <= 0 means unbounded.
func NewStack[T any](limit int) *Stack[T] {
	return &Stack[T]{limit: limit}
}

// Push adds an item on top and returns how many old items were dropped.
func (s *Stack[T]) Push(item T) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	if s.limit > 0 && len(s.items) > s.limit {
		dropped := len(s.items) - s.limit
		var zero T
		for i := 0; i < dropped; i++ {
			s.items[i] = zero
		}
		s.items = append(s.items[:0:0], s.items[dropped:]...)
		return dropped
	}
	return 0
}

// Pop removes and returns the top item.
func (s *Stack[T]) Pop() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	item := s.items[len(s.items)-1]
	s.items[len(s.items)-1] = zero
	s.items = s.items[:len(s.items)-1]
	return item, true
}

// Peek returns the top item without removing it.
func (s *Stack[T]) Peek() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		var zero T
		return zero, false
	}
	return s.items[len(s.items)-1], true
}

// Len returns the number of items.
func (s *Stack[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Clear removes all items.
func (s *Stack[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

// SetLimit changes the size limit, trimming the oldest items if needed.
func (s *Stack[T]) SetLimit(limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = limit
	if limit > 0 && len(s.items) > limit {
		s.items = append([]T(nil), s.items[len(s.items)-limit:]...)
	}
}
