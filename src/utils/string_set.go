package utils

import "sync"

// StringSet is a concurrency-safe set of strings.
type StringSet struct {
	mu    sync.RWMutex
	items map[string]struct{}
}

func NewStringSet() *StringSet {
	return &StringSet{items: make(map[string]struct{})}
}

// Add inserts the value and reports whether it was absent.
func (s *StringSet) Add(value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[value]; exists {
		return false
	}
	s.items[value] = struct{}{}
	return true
}

func (s *StringSet) Contains(value string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.items[value]
	return exists
}

func (s *StringSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *StringSet) Clear() {
	s.mu.Lock()
	s.items = make(map[string]struct{})
	s.mu.Unlock()
}
