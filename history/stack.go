package history

import (
	"sync"
)

// Stack is the navigation stack a Controller drives. Push, Replace and Go
// change the stack; OnPop registers a callback fired after a Go moved the
// current entry.
type Stack interface {
	Current() Location
	Push(loc Location)
	Replace(loc Location)
	Go(delta int)
	OnPop(fn func()) (unsubscribe func())
}

// MemoryStack is an in-memory Stack. It is safe for concurrent use.
type MemoryStack struct {
	mu        sync.Mutex
	entries   []Location
	index     int
	callbacks map[int]func()
	nextID    int
}

// NewMemoryStack returns a stack holding a single entry for initial, keyed
// DefaultKey.
func NewMemoryStack(initial string) *MemoryStack {
	loc := ParsePath(initial)
	loc.Key = DefaultKey

	return &MemoryStack{
		entries:   []Location{loc},
		callbacks: map[int]func(){},
	}
}

// Current returns the entry at the current index.
func (s *MemoryStack) Current() Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[s.index]
}

// Push drops every entry after the current one and appends loc.
func (s *MemoryStack) Push(loc Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries[:s.index+1], loc)
	s.index++
}

// Replace overwrites the current entry.
func (s *MemoryStack) Replace(loc Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[s.index] = loc
}

// Go moves the current index by delta, clamped to the stack bounds. When
// the index changes, the pop callbacks run synchronously after the move.
func (s *MemoryStack) Go(delta int) {
	s.mu.Lock()
	next := min(max(s.index+delta, 0), len(s.entries)-1)
	if next == s.index {
		s.mu.Unlock()
		return
	}
	s.index = next

	callbacks := make([]func(), 0, len(s.callbacks))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.callbacks[id]; ok {
			callbacks = append(callbacks, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// OnPop registers fn and returns a function that removes it.
func (s *MemoryStack) OnPop(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.callbacks[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.callbacks, id)
	}
}

// Entries returns a copy of the stack and the current index.
func (s *MemoryStack) Entries() ([]Location, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Location(nil), s.entries...), s.index
}
