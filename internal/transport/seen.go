package transport

import (
	"sync"

	"github.com/google/uuid"
)

// seenSet remembers the most recent message ids, evicting oldest first.
type seenSet struct {
	mu    sync.Mutex
	limit int
	order []uuid.UUID
	next  int
	set   map[uuid.UUID]struct{}
}

func newSeenSet(limit int) *seenSet {
	return &seenSet{
		limit: limit,
		order: make([]uuid.UUID, 0, limit),
		set:   make(map[uuid.UUID]struct{}, limit),
	}
}

func (s *seenSet) contains(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[id]
	return ok
}

// add records id and reports whether it was new.
func (s *seenSet) add(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[id]; ok {
		return false
	}
	if len(s.order) < s.limit {
		s.order = append(s.order, id)
	} else {
		delete(s.set, s.order[s.next])
		s.order[s.next] = id
		s.next = (s.next + 1) % s.limit
	}
	s.set[id] = struct{}{}
	return true
}
