package host

import (
	"slices"
	"sync"
)

// Scheduler tracks elements whose model changed and re-renders each of them
// once per flush.
type Scheduler struct {
	dirty    []*Element
	dirtySet map[*Element]bool
	mu       sync.Mutex

	// OnNeedsRender is called when the first element of a batch is
	// scheduled, so the embedder knows a Flush is due.
	OnNeedsRender func()
}

// Schedule marks an element as needing a render.
func (s *Scheduler) Schedule(e *Element) {
	added := func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.dirtySet[e] {
			return false
		}
		if s.dirtySet == nil {
			s.dirtySet = make(map[*Element]bool)
		}
		s.dirtySet[e] = true
		s.dirty = append(s.dirty, e)
		return len(s.dirty) == 1
	}()

	if added && s.OnNeedsRender != nil {
		s.OnNeedsRender()
	}
}

// NeedsWork reports whether any element is waiting to render.
func (s *Scheduler) NeedsWork() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty) > 0
}

// Flush renders all dirty elements, ancestors before descendants. Elements
// scheduled while rendering are rendered in the same call.
func (s *Scheduler) Flush() {
	for {
		s.mu.Lock()
		if len(s.dirty) == 0 {
			s.mu.Unlock()
			return
		}

		slices.SortStableFunc(s.dirty, func(a, b *Element) int {
			return a.depth - b.depth
		})

		dirty := s.dirty
		s.dirty = nil
		clear(s.dirtySet)
		s.mu.Unlock()

		for _, e := range dirty {
			if !e.connected {
				continue
			}
			e.render()
		}
	}
}
