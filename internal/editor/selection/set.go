package selection

// Set is an insertion-ordered set of region ids.
type Set struct {
	ids   []string
	index map[string]struct{}
}

func NewSet() *Set {
	return &Set{index: make(map[string]struct{})}
}

func (s *Set) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

func (s *Set) Add(id string) bool {
	if s.Has(id) {
		return false
	}
	s.index[id] = struct{}{}
	s.ids = append(s.ids, id)
	return true
}

func (s *Set) Remove(ids ...string) int {
	n := 0
	for _, id := range ids {
		if s.Has(id) {
			delete(s.index, id)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	kept := s.ids[:0]
	for _, id := range s.ids {
		if s.Has(id) {
			kept = append(kept, id)
		}
	}
	s.ids = kept
	return n
}

func (s *Set) Clear() {
	s.ids = nil
	s.index = make(map[string]struct{})
}

func (s *Set) Len() int {
	return len(s.ids)
}

// IDs returns the members in the order they were selected.
func (s *Set) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}
