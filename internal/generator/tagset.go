package generator

// tagSet is an insertion-ordered set of release tags.
type tagSet struct {
	order []string
	index map[string]struct{}
}

func newTagSet() *tagSet {
	return &tagSet{index: make(map[string]struct{})}
}

func (s *tagSet) add(tag string) {
	if _, ok := s.index[tag]; ok {
		return
	}
	s.index[tag] = struct{}{}
	s.order = append(s.order, tag)
}

func (s *tagSet) has(tag string) bool {
	_, ok := s.index[tag]
	return ok
}

func (s *tagSet) remove(tag string) {
	if _, ok := s.index[tag]; !ok {
		return
	}
	delete(s.index, tag)
	for i, t := range s.order {
		if t == tag {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *tagSet) empty() bool {
	return len(s.order) == 0
}

// list returns a copy of the tags in insertion order.
func (s *tagSet) list() []string {
	return append([]string(nil), s.order...)
}
