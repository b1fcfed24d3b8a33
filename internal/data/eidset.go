package data

// EIDSet is a set of entity ids. Sets returned by the cache are shared
// across queries and must not be mutated; combine them with Intersect.
type EIDSet map[uint64]struct{}

func NewEIDSet(ids ...uint64) EIDSet {
	s := make(EIDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s EIDSet) Add(id uint64) {
	s[id] = struct{}{}
}

func (s EIDSet) Contains(id uint64) bool {
	_, ok := s[id]
	return ok
}

func (s EIDSet) Len() int {
	return len(s)
}

func (s EIDSet) Clone() EIDSet {
	out := make(EIDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Intersect returns a new set holding the ids present in both sets.
func (s EIDSet) Intersect(other EIDSet) EIDSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(EIDSet, len(small))
	for id := range small {
		if _, ok := large[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func (s EIDSet) Equal(other EIDSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}
