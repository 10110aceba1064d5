// Package cacheset implements the associativity-wide line array used by a
// single cache set, together with its LRU recency counters.
package cacheset

import "github.com/archsim/mesisim/cacheline"

// Set is an ordered sequence of E cache lines and an LRU recency counter per
// line. Counter 0 means most recently used; touching a line resets its own
// counter to 0 and ages every other line in the set by one, mirroring the
// teacher's internal/tagging.Set recency bookkeeping (mem/cache/internal/
// tagging/tags.go) adapted from an LRU queue to the spec's per-line rank
// counters.
type Set struct {
	lines   []cacheline.Line
	recency []int
}

// New builds a Set holding associativity invalid lines.
func New(associativity int) *Set {
	if associativity <= 0 {
		panic("cacheset: associativity must be positive")
	}

	return &Set{
		lines:   make([]cacheline.Line, associativity),
		recency: make([]int, associativity),
	}
}

// Associativity returns the number of ways in the set.
func (s *Set) Associativity() int {
	return len(s.lines)
}

// Line returns a pointer to the line at index, so callers can mutate its
// state in place.
func (s *Set) Line(index int) *cacheline.Line {
	return &s.lines[index]
}

// Rank returns the current LRU counter for index, exposed for testing that
// touch(i) leaves rank[i] == 0.
func (s *Set) Rank(index int) int {
	return s.recency[index]
}

// Find linearly scans the set's ways and returns the first valid way
// holding tag.
func (s *Set) Find(tag uint64) (index int, ok bool) {
	for i := range s.lines {
		if s.lines[i].IsValid() && s.lines[i].Tag == tag {
			return i, true
		}
	}

	return 0, false
}

// Allocate picks a destination way for tag: the first INVALID way if one
// exists, otherwise the LRU victim. It writes the tag into that way but
// leaves the MESI state untouched — the caller owns eviction accounting and
// the new state.
func (s *Set) Allocate(tag uint64) int {
	for i := range s.lines {
		if !s.lines[i].IsValid() {
			s.lines[i].Tag = tag
			return i
		}
	}

	victim := s.Victim()
	s.lines[victim].Tag = tag

	return victim
}

// Touch resets index's recency counter to 0 and ages every other way by one.
func (s *Set) Touch(index int) {
	for i := range s.recency {
		s.recency[i]++
	}
	s.recency[index] = 0
}

// Victim returns the way with the largest recency counter, the least
// recently used line in the set. Ties are broken by the lowest index.
func (s *Set) Victim() int {
	victim := 0
	for i := 1; i < len(s.recency); i++ {
		if s.recency[i] > s.recency[victim] {
			victim = i
		}
	}

	return victim
}
