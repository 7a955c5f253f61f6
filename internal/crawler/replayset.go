package crawler

// ReplaySet tracks the references already emitted in one crawl session.
// It is owned by a single Paginator run and is not safe for concurrent use.
type ReplaySet struct {
	seen map[string]struct{}
}

// NewReplaySet creates an empty set
func NewReplaySet() *ReplaySet {
	return &ReplaySet{
		seen: make(map[string]struct{}),
	}
}

// Add inserts ref and reports whether it was new
func (s *ReplaySet) Add(ref string) bool {
	if _, ok := s.seen[ref]; ok {
		return false
	}
	s.seen[ref] = struct{}{}
	return true
}

// Len returns the number of distinct references
func (s *ReplaySet) Len() int {
	return len(s.seen)
}
