package utils

// IDFilter drops repeated choice IDs from a result list.
// It is not safe for concurrent use; create one per result.
type IDFilter struct {
	seen map[string]struct{}
}

// NewIDFilter creates a new filter sized for n results.
func NewIDFilter(n int) *IDFilter {
	return &IDFilter{seen: make(map[string]struct{}, n)}
}

// ShouldInclude reports whether id is seen for the first time and records it.
func (f *IDFilter) ShouldInclude(id string) bool {
	if _, ok := f.seen[id]; ok {
		return false
	}
	f.seen[id] = struct{}{}
	return true
}
