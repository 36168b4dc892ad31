package choice

// Range is a half-open [Start, End) byte range into a raw field value.
type Range struct {
	_msgpack struct{} `msgpack:",as_array"`

	Start int `json:"start"`
	End   int `json:"end"`
}

// Span returns the range [start, end).
func Span(start, end int) Range {
	return Range{Start: start, End: end}
}

// Len returns the number of bytes covered.
func (r Range) Len() int {
	return r.End - r.Start
}

// Matches maps a field name to its highlight ranges.
type Matches map[string][]Range

// ScoredChoice is one row of ranked output.
// It shares the underlying Choice and carries only per-result overrides.
type ScoredChoice struct {
	Item    *Choice `json:"item" msgpack:"item"`
	Score   int     `json:"score" msgpack:"score"`
	Matches Matches `json:"matches,omitempty" msgpack:"matches,omitempty"`

	// Tag and Group override the item's values when non-nil.
	Tag   *string `json:"tag,omitempty" msgpack:"tag,omitempty"`
	Group *string `json:"group,omitempty" msgpack:"group,omitempty"`

	// NoPass forces the pass rule off for this row.
	NoPass bool `json:"noPass,omitempty" msgpack:"noPass,omitempty"`

	// Exact marks rows promoted to the exact-match block.
	Exact bool `json:"exact,omitempty" msgpack:"exact,omitempty"`
}

// Score wraps c with a score and highlight ranges.
func Score(c *Choice, score int, m Matches) ScoredChoice {
	return ScoredChoice{Item: c, Score: score, Matches: m}
}

// Header wraps a synthetic header row.
func Header(name string) ScoredChoice {
	return ScoredChoice{Item: NewHeader(name)}
}

// ID returns the item id.
func (s ScoredChoice) ID() string {
	if s.Item == nil {
		return ""
	}
	return s.Item.ID
}

// EffectiveTag returns the overridden tag or the item tag.
func (s ScoredChoice) EffectiveTag() string {
	if s.Tag != nil {
		return *s.Tag
	}
	return s.Item.Tag
}

// EffectiveGroup returns the overridden group or the item group.
func (s ScoredChoice) EffectiveGroup() string {
	if s.Group != nil {
		return *s.Group
	}
	return s.Item.Group
}

// Passes reports whether the row still carries a pass rule.
func (s ScoredChoice) Passes() bool {
	return !s.NoPass && s.Item.Pass.IsSet()
}

// WithTag returns a copy with the tag overridden.
func (s ScoredChoice) WithTag(tag string) ScoredChoice {
	s.Tag = &tag
	return s
}

// WithGroup returns a copy with the group overridden.
func (s ScoredChoice) WithGroup(group string) ScoredChoice {
	s.Group = &group
	return s
}

// WithoutPass returns a copy with the pass rule disabled.
func (s ScoredChoice) WithoutPass() ScoredChoice {
	s.NoPass = true
	return s
}

// AsExact returns a copy marked as an exact match.
func (s ScoredChoice) AsExact() ScoredChoice {
	s.Exact = true
	return s
}
