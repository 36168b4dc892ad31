package session

import (
	"sort"

	"github.com/bastiangx/choiceserve/pkg/choice"
)

// FlagSet is the input of SetFlags: flags keyed by name, with an optional
// explicit order and a field to sort the remaining flags by.
type FlagSet struct {
	Flags   map[string]*choice.Choice `json:"flags" msgpack:"flags"`
	Order   []string                  `json:"order,omitempty" msgpack:"order,omitempty"`
	SortKey string                    `json:"sortChoicesKey,omitempty" msgpack:"sortChoicesKey,omitempty"`
}

// Choices returns the flags as a deterministic choice list.
//
// Keys named in Order come first, in that order. The rest are sorted by the
// SortKey field, then by key. IDs and names default to the map key. The
// caller's choices are copied, not modified.
func (fs FlagSet) Choices() []*choice.Choice {
	if len(fs.Flags) == 0 {
		return nil
	}

	built := make(map[string]*choice.Choice, len(fs.Flags))
	for key, f := range fs.Flags {
		built[key] = flagChoice(key, f)
	}

	out := make([]*choice.Choice, 0, len(built))
	for _, key := range fs.Order {
		if c, ok := built[key]; ok {
			out = append(out, c)
			delete(built, key)
		}
	}

	rest := make([]string, 0, len(built))
	for key := range built {
		rest = append(rest, key)
	}
	sort.Slice(rest, func(i, j int) bool {
		if fs.SortKey != "" {
			a, b := built[rest[i]].Field(fs.SortKey), built[rest[j]].Field(fs.SortKey)
			if a != b {
				return a < b
			}
		}
		return rest[i] < rest[j]
	})
	for _, key := range rest {
		out = append(out, built[key])
	}
	return out
}

func flagChoice(key string, f *choice.Choice) *choice.Choice {
	var c choice.Choice
	if f != nil {
		c = *f
	}
	if c.ID == "" {
		c.ID = key
	}
	if c.Name == "" {
		c.Name = key
	}
	return &c
}
