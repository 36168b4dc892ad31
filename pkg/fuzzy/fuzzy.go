// Package fuzzy scores a query against the configured key fields of every choice
// in a corpus.
//
// Matching runs on the normalized projection of each field (see package normalize)
// using github.com/sahilm/fuzzy. A choice's score is its best weighted key score;
// match ranges are reported per field in normalized byte coordinates and are
// remapped to raw coordinates by the ranking engine.
package fuzzy

import (
	"math"
	"sort"
	"unicode/utf8"

	"github.com/bastiangx/choiceserve/pkg/choice"
	"github.com/bastiangx/choiceserve/pkg/normalize"
	"github.com/sahilm/fuzzy"
)

// Key is a searchable field with its weight.
type Key struct {
	Name   string  `toml:"name" msgpack:"name"`
	Weight float64 `toml:"weight" msgpack:"weight"`
}

// DefaultKeys are the key fields used when none are configured.
var DefaultKeys = []Key{
	{Name: "name", Weight: 1.0},
	{Name: "keyword", Weight: 0.8},
	{Name: "tag", Weight: 0.6},
}

// Options configures an Index.
type Options struct {
	Keys            []Key
	MinScore        int
	MinScoreEnabled bool

	// Limit caps the number of matches returned. 0 means unlimited.
	Limit int
}

// Match is one scored choice.
type Match struct {
	Index   int
	Choice  *choice.Choice
	Score   int
	Matches choice.Matches
}

// fieldSource exposes one projected key field of the corpus as a fuzzy.Source.
type fieldSource []string

func (s fieldSource) String(i int) string { return s[i] }
func (s fieldSource) Len() int            { return len(s) }

// Index is the scorer state for one corpus. It is immutable once built.
type Index struct {
	opts    Options
	choices []*choice.Choice
	fields  []fieldSource
}

// NewIndex projects the key fields of choices through norm.
func NewIndex(choices []*choice.Choice, norm *normalize.Cache, opts Options) *Index {
	if len(opts.Keys) == 0 {
		opts.Keys = DefaultKeys
	}
	ix := &Index{
		opts:    opts,
		choices: choices,
		fields:  make([]fieldSource, len(opts.Keys)),
	}
	for k, key := range opts.Keys {
		src := make(fieldSource, len(choices))
		for i, c := range choices {
			src[i] = norm.Normalize(c.Field(key.Name))
		}
		ix.fields[k] = src
	}
	return ix
}

// Keys returns the key fields of the index.
func (ix *Index) Keys() []Key {
	return ix.opts.Keys
}

// Len returns the number of indexed choices.
func (ix *Index) Len() int {
	return len(ix.choices)
}

// Search scores query against every choice. Results are ordered by score,
// then by corpus position.
func (ix *Index) Search(query string) []Match {
	pattern := normalize.Project(query)
	if pattern == "" || len(ix.choices) == 0 {
		return nil
	}

	best := make(map[int]*Match)
	for k, key := range ix.opts.Keys {
		for _, m := range fuzzy.FindFromNoSort(pattern, ix.fields[k]) {
			score := weigh(m.Score, key.Weight)
			cur, ok := best[m.Index]
			if !ok {
				cur = &Match{Index: m.Index, Choice: ix.choices[m.Index], Score: score, Matches: choice.Matches{}}
				best[m.Index] = cur
			} else if score > cur.Score {
				cur.Score = score
			}
			cur.Matches[key.Name] = ranges(m.Str, m.MatchedIndexes)
		}
	}

	out := make([]Match, 0, len(best))
	for _, m := range best {
		if ix.opts.MinScoreEnabled && m.Score < ix.opts.MinScore {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Index < out[j].Index
	})
	if ix.opts.Limit > 0 && len(out) > ix.opts.Limit {
		out = out[:ix.opts.Limit]
	}
	return out
}

func weigh(score int, weight float64) int {
	if weight <= 0 {
		weight = 1
	}
	return int(math.Round(float64(score) * weight))
}

// ranges turns matched rune offsets into merged byte ranges.
func ranges(s string, idx []int) []choice.Range {
	out := make([]choice.Range, 0, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(s) {
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		if k := len(out) - 1; k >= 0 && out[k].End == i {
			out[k].End = i + size
			continue
		}
		out = append(out, choice.Span(i, i+size))
	}
	return out
}
