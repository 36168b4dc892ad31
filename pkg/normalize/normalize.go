// Package normalize projects raw labels into the lower-cased, hyphen-free form the
// fuzzy scorer searches, and maps highlight ranges on that projection back to the
// raw label.
//
// The Cache is keyed by raw label and only grows; it lives as long as the session
// that owns it.
package normalize

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bastiangx/choiceserve/pkg/choice"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// entry holds a projection and, per projected byte, the raw rune span that produced it.
type entry struct {
	transformed string
	starts      []int
	ends        []int
}

// Cache memoizes projections of raw labels. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	caser   cases.Caser
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		caser:   cases.Lower(language.Und),
	}
}

// Normalize returns raw lower-cased with every '-' removed. Spaces and all other
// characters are kept.
func (c *Cache) Normalize(raw string) string {
	if e := c.lookup(raw); e != nil {
		return e.transformed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[raw]; ok {
		return e.transformed
	}
	e := c.project(raw)
	c.entries[raw] = e
	return e.transformed
}

func (c *Cache) lookup(raw string) *entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[raw]
}

// project must run with the write lock held; the caser is stateful.
func (c *Cache) project(raw string) *entry {
	out := make([]byte, 0, len(raw))
	starts := make([]int, 0, len(raw))
	ends := make([]int, 0, len(raw))

	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRuneInString(raw[i:])
		end := i + size
		if r == '-' {
			i = end
			continue
		}

		var lowered string
		switch {
		case r < utf8.RuneSelf:
			if 'A' <= r && r <= 'Z' {
				r += 'a' - 'A'
			}
			out = append(out, byte(r))
			starts = append(starts, i)
			ends = append(ends, end)
			i = end
			continue
		case r == utf8.RuneError && size == 1:
			lowered = raw[i:end]
		default:
			lowered = c.caser.String(raw[i:end])
		}

		for j := 0; j < len(lowered); j++ {
			out = append(out, lowered[j])
			starts = append(starts, i)
			ends = append(ends, end)
		}
		i = end
	}

	return &entry{transformed: string(out), starts: starts, ends: ends}
}

// Remap translates a [start, end) byte range on Normalize(raw) into raw coordinates.
// Ranges for labels that were never normalized come back unchanged.
func (c *Cache) Remap(raw string, r choice.Range) choice.Range {
	e := c.lookup(raw)
	if e == nil || len(e.starts) == 0 {
		return r
	}
	n := len(e.starts)
	start := clamp(r.Start, 0, n-1)
	if r.End <= r.Start {
		return choice.Span(e.starts[start], e.ends[start])
	}
	last := clamp(r.End-1, start, n-1)
	return choice.Span(e.starts[start], e.ends[last])
}

// RemapAll remaps every range and merges the ones that end up touching.
func (c *Cache) RemapAll(raw string, ranges []choice.Range) []choice.Range {
	if len(ranges) == 0 {
		return ranges
	}
	out := make([]choice.Range, 0, len(ranges))
	for _, r := range ranges {
		m := c.Remap(raw, r)
		if k := len(out) - 1; k >= 0 && m.Start <= out[k].End && m.Start >= out[k].Start {
			if m.End > out[k].End {
				out[k].End = m.End
			}
			continue
		}
		out = append(out, m)
	}
	return out
}

// Len returns the number of cached labels.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Project computes the same projection as Cache.Normalize without caching it.
// Queries go through Project so they never enter the cache.
func Project(raw string) string {
	if raw == "" {
		return ""
	}
	return cases.Lower(language.Und).String(strings.ReplaceAll(raw, "-", ""))
}
