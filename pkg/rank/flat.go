package rank

import (
	"sort"

	"github.com/bastiangx/choiceserve/internal/utils"
	"github.com/bastiangx/choiceserve/pkg/choice"
	"github.com/bastiangx/choiceserve/pkg/fuzzy"
)

// flat ranks a corpus without groups.
func (e *Engine) flat(c Corpus, query string, raw []fuzzy.Match, withAlias bool) []candidate {
	hits := 0
	for _, m := range raw {
		if !m.Choice.Info && !m.Choice.Miss {
			hits++
		}
	}

	var out []candidate
	switch {
	case hits == 0:
		// also covers corpora whose only matches are miss or info choices
		out = e.substringScan(c.Choices, query)
	default:
		out = e.flatMatches(c.Choices, query, raw)
	}

	if withAlias {
		if alias := e.findAlias(c.Choices, query); alias != nil {
			out = placeAlias(out, *alias)
		}
	}
	return out
}

// substringScan is the fallback when the scorer found nothing: one row per choice at
// its first case-insensitive hit in the key fields, in corpus order. Miss, info and
// pass choices are kept without a hit; a malformed pattern is not.
func (e *Engine) substringScan(choices []*choice.Choice, query string) []candidate {
	out := make([]candidate, 0)
	for _, c := range choices {
		if m, ok := e.firstHit(c, query); ok {
			out = append(out, candidate{sc: choice.Score(c, 1, m)})
			continue
		}
		if c.Miss || c.Info || (c.Pass.IsSet() && c.Pass.Kind != choice.PassInvalid) {
			out = append(out, candidate{sc: choice.Score(c, 1, nil)})
		}
	}
	return out
}

func (e *Engine) firstHit(c *choice.Choice, query string) (choice.Matches, bool) {
	for _, key := range e.keys {
		start, end := utils.SpanFold(c.Field(key), query)
		if start >= 0 {
			return choice.Matches{key: {choice.Span(start, end)}}, true
		}
	}
	return nil, false
}

// flatMatches puts info choices first, then the scorer's matches ordered by where
// the query first occurs in the name. Names without the query go last.
func (e *Engine) flatMatches(choices []*choice.Choice, query string, raw []fuzzy.Match) []candidate {
	byChoice := make(map[*choice.Choice]fuzzy.Match, len(raw))
	for _, m := range raw {
		byChoice[m.Choice] = m
	}

	var infos []candidate
	for _, c := range choices {
		if !c.Info {
			continue
		}
		if m, ok := byChoice[c]; ok {
			infos = append(infos, fromMatch(m))
		} else {
			infos = append(infos, zero(c))
		}
	}

	type positioned struct {
		cand candidate
		pos  int
	}
	filtered := make([]positioned, 0, len(raw))
	for _, m := range raw {
		if m.Choice.Miss || m.Choice.Info {
			continue
		}
		pos := utils.IndexFold(m.Choice.Name, query)
		if pos < 0 {
			pos = int(^uint(0) >> 1)
		}
		filtered = append(filtered, positioned{cand: fromMatch(m), pos: pos})
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].pos < filtered[j].pos
	})

	out := make([]candidate, 0, len(infos)+len(filtered))
	out = append(out, infos...)
	for _, p := range filtered {
		out = append(out, p.cand)
	}
	return out
}

// placeAlias moves the alias row right behind the leading info rows.
func placeAlias(cands []candidate, alias candidate) []candidate {
	out := make([]candidate, 0, len(cands)+1)
	i := 0
	for ; i < len(cands) && cands[i].sc.Item.Info; i++ {
		out = append(out, cands[i])
	}
	out = append(out, alias)
	for ; i < len(cands); i++ {
		if cands[i].sc.Item == alias.sc.Item {
			continue
		}
		out = append(out, cands[i])
	}
	return out
}

// findAlias returns the last script choice whose alias equals query exactly.
func (e *Engine) findAlias(choices []*choice.Choice, query string) *candidate {
	var found *candidate
	for _, c := range choices {
		if c.Info || !c.IsScript() || c.Alias == "" || c.Alias != query {
			continue
		}
		if found != nil {
			e.log.Debug("alias collision, last choice wins", "alias", query, "previous", found.sc.Item.ID, "choice", c.ID)
		}
		cand := candidate{sc: choice.Score(c, 0, nil).WithGroup(GroupAlias).WithoutPass()}
		found = &cand
	}
	return found
}
