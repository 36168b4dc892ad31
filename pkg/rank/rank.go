// Package rank turns a corpus, a query and the scorer's raw matches into the
// ordered result list shown by a command palette.
//
// Two layouts exist. Corpora without any grouped choice use the flat layout:
// matches ordered by where the query occurs in the name. Corpora with groups
// use the grouped layout, which classifies every choice into buckets (info,
// alias, exact/startsWith, includes, pass-through, regular, last group, miss)
// and emits them behind synthetic header rows.
//
// Rank is a pure function of its inputs: identical corpora and queries give
// identical output.
package rank

import (
	"github.com/bastiangx/choiceserve/internal/utils"
	"github.com/bastiangx/choiceserve/pkg/choice"
	"github.com/bastiangx/choiceserve/pkg/fuzzy"
	"github.com/bastiangx/choiceserve/pkg/normalize"
	"github.com/bastiangx/choiceserve/pkg/shortcode"
	"github.com/charmbracelet/log"
)

// Group names used for synthetic headers and overrides.
const (
	GroupAlias      = "Alias"
	GroupPass       = "Pass"
	GroupExactMatch = "Exact Match"
	GroupLastMatch  = "Last Match"
)

// Scorer returns the fuzzy matches of a query over a corpus.
type Scorer interface {
	Search(query string) []fuzzy.Match
}

// Corpus is everything Rank needs to know about the active choices.
type Corpus struct {
	Choices []*choice.Choice
	Scorer  Scorer

	// Table may be nil; exact keyword and trigger hits then only use the choice fields.
	Table *shortcode.Table

	// HasGroup selects the grouped layout.
	HasGroup bool
}

// Engine ranks queries against corpora.
type Engine struct {
	keys []string
	norm *normalize.Cache
	log  *log.Logger
}

// New creates an Engine. keys are the fields scanned by the substring fallback.
func New(norm *normalize.Cache, keys []fuzzy.Key, logger *log.Logger) *Engine {
	if len(keys) == 0 {
		keys = fuzzy.DefaultKeys
	}
	if norm == nil {
		norm = normalize.NewCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.Name
	}
	return &Engine{keys: names, norm: norm, log: logger}
}

// candidate is a result row before ranges are remapped.
type candidate struct {
	sc choice.ScoredChoice

	// normalized marks ranges in normalized coordinates.
	normalized bool
}

func zero(c *choice.Choice) candidate {
	return candidate{sc: choice.Score(c, 0, nil)}
}

func header(name string) candidate {
	return candidate{sc: choice.Header(name)}
}

func fromMatch(m fuzzy.Match) candidate {
	return candidate{sc: choice.Score(m.Choice, m.Score, m.Matches), normalized: true}
}

// Rank returns the ordered results of query over c.
func (e *Engine) Rank(c Corpus, query string) []choice.ScoredChoice {
	if len(c.Choices) == 0 {
		return []choice.ScoredChoice{}
	}
	if query == "" {
		return e.finalize(emptyQuery(c.Choices))
	}

	raw := search(c.Scorer, query)
	if c.HasGroup {
		return e.finalize(e.grouped(c, query, raw))
	}
	return e.finalize(e.flat(c, query, raw, true))
}

// RankFlags ranks a flag corpus. Flags have no alias, trigger or shortcode
// handling and the grouped layout only has an exact-match block.
func (e *Engine) RankFlags(c Corpus, query string) []choice.ScoredChoice {
	if len(c.Choices) == 0 {
		return []choice.ScoredChoice{}
	}
	if query == "" {
		return e.finalize(emptyQuery(c.Choices))
	}

	raw := search(c.Scorer, query)
	if c.HasGroup {
		return e.finalize(e.groupedFlags(c, query, raw))
	}
	return e.finalize(e.flat(c, query, raw, false))
}

func search(s Scorer, query string) []fuzzy.Match {
	if s == nil {
		return nil
	}
	return s.Search(query)
}

// emptyQuery lists every choice that is visible without input. When nothing is,
// it falls back to the miss and info choices.
func emptyQuery(choices []*choice.Choice) []candidate {
	out := make([]candidate, 0, len(choices))
	for _, c := range choices {
		if c.Miss || c.Pass.IsSet() || c.HideWithoutInput {
			continue
		}
		out = append(out, zero(c))
	}
	if len(out) > 0 {
		return out
	}
	for _, c := range choices {
		if c.Miss || c.Info {
			out = append(out, zero(c))
		}
	}
	return out
}

// finalize remaps ranges to raw coordinates and drops repeated choice IDs.
func (e *Engine) finalize(cands []candidate) []choice.ScoredChoice {
	out := make([]choice.ScoredChoice, 0, len(cands))
	seen := utils.NewIDFilter(len(cands))
	for _, cand := range cands {
		sc := cand.sc
		if sc.Item == nil {
			continue
		}
		if id := sc.Item.ID; id != "" && !sc.Item.Skip && !seen.ShouldInclude(id) {
			continue
		}
		if cand.normalized && len(sc.Matches) > 0 {
			remapped := make(choice.Matches, len(sc.Matches))
			for field, ranges := range sc.Matches {
				remapped[field] = e.norm.RemapAll(sc.Item.Field(field), ranges)
			}
			sc.Matches = remapped
		}
		out = append(out, sc)
	}
	return out
}

// passes reports whether the choice's pass rule admits query.
// Invalid patterns never pass.
func passes(c *choice.Choice, query string) bool {
	return c.Pass.IsSet() && c.Pass.Matches(query)
}
