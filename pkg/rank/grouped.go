package rank

import (
	"sort"
	"strings"

	"github.com/bastiangx/choiceserve/internal/utils"
	"github.com/bastiangx/choiceserve/pkg/choice"
	"github.com/bastiangx/choiceserve/pkg/fuzzy"
	"github.com/bastiangx/choiceserve/pkg/shortcode"
)

// buckets collects the classification of a grouped corpus.
type buckets struct {
	info       []candidate
	startsWith []candidate
	includes   []candidate
	lastGroup  []candidate
	miss       []candidate
	results    []candidate

	// members counts surviving rows per group; headers holds the placeholder
	// indexes of each group's header rows in results.
	members map[string]int
	headers map[string][]int
}

// grouped ranks a corpus where at least one choice has a group.
func (e *Engine) grouped(c Corpus, query string, raw []fuzzy.Match) []candidate {
	byChoice := make(map[*choice.Choice]fuzzy.Match, len(raw))
	for _, m := range raw {
		byChoice[m.Choice] = m
	}

	b := &buckets{
		members: make(map[string]int),
		headers: make(map[string][]int),
	}
	var alias *candidate

	for _, ch := range c.Choices {
		m, matched := byChoice[ch]

		if ch.Info {
			b.info = append(b.info, matchOrZero(m, matched, ch))
			continue
		}

		if ch.IsScript() && ch.Alias != "" && ch.Alias == query {
			if alias != nil {
				e.log.Debug("alias collision, last choice wins", "alias", query, "previous", alias.sc.Item.ID, "choice", ch.ID)
			}
			cand := matchOrZero(m, matched, ch)
			cand.sc = cand.sc.WithGroup(GroupAlias).WithoutPass()
			alias = &cand
			continue
		}

		if matched && !ch.Skip && !ch.Miss &&
			(utils.StringContainsIgnoreCase(ch.Name, query) || utils.StringContainsIgnoreCase(ch.KeywordOrTag(), query)) {
			cand := fromMatch(m)
			cand.sc = withDefaultTag(cand.sc.WithoutPass())
			switch {
			case ch.LastGroup:
				b.lastGroup = append(b.lastGroup, cand)
			case utils.HasPrefixIgnoreCase(ch.Name, query) || (ch.Keyword != "" && utils.HasPrefixIgnoreCase(ch.Keyword, query)):
				b.startsWith = append(b.startsWith, cand.exact())
			default:
				b.includes = append(b.includes, cand.exact())
			}
			continue
		}

		e.classify(b, ch, query, m, matched)
	}

	b.dropOrphanHeaders()

	sortStartsWith(b.startsWith, query, c)
	out := b.results
	if len(b.startsWith) > 0 || len(b.includes) > 0 {
		block := make([]candidate, 0, 1+len(b.startsWith)+len(b.includes)+len(out))
		block = append(block, header(GroupExactMatch))
		block = append(block, b.startsWith...)
		block = append(block, b.includes...)
		out = append(block, out...)
	}

	if len(b.lastGroup) > 0 {
		sort.SliceStable(b.lastGroup, func(i, j int) bool {
			return b.lastGroup[i].sc.Item.Keyword != "" && b.lastGroup[j].sc.Item.Keyword == ""
		})
		name := b.lastGroup[0].sc.EffectiveGroup()
		if name == "" {
			name = GroupLastMatch
		}
		out = append(out, header(name))
		out = append(out, b.lastGroup...)
	}

	if len(out) == 0 {
		out = b.miss
	}

	if alias != nil {
		out = append([]candidate{header(GroupAlias), *alias}, out...)
	}

	return append(b.info, out...)
}

// classify handles a choice that did not match the query as a substring.
func (e *Engine) classify(b *buckets, ch *choice.Choice, query string, m fuzzy.Match, matched bool) {
	switch {
	case ch.Miss:
		b.miss = append(b.miss, zero(ch))
	case ch.Skip:
		if ch.Group != "" {
			b.headers[ch.Group] = append(b.headers[ch.Group], len(b.results))
			b.results = append(b.results, zero(ch))
		}
	case ch.Pass.IsPattern():
		if ch.Pass.Kind == choice.PassInvalid {
			e.log.Debug("skipping pass rule", "choice", ch.ID, "err", ch.Pass.Err())
			return
		}
		if ch.Pass.Matches(query) {
			b.push(matchOrZero(m, matched, ch))
		}
	case ch.Pass.IsSet():
		b.push(matchOrZero(m, matched, ch))
	case matched && ch.LastGroup:
		b.lastGroup = append(b.lastGroup, fromMatch(m))
	case matched:
		b.push(fromMatch(m))
	}
}

func (b *buckets) push(c candidate) {
	b.members[c.sc.Item.Group]++
	b.results = append(b.results, c)
}

// dropOrphanHeaders removes header rows of groups left without members.
func (b *buckets) dropOrphanHeaders() {
	var drop []int
	for group, idx := range b.headers {
		if b.members[group] == 0 {
			drop = append(drop, idx...)
		}
	}
	if len(drop) == 0 {
		return
	}
	sort.Sort(sort.Reverse(sort.IntSlice(drop)))
	for _, i := range drop {
		b.results = append(b.results[:i], b.results[i+1:]...)
	}
}

// sortStartsWith orders exact keyword hits first, then keyword-bearing rows, then
// shorter keywords.
func sortStartsWith(cands []candidate, query string, c Corpus) {
	lower := strings.ToLower(query)
	tier := func(ch *choice.Choice) int {
		switch {
		case ch.Keyword != "" && strings.ToLower(ch.Keyword) == lower:
			return 0
		case tableHit(c, ch, query):
			return 0
		case ch.Keyword != "":
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i].sc.Item, cands[j].sc.Item
		ta, tb := tier(a), tier(b)
		if ta != tb {
			return ta < tb
		}
		return len(a.Keyword) < len(b.Keyword)
	})
}

func tableHit(c Corpus, ch *choice.Choice, query string) bool {
	if c.Table == nil {
		return false
	}
	if hit, ok := c.Table.Lookup(shortcode.Keyword, query); ok && hit == ch {
		return true
	}
	hit, ok := c.Table.Lookup(shortcode.Trigger, query)
	return ok && hit == ch
}

// withDefaultTag fills in an empty tag from the group. Rows of the Pass group and
// ungrouped rows get an explicit empty tag.
func withDefaultTag(sc choice.ScoredChoice) choice.ScoredChoice {
	if sc.Item.Tag != "" {
		return sc
	}
	group := sc.Item.Group
	if group == GroupPass {
		group = ""
	}
	return sc.WithTag(group)
}

func (c candidate) exact() candidate {
	c.sc = c.sc.AsExact()
	return c
}

func matchOrZero(m fuzzy.Match, matched bool, ch *choice.Choice) candidate {
	if matched {
		return fromMatch(m)
	}
	return zero(ch)
}
