package rank

import (
	"github.com/bastiangx/choiceserve/pkg/choice"
	"github.com/bastiangx/choiceserve/pkg/fuzzy"
)

// groupedFlags is the grouped layout for flag corpora: info rows, then the scorer's
// matches in score order behind an exact-match header, then pass-through flags. Miss flags are
// shown only when nothing else is.
func (e *Engine) groupedFlags(c Corpus, query string, raw []fuzzy.Match) []candidate {
	byChoice := make(map[*choice.Choice]fuzzy.Match, len(raw))
	for _, m := range raw {
		byChoice[m.Choice] = m
	}

	var infos, matches, passed, missed []candidate
	for _, ch := range c.Choices {
		m, matched := byChoice[ch]
		switch {
		case ch.Info:
			infos = append(infos, matchOrZero(m, matched, ch))
		case ch.Miss:
			missed = append(missed, zero(ch))
		case ch.Skip:
		case ch.Pass.IsSet():
			if ch.Pass.Kind == choice.PassInvalid {
				e.log.Debug("skipping pass rule", "flag", ch.ID, "err", ch.Pass.Err())
				continue
			}
			if passes(ch, query) {
				passed = append(passed, matchOrZero(m, matched, ch))
			}
		}
	}
	for _, m := range raw {
		ch := m.Choice
		if ch.Info || ch.Miss || ch.Skip || ch.Pass.IsSet() {
			continue
		}
		matches = append(matches, fromMatch(m).exact())
	}

	out := make([]candidate, 0, len(infos)+len(matches)+len(passed)+1)
	out = append(out, infos...)
	if len(matches) == 0 && len(passed) == 0 {
		return append(out, missed...)
	}
	if len(matches) > 0 {
		out = append(out, header(GroupExactMatch))
		out = append(out, matches...)
	}
	return append(out, passed...)
}
