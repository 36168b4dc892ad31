package rank

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/bastiangx/choiceserve/internal/logger"
	"github.com/bastiangx/choiceserve/pkg/choice"
	"github.com/bastiangx/choiceserve/pkg/fuzzy"
	"github.com/bastiangx/choiceserve/pkg/normalize"
	"github.com/bastiangx/choiceserve/pkg/shortcode"
)

func setup(choices ...*choice.Choice) (*Engine, Corpus) {
	norm := normalize.NewCache()
	hasGroup := false
	for _, c := range choices {
		if c.Group != "" {
			hasGroup = true
		}
	}
	tbl := shortcode.New(shortcode.Options{Logger: logger.Discard()})
	tbl.Rebuild(choices)
	c := Corpus{
		Choices:  choices,
		Scorer:   fuzzy.NewIndex(choices, norm, fuzzy.Options{}),
		Table:    tbl,
		HasGroup: hasGroup,
	}
	return New(norm, nil, logger.Discard()), c
}

func ids(results []choice.ScoredChoice) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Item.ID)
	}
	return out
}

func firstSelectable(results []choice.ScoredChoice) *choice.ScoredChoice {
	for i := range results {
		if !results[i].Item.Skip {
			return &results[i]
		}
	}
	return nil
}

func TestAliasWinsFlat(t *testing.T) {
	e, c := setup(
		&choice.Choice{ID: "1", Name: "File Manager", Alias: "fm"},
		&choice.Choice{ID: "2", Name: "fm radio script"},
	)
	results := e.Rank(c, "fm")
	first := firstSelectable(results)
	if first == nil || first.Item.ID != "1" {
		t.Fatalf("expected alias choice first, got %v", ids(results))
	}
	if first.EffectiveGroup() != GroupAlias || first.Passes() {
		t.Errorf("alias row should be in the Alias group without pass: %+v", first)
	}
	if !reflect.DeepEqual(ids(results), []string{"1", "2"}) {
		t.Errorf("alias should not repeat, got %v", ids(results))
	}
}

func TestAliasWinsGrouped(t *testing.T) {
	e, c := setup(
		&choice.Choice{ID: "1", Name: "File Manager", Alias: "fm", Group: "Apps"},
		&choice.Choice{ID: "2", Name: "fm radio script", Group: "Apps"},
		&choice.Choice{ID: "i", Name: "Tip", Info: true},
	)
	results := e.Rank(c, "fm")
	expected := []string{"i", choice.HeaderIDPrefix + GroupAlias, "1", choice.HeaderIDPrefix + GroupExactMatch, "2"}
	if got := ids(results); !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
	if first := firstSelectable(results); first.Item.ID != "i" {
		t.Errorf("info choices lead the list, got %s", first.Item.ID)
	}
}

func TestAliasIsCaseSensitiveAndScriptOnly(t *testing.T) {
	e, c := setup(
		&choice.Choice{ID: "1", Name: "Zebra", Alias: "FM"},
		&choice.Choice{ID: "2", Name: "Yak", Alias: "fm", Kind: "Action"},
		&choice.Choice{ID: "3", Name: "fm radio"},
	)
	if first := firstSelectable(e.Rank(c, "fm")); first == nil || first.Item.ID != "3" {
		t.Errorf("no alias should apply, got %+v", first)
	}
}

func TestAliasCollisionLastWins(t *testing.T) {
	e, c := setup(
		&choice.Choice{ID: "1", Name: "One", Alias: "x", Group: "G"},
		&choice.Choice{ID: "2", Name: "Two", Alias: "x", Group: "G"},
	)
	if first := firstSelectable(e.Rank(c, "x")); first == nil || first.Item.ID != "2" {
		t.Errorf("expected last alias to win, got %+v", first)
	}
}

func TestEmptyQuery(t *testing.T) {
	e, c := setup(
		&choice.Choice{ID: "1", Name: "Choice 1"},
		&choice.Choice{ID: "2", Name: "Choice 2", Miss: true},
		&choice.Choice{ID: "3", Name: "Choice 3", HideWithoutInput: true},
	)
	if got := ids(e.Rank(c, "")); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("expected [1], got %v", got)
	}
}

func TestEmptyQueryFallback(t *testing.T) {
	e, c := setup(
		&choice.Choice{ID: "1", Name: "Hidden", HideWithoutInput: true},
		&choice.Choice{ID: "2", Name: "Miss", Miss: true},
		&choice.Choice{ID: "3", Name: "Pass", Pass: choice.Always()},
		&choice.Choice{ID: "4", Name: "Info", Info: true, Miss: true},
	)
	if got := ids(e.Rank(c, "")); !reflect.DeepEqual(got, []string{"2", "4"}) {
		t.Errorf("expected miss and info fallback [2 4], got %v", got)
	}
}

// property: an empty query never shows pass, miss or hideWithoutInput choices unless falling back
func TestEmptyQueryProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(8)
		choices := make([]*choice.Choice, n)
		for i := range choices {
			c := &choice.Choice{ID: fmt.Sprint(i), Name: fmt.Sprintf("choice %d", i)}
			c.Miss = rng.Intn(3) == 0
			c.Info = rng.Intn(4) == 0
			c.HideWithoutInput = rng.Intn(3) == 0
			if rng.Intn(3) == 0 {
				c.Pass = choice.Always()
			}
			if rng.Intn(2) == 0 {
				c.Group = "G"
			}
			choices[i] = c
		}
		e, c := setup(choices...)
		results := e.Rank(c, "")

		visible := 0
		for _, ch := range choices {
			if !ch.Miss && !ch.Pass.IsSet() && !ch.HideWithoutInput {
				visible++
			}
		}
		for _, r := range results {
			if visible > 0 && (r.Item.Miss || r.Item.Pass.IsSet() || r.Item.HideWithoutInput) {
				t.Fatalf("round %d: %s should be hidden for empty query", round, r.Item.ID)
			}
			if visible == 0 && !r.Item.Miss && !r.Item.Info {
				t.Fatalf("round %d: fallback may only hold miss or info, got %s", round, r.Item.ID)
			}
		}
		if visible > 0 && len(results) != visible {
			t.Fatalf("round %d: expected %d results, got %d", round, visible, len(results))
		}
	}
}

func TestHyphenatedHighlight(t *testing.T) {
	e, c := setup(&choice.Choice{ID: "1", Name: "kit-container"})
	results := e.Rank(c, "kitcontainer")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0].Matches["name"]
	if len(r) != 1 || r[0].Start != 0 || r[0].End != 13 {
		t.Errorf("expected raw range [0,13), got %v", r)
	}
}

func TestRegexPass(t *testing.T) {
	regex := &choice.Choice{ID: "1", Name: "Regex Choice", Pass: choice.ParsePass("/^test.*/i")}

	t.Run("flat", func(t *testing.T) {
		e, c := setup(regex)
		if got := ids(e.Rank(c, "testing123")); !reflect.DeepEqual(got, []string{"1"}) {
			t.Errorf("expected [1], got %v", got)
		}
	})

	t.Run("flat fallback keeps pass choices", func(t *testing.T) {
		e, c := setup(
			regex,
			&choice.Choice{ID: "p", Name: "Postfix", Pass: choice.ParsePass("sfx")},
			&choice.Choice{ID: "m", Name: "Missing", Miss: true},
			&choice.Choice{ID: "o", Name: "Other"},
			&choice.Choice{ID: "bad", Name: "Broken", Pass: choice.ParsePass("/(unclosed/")},
		)
		if got := ids(e.Rank(c, "zzz")); !reflect.DeepEqual(got, []string{"1", "p", "m"}) {
			t.Errorf("expected [1 p m], got %v", got)
		}
	})

	t.Run("grouped", func(t *testing.T) {
		e, c := setup(regex, &choice.Choice{ID: "2", Name: "Other", Group: "G"})
		if got := ids(e.Rank(c, "testing123")); !reflect.DeepEqual(got, []string{"1"}) {
			t.Errorf("expected [1], got %v", got)
		}
	})
}

func TestGroupedSubstringWithoutScorerMatch(t *testing.T) {
	// a scorer limited to other keys finds nothing, though both names contain the query
	e, c := setup(
		&choice.Choice{ID: "pass", Name: "deploy anywhere", Pass: choice.Always(), Group: "G"},
		&choice.Choice{ID: "plain", Name: "deploy here", Group: "G"},
	)
	c.Scorer = nil

	results := e.Rank(c, "deploy")
	if got := ids(results); !reflect.DeepEqual(got, []string{"pass"}) {
		t.Fatalf("only the pass rule should admit a row, got %v", got)
	}
	if results[0].Exact {
		t.Error("a row admitted by its pass rule is not an exact match")
	}
}

func TestInvalidPatternIsolated(t *testing.T) {
	e, c := setup(
		&choice.Choice{ID: "bad", Name: "Bad", Pass: choice.ParsePass("/(unclosed/"), Group: "G"},
		&choice.Choice{ID: "ok", Name: "Anything", Pass: choice.Always(), Group: "G"},
		&choice.Choice{ID: "hit", Name: "unclosed thing", Group: "G"},
	)
	got := ids(e.Rank(c, "(unclosed"))
	for _, id := range got {
		if id == "bad" {
			t.Fatalf("invalid pattern must not pass, got %v", got)
		}
	}
	if !reflect.DeepEqual(got, []string{"ok"}) {
		t.Errorf("expected [ok], got %v", got)
	}

	// still reachable through ordinary matching
	if got := ids(e.Rank(c, "bad")); len(got) == 0 || got[1] != "bad" {
		t.Errorf("expected bad via substring match, got %v", got)
	}
}

func TestOrphanHeadersRemoved(t *testing.T) {
	e, c := setup(
		&choice.Choice{ID: "h1", Name: "Files", Group: "Files", Skip: true},
		&choice.Choice{ID: "1", Name: "Open File", Group: "Files"},
		&choice.Choice{ID: "h2", Name: "Web", Group: "Web", Skip: true},
		&choice.Choice{ID: "2", Name: "Search Web", Group: "Web"},
	)
	if got := ids(e.Rank(c, "opfl")); !reflect.DeepEqual(got, []string{"h1", "1"}) {
		t.Errorf("expected [h1 1], got %v", got)
	}
}

func TestPassGroupHeaderKeptWithMembers(t *testing.T) {
	e, c := setup(
		&choice.Choice{ID: "hp", Name: "Pass", Group: GroupPass, Skip: true},
		&choice.Choice{ID: "p", Name: "Ask", Group: GroupPass, Pass: choice.Always()},
		&choice.Choice{ID: "1", Name: "Alpha", Group: "G"},
	)
	if got := ids(e.Rank(c, "zzz")); !reflect.DeepEqual(got, []string{"hp", "p"}) {
		t.Errorf("expected [hp p], got %v", got)
	}
}

func TestStartsWithOrdering(t *testing.T) {
	e, c := setup(
		&choice.Choice{ID: "a", Name: "Screen capture", Group: "G"},
		&choice.Choice{ID: "b", Name: "Script runner", Keyword: "scr", Group: "G"},
		&choice.Choice{ID: "c", Name: "Scale", Keyword: "sc", Group: "G"},
		&choice.Choice{ID: "d", Name: "Describe", Group: "G"},
	)
	results := e.Rank(c, "sc")
	expected := []string{choice.HeaderIDPrefix + GroupExactMatch, "c", "b", "a", "d"}
	if got := ids(results); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	for _, r := range results[1:] {
		if !r.Exact || r.Passes() {
			t.Errorf("%s should be exact without pass", r.Item.ID)
		}
		if r.EffectiveTag() != "G" {
			t.Errorf("%s tag should default to its group, got %q", r.Item.ID, r.EffectiveTag())
		}
	}
}

func TestTriggerHitSortsFirst(t *testing.T) {
	e, c := setup(
		&choice.Choice{ID: "a", Name: "Open Folder", Keyword: "o", Group: "G"},
		&choice.Choice{ID: "b", Name: "Open [op] Project", Group: "G"},
	)
	got := ids(e.Rank(c, "op"))
	if len(got) < 3 || got[1] != "b" {
		t.Errorf("trigger hit should lead the exact block, got %v", got)
	}
}

func TestLastGroupAndMissFallback(t *testing.T) {
	e, c := setup(
		&choice.Choice{ID: "1", Name: "Alpha", Group: "G"},
		&choice.Choice{ID: "t1", Name: "Later thing", LastGroup: true, Group: "Tail"},
		&choice.Choice{ID: "t2", Name: "Later other", Keyword: "lo", LastGroup: true, Group: "Tail"},
		&choice.Choice{ID: "m", Name: "Fallback", Miss: true, Group: "G"},
	)

	expected := []string{choice.HeaderIDPrefix + "Tail", "t2", "t1"}
	if got := ids(e.Rank(c, "later")); !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
	if got := ids(e.Rank(c, "zzz")); !reflect.DeepEqual(got, []string{"m"}) {
		t.Errorf("expected miss fallback [m], got %v", got)
	}
}

func TestFlatOrdering(t *testing.T) {
	e, c := setup(
		&choice.Choice{ID: "1", Name: "Reopen"},
		&choice.Choice{ID: "2", Name: "Open"},
		&choice.Choice{ID: "3", Name: "o-p-e-n"},
		&choice.Choice{ID: "i", Name: "Tip", Info: true},
		&choice.Choice{ID: "m", Name: "open miss", Miss: true},
	)
	expected := []string{"i", "2", "1", "3"}
	if got := ids(e.Rank(c, "open")); !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestFlatSubstringFallback(t *testing.T) {
	e, c := setup(
		&choice.Choice{ID: "1", Name: "Alpha"},
		&choice.Choice{ID: "m", Name: "Miss", Miss: true},
		&choice.Choice{ID: "p", Name: "Pass", Pass: choice.ParsePass(";")},
	)
	if got := ids(e.Rank(c, "zzz")); !reflect.DeepEqual(got, []string{"m", "p"}) {
		t.Errorf("expected [m p], got %v", got)
	}
}

func TestDeterminism(t *testing.T) {
	choices := syntheticCorpus(500)
	e, c := setup(choices...)
	for _, q := range []string{"file", "fm", "script 4", "zz", ""} {
		a := e.Rank(c, q)
		b := e.Rank(c, q)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("query %q: results differ between runs", q)
		}
	}
}

func TestNoDuplicateIDs(t *testing.T) {
	e, c := setup(
		&choice.Choice{ID: "dup", Name: "Open One", Group: "G"},
		&choice.Choice{ID: "dup", Name: "Open Two", Group: "G"},
	)
	if got := ids(e.Rank(c, "open")); len(got) != 2 {
		t.Errorf("expected header and one row, got %v", got)
	}
}

func TestEmptyCorpus(t *testing.T) {
	e, c := setup()
	if got := e.Rank(c, "x"); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %v", got)
	}
}

func TestRankFlags(t *testing.T) {
	flags := []*choice.Choice{
		{ID: "verbose", Name: "verbose", Group: "Flags"},
		{ID: "help", Name: "help", Group: "Flags"},
		{ID: "custom", Name: "custom", Pass: choice.Always(), Group: "Flags"},
		{ID: "none", Name: "none", Miss: true, Group: "Flags"},
	}
	e, c := setup(flags...)

	expected := []string{choice.HeaderIDPrefix + GroupExactMatch, "verbose", "custom"}
	if got := ids(e.RankFlags(c, "verb")); !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
	if got := ids(e.RankFlags(c, "zzz")); !reflect.DeepEqual(got, []string{"custom"}) {
		t.Errorf("expected pass-through only, got %v", got)
	}

	e, c = setup(flags[0], flags[1], flags[3])
	if got := ids(e.RankFlags(c, "zzz")); !reflect.DeepEqual(got, []string{"none"}) {
		t.Errorf("expected miss fallback, got %v", got)
	}
}

func TestLargeCorpusBoundedTime(t *testing.T) {
	e, c := setup(syntheticCorpus(10000)...)
	start := time.Now()
	results := e.Rank(c, "file manager")
	elapsed := time.Since(start)
	if len(results) == 0 {
		t.Error("expected matches in the synthetic corpus")
	}
	if elapsed > 2*time.Second {
		t.Errorf("ranking 10k choices took %v", elapsed)
	}
}

func syntheticCorpus(n int) []*choice.Choice {
	words := []string{"file", "manager", "script", "open", "search", "web", "clip", "board", "kit", "container"}
	choices := make([]*choice.Choice, n)
	for i := range choices {
		choices[i] = &choice.Choice{
			ID:      fmt.Sprintf("choice-%d", i),
			Name:    fmt.Sprintf("%s %s %d", words[i%len(words)], words[(i/len(words))%len(words)], i),
			Keyword: fmt.Sprintf("k%d", i%37),
			Group:   fmt.Sprintf("Group %d", i%12),
		}
	}
	return choices
}

func BenchmarkRankGrouped10k(b *testing.B) {
	e, c := setup(syntheticCorpus(10000)...)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Rank(c, "file manager")
	}
}

func BenchmarkRankFlat10k(b *testing.B) {
	choices := syntheticCorpus(10000)
	for _, ch := range choices {
		ch.Group = ""
	}
	e, c := setup(choices...)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Rank(c, "file manager")
	}
}
