// Package shortcode holds the exact-match lookup tables of a corpus: keywords,
// triggers, shortcodes and postfixes.
//
// Each table is a patricia trie keyed by the lower-cased token (postfixes keep
// their case and are stored reversed so suffix lookups become prefix walks).
// Tables are rebuilt wholesale from a corpus; on key collisions the later choice wins.
package shortcode

import (
	"sort"
	"strings"
	"sync"

	"github.com/bastiangx/choiceserve/pkg/choice"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// Kind names one of the four tables.
type Kind string

const (
	Keyword   Kind = "keyword"
	Trigger   Kind = "trigger"
	Shortcode Kind = "shortcode"
	Postfix   Kind = "postfix"
)

// Kinds lists the tables in resolution order.
var Kinds = []Kind{Shortcode, Trigger, Keyword, Postfix}

// Options configures a Table.
type Options struct {
	// AccumulateKeywords keeps keyword entries across rebuilds instead of clearing them.
	AccumulateKeywords bool
	Logger             *log.Logger
}

// Table is the set of exact-match lookup tries for one corpus.
type Table struct {
	mu   sync.RWMutex
	opts Options

	keywords   *patricia.Trie
	triggers   *patricia.Trie
	shortcodes *patricia.Trie
	postfixes  *patricia.Trie // reversed keys

	counts map[Kind]int
}

// New creates an empty table set.
func New(opts Options) *Table {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Table{
		opts:       opts,
		keywords:   patricia.NewTrie(),
		triggers:   patricia.NewTrie(),
		shortcodes: patricia.NewTrie(),
		postfixes:  patricia.NewTrie(),
		counts:     make(map[Kind]int, len(Kinds)),
	}
}

// Rebuild replaces the tables with the tokens of choices, in order.
func (t *Table) Rebuild(choices []*choice.Choice) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.triggers = patricia.NewTrie()
	t.shortcodes = patricia.NewTrie()
	t.postfixes = patricia.NewTrie()
	t.counts[Trigger], t.counts[Shortcode], t.counts[Postfix] = 0, 0, 0
	if !t.opts.AccumulateKeywords {
		t.keywords = patricia.NewTrie()
		t.counts[Keyword] = 0
	}

	for _, c := range choices {
		if c == nil {
			continue
		}
		t.put(Shortcode, t.shortcodes, strings.ToLower(c.Shortcode), c)
		t.put(Keyword, t.keywords, strings.ToLower(c.Keyword), c)
		t.put(Trigger, t.triggers, strings.ToLower(c.ParsedTrigger()), c)
		if c.Pass.Kind == choice.PassPostfix {
			t.put(Postfix, t.postfixes, reverse(c.Pass.Postfix), c)
		}
	}
	t.opts.Logger.Debug("shortcode tables rebuilt",
		"keywords", t.counts[Keyword], "triggers", t.counts[Trigger],
		"shortcodes", t.counts[Shortcode], "postfixes", t.counts[Postfix])
}

func (t *Table) put(kind Kind, trie *patricia.Trie, key string, c *choice.Choice) {
	if key == "" {
		return
	}
	if trie.Insert(patricia.Prefix(key), c) {
		t.counts[kind]++
		return
	}
	trie.Set(patricia.Prefix(key), c)
}

func (t *Table) trie(kind Kind) *patricia.Trie {
	switch kind {
	case Keyword:
		return t.keywords
	case Trigger:
		return t.triggers
	case Shortcode:
		return t.shortcodes
	case Postfix:
		return t.postfixes
	}
	return nil
}

// Lookup returns the choice registered under key in the given table.
// Keys are lower-cased for every table but Postfix.
func (t *Table) Lookup(kind Kind, key string) (*choice.Choice, bool) {
	if key == "" {
		return nil, false
	}
	if kind == Postfix {
		key = reverse(key)
	} else {
		key = strings.ToLower(key)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	trie := t.trie(kind)
	if trie == nil {
		return nil, false
	}
	c, ok := trie.Get(patricia.Prefix(key)).(*choice.Choice)
	return c, ok
}

// HasKeyword reports whether key is a registered keyword.
func (t *Table) HasKeyword(key string) bool {
	_, ok := t.Lookup(Keyword, key)
	return ok
}

// HasTrigger reports whether key is a registered trigger.
func (t *Table) HasTrigger(key string) bool {
	_, ok := t.Lookup(Trigger, key)
	return ok
}

// Complete returns the sorted keys of a table that start with prefix.
func (t *Table) Complete(kind Kind, prefix string) []string {
	if kind == Postfix {
		return t.completePostfix(prefix)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	trie := t.trie(kind)
	if trie == nil {
		return nil
	}

	var keys []string
	collect := func(p patricia.Prefix, _ patricia.Item) error {
		keys = append(keys, string(p))
		return nil
	}
	var err error
	if prefix == "" {
		err = trie.Visit(collect)
	} else {
		err = trie.VisitSubtree(patricia.Prefix(strings.ToLower(prefix)), collect)
	}
	if err != nil {
		t.opts.Logger.Errorf("Error visiting %s table: %v", kind, err)
	}
	sort.Strings(keys)
	return keys
}

func (t *Table) completePostfix(prefix string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var keys []string
	t.postfixes.Visit(func(p patricia.Prefix, _ patricia.Item) error {
		if key := reverse(string(p)); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	sort.Strings(keys)
	return keys
}

// matchPostfix returns the choice of the longest postfix that input ends with.
func (t *Table) matchPostfix(input string) (*choice.Choice, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var best *choice.Choice
	bestLen := 0
	t.postfixes.VisitPrefixes(patricia.Prefix(reverse(input)), func(p patricia.Prefix, item patricia.Item) error {
		if c, ok := item.(*choice.Choice); ok && len(p) > bestLen {
			best, bestLen = c, len(p)
		}
		return nil
	})
	return best, best != nil
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Choice *choice.Choice
	Kind   Kind
	Key    string
}

// Resolve finds the choice an input should trigger without ranking.
//
// Priority: exact shortcode, exact trigger, "<keyword> " (keyword followed by a
// space), then the longest postfix the trimmed input ends with.
func (t *Table) Resolve(input string) (Resolution, bool) {
	if input == "" {
		return Resolution{}, false
	}
	if c, ok := t.Lookup(Shortcode, input); ok {
		return Resolution{Choice: c, Kind: Shortcode, Key: strings.ToLower(input)}, true
	}
	if c, ok := t.Lookup(Trigger, input); ok {
		return Resolution{Choice: c, Kind: Trigger, Key: strings.ToLower(input)}, true
	}
	if kw, ok := strings.CutSuffix(input, " "); ok && kw != "" && !strings.Contains(kw, " ") {
		if c, ok := t.Lookup(Keyword, kw); ok {
			return Resolution{Choice: c, Kind: Keyword, Key: strings.ToLower(kw)}, true
		}
	}
	if trimmed := strings.TrimSpace(input); trimmed != "" {
		if c, ok := t.matchPostfix(trimmed); ok {
			return Resolution{Choice: c, Kind: Postfix, Key: c.Pass.Postfix}, true
		}
	}
	return Resolution{}, false
}

// Len returns the number of keys in a table.
func (t *Table) Len(kind Kind) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[kind]
}

// reverse reverses s by runes.
func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
