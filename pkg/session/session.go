// Package session owns the active corpus of one interactive palette: its choices,
// flags, scorer indexes and shortcode tables. It exposes the operations a host
// drives (set, append, query, flags) and emits results on named channels.
//
// A Session serializes its operations with a mutex; each query runs to
// completion before the next starts. Sessions share nothing mutable except an
// optional DefaultsCache.
package session

import (
	"regexp"
	"sync"
	"time"

	"github.com/bastiangx/choiceserve/pkg/choice"
	"github.com/bastiangx/choiceserve/pkg/fuzzy"
	"github.com/bastiangx/choiceserve/pkg/normalize"
	"github.com/bastiangx/choiceserve/pkg/rank"
	"github.com/bastiangx/choiceserve/pkg/shortcode"
	"github.com/charmbracelet/log"
)

// Options configures a Session.
type Options struct {
	Name    string
	Search  fuzzy.Options
	Emitter Emitter
	Logger  *log.Logger

	// AccumulateKeywords keeps keyword table entries across corpus changes.
	AccumulateKeywords bool

	// Defaults receives the default view; may be nil.
	Defaults *DefaultsCache
}

// SetOptions modifies how a corpus is set and queried.
type SetOptions struct {
	// Preload is passed through on CHOICES_CONFIG.
	Preload bool `json:"preload,omitempty" msgpack:"preload,omitempty"`

	// SkipInitialSearch resets the input instead of querying right away.
	SkipInitialSearch bool `json:"skipInitialSearch,omitempty" msgpack:"skipInitialSearch,omitempty"`

	// Generated marks corpora already filtered by the host; queries return them unchanged.
	Generated bool `json:"generated,omitempty" msgpack:"generated,omitempty"`

	// InputRegex, when set, replaces each query by its first match.
	InputRegex string `json:"inputRegex,omitempty" msgpack:"inputRegex,omitempty"`

	// IsDefault marks the default view whose empty-input result is cached.
	IsDefault bool `json:"isDefault,omitempty" msgpack:"isDefault,omitempty"`
}

type corpus struct {
	choices  []*choice.Choice
	index    *fuzzy.Index
	hasGroup bool
	input    string
}

func (c *corpus) rank(table *shortcode.Table) rank.Corpus {
	rc := rank.Corpus{Choices: c.choices, Table: table, HasGroup: c.hasGroup}
	if c.index != nil {
		rc.Scorer = c.index
	}
	return rc
}

// Session is one palette's search state.
type Session struct {
	mu sync.Mutex

	name      string
	opts      Options
	log       *log.Logger
	emitter   Emitter
	norm      *normalize.Cache
	engine    *rank.Engine
	table     *shortcode.Table
	main      corpus
	flags     corpus
	set       SetOptions
	transform *regexp.Regexp
	invalid   int
}

// New creates an empty session.
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Emitter == nil {
		opts.Emitter = discard{}
	}
	if len(opts.Search.Keys) == 0 {
		opts.Search.Keys = fuzzy.DefaultKeys
	}
	logger := opts.Logger
	if opts.Name != "" {
		logger = logger.With("session", opts.Name)
	}

	norm := normalize.NewCache()
	return &Session{
		name:    opts.Name,
		opts:    opts,
		log:     logger,
		emitter: opts.Emitter,
		norm:    norm,
		engine:  rank.New(norm, opts.Search.Keys, logger),
		table:   shortcode.New(shortcode.Options{AccumulateKeywords: opts.AccumulateKeywords, Logger: logger}),
	}
}

// Name returns the session name.
func (s *Session) Name() string {
	return s.name
}

// SetChoices replaces the corpus. Nil and excluded choices are dropped; invalid
// pass patterns are logged and only disable that choice's pass rule.
//
// SELECTED_CHOICES and CHOICES_CONFIG are emitted, then the current input is
// queried unless SkipInitialSearch is set, in which case the input is reset.
func (s *Session) SetChoices(choices []*choice.Choice, opts SetOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setChoicesLocked(choices, opts)
}

// AppendChoices adds choices to the corpus and sets it again with the current options.
func (s *Session) AppendChoices(choices []*choice.Choice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]*choice.Choice, 0, len(s.main.choices)+len(choices))
	merged = append(merged, s.main.choices...)
	merged = append(merged, choices...)
	s.setChoicesLocked(merged, s.set)
}

func (s *Session) setChoicesLocked(choices []*choice.Choice, opts SetOptions) {
	start := time.Now()

	active := make([]*choice.Choice, 0, len(choices))
	var selected []*choice.Choice
	hasGroup := false
	invalid := 0
	for _, c := range choices {
		if c == nil || c.Exclude {
			continue
		}
		if c.Pass.Kind == choice.PassInvalid {
			invalid++
			s.log.Warn("invalid pass pattern", "choice", c.ID, "err", c.Pass.Err())
		}
		if c.Group != "" {
			hasGroup = true
		}
		if c.Selected {
			selected = append(selected, c)
		}
		active = append(active, c)
	}

	s.set = opts
	s.transform = nil
	if opts.InputRegex != "" {
		re, err := regexp.Compile(opts.InputRegex)
		if err != nil {
			s.log.Warn("ignoring input transform", "pattern", opts.InputRegex, "err", err)
		} else {
			s.transform = re
		}
	}

	s.invalid = invalid
	s.main.choices = active
	s.main.hasGroup = hasGroup
	s.main.index = fuzzy.NewIndex(active, s.norm, s.opts.Search)
	s.table.Rebuild(active)

	if selected == nil {
		selected = []*choice.Choice{}
	}
	s.emitter.Emit(SelectedChoices, selected)
	s.emitter.Emit(ChoicesConfig, ConfigPayload{Preload: opts.Preload})

	s.log.Debug("choices set", "choices", len(active), "grouped", hasGroup, "invalid", invalid, "took", time.Since(start))

	if opts.SkipInitialSearch {
		s.main.input = ""
		return
	}
	s.queryLocked(s.main.input, "set choices")
}

// Query ranks rawInput against the corpus and emits SCORED_CHOICES.
// reason is only logged.
func (s *Session) Query(rawInput, reason string) []choice.ScoredChoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(rawInput, reason)
}

func (s *Session) queryLocked(rawInput, reason string) []choice.ScoredChoice {
	start := time.Now()
	input := rawInput
	if s.transform != nil {
		input = s.transform.FindString(rawInput)
	}
	s.main.input = input

	var results []choice.ScoredChoice
	if s.set.Generated {
		results = make([]choice.ScoredChoice, 0, len(s.main.choices))
		for _, c := range s.main.choices {
			results = append(results, choice.Score(c, 0, nil))
		}
	} else {
		results = s.engine.Rank(s.main.rank(s.table), input)
	}

	s.emitter.Emit(ScoredChoices, results)
	if s.set.IsDefault && input == "" && s.transform == nil {
		s.emitter.Emit(CachedDefaults, results)
		if s.opts.Defaults != nil {
			s.opts.Defaults.Publish(results)
		}
	}

	s.log.Debug("query", "input", input, "reason", reason, "results", len(results), "took", time.Since(start))
	return results
}

// SetFlags replaces the flag corpus and emits SCORED_FLAGS for the current flag input.
func (s *Session) SetFlags(fs FlagSet) []choice.ScoredChoice {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags := make([]*choice.Choice, 0, len(fs.Flags))
	hasGroup := false
	for _, c := range fs.Choices() {
		if c.Exclude {
			continue
		}
		if c.Group != "" {
			hasGroup = true
		}
		flags = append(flags, c)
	}
	s.flags.choices = flags
	s.flags.hasGroup = hasGroup
	s.flags.index = fuzzy.NewIndex(flags, s.norm, s.opts.Search)
	s.log.Debug("flags set", "flags", len(flags))

	return s.queryFlagsLocked(s.flags.input)
}

// QueryFlags ranks rawInput against the flags and emits SCORED_FLAGS.
func (s *Session) QueryFlags(rawInput string) []choice.ScoredChoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryFlagsLocked(rawInput)
}

func (s *Session) queryFlagsLocked(input string) []choice.ScoredChoice {
	s.flags.input = input
	results := s.engine.RankFlags(s.flags.rank(nil), input)
	s.emitter.Emit(ScoredFlags, results)
	return results
}

// Resolve returns the choice input triggers through the shortcode tables.
func (s *Session) Resolve(input string) (shortcode.Resolution, bool) {
	return s.table.Resolve(input)
}

// Complete lists the keys of a shortcode table starting with prefix.
func (s *Session) Complete(kind shortcode.Kind, prefix string) []string {
	return s.table.Complete(kind, prefix)
}

// Input returns the effective input of the last query.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.main.input
}

// Len returns the number of active choices.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.main.choices)
}

// Stats describes the session state.
type Stats struct {
	Name            string         `json:"name" msgpack:"name"`
	Choices         int            `json:"choices" msgpack:"choices"`
	Flags           int            `json:"flags" msgpack:"flags"`
	Grouped         bool           `json:"grouped" msgpack:"grouped"`
	InvalidPatterns int            `json:"invalidPatterns" msgpack:"invalidPatterns"`
	Tables          map[string]int `json:"tables" msgpack:"tables"`
	Normalized      int            `json:"normalized" msgpack:"normalized"`
	Input           string         `json:"input" msgpack:"input"`
}

// Stats returns counts of the session's corpus, tables and caches.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := make(map[string]int, len(shortcode.Kinds))
	for _, k := range shortcode.Kinds {
		tables[string(k)] = s.table.Len(k)
	}
	return Stats{
		Name:            s.name,
		Choices:         len(s.main.choices),
		Flags:           len(s.flags.choices),
		Grouped:         s.main.hasGroup,
		InvalidPatterns: s.invalid,
		Tables:          tables,
		Normalized:      s.norm.Len(),
		Input:           s.main.input,
	}
}
