package server

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/bastiangx/choiceserve/internal/logger"
	"github.com/bastiangx/choiceserve/pkg/choice"
	"github.com/bastiangx/choiceserve/pkg/config"
	"github.com/bastiangx/choiceserve/pkg/session"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

func testChoices() choice.List {
	return choice.NewList([]*choice.Choice{
		{ID: "open", Name: "Open File"},
		{ID: "close", Name: "Close Window"},
		{ID: "gh", Name: "GitHub", Keyword: "gh"},
		{ID: "status", Name: "Git Status", Shortcode: "gs"},
	})
}

// runServer feeds reqs to a server and returns every message it wrote.
func runServer(t *testing.T, cfg *config.Config, reqs ...any) []RawMessage {
	t.Helper()
	var in bytes.Buffer
	enc := msgpack.NewEncoder(&in)
	for _, r := range reqs {
		if err := enc.Encode(r); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}

	var out bytes.Buffer
	srv := NewWithIO(cfg, "", &in, &out)
	srv.SetLogger(logger.Discard())
	if err := srv.Start(); err != nil {
		t.Fatalf("server returned %v", err)
	}

	var msgs []RawMessage
	dec := msgpack.NewDecoder(&out)
	for {
		var m RawMessage
		if err := dec.Decode(&m); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			t.Fatalf("decoding message: %v", err)
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func find(msgs []RawMessage, id string) (RawMessage, bool) {
	for _, m := range msgs {
		if m.ID == id {
			return m, true
		}
	}
	return RawMessage{}, false
}

func lastOn(msgs []RawMessage, channel string) (RawMessage, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Channel == channel {
			return msgs[i], true
		}
	}
	return RawMessage{}, false
}

func resultIDs(t *testing.T, m RawMessage) []string {
	t.Helper()
	results, err := m.Results()
	if err != nil {
		t.Fatalf("decoding results: %v", err)
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.ID())
	}
	return out
}

func TestServerHealth(t *testing.T) {
	msgs := runServer(t, nil, Request{ID: "h1", Action: ActionHealth})
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want ready and health", len(msgs))
	}
	if msgs[0].Channel != ChannelStatus {
		t.Errorf("first message should be the ready status, got %s", msgs[0].Channel)
	}
	if msgs[1].ID != "h1" || msgs[1].Channel != ChannelStatus {
		t.Errorf("unexpected health reply %+v", msgs[1])
	}
}

func TestServerSetChoicesAndQuery(t *testing.T) {
	msgs := runServer(t, nil,
		Request{ID: "s1", Action: ActionSetChoices, Session: "main", Choices: testChoices()},
		Request{ID: "q1", Action: ActionQuery, Session: "main", Input: "file"},
	)

	var channels []string
	for _, m := range msgs {
		if m.Session == "main" && m.ID == "" {
			channels = append(channels, m.Channel)
		}
	}
	want := []string{
		string(session.SelectedChoices),
		string(session.ChoicesConfig),
		string(session.ScoredChoices),
		string(session.ScoredChoices),
	}
	if !reflect.DeepEqual(channels, want) {
		t.Errorf("session channels %v, want %v", channels, want)
	}

	reply, ok := find(msgs, "s1")
	if !ok || reply.Channel != ChannelStatus {
		t.Fatalf("missing set_choices status, got %+v", reply)
	}

	last, _ := lastOn(msgs, string(session.ScoredChoices))
	ids := resultIDs(t, last)
	if len(ids) == 0 || ids[0] != "open" {
		t.Errorf("query results %v, want open first", ids)
	}
}

func TestServerUnknownAction(t *testing.T) {
	msgs := runServer(t, nil, Request{ID: "x1", Action: "frobnicate"})
	m, ok := find(msgs, "x1")
	if !ok || m.Channel != ChannelError {
		t.Fatalf("want an error reply, got %+v", m)
	}
	if !strings.Contains(m.Error, ErrUnknownAction.Error()) {
		t.Errorf("error %q should name the unknown action", m.Error)
	}
}

func TestServerInvalidRequestKeepsServing(t *testing.T) {
	msgs := runServer(t, nil,
		"not a request",
		Request{ID: "h2", Action: ActionHealth},
	)
	if _, ok := lastOn(msgs, ChannelError); !ok {
		t.Error("invalid request should produce an error message")
	}
	if m, ok := find(msgs, "h2"); !ok || m.Channel != ChannelStatus {
		t.Error("server should keep serving after an invalid request")
	}
}

func TestServerResolveAndComplete(t *testing.T) {
	msgs := runServer(t, nil,
		Request{ID: "s1", Action: ActionSetChoices, Choices: testChoices(), Options: session.SetOptions{SkipInitialSearch: true}},
		Request{ID: "r1", Action: ActionResolve, Input: "gh "},
		Request{ID: "r2", Action: ActionResolve, Input: "GS"},
		Request{ID: "r3", Action: ActionResolve, Input: "nothing"},
		Request{ID: "c1", Action: ActionComplete, Kind: "keyword", Input: "g"},
		Request{ID: "c2", Action: ActionComplete, Kind: "bogus"},
	)

	tests := []struct {
		id    string
		found bool
		kind  string
		key   string
	}{
		{"r1", true, "keyword", "gh"},
		{"r2", true, "shortcode", "gs"},
		{"r3", false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			m, ok := find(msgs, tt.id)
			if !ok || m.Channel != ChannelResolved {
				t.Fatalf("missing resolve reply, got %+v", m)
			}
			var r Resolved
			if err := msgpack.Unmarshal(m.Data, &r); err != nil {
				t.Fatal(err)
			}
			if r.Found != tt.found || r.Kind != tt.kind || r.Key != tt.key {
				t.Errorf("resolved %+v, want found=%v kind=%q key=%q", r, tt.found, tt.kind, tt.key)
			}
		})
	}

	m, ok := find(msgs, "c1")
	if !ok || m.Channel != ChannelCompletions {
		t.Fatalf("missing completions reply, got %+v", m)
	}
	var keys []string
	if err := msgpack.Unmarshal(m.Data, &keys); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(keys, []string{"gh"}) {
		t.Errorf("completions %v, want [gh]", keys)
	}
	if m, ok := find(msgs, "c2"); !ok || m.Channel != ChannelError {
		t.Error("unknown table should be an error")
	}
}

func TestServerTruncatesInput(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.MaxInput = 3
	msgs := runServer(t, cfg,
		Request{ID: "s1", Action: ActionSetChoices, Choices: testChoices()},
		Request{ID: "q1", Action: ActionQuery, Input: "abcdef"},
		Request{ID: "st", Action: ActionStats},
	)
	m, ok := find(msgs, "st")
	if !ok {
		t.Fatal("missing stats reply")
	}
	var stats session.Stats
	if err := msgpack.Unmarshal(m.Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Input != "abc" {
		t.Errorf("input %q, want it cut to 3 runes", stats.Input)
	}
	if stats.Choices != 4 || stats.Name != DefaultSession {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestServerCoalescesLargeCorpora(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.ImmediateThreshold = 1
	cfg.Server.RateIntervalMs = 60_000
	msgs := runServer(t, cfg,
		Request{ID: "s1", Action: ActionSetChoices, Choices: testChoices()},
		Request{ID: "q1", Action: ActionQuery, Input: "git"},
		Request{ID: "q2", Action: ActionQuery, Input: "clo"},
		Request{ID: "q3", Action: ActionQuery, Input: "file"},
	)

	scored := 0
	for _, m := range msgs {
		if m.Channel == string(session.ScoredChoices) {
			scored++
		}
	}
	if scored > 3 {
		t.Errorf("got %d scored messages, older inputs should be coalesced", scored)
	}

	last, _ := lastOn(msgs, string(session.ScoredChoices))
	ids := resultIDs(t, last)
	if len(ids) == 0 || ids[0] != "open" {
		t.Errorf("last results %v should be for the latest input", ids)
	}
}

func TestServerSessionsAreIndependent(t *testing.T) {
	msgs := runServer(t, nil,
		Request{ID: "a", Action: ActionSetChoices, Session: "one", Choices: testChoices()},
		Request{ID: "b", Action: ActionSetChoices, Session: "two", Choices: choice.NewList(testChoices().Choices[:1])},
		Request{ID: "sa", Action: ActionStats, Session: "one"},
		Request{ID: "sb", Action: ActionStats, Session: "two"},
		Request{ID: "close", Action: ActionClose, Session: "two"},
		Request{ID: "sb2", Action: ActionStats, Session: "two"},
	)

	count := func(id string) int {
		m, ok := find(msgs, id)
		if !ok {
			t.Fatalf("missing reply %s", id)
		}
		var stats session.Stats
		if err := msgpack.Unmarshal(m.Data, &stats); err != nil {
			t.Fatal(err)
		}
		return stats.Choices
	}
	if got := count("sa"); got != 4 {
		t.Errorf("session one has %d choices, want 4", got)
	}
	if got := count("sb"); got != 1 {
		t.Errorf("session two has %d choices, want 1", got)
	}
	if got := count("sb2"); got != 0 {
		t.Errorf("closed session should start over, has %d choices", got)
	}
}

func TestServerKeepsGoodChoicesOfMixedCorpus(t *testing.T) {
	set := map[string]any{
		"id":      "s1",
		"action":  ActionSetChoices,
		"session": "mixed",
		"choices": []any{
			map[string]any{"id": "1", "name": "ok"},
			map[string]any{"id": "2", "name": 123, "keyword": "two"},
			"not a choice",
			nil,
			map[string]any{"id": "3", "name": "other", "miss": "yes"},
		},
	}
	msgs := runServer(t, nil,
		set,
		Request{ID: "st", Action: ActionStats, Session: "mixed"},
		Request{ID: "r", Action: ActionResolve, Session: "mixed", Input: "two "},
	)

	if m, ok := find(msgs, "s1"); !ok || m.Channel != ChannelStatus {
		t.Fatalf("set_choices should succeed, got %+v", m)
	}
	m, ok := find(msgs, "st")
	if !ok {
		t.Fatal("missing stats reply")
	}
	var stats session.Stats
	if err := msgpack.Unmarshal(m.Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Choices != 3 {
		t.Errorf("got %d choices, want the 3 object entries", stats.Choices)
	}

	m, ok = find(msgs, "r")
	if !ok {
		t.Fatal("missing resolve reply")
	}
	var res Resolved
	if err := msgpack.Unmarshal(m.Data, &res); err != nil {
		t.Fatal(err)
	}
	if !res.Found || res.Choice == nil || res.Choice.ID != "2" || res.Choice.Name != "" {
		t.Errorf("choice 2 should keep its keyword with a zeroed name, got %+v", res)
	}
}
