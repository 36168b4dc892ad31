/*
Package server implements msgpack IPC for command-palette search sessions.

The host writes msgpack requests to stdin and reads msgpack messages from stdout.
Logs go to stderr. Several palettes can share one process: every request names a
session, created on first use.

# IPC

Each request carries an ID, an action and the session it targets:

	{"id": "r1", "action": "set_choices", "session": "main", "choices": [...], "options": {"isDefault": true}}
	{"id": "r2", "action": "query", "session": "main", "input": "gh"}
	{"id": "r3", "action": "resolve", "session": "main", "input": "gh "}

Every output is a Message tagged with a channel. Session output uses the
session channels:

	{"session": "main", "channel": "SCORED_CHOICES", "data": [...]}
	{"session": "main", "channel": "SELECTED_CHOICES", "data": []}

Replies to a request use STATUS, STATS, RESOLVED, COMPLETIONS or ERROR and
echo its ID.
The t field is the handling time in microseconds:

	{"id": "r3", "session": "main", "channel": "RESOLVED", "data": {"found": true, "kind": "keyword", ...}, "t": 12}
	{"id": "r9", "channel": "ERROR", "error": "unknown action: \"frobnicate\""}

# Actions

	set_choices     replace a session corpus, then query its current input
	append_choices  add choices to a session corpus
	query           rank input against the corpus (paced for large corpora)
	set_flags       replace the flag corpus
	query_flags     rank input against the flags
	resolve         look input up in the shortcode tables
	complete        list keys of one shortcode table (kind) starting with input
	stats           report session counts
	close           stop and forget a session
	health          liveness check

Queries against corpora of at least [server] immediate_threshold choices go
through a Dispatcher: they are paced by rate_interval_ms and coalesced so only
the latest input of a burst is ranked.
*/
package server

import (
	"errors"

	"github.com/bastiangx/choiceserve/pkg/choice"
	"github.com/bastiangx/choiceserve/pkg/session"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnknownAction is returned for requests with an unsupported action.
var ErrUnknownAction = errors.New("unknown action")

// Actions
const (
	ActionSetChoices    = "set_choices"
	ActionAppendChoices = "append_choices"
	ActionQuery         = "query"
	ActionSetFlags      = "set_flags"
	ActionQueryFlags    = "query_flags"
	ActionResolve       = "resolve"
	ActionComplete      = "complete"
	ActionStats         = "stats"
	ActionClose         = "close"
	ActionHealth        = "health"
)

// Reply channels, next to the session channels.
const (
	ChannelStatus      = "STATUS"
	ChannelStats       = "STATS"
	ChannelResolved    = "RESOLVED"
	ChannelCompletions = "COMPLETIONS"
	ChannelError       = "ERROR"
)

// DefaultSession is used by requests that name no session.
const DefaultSession = "default"

// Request is one host message.
type Request struct {
	ID      string             `msgpack:"id"`
	Action  string             `msgpack:"action"`
	Session string             `msgpack:"session,omitempty"`
	Choices choice.List        `msgpack:"choices,omitempty"`
	Flags   *session.FlagSet   `msgpack:"flags,omitempty"`
	Input   string             `msgpack:"input,omitempty"`
	Kind    string             `msgpack:"kind,omitempty"`
	Reason  string             `msgpack:"reason,omitempty"`
	Options session.SetOptions `msgpack:"options,omitempty"`
}

// Message is one server output.
type Message struct {
	ID        string `msgpack:"id,omitempty"`
	Session   string `msgpack:"session,omitempty"`
	Channel   string `msgpack:"channel"`
	Data      any    `msgpack:"data,omitempty"`
	Error     string `msgpack:"error,omitempty"`
	TimeTaken int64  `msgpack:"t,omitempty"`
}

// RawMessage is Message as decoded by clients, with Data left undecoded.
type RawMessage struct {
	ID        string             `msgpack:"id,omitempty"`
	Session   string             `msgpack:"session,omitempty"`
	Channel   string             `msgpack:"channel"`
	Data      msgpack.RawMessage `msgpack:"data,omitempty"`
	Error     string             `msgpack:"error,omitempty"`
	TimeTaken int64              `msgpack:"t,omitempty"`
}

// Results decodes Data as ranked output.
func (m RawMessage) Results() ([]choice.ScoredChoice, error) {
	var out []choice.ScoredChoice
	if len(m.Data) == 0 {
		return out, nil
	}
	err := msgpack.Unmarshal(m.Data, &out)
	return out, err
}

// Resolved is the data of a RESOLVED reply.
type Resolved struct {
	Found  bool           `msgpack:"found"`
	Kind   string         `msgpack:"kind,omitempty"`
	Key    string         `msgpack:"key,omitempty"`
	Choice *choice.Choice `msgpack:"choice,omitempty"`
}
