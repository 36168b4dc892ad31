package choice

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// ErrNotAChoice marks list entries that are not objects.
var ErrNotAChoice = errors.New("entry is not a choice object")

// DecodeIssue describes one entry of a List that did not decode cleanly.
type DecodeIssue struct {
	// Index is the entry position, or -1 when the list itself was not an array.
	Index int
	ID    string
	// Fields lists the fields reset to their zero value. Empty when the entry was dropped.
	Fields []string
	Err    error
}

// Dropped reports whether the whole entry was left out.
func (i DecodeIssue) Dropped() bool {
	return len(i.Fields) == 0
}

func (i DecodeIssue) String() string {
	if i.Dropped() {
		return fmt.Sprintf("choice %d dropped: %v", i.Index, i.Err)
	}
	return fmt.Sprintf("choice %d (%q) has bad fields %v", i.Index, i.ID, i.Fields)
}

// List is a choice list decoded entry by entry. A field of the wrong type is
// zeroed and an entry that is not an object is dropped; both end up in Issues
// instead of failing the whole list.
type List struct {
	Choices []*Choice
	Issues  []DecodeIssue
}

// NewList wraps choices for encoding.
func NewList(choices []*Choice) List {
	return List{Choices: choices}
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (l *List) DecodeMsgpack(dec *msgpack.Decoder) error {
	*l = List{}
	code, err := dec.PeekCode()
	if err != nil {
		return err
	}
	if code == msgpcode.Nil {
		return dec.DecodeNil()
	}
	if !msgpcode.IsFixedArray(code) && code != msgpcode.Array16 && code != msgpcode.Array32 {
		l.Issues = append(l.Issues, DecodeIssue{Index: -1, Err: fmt.Errorf("choices: unexpected code %#x", code)})
		return dec.Skip()
	}

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	l.Choices = make([]*Choice, 0, n)
	for i := 0; i < n; i++ {
		raw, err := dec.DecodeRaw()
		if err != nil {
			return err
		}
		l.add(i, decodeMsgpackEntry(raw))
	}
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (l List) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(l.Choices)
}

// IsZero lets omitempty drop empty lists.
func (l List) IsZero() bool {
	return len(l.Choices) == 0
}

// UnmarshalJSON decodes a JSON array of choices entry by entry.
func (l *List) UnmarshalJSON(b []byte) error {
	*l = List{}
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		l.Issues = append(l.Issues, DecodeIssue{Index: -1, Err: err})
		return nil
	}
	l.Choices = make([]*Choice, 0, len(raws))
	for i, raw := range raws {
		l.add(i, decodeJSONEntry(raw))
	}
	return nil
}

// MarshalJSON writes the choices as a plain array.
func (l List) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Choices)
}

// UnmarshalTOML implements toml.Unmarshaler for [[choices]] tables.
func (l *List) UnmarshalTOML(v any) error {
	*l = List{}
	switch entries := v.(type) {
	case []map[string]any:
		for i, m := range entries {
			l.add(i, fromMapEntry(m))
		}
	case []any:
		for i, e := range entries {
			l.add(i, fromAny(e))
		}
	default:
		l.Issues = append(l.Issues, DecodeIssue{Index: -1, Err: fmt.Errorf("choices: unexpected %T", v)})
	}
	return nil
}

type entry struct {
	c      *Choice
	fields []string
	err    error
}

func (l *List) add(i int, e entry) {
	switch {
	case e.c == nil:
		l.Issues = append(l.Issues, DecodeIssue{Index: i, Err: e.err})
	case len(e.fields) > 0:
		l.Issues = append(l.Issues, DecodeIssue{Index: i, ID: e.c.ID, Fields: e.fields, Err: e.err})
		l.Choices = append(l.Choices, e.c)
	default:
		l.Choices = append(l.Choices, e.c)
	}
}

func decodeMsgpackEntry(raw msgpack.RawMessage) entry {
	if len(raw) == 1 && raw[0] == msgpcode.Nil {
		return entry{err: ErrNotAChoice}
	}
	var c Choice
	err := msgpack.Unmarshal(raw, &c)
	if err == nil {
		return entry{c: &c}
	}
	var v any
	if uerr := msgpack.Unmarshal(raw, &v); uerr != nil {
		return entry{err: uerr}
	}
	e := fromAny(v)
	if e.c != nil {
		e.err = err
	}
	return e
}

func decodeJSONEntry(raw json.RawMessage) entry {
	var c Choice
	err := json.Unmarshal(raw, &c)
	if err == nil && string(raw) != "null" {
		return entry{c: &c}
	}
	var v any
	if uerr := json.Unmarshal(raw, &v); uerr != nil {
		return entry{err: uerr}
	}
	e := fromAny(v)
	if e.c != nil {
		e.err = err
	}
	return e
}

func fromAny(v any) entry {
	switch m := v.(type) {
	case map[string]any:
		return fromMapEntry(m)
	case map[any]any:
		keyed := make(map[string]any, len(m))
		for k, val := range m {
			if s, ok := k.(string); ok {
				keyed[s] = val
			}
		}
		return fromMapEntry(keyed)
	}
	return entry{err: fmt.Errorf("%w: %T", ErrNotAChoice, v)}
}

func fromMapEntry(m map[string]any) entry {
	c, bad := FromMap(m)
	e := entry{c: c, fields: bad}
	if len(bad) > 0 {
		e.err = fmt.Errorf("wrong type for %v", bad)
	}
	return e
}

// FromMap builds a choice from a generic object, keeping every field whose value
// has the right type. It returns the names of the fields it had to leave zero.
func FromMap(m map[string]any) (*Choice, []string) {
	c := &Choice{}
	strs := map[string]*string{
		"id":          &c.ID,
		"name":        &c.Name,
		"description": &c.Description,
		"type":        &c.Kind,
		"keyword":     &c.Keyword,
		"tag":         &c.Tag,
		"group":       &c.Group,
		"alias":       &c.Alias,
		"shortcode":   &c.Shortcode,
		"trigger":     &c.Trigger,
	}
	bools := map[string]*bool{
		"miss":             &c.Miss,
		"info":             &c.Info,
		"hideWithoutInput": &c.HideWithoutInput,
		"skip":             &c.Skip,
		"lastGroup":        &c.LastGroup,
		"exclude":          &c.Exclude,
		"selected":         &c.Selected,
	}

	var bad []string
	for k, v := range m {
		if v == nil {
			continue
		}
		if p, ok := strs[k]; ok {
			if s, ok := v.(string); ok {
				*p = s
			} else {
				bad = append(bad, k)
			}
			continue
		}
		if p, ok := bools[k]; ok {
			if b, ok := v.(bool); ok {
				*p = b
			} else {
				bad = append(bad, k)
			}
			continue
		}
		switch k {
		case "value":
			c.Value = v
		case "pass":
			c.Pass = ParsePass(v)
		}
	}
	sort.Strings(bad)
	return c, bad
}
