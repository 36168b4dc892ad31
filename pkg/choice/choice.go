/*
Package choice defines the searchable unit of a command-palette corpus.

A Choice is one selectable row: a script, an action or a flag. Only the fields
declared here take part in searching and ranking; anything else a host sends
along is dropped by the decoders.

The heterogeneous `pass` field of the wire format (false, true, a postfix string or a
"/regex/flags" string) is parsed once into a Pass tagged union when the choice is
decoded, so ranking never re-parses patterns per keystroke.

Ranked output is a slice of ScoredChoice values. A ScoredChoice shares the
underlying *Choice and only carries the few per-result overrides (tag, group, pass,
exact) the ranking engine needs.
*/
package choice

import (
	"regexp"
	"strings"
)

// KindScript is the Kind of regular script choices. An empty Kind is treated the same.
const KindScript = "Script"

// HeaderIDPrefix prefixes the IDs of synthetic group header rows.
const HeaderIDPrefix = "__header__/"

// Choice is one entry of a corpus.
type Choice struct {
	ID          string `json:"id" toml:"id" msgpack:"id"`
	Name        string `json:"name" toml:"name" msgpack:"name"`
	Description string `json:"description,omitempty" toml:"description,omitempty" msgpack:"description,omitempty"`
	Value       any    `json:"value,omitempty" toml:"value,omitempty" msgpack:"value,omitempty"`
	Kind        string `json:"type,omitempty" toml:"type,omitempty" msgpack:"type,omitempty"`

	Keyword   string `json:"keyword,omitempty" toml:"keyword,omitempty" msgpack:"keyword,omitempty"`
	Tag       string `json:"tag,omitempty" toml:"tag,omitempty" msgpack:"tag,omitempty"`
	Group     string `json:"group,omitempty" toml:"group,omitempty" msgpack:"group,omitempty"`
	Alias     string `json:"alias,omitempty" toml:"alias,omitempty" msgpack:"alias,omitempty"`
	Shortcode string `json:"shortcode,omitempty" toml:"shortcode,omitempty" msgpack:"shortcode,omitempty"`
	Trigger   string `json:"trigger,omitempty" toml:"trigger,omitempty" msgpack:"trigger,omitempty"`
	Pass      Pass   `json:"pass,omitempty" toml:"pass,omitempty" msgpack:"pass,omitempty"`

	Miss             bool `json:"miss,omitempty" toml:"miss,omitempty" msgpack:"miss,omitempty"`
	Info             bool `json:"info,omitempty" toml:"info,omitempty" msgpack:"info,omitempty"`
	HideWithoutInput bool `json:"hideWithoutInput,omitempty" toml:"hideWithoutInput,omitempty" msgpack:"hideWithoutInput,omitempty"`
	Skip             bool `json:"skip,omitempty" toml:"skip,omitempty" msgpack:"skip,omitempty"`
	LastGroup        bool `json:"lastGroup,omitempty" toml:"lastGroup,omitempty" msgpack:"lastGroup,omitempty"`
	Exclude          bool `json:"exclude,omitempty" toml:"exclude,omitempty" msgpack:"exclude,omitempty"`
	Selected         bool `json:"selected,omitempty" toml:"selected,omitempty" msgpack:"selected,omitempty"`
}

// bracketTrigger finds `[token]` segments in a choice name.
var bracketTrigger = regexp.MustCompile(`\[(\w+)\]`)

// NewHeader returns a non-selectable header row labelling the group name.
func NewHeader(name string) *Choice {
	return &Choice{
		ID:    HeaderIDPrefix + name,
		Name:  name,
		Group: name,
		Skip:  true,
	}
}

// IsHeader reports whether c is a synthetic header created by NewHeader.
func (c *Choice) IsHeader() bool {
	return c != nil && c.Skip && strings.HasPrefix(c.ID, HeaderIDPrefix)
}

// IsScript reports whether alias matching applies to c.
func (c *Choice) IsScript() bool {
	return c.Kind == "" || c.Kind == KindScript
}

// Field returns the value of a searchable field by key name.
// Unknown keys and unset fields read as "".
func (c *Choice) Field(key string) string {
	if c == nil {
		return ""
	}
	switch key {
	case "id":
		return c.ID
	case "name":
		return c.Name
	case "description":
		return c.Description
	case "type", "kind":
		return c.Kind
	case "keyword":
		return c.Keyword
	case "tag":
		return c.Tag
	case "group":
		return c.Group
	case "alias":
		return c.Alias
	case "shortcode":
		return c.Shortcode
	case "trigger":
		return c.Trigger
	}
	return ""
}

// KeywordOrTag returns the keyword, falling back to the tag.
func (c *Choice) KeywordOrTag() string {
	if c.Keyword != "" {
		return c.Keyword
	}
	return c.Tag
}

// ParsedTrigger returns the explicit trigger, else the last `[token]` in the name.
func (c *Choice) ParsedTrigger() string {
	if c.Trigger != "" {
		return c.Trigger
	}
	found := bracketTrigger.FindAllStringSubmatch(c.Name, -1)
	if len(found) == 0 {
		return ""
	}
	return found[len(found)-1][1]
}
