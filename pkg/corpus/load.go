// Package corpus reads choice corpora from disk and builds synthetic ones.
//
// JSON and msgpack files hold either a bare array of choices or an object with
// "choices", "flags" and "flagOrder" keys. TOML files use [[choices]] tables and
// [flags.<name>] tables.
package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/bastiangx/choiceserve/pkg/choice"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// File is the decoded content of a corpus file.
type File struct {
	Choices   []*choice.Choice          `json:"choices" toml:"choices" msgpack:"choices"`
	Flags     map[string]*choice.Choice `json:"flags,omitempty" toml:"flags" msgpack:"flags,omitempty"`
	FlagOrder []string                  `json:"flagOrder,omitempty" toml:"flagOrder" msgpack:"flagOrder,omitempty"`
}

// Load reads and decodes a corpus file.
func Load(path string) (*File, error) {
	format, err := ValidateFile(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}

	f, err := Decode(format, data)
	if err != nil {
		return nil, fmt.Errorf("decode corpus %s: %w", path, err)
	}
	log.Debugf("Loaded %d choices and %d flags from %s", len(f.Choices), len(f.Flags), path)
	return f, nil
}

// Decode parses data in the given format. Choices that do not decode cleanly are
// logged and zeroed or dropped; they never fail the file.
func Decode(format FileFormat, data []byte) (*File, error) {
	var raw fileWire
	switch format {
	case FormatJSON:
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &raw.Choices); err != nil {
				return nil, err
			}
			break
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, err
		}
	case FormatMsgpack:
		if err := decodeMsgpack(data, &raw); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnknownFormat
	}

	for _, is := range raw.Choices.Issues {
		log.Warn("Skipping bad corpus entry", "entry", is.String())
	}
	return &File{Choices: raw.Choices.Choices, Flags: raw.Flags, FlagOrder: raw.FlagOrder}, nil
}

// fileWire is File with a leniently decoded choice list.
type fileWire struct {
	Choices   choice.List               `json:"choices" toml:"choices" msgpack:"choices"`
	Flags     map[string]*choice.Choice `json:"flags" toml:"flags" msgpack:"flags"`
	FlagOrder []string                  `json:"flagOrder" toml:"flagOrder" msgpack:"flagOrder"`
}

func decodeMsgpack(data []byte, f *fileWire) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	code, err := dec.PeekCode()
	if err != nil {
		return err
	}
	if isArrayCode(code) {
		return dec.Decode(&f.Choices)
	}
	return dec.Decode(f)
}

func isArrayCode(c byte) bool {
	return msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32
}

// Encode writes f in the given format. Used to produce fixtures and example files.
func Encode(format FileFormat, f *File) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(f, "", "  ")
	case FormatMsgpack:
		return msgpack.Marshal(f)
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(f); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, ErrUnknownFormat
}
