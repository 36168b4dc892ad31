package choice

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// UnmarshalJSON parses any JSON value into a Pass.
func (p *Pass) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = ParsePass(v)
	return nil
}

// MarshalJSON writes the pass field back in its wire form.
func (p Pass) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Value())
}

// UnmarshalTOML implements toml.Unmarshaler.
func (p *Pass) UnmarshalTOML(v any) error {
	*p = ParsePass(v)
	return nil
}

// MarshalTOML implements toml.Marshaler.
func (p Pass) MarshalTOML() ([]byte, error) {
	switch v := p.Value().(type) {
	case bool:
		return []byte(strconv.FormatBool(v)), nil
	case string:
		if !strings.ContainsAny(v, "'\n\r") {
			return []byte("'" + v + "'"), nil
		}
		return []byte(strconv.Quote(v)), nil
	}
	return []byte("false"), nil
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (p *Pass) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	*p = ParsePass(v)
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (p Pass) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(p.Value())
}

// IsZero lets omitempty drop unset pass fields.
func (p Pass) IsZero() bool {
	return p.Kind == PassNone
}
