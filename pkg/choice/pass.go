package choice

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ErrInvalidPattern is returned for pass patterns that are unterminated or fail to compile.
var ErrInvalidPattern = errors.New("invalid pass pattern")

// PassKind tags the variant held by a Pass.
type PassKind uint8

const (
	// PassNone never passes.
	PassNone PassKind = iota

	// PassAlways passes for every input.
	PassAlways

	// PassPostfix passes for every input and registers a postfix trigger.
	PassPostfix

	// PassPattern passes when the compiled pattern matches the input.
	PassPattern

	// PassInvalid holds a pattern that failed to parse. It never passes.
	PassInvalid
)

// String returns a string representation of the kind.
func (k PassKind) String() string {
	switch k {
	case PassNone:
		return "none"
	case PassAlways:
		return "always"
	case PassPostfix:
		return "postfix"
	case PassPattern:
		return "pattern"
	case PassInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Pass is the parsed form of a choice's `pass` field.
type Pass struct {
	Kind PassKind

	// Source is the raw string value for postfix, pattern and invalid kinds.
	Source string

	// Postfix is the trimmed postfix for PassPostfix.
	Postfix string

	pattern *regexp.Regexp
	err     error
}

// Always returns a Pass that passes unconditionally.
func Always() Pass {
	return Pass{Kind: PassAlways}
}

// ParsePass converts a decoded `pass` value into a Pass.
//
// nil, false, zero numbers and "" never pass; true, non-zero numbers and any other
// non-string value always pass. Strings starting with "/" are parsed as
// "/pattern/flags"; every other string is a postfix.
func ParsePass(v any) Pass {
	switch x := v.(type) {
	case nil:
		return Pass{}
	case Pass:
		return x
	case bool:
		if x {
			return Always()
		}
		return Pass{}
	case string:
		return parsePassString(x)
	case int:
		return truthy(x != 0)
	case int8:
		return truthy(x != 0)
	case int16:
		return truthy(x != 0)
	case int32:
		return truthy(x != 0)
	case int64:
		return truthy(x != 0)
	case uint:
		return truthy(x != 0)
	case uint8:
		return truthy(x != 0)
	case uint16:
		return truthy(x != 0)
	case uint32:
		return truthy(x != 0)
	case uint64:
		return truthy(x != 0)
	case float32:
		return truthy(x != 0 && !math.IsNaN(float64(x)))
	case float64:
		return truthy(x != 0 && !math.IsNaN(x))
	default:
		return Always()
	}
}

func truthy(ok bool) Pass {
	if ok {
		return Always()
	}
	return Pass{}
}

func parsePassString(s string) Pass {
	if s == "" {
		return Pass{}
	}
	if strings.HasPrefix(s, "/") {
		return parsePattern(s)
	}
	return Pass{Kind: PassPostfix, Source: s, Postfix: strings.TrimSpace(s)}
}

// parsePattern splits "/pattern/flags" on the last slash and compiles the body with RE2.
func parsePattern(s string) Pass {
	last := strings.LastIndex(s, "/")
	if last <= 0 {
		return invalid(s, fmt.Errorf("%w %q: unterminated", ErrInvalidPattern, s))
	}
	body, flags := s[1:last], s[last+1:]

	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			if !strings.ContainsRune(inline.String(), f) {
				inline.WriteRune(f)
			}
		case 'g', 'y', 'u', 'd':
			// stateful JS flags have no meaning for a single test
		default:
			return invalid(s, fmt.Errorf("%w %q: unsupported flag %q", ErrInvalidPattern, s, f))
		}
	}

	expr := body
	if inline.Len() > 0 {
		expr = "(?" + inline.String() + ")" + body
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return invalid(s, fmt.Errorf("%w %q: %v", ErrInvalidPattern, s, err))
	}
	return Pass{Kind: PassPattern, Source: s, pattern: re}
}

func invalid(s string, err error) Pass {
	return Pass{Kind: PassInvalid, Source: s, err: err}
}

// IsSet reports whether the pass field was truthy, including invalid patterns.
func (p Pass) IsSet() bool {
	return p.Kind != PassNone
}

// IsPattern reports whether the pass field was written as "/pattern/flags".
func (p Pass) IsPattern() bool {
	return p.Kind == PassPattern || p.Kind == PassInvalid
}

// Err returns the parse error of an invalid pattern.
func (p Pass) Err() error {
	return p.err
}

// Matches reports whether the pass rule admits the input.
func (p Pass) Matches(input string) bool {
	switch p.Kind {
	case PassAlways, PassPostfix:
		return true
	case PassPattern:
		return p.pattern != nil && p.pattern.MatchString(input)
	default:
		return false
	}
}

// Value returns the wire representation of the pass field.
func (p Pass) Value() any {
	switch p.Kind {
	case PassNone:
		return false
	case PassAlways:
		return true
	default:
		return p.Source
	}
}
