package utils

import (
	"strings"
	"unicode/utf8"
)

// EqualFold performs case-insensitive rune equality check
func EqualFold(a, b rune) bool {
	if a == b {
		return true
	}

	// Try simple ASCII case folding first (faster)
	if a < utf8.RuneSelf && b < utf8.RuneSelf {
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		return a == b
	}

	// Use Unicode's more comprehensive case folding
	return strings.EqualFold(string(a), string(b))
}

// SpanFold returns the byte span [start, end) of the first case-insensitive
// occurrence of substr in s, or (-1, -1). An empty substr matches at 0.
func SpanFold(s, substr string) (int, int) {
	if substr == "" {
		return 0, 0
	}
	for start := 0; start < len(s); {
		if end, ok := matchFoldAt(s, start, substr); ok {
			return start, end
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		start += size
	}
	return -1, -1
}

func matchFoldAt(s string, i int, substr string) (int, bool) {
	for _, want := range substr {
		if i >= len(s) {
			return 0, false
		}
		got, size := utf8.DecodeRuneInString(s[i:])
		if !EqualFold(got, want) {
			return 0, false
		}
		i += size
	}
	return i, true
}

// IndexFold returns the byte index of the first case-insensitive occurrence of substr in s, or -1.
func IndexFold(s, substr string) int {
	start, _ := SpanFold(s, substr)
	return start
}

// StringContainsIgnoreCase checks if string contains substring case-insensitively
func StringContainsIgnoreCase(s, substr string) bool {
	return IndexFold(s, substr) >= 0
}

// HasPrefixIgnoreCase checks if string has prefix case-insensitively
func HasPrefixIgnoreCase(s, prefix string) bool {
	_, ok := matchFoldAt(s, 0, prefix)
	return ok
}

// TruncateRunes cuts s to at most n runes. n <= 0 leaves s unchanged.
func TruncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
