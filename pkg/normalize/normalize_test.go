package normalize

import (
	"fmt"
	"strings"
	"testing"

	"github.com/bastiangx/choiceserve/pkg/choice"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		raw      string
		expected string
	}{
		{"kit-container", "kitcontainer"},
		{"File Manager", "file manager"},
		{"--a-b--", "ab"},
		{"Über-Straße", "überstraße"},
		{"ÀÉÎ", "àéî"},
		{"", ""},
		{"snake_case.go", "snake_case.go"},
	}

	c := NewCache()
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			if got := c.Normalize(tc.raw); got != tc.expected {
				t.Errorf("Normalize(%q) = %q, expected %q", tc.raw, got, tc.expected)
			}
		})
	}
	if c.Len() != len(testCases) {
		t.Errorf("expected %d cached entries, got %d", len(testCases), c.Len())
	}
}

func TestRemapFullHyphenatedSpan(t *testing.T) {
	c := NewCache()
	norm := c.Normalize("kit-container")
	got := c.Remap("kit-container", choice.Span(0, len(norm)))
	if got.Start != 0 || got.End != 13 {
		t.Errorf("expected [0,13), got [%d,%d)", got.Start, got.End)
	}
}

func TestRemapEdges(t *testing.T) {
	c := NewCache()
	c.Normalize("a-b-c")

	testCases := []struct {
		name     string
		in       choice.Range
		expected choice.Range
	}{
		{"single char after hyphen", choice.Span(1, 2), choice.Span(2, 3)},
		{"empty range", choice.Span(2, 2), choice.Span(4, 5)},
		{"spanning hyphens", choice.Span(0, 3), choice.Span(0, 5)},
		{"end past projection", choice.Span(1, 9), choice.Span(2, 5)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Remap("a-b-c", tc.in)
			if got.Start != tc.expected.Start || got.End != tc.expected.End {
				t.Errorf("Remap(%v) = %v, expected %v", tc.in, got, tc.expected)
			}
		})
	}
}

func TestRemapUnknownLabel(t *testing.T) {
	c := NewCache()
	in := choice.Span(3, 7)
	if got := c.Remap("never seen", in); got != in {
		t.Errorf("expected unchanged range, got %v", got)
	}
}

// every projected substring maps back to a raw substring equal to it modulo hyphens and case
func TestRemapRoundTrip(t *testing.T) {
	labels := []string{"kit-container", "Open-File Manager", "Über-Größe", "x-", "-x", "A-B-C-D"}
	c := NewCache()

	for _, raw := range labels {
		norm := c.Normalize(raw)
		for start := 0; start < len(norm); start++ {
			for end := start + 1; end <= len(norm); end++ {
				t.Run(fmt.Sprintf("%s[%d:%d]", raw, start, end), func(t *testing.T) {
					if !isRuneBoundary(norm, start) || !isRuneBoundary(norm, end) {
						t.Skip("not a rune boundary")
					}
					r := c.Remap(raw, choice.Span(start, end))
					rawPart := raw[r.Start:r.End]
					projected := strings.ToLower(strings.ReplaceAll(rawPart, "-", ""))
					if projected != norm[start:end] {
						t.Errorf("raw %q -> %q, expected %q", rawPart, projected, norm[start:end])
					}
				})
			}
		}
	}
}

func TestRemapAllMergesTouchingRanges(t *testing.T) {
	c := NewCache()
	c.Normalize("ab-cd")
	got := c.RemapAll("ab-cd", []choice.Range{choice.Span(0, 2), choice.Span(2, 4)})
	if len(got) != 2 {
		t.Fatalf("ranges split by a hyphen stay separate, got %v", got)
	}
	got = c.RemapAll("ab-cd", []choice.Range{choice.Span(0, 1), choice.Span(1, 2)})
	if len(got) != 1 || got[0].Start != 0 || got[0].End != 2 {
		t.Errorf("expected one merged range [0,2), got %v", got)
	}
}

func isRuneBoundary(s string, i int) bool {
	if i == 0 || i == len(s) {
		return true
	}
	return s[i]&0xC0 != 0x80
}

func BenchmarkNormalizeCached(b *testing.B) {
	c := NewCache()
	labels := make([]string, 1000)
	for i := range labels {
		labels[i] = fmt.Sprintf("Script-Number-%d Runner", i)
		c.Normalize(labels[i])
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Normalize(labels[i%len(labels)])
	}
}
