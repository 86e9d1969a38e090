package util

import (
	"regexp"
	"strings"
)

// Precompiled fence patterns (compiled once at package init)
var (
	leadingFenceRegex  = regexp.MustCompile("^```[A-Za-z0-9_+-]*")
	trailingFenceRegex = regexp.MustCompile("```$")
)

// StripCodeFence removes one markdown code fence wrapping a model response.
// At most one leading fence (with an optional language tag) and one trailing
// fence are removed, then surrounding whitespace is trimmed. Text without a
// fence is returned unchanged, so applying it twice gives the same result.
func StripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)

	stripped := trimmed
	if loc := leadingFenceRegex.FindStringIndex(stripped); loc != nil {
		stripped = stripped[loc[1]:]
	}
	if loc := trailingFenceRegex.FindStringIndex(stripped); loc != nil {
		stripped = stripped[:loc[0]]
	}

	if stripped == trimmed {
		return s
	}
	return strings.TrimSpace(stripped)
}
