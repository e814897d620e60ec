package util

import "strings"

const snippetRunes = 150

// MarkdownSnippet strips the markdown punctuation that reads badly in a
// one-line excerpt (headings, link brackets, parens) and truncates to the
// display length, appending an ellipsis when anything was cut.
func MarkdownSnippet(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '#', '[', ']', '(', ')':
			continue
		}
		b.WriteRune(r)
	}
	out := normalizeWhitespace(SanitizeText(b.String()))
	runes := []rune(out)
	if len(runes) <= snippetRunes {
		return out
	}
	return strings.TrimSpace(string(runes[:snippetRunes])) + "..."
}

// DisplayTitle trims and bounds a title for log lines and API payloads.
func DisplayTitle(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 100
	}
	out := normalizeWhitespace(SanitizeText(s))
	runes := []rune(out)
	if len(runes) <= maxRunes {
		return out
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
