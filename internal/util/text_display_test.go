package util

import (
	"strings"
	"testing"
)

func TestMarkdownSnippetStripsMarkupAndTruncates(t *testing.T) {
	kb := "# Flight Delays\n\n## Quick Reference\n[link](http://example.com) " + strings.Repeat("details ", 40)
	out := MarkdownSnippet(kb)
	for _, bad := range []string{"#", "[", "]", "(", ")"} {
		if strings.Contains(out, bad) {
			t.Fatalf("snippet still contains %q: %s", bad, out)
		}
	}
	if !strings.HasSuffix(out, "...") {
		t.Fatalf("expected truncated snippet to end with ellipsis: %s", out)
	}
	if got := len([]rune(out)); got > snippetRunes+3 {
		t.Fatalf("snippet too long: %d runes", got)
	}
}

func TestMarkdownSnippetShortInputUnchanged(t *testing.T) {
	if got := MarkdownSnippet("Offer rebooking first."); got != "Offer rebooking first." {
		t.Fatalf("unexpected snippet: %q", got)
	}
	if got := MarkdownSnippet("   "); got != "" {
		t.Fatalf("expected empty snippet, got %q", got)
	}
}

func TestDisplayTitle(t *testing.T) {
	if got := DisplayTitle("  Refund \n Inquiry  ", 100); got != "Refund Inquiry" {
		t.Fatalf("unexpected title: %q", got)
	}
	long := strings.Repeat("x", 120)
	if got := DisplayTitle(long, 100); !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncation: %q", got)
	}
}
