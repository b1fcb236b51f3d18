package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

func TestRenderMarkdownWithError_ZeroWidth_DoesNotError(t *testing.T) {
	_, err := RenderMarkdownWithError("# title", 0)
	if err != nil {
		t.Fatalf("RenderMarkdownWithError must not fail for zero width: %v", err)
	}
}

func TestRenderMarkdownStripsSyntax(t *testing.T) {
	out := ansi.Strip(RenderMarkdown("**Naruto** is a ninja", 80))
	if !strings.Contains(out, "Naruto is a ninja") {
		t.Fatalf("rendered = %q", out)
	}
	if strings.Contains(out, "**") {
		t.Fatalf("bold markers left in output: %q", out)
	}
	if RenderMarkdown("", 80) != "" {
		t.Fatal("empty content should render empty")
	}
}

func TestFindSafeBoundary(t *testing.T) {
	tests := []struct {
		name string
		text string
		from int
		want int
	}{
		{"too short", "hi\n\nthere", 0, -1},
		{"no paragraph", "Naruto Uzumaki is the main character", 0, -1},
		{"after paragraph", "First paragraph here.\n\nSecond one", 0, len("First paragraph here.\n\n")},
		{"open code fence", "Intro paragraph text\n\n```go\nx := 1\n\ny := 2", 0, len("Intro paragraph text\n\n")},
		{"open bold", "Some **bold text that\n\ncontinues** later", 0, -1},
		{"open code span", "Use `kamehameha\n\nnow` please ok", 0, -1},
		{"before from", "First paragraph here.\n\nSecond one", 30, -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FindSafeBoundary(tc.text, tc.from); got != tc.want {
				t.Fatalf("FindSafeBoundary = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestStreamingMarkdownRendersStablePrefix(t *testing.T) {
	var m StreamingMarkdown

	partial := "Top picks:\n\n- **Mushishi**\n- **Monster**\n\nBoth are slow burn"
	out := ansi.Strip(m.Render(partial, 60))
	if strings.Contains(out, "**Mushishi**") {
		t.Fatalf("stable prefix not rendered as markdown: %q", out)
	}
	if !strings.Contains(out, "Both are slow burn") {
		t.Fatalf("tail missing: %q", out)
	}
	cached := m.safePos

	more := partial + " and **worth it**"
	out = ansi.Strip(m.Render(more, 60))
	if m.safePos != cached {
		t.Fatalf("safePos moved from %d to %d without a new paragraph", cached, m.safePos)
	}
	if !strings.Contains(out, "**worth it**") {
		t.Fatalf("tail should stay plain while streaming: %q", out)
	}

	if got := m.Render("", 60); got != "" || m.safePos != 0 {
		t.Fatalf("empty text should reset, got %q pos %d", got, m.safePos)
	}
}

func TestWrapPlain(t *testing.T) {
	out := WrapPlain("one two three four", 9)
	for _, line := range strings.Split(out, "\n") {
		if ansi.StringWidth(line) > 9 {
			t.Fatalf("line %q exceeds width", line)
		}
	}
	if WrapPlain("keep", 0) != "keep" {
		t.Fatal("zero width should leave text unchanged")
	}
}
