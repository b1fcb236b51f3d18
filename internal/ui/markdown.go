package ui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	glamouransi "github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/x/ansi"
)

// Package-level renderer cache to avoid expensive recreation during streaming
var (
	mdRendererCache struct {
		sync.Mutex
		renderer *glamour.TermRenderer
		width    int
	}
)

// GlamourStyle is the markdown theme used for answers.
func GlamourStyle() glamouransi.StyleConfig {
	return styles.DraculaStyleConfig
}

// RenderMarkdown renders markdown content using glamour with standard styling.
// On error, returns the original content unchanged.
func RenderMarkdown(content string, width int) string {
	if content == "" {
		return ""
	}

	rendered, err := RenderMarkdownWithError(content, width)
	if err != nil {
		return content
	}
	return rendered
}

// RenderMarkdownWithError renders markdown content and returns any errors.
func RenderMarkdownWithError(content string, width int) (string, error) {
	mdRendererCache.Lock()
	defer mdRendererCache.Unlock()

	// Reuse cached renderer if width matches
	if mdRendererCache.renderer != nil && mdRendererCache.width == width {
		rendered, err := mdRendererCache.renderer.Render(content)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(rendered), nil
	}

	style := GlamourStyle()
	margin := uint(0)
	style.Document.Margin = &margin
	style.Document.BlockPrefix = ""
	style.Document.BlockSuffix = ""
	style.CodeBlock.Margin = &margin

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	mdRendererCache.renderer = renderer
	mdRendererCache.width = width

	rendered, err := renderer.Render(content)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(rendered), nil
}

// WrapPlain word-wraps text to width without interpreting markdown.
func WrapPlain(text string, width int) string {
	if width <= 0 {
		return text
	}
	return ansi.Wordwrap(text, width, "")
}

// StreamingMarkdown renders an answer that is still growing. Text up to the
// last safe paragraph boundary is rendered as markdown once and cached; the
// unfinished tail is shown as wrapped plain text.
type StreamingMarkdown struct {
	width    int
	safePos  int
	rendered string
}

// Reset drops the cached prefix.
func (m *StreamingMarkdown) Reset() {
	*m = StreamingMarkdown{}
}

// Render returns the view of text at width.
func (m *StreamingMarkdown) Render(text string, width int) string {
	if text == "" {
		m.Reset()
		return ""
	}
	// A different answer or width invalidates the cache.
	if width != m.width || m.safePos > len(text) {
		m.Reset()
		m.width = width
	}

	if pos := FindSafeBoundary(text, m.safePos); pos > m.safePos {
		m.safePos = pos
		m.rendered = RenderMarkdown(text[:pos], width)
	}

	tail := strings.TrimLeft(text[m.safePos:], "\n")
	switch {
	case m.rendered == "":
		return WrapPlain(tail, width)
	case tail == "":
		return m.rendered
	default:
		return m.rendered + "\n\n" + WrapPlain(tail, width)
	}
}
