package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
)

// StreamingIndicator renders the status line shown while a request is busy
type StreamingIndicator struct {
	Spinner    string // spinner.View() output
	Status     string // "Connecting...", backend status text
	Elapsed    time.Duration
	Chars      int  // received answer length, 0 = don't show
	ShowCancel bool // show "(esc to cancel)"
	Width      int  // clip the status so the line fits, 0 = no limit
}

// minStatusWidth keeps a clipped status readable on very narrow terminals.
const minStatusWidth = 8

// Render returns the formatted streaming indicator string
func (s StreamingIndicator) Render(styles *Styles) string {
	var tail strings.Builder
	tail.WriteString(fmt.Sprintf(" %.1fs", s.Elapsed.Seconds()))

	if s.Chars > 0 {
		tail.WriteString(fmt.Sprintf(" | %d chars", s.Chars))
	}

	if s.ShowCancel {
		tail.WriteString(" ")
		tail.WriteString(styles.Muted.Render("(esc to cancel)"))
	}

	status := s.Status
	if status == "" {
		status = "Working..."
	}
	if s.Width > 0 {
		room := s.Width - ansi.StringWidth(s.Spinner) - 1 - ansi.StringWidth(tail.String())
		status = Truncate(status, max(room, minStatusWidth))
	}

	return s.Spinner + " " + status + tail.String()
}
