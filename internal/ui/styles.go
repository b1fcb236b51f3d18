package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Color palette - consistent across all TUI components
var (
	Green  = lipgloss.Color("10") // success
	Red    = lipgloss.Color("9")  // error
	Yellow = lipgloss.Color("11") // warning
	Grey   = lipgloss.Color("8")  // muted text
	Blue   = lipgloss.Color("4")  // headers, borders
	Cyan   = lipgloss.Color("14") // info, spinner
	White  = lipgloss.Color("15") // header text
)

// Status indicators
const (
	SuccessIcon = "✓"
	FailIcon    = "✗"
	WarnIcon    = "!"
	InfoIcon    = "•"
)

// Styles returns styled text helpers bound to a renderer
type Styles struct {
	renderer *lipgloss.Renderer

	// Text styles
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Label    lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Info     lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style
	Spinner  lipgloss.Style

	// Layout
	Input    lipgloss.Style
	Response lipgloss.Style
}

// NewStyles creates a new Styles instance for the given output
func NewStyles(output *os.File) *Styles {
	return newStyles(lipgloss.NewRenderer(output))
}

func newStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		renderer: r,

		Title: r.NewStyle().
			Bold(true).
			Foreground(White),

		Subtitle: r.NewStyle().
			Foreground(Grey),

		Label: r.NewStyle().
			Bold(true).
			Foreground(Blue),

		Success: r.NewStyle().
			Foreground(Green),

		Error: r.NewStyle().
			Foreground(Red),

		Warning: r.NewStyle().
			Foreground(Yellow),

		Info: r.NewStyle().
			Foreground(Cyan),

		Muted: r.NewStyle().
			Foreground(Grey),

		Bold: r.NewStyle().
			Bold(true),

		Spinner: r.NewStyle().
			Foreground(Cyan),

		Input: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Blue).
			Padding(0, 1),

		Response: r.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(Grey).
			PaddingTop(1),
	}
}

// DefaultStyles returns styles for stderr (default TUI output)
func DefaultStyles() *Styles {
	return NewStyles(os.Stderr)
}

// FormatResult returns a styled success/fail result
func (s *Styles) FormatResult(success bool, msg string) string {
	if success {
		return s.Success.Render(SuccessIcon+" ") + msg
	}
	return s.Error.Render(FailIcon+" ") + msg
}

// Notice severities accepted by FormatNotice.
const (
	NoticeInfo    = "info"
	NoticeWarning = "warning"
	NoticeError   = "error"
)

// FormatNotice renders a one-line notice with an icon for its severity.
func (s *Styles) FormatNotice(severity, msg string) string {
	switch severity {
	case NoticeError:
		return s.Error.Render(FailIcon + " " + msg)
	case NoticeWarning:
		return s.Warning.Render(WarnIcon + " " + msg)
	default:
		return s.Info.Render(InfoIcon + " " + msg)
	}
}

// Truncate shortens a string to maxLen display cells with ellipsis
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return runewidth.Truncate(s, maxLen, "")
	}
	return runewidth.Truncate(s, maxLen, "...")
}
