package form

import (
	"strings"
	"time"

	"github.com/animeqa/animeqa/internal/qa"
	"github.com/animeqa/animeqa/internal/ui"
)

const title = "Anime Q&A"

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	st := m.session.State()
	var b strings.Builder

	b.WriteString(m.styles.Title.Render(title))
	b.WriteString("  ")
	b.WriteString(m.styles.Subtitle.Render("Ask a question, press enter to submit or ctrl+s to stream"))
	b.WriteString("\n\n")

	b.WriteString(m.styles.Input.Render(m.textarea.View()))
	b.WriteString("\n")

	if line := m.statusLine(st); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if st.ShowResponse() {
		b.WriteString(m.styles.Label.Render("Response"))
		b.WriteString("\n")
		b.WriteString(m.styles.Response.Width(m.width).Render(m.viewport.View()))
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// statusLine shows the spinner while busy, otherwise the current notice.
func (m *Model) statusLine(st qa.State) string {
	if st.Busy {
		return ui.StreamingIndicator{
			Spinner:    m.spinner.View(),
			Status:     st.Status,
			Elapsed:    time.Since(m.started),
			Chars:      len(st.Response),
			ShowCancel: true,
			Width:      m.width,
		}.Render(m.styles)
	}
	if st.Notice.Text == "" {
		return ""
	}
	return m.styles.FormatNotice(noticeSeverity(st.Notice.Level), st.Notice.Text)
}

func noticeSeverity(level qa.NoticeLevel) string {
	switch level {
	case qa.NoticeError:
		return ui.NoticeError
	case qa.NoticeWarning:
		return ui.NoticeWarning
	default:
		return ui.NoticeInfo
	}
}
