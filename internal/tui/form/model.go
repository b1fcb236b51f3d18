// Package form is the interactive question form: one input, a submit and a
// stream action, and a response area fed by qa.Session.
package form

import (
	"context"
	"log/slog"
	"time"

	"github.com/animeqa/animeqa/internal/backend"
	"github.com/animeqa/animeqa/internal/qa"
	"github.com/animeqa/animeqa/internal/ui"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	inputHeight   = 3
	// title, status, notice, help and borders
	chromeHeight = 10
)

// Options configures a form.
type Options struct {
	Backend Backend
	Styles  *ui.Styles
	Logger  *slog.Logger
	// Context is the parent of every request context. Defaults to Background.
	Context context.Context
}

// Model is the bubbletea model for the form.
type Model struct {
	session *qa.Session
	backend Backend
	parent  context.Context
	logger  *slog.Logger

	styles   *ui.Styles
	keys     keyMap
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	md       ui.StreamingMarkdown

	width    int
	height   int
	started  time.Time
	quitting bool
}

// Messages returned by transport commands. Each carries the request ID so
// the session can drop results of requests that are no longer live.
type (
	answerMsg struct {
		id     qa.RequestID
		answer backend.Answer
		err    error
	}
	streamOpenedMsg struct {
		id     qa.RequestID
		events <-chan backend.Event
		err    error
	}
	streamEventMsg struct {
		id     qa.RequestID
		event  backend.Event
		events <-chan backend.Event
		closed bool
	}
)

// New creates an idle form.
func New(opts Options) *Model {
	if opts.Styles == nil {
		opts.Styles = ui.DefaultStyles()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	keys := defaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Ask anything about anime..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.Focus()

	vp := viewport.New(defaultWidth, defaultHeight-inputHeight-chromeHeight)
	vp.KeyMap = viewport.KeyMap{
		PageUp:   keys.ScrollUp,
		PageDown: keys.ScrollDown,
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = opts.Styles.Spinner

	m := &Model{
		session:  qa.NewSession(opts.Logger),
		backend:  opts.Backend,
		parent:   opts.Context,
		logger:   opts.Logger,
		styles:   opts.Styles,
		keys:     keys,
		textarea: ta,
		viewport: vp,
		spinner:  sp,
		help:     help.New(),
	}
	m.resize(defaultWidth, defaultHeight)
	return m
}

// Run starts the form in the alternate screen and blocks until it quits.
func Run(ctx context.Context, opts Options) error {
	if opts.Context == nil {
		opts.Context = ctx
	}
	m := New(opts)
	defer m.session.Cancel()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// State exposes the session snapshot.
func (m *Model) State() qa.State {
	return m.session.State()
}

func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case spinner.TickMsg:
		if !m.session.State().Busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case answerMsg:
		if msg.err != nil {
			m.session.Fail(msg.id, msg.err)
		} else {
			m.session.Complete(msg.id, msg.answer)
		}
		m.refresh()
		return m, nil

	case streamOpenedMsg:
		if msg.err != nil {
			m.session.Fail(msg.id, msg.err)
			m.refresh()
			return m, nil
		}
		if !m.session.Live(msg.id) {
			return m, nil
		}
		return m, waitForEvent(msg.id, msg.events)

	case streamEventMsg:
		return m.handleStreamEvent(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.session.Cancel()
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		m.session.Cancel()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Reset):
		m.session.Reset()
		m.textarea.Reset()
		m.md.Reset()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m, m.begin(qa.ModeBuffered)

	case key.Matches(msg, m.keys.Stream):
		return m, m.begin(qa.ModeStream)

	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	m.session.Edit(m.textarea.Value())
	return m, cmd
}

// begin starts a request unless one is already running.
func (m *Model) begin(mode qa.Mode) tea.Cmd {
	if m.session.State().Busy {
		return nil
	}
	m.session.Edit(m.textarea.Value())
	tok, ok := m.session.Begin(m.parent, mode)
	if !ok {
		m.refresh()
		return nil
	}

	m.started = time.Now()
	m.md.Reset()
	m.refresh()

	question := m.session.State().Draft
	var call tea.Cmd
	if mode == qa.ModeStream {
		call = openStream(m.backend, tok, question)
	} else {
		call = submit(m.backend, tok, question)
	}
	return tea.Batch(m.spinner.Tick, call)
}

func (m *Model) handleStreamEvent(msg streamEventMsg) (tea.Model, tea.Cmd) {
	if msg.closed {
		// A stream that closes without a terminal event was cancelled.
		if m.session.Live(msg.id) {
			m.session.Fail(msg.id, backend.ErrCancelled)
			m.refresh()
		}
		return m, nil
	}

	if !m.session.Apply(msg.id, msg.event) {
		return m, nil
	}
	m.refresh()
	if msg.event.Terminal() || !m.session.Live(msg.id) {
		return m, nil
	}
	return m, waitForEvent(msg.id, msg.events)
}

func submit(b Backend, tok *qa.Token, question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := b.Submit(tok.Context(), question)
		return answerMsg{id: tok.ID, answer: answer, err: err}
	}
}

func openStream(b Backend, tok *qa.Token, question string) tea.Cmd {
	return func() tea.Msg {
		events, err := b.Stream(tok.Context(), question)
		return streamOpenedMsg{id: tok.ID, events: events, err: err}
	}
}

// waitForEvent reads one event and hands it back to Update.
func waitForEvent(id qa.RequestID, events <-chan backend.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamEventMsg{id: id, closed: true}
		}
		return streamEventMsg{id: id, event: ev, events: events}
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	inner := max(width-4, 10)
	m.textarea.SetWidth(inner)
	m.help.Width = width

	m.viewport.Width = width
	m.viewport.Height = max(height-inputHeight-chromeHeight, 3)
}

// refresh syncs widgets with the session state.
func (m *Model) refresh() {
	st := m.session.State()

	if m.textarea.Value() != st.Draft {
		m.textarea.SetValue(st.Draft)
	}

	if !st.ShowResponse() {
		m.md.Reset()
		m.viewport.SetContent("")
		return
	}

	width := max(m.viewport.Width-1, 10)
	if st.Phase == qa.PhaseDone {
		m.viewport.SetContent(ui.RenderMarkdown(st.Response, width))
		m.viewport.GotoTop()
		return
	}
	m.viewport.SetContent(m.md.Render(st.Response, width))
	if st.Busy {
		m.viewport.GotoBottom()
	}
}
