package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/animeqa/animeqa/internal/backend"
	"github.com/animeqa/animeqa/internal/config"
	"github.com/animeqa/animeqa/internal/exitcode"
	"github.com/animeqa/animeqa/internal/qa"
	"github.com/animeqa/animeqa/internal/ui"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	askMode    string
	askText    bool
	askTimeout time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and print the answer",
	Long: `Ask the Anime Q&A backend a question.

By default the whole answer is fetched at once. Use --mode chunked or
--mode events to stream it as it is generated.

Examples:
  animeqa ask "Who is the strongest Hashira?"
  animeqa ask --mode chunked "Summarize Steins;Gate without spoilers"
  animeqa ask --mode events "Recommend a slice of life anime"
  animeqa ask --text "List 5 Ghibli films" > films.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askMode, "mode", "m", "", "Request mode: buffered, chunked or events (default from config)")
	askCmd.Flags().BoolVarP(&askText, "text", "t", false, "Output plain text instead of rendered markdown")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 0, "Ceiling for buffered requests (default from config)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	mode := cfg.Mode
	if askMode != "" {
		mode = strings.ToLower(askMode)
	}
	switch mode {
	case config.ModeBuffered, config.ModeChunked, config.ModeEvents:
	default:
		return exitcode.ExitError{
			Code:    exitcode.Validation,
			Message: fmt.Sprintf("invalid --mode %q (want buffered, chunked or events)", mode),
		}
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := qa.NewSession(logger)
	sess.Edit(question)
	qaMode := qa.ModeStream
	if mode == config.ModeBuffered {
		qaMode = qa.ModeBuffered
	}
	tok, ok := sess.Begin(ctx, qaMode)
	if !ok {
		return exitcode.FromError(backend.ErrEmptyInput)
	}
	defer sess.Cancel()

	events, err := openAnswer(tok.Context(), newClient(askTimeout), mode, question)
	if err != nil {
		sess.Fail(tok.ID, err)
		return exitcode.FromError(err)
	}

	out := cmd.OutOrStdout()
	isTTY := out == os.Stdout && term.IsTerminal(int(os.Stdout.Fd()))
	useGlamour := !askText && isTTY && cfg.Markdown

	if useGlamour {
		err = askWithBubbleTea(sess, tok.ID, events)
	} else {
		err = askPlain(out, sess, tok.ID, events)
	}
	return exitcode.FromError(err)
}

// openAnswer starts the request for mode and returns its events. Buffered
// answers arrive as a single token followed by done.
func openAnswer(ctx context.Context, client *backend.Client, mode, question string) (<-chan backend.Event, error) {
	if mode == config.ModeBuffered {
		out := make(chan backend.Event, 2)
		go func() {
			defer close(out)
			answer, err := client.Submit(ctx, question)
			if err != nil {
				out <- backend.ErrorEvent(err)
				return
			}
			out <- backend.Event{Type: backend.EventToken, Content: answer.Text}
			out <- backend.Event{Type: backend.EventDone}
		}()
		return out, nil
	}

	transport, err := backend.ParseTransport(mode)
	if err != nil {
		return nil, err
	}
	streamer, err := client.Streamer(transport)
	if err != nil {
		return nil, err
	}
	return streamer.Stream(ctx, question)
}

// applyAskEvent feeds ev to the session and returns the request error it
// carries, if any. A closed channel (ok false) while the request is live
// means it was cancelled.
func applyAskEvent(sess *qa.Session, id qa.RequestID, ev backend.Event, ok bool) error {
	if !ok {
		if sess.Live(id) {
			sess.Fail(id, backend.ErrCancelled)
			return backend.ErrCancelled
		}
		return nil
	}
	if !sess.Apply(id, ev) {
		return nil
	}
	if ev.Type == backend.EventError {
		return ev.Err
	}
	return nil
}

// askPlain writes tokens to w as they arrive.
func askPlain(w io.Writer, sess *qa.Session, id qa.RequestID, events <-chan backend.Event) error {
	var reqErr error
	wrote := false
	for sess.Live(id) {
		ev, ok := <-events
		if err := applyAskEvent(sess, id, ev, ok); err != nil {
			reqErr = err
		}
		if ok && ev.Type == backend.EventToken && ev.Content != "" {
			fmt.Fprint(w, ev.Content)
			wrote = true
		}
		if ok && ev.Type == backend.EventStatus {
			logger.Debug("ask_status", "message", ev.Message)
		}
	}
	if wrote {
		fmt.Fprintln(w)
	}
	return reqErr
}

// askModel is the bubbletea model for a single question with glamour output
type askModel struct {
	session *qa.Session
	id      qa.RequestID
	events  <-chan backend.Event

	spinner spinner.Model
	styles  *ui.Styles
	md      ui.StreamingMarkdown
	width   int
	started time.Time

	err       error
	done      bool
	finalView string
}

// askEventMsg carries one stream event; ok is false once the channel closed
type askEventMsg struct {
	event backend.Event
	ok    bool
}

func newAskModel(sess *qa.Session, id qa.RequestID, events <-chan backend.Event) *askModel {
	styles := ui.DefaultStyles()
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner
	return &askModel{
		session: sess,
		id:      id,
		events:  events,
		spinner: s,
		styles:  styles,
		width:   80,
		started: time.Now(),
	}
}

func (m *askModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForAskEvent(m.events))
}

func waitForAskEvent(events <-chan backend.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return askEventMsg{event: ev, ok: ok}
	}
}

func (m *askModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.session.Cancel()
			m.err = backend.ErrCancelled
			return m, m.finish()
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case askEventMsg:
		if err := applyAskEvent(m.session, m.id, msg.event, msg.ok); err != nil {
			m.err = err
		}
		if !m.session.Live(m.id) {
			return m, m.finish()
		}
		return m, waitForAskEvent(m.events)
	}

	return m, nil
}

// finish renders the final answer and quits.
func (m *askModel) finish() tea.Cmd {
	m.done = true
	st := m.session.State()
	if st.Response != "" {
		width := max(m.width-1, 20)
		if st.Phase == qa.PhaseDone {
			m.finalView = ui.RenderMarkdown(st.Response, width)
		} else {
			m.finalView = ui.WrapPlain(st.Response, width) + "\n"
		}
	}
	return tea.Quit
}

func (m *askModel) View() string {
	if m.done {
		return m.finalView
	}

	st := m.session.State()
	indicator := ui.StreamingIndicator{
		Spinner:    m.spinner.View(),
		Status:     st.Status,
		Elapsed:    time.Since(m.started),
		Chars:      len(st.Response),
		ShowCancel: true,
		Width:      m.width,
	}.Render(m.styles)

	if st.Response == "" {
		return indicator
	}
	return m.md.Render(st.Response, max(m.width-1, 20)) + "\n" + indicator
}

// askWithBubbleTea uses bubbletea for proper terminal handling
func askWithBubbleTea(sess *qa.Session, id qa.RequestID, events <-chan backend.Event) error {
	// Open TTY for input
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		// Fallback to plain output if no TTY
		return askPlain(os.Stdout, sess, id, events)
	}
	defer tty.Close()

	model := newAskModel(sess, id, events)
	p := tea.NewProgram(model, tea.WithInput(tty), tea.WithOutput(os.Stdout))
	if _, err := p.Run(); err != nil {
		return err
	}
	return model.err
}
