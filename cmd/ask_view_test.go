package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/animeqa/animeqa/internal/backend"
	"github.com/animeqa/animeqa/internal/qa"
	"github.com/animeqa/animeqa/internal/testutil"
	tea "github.com/charmbracelet/bubbletea"
)

func newTestAskModel(t *testing.T) (*askModel, *qa.Session, *qa.Token) {
	t.Helper()
	sess := qa.NewSession(nil)
	sess.Edit("Is Naruto good?")
	tok, ok := sess.Begin(context.Background(), qa.ModeStream)
	if !ok {
		t.Fatal("Begin rejected the question")
	}
	return newAskModel(sess, tok.ID, make(chan backend.Event)), sess, tok
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestAskViewStreamsThenRendersMarkdown(t *testing.T) {
	m, _, _ := newTestAskModel(t)
	screen := testutil.NewScreenCapture()

	testutil.AssertContainsPlain(t, m.View(), "Connecting...")

	steps := []backend.Event{
		{Type: backend.EventStatus, Message: "Retrieving documents..."},
		{Type: backend.EventToken, Content: "Naruto is "},
		{Type: backend.EventToken, Content: "**great**"},
	}
	for _, ev := range steps {
		_, cmd := m.Update(askEventMsg{event: ev, ok: true})
		if cmd == nil {
			t.Fatalf("expected to keep reading after %s", ev.Type)
		}
		screen.Capture(m.View(), string(ev.Type))
	}
	if !screen.AnyFrameContains("Retrieving documents...") {
		t.Fatalf("status never shown\n%s", screen.Dump())
	}
	testutil.AssertContainsPlain(t, m.View(), "chars")

	_, cmd := m.Update(askEventMsg{event: backend.Event{Type: backend.EventDone}, ok: true})
	if !isQuit(cmd) {
		t.Fatal("expected done to quit")
	}
	if m.err != nil {
		t.Fatalf("err = %v", m.err)
	}
	final := m.View()
	testutil.AssertContainsPlain(t, final, "Naruto is great")
	testutil.AssertNotContainsPlain(t, final, "esc to cancel")
}

func TestAskViewErrorEvent(t *testing.T) {
	m, sess, _ := newTestAskModel(t)

	m.Update(askEventMsg{event: backend.Event{Type: backend.EventToken, Content: "partial"}, ok: true})
	_, cmd := m.Update(askEventMsg{event: backend.ErrorEvent(backend.ErrIncompleteStream), ok: true})

	if !isQuit(cmd) {
		t.Fatal("expected an error event to quit")
	}
	if !errors.Is(m.err, backend.ErrIncompleteStream) {
		t.Fatalf("err = %v", m.err)
	}
	if sess.State().Phase != qa.PhaseErrored {
		t.Fatalf("phase = %v", sess.State().Phase)
	}
	testutil.AssertContainsPlain(t, m.View(), "partial")
}

func TestAskViewCancelKey(t *testing.T) {
	m, _, tok := newTestAskModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !isQuit(cmd) {
		t.Fatal("expected ctrl+c to quit")
	}
	if !errors.Is(m.err, backend.ErrCancelled) {
		t.Fatalf("err = %v", m.err)
	}
	if tok.Context().Err() == nil {
		t.Fatal("request context not cancelled")
	}
	if m.View() != "" {
		t.Fatalf("view = %q, want empty without an answer", m.View())
	}
}

func TestAskViewClosedChannelIsCancellation(t *testing.T) {
	m, sess, _ := newTestAskModel(t)

	_, cmd := m.Update(askEventMsg{ok: false})
	if !isQuit(cmd) {
		t.Fatal("expected a closed stream to quit")
	}
	if !errors.Is(m.err, backend.ErrCancelled) {
		t.Fatalf("err = %v", m.err)
	}
	if sess.State().Phase != qa.PhaseCancelled {
		t.Fatalf("phase = %v", sess.State().Phase)
	}
}
