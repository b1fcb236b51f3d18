// Package qa holds the question/answer form state and the single live
// request handle. Every mutation goes through one reducer; results arriving
// for a request that is no longer live are ignored.
package qa

import (
	"context"
	"log/slog"
	"strings"

	"github.com/animeqa/animeqa/internal/backend"
)

// Session owns the form state and at most one live Token. It is not safe
// for concurrent use; drive it from a single event loop.
type Session struct {
	state  State
	live   *Token
	logger *slog.Logger
}

// NewSession creates an idle session. A nil logger uses slog.Default().
func NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{logger: logger}
}

// State returns a snapshot of the current state.
func (s *Session) State() State {
	return s.state
}

// Edit replaces the draft.
func (s *Session) Edit(text string) {
	s.dispatch(editAction{text: text})
}

// Begin starts a request for the current draft. It returns false, with a
// warning notice and no token, when the draft is blank. Any live request is
// cancelled first so its late results become no-ops.
func (s *Session) Begin(parent context.Context, mode Mode) (*Token, bool) {
	if strings.TrimSpace(s.state.Draft) == "" {
		s.dispatch(rejectAction{})
		s.logger.Debug("qa_begin_rejected", "reason", "empty_input")
		return nil, false
	}

	if s.live != nil {
		s.logger.Debug("qa_request_superseded", "request_id", string(s.live.ID))
		s.live.Cancel()
		s.live = nil
	}

	tok := newToken(parent)
	s.live = tok
	s.dispatch(beginAction{id: tok.ID, mode: mode})
	s.logger.Debug("qa_request_begin", "request_id", string(tok.ID), "mode", mode.String())
	return tok, true
}

// Complete records a buffered answer for id.
func (s *Session) Complete(id RequestID, answer backend.Answer) bool {
	return s.settle(id, answerAction{id: id, text: answer.Text})
}

// Apply records one stream event for id.
func (s *Session) Apply(id RequestID, ev backend.Event) bool {
	return s.settle(id, streamAction{id: id, event: ev})
}

// Fail records a failed request for id. Cancellation errors end in
// PhaseCancelled rather than PhaseErrored.
func (s *Session) Fail(id RequestID, err error) bool {
	return s.settle(id, failAction{id: id, err: err})
}

// Cancel aborts the live request, if any, and always clears the busy flag
// and status.
func (s *Session) Cancel() {
	if s.live != nil {
		s.logger.Debug("qa_request_cancel", "request_id", string(s.live.ID))
		s.live.Cancel()
		s.live = nil
	}
	s.dispatch(cancelAction{})
}

// Reset cancels and clears the draft and the response.
func (s *Session) Reset() {
	if s.live != nil {
		s.live.Cancel()
		s.live = nil
	}
	s.dispatch(resetAction{})
}

// Live reports whether id is the live request.
func (s *Session) Live(id RequestID) bool {
	return s.live != nil && s.live.ID == id
}

func (s *Session) settle(id RequestID, a action) bool {
	applied := s.dispatch(a)
	if !applied {
		s.logger.Debug("qa_result_ignored", "request_id", string(id))
		return false
	}
	if s.live != nil && s.live.ID == id && s.state.active == "" {
		s.live.release()
		s.live = nil
		s.logger.Debug("qa_request_end", "request_id", string(id), "phase", s.state.Phase.String())
	}
	return true
}

func (s *Session) dispatch(a action) bool {
	next, applied := reduce(s.state, a)
	if applied {
		s.state = next
	}
	return applied
}
