package qa

import (
	"github.com/animeqa/animeqa/internal/backend"
)

// StatusConnecting is the transient status shown once a request starts.
const StatusConnecting = "Connecting..."

// Phase is the position of the current request in its lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseStreaming
	PhaseDone
	PhaseErrored
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseStreaming:
		return "streaming"
	case PhaseDone:
		return "done"
	case PhaseErrored:
		return "errored"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether p ends a request.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseErrored || p == PhaseCancelled
}

// Mode is the request style of the current or last request.
type Mode int

const (
	ModeBuffered Mode = iota
	ModeStream
)

func (m Mode) String() string {
	if m == ModeStream {
		return "stream"
	}
	return "buffered"
}

// NoticeLevel grades a user-facing notice.
type NoticeLevel int

const (
	NoticeNone NoticeLevel = iota
	NoticeInfo
	NoticeWarning
	NoticeError
)

// Notice is the message surfaced to the user after validation or a
// terminal request state.
type Notice struct {
	Level NoticeLevel
	Text  string
}

// State is everything the form displays. It only changes through reduce.
type State struct {
	Draft    string
	Response string
	Status   string
	Busy     bool
	Phase    Phase
	Mode     Mode
	Notice   Notice

	active RequestID
}

// ShowResponse reports whether the response area has anything to render.
func (s State) ShowResponse() bool {
	return s.Response != ""
}

// Active returns the ID of the live request, or "" when idle.
func (s State) Active() RequestID {
	return s.active
}

type action interface {
	isAction()
}

type (
	editAction   struct{ text string }
	rejectAction struct{}
	beginAction  struct {
		id   RequestID
		mode Mode
	}
	answerAction struct {
		id   RequestID
		text string
	}
	streamAction struct {
		id    RequestID
		event backend.Event
	}
	failAction struct {
		id  RequestID
		err error
	}
	cancelAction struct{}
	resetAction  struct{}
)

func (editAction) isAction()   {}
func (rejectAction) isAction() {}
func (beginAction) isAction()  {}
func (answerAction) isAction() {}
func (streamAction) isAction() {}
func (failAction) isAction()   {}
func (cancelAction) isAction() {}
func (resetAction) isAction()  {}

// reduce applies a to s. The bool is false when a was ignored because it
// belongs to a request that is no longer live.
func reduce(s State, a action) (State, bool) {
	switch a := a.(type) {
	case editAction:
		s.Draft = a.text
		return s, true

	case rejectAction:
		s.Notice = Notice{Level: NoticeWarning, Text: backend.UserMessage(backend.ErrEmptyInput)}
		return s, true

	case beginAction:
		s.active = a.id
		s.Mode = a.mode
		s.Busy = true
		s.Status = StatusConnecting
		s.Response = ""
		s.Notice = Notice{}
		s.Phase = PhaseConnecting
		return s, true

	case answerAction:
		if a.id == "" || a.id != s.active {
			return s, false
		}
		s.Response = a.text
		s.Draft = ""
		return finish(s, PhaseDone), true

	case streamAction:
		if a.id == "" || a.id != s.active {
			return s, false
		}
		switch a.event.Type {
		case backend.EventStatus:
			s.Status = a.event.Message
			s.Phase = PhaseStreaming
		case backend.EventToken:
			s.Response += a.event.Content
			s.Phase = PhaseStreaming
		case backend.EventDone:
			s.Draft = ""
			s = finish(s, PhaseDone)
		case backend.EventError:
			return reduce(s, failAction{id: a.id, err: a.event.Err})
		default:
			return s, false
		}
		return s, true

	case failAction:
		if a.id == "" || a.id != s.active {
			return s, false
		}
		if backend.KindOf(a.err) == backend.KindCancelled {
			s.Notice = Notice{Level: NoticeInfo, Text: backend.UserMessage(backend.ErrCancelled)}
			return finish(s, PhaseCancelled), true
		}
		s.Notice = Notice{Level: NoticeError, Text: backend.UserMessage(a.err)}
		return finish(s, PhaseErrored), true

	case cancelAction:
		if s.active != "" {
			s.Notice = Notice{Level: NoticeInfo, Text: backend.UserMessage(backend.ErrCancelled)}
			return finish(s, PhaseCancelled), true
		}
		s.Busy = false
		s.Status = ""
		return s, true

	case resetAction:
		s, _ = reduce(s, cancelAction{})
		s.Draft = ""
		s.Response = ""
		s.Notice = Notice{}
		s.Phase = PhaseIdle
		return s, true
	}

	return s, false
}

// finish moves s into a terminal phase and releases the busy state.
func finish(s State, phase Phase) State {
	s.active = ""
	s.Busy = false
	s.Status = ""
	s.Phase = phase
	return s
}
