package backend

import (
	"context"
	"fmt"
	"strings"
)

// DefaultStreamBufferSize is the capacity of stream event channels.
const DefaultStreamBufferSize = 16

// EventType discriminates stream events. The first three values are the
// wire values of the chunked protocol.
type EventType string

const (
	EventStatus EventType = "status"
	EventToken  EventType = "token"
	EventDone   EventType = "done"
	EventError  EventType = "error"
)

// Event is one unit delivered by a Streamer.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Content string    `json:"content,omitempty"`
	Err     error     `json:"-"`
}

// Terminal reports whether ev ends the stream.
func (ev Event) Terminal() bool {
	return ev.Type == EventDone || ev.Type == EventError
}

// ErrorEvent wraps err as a terminal event.
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Err: err}
}

// Streamer opens an incremental answer for a question.
//
// The returned channel yields zero or more status/token events followed by
// exactly one terminal event, then closes. Token contents are meant to be
// appended verbatim. When ctx is cancelled the connection is released and
// the channel closes without a terminal event.
type Streamer interface {
	Stream(ctx context.Context, question string) (<-chan Event, error)
}

// Transport names a streaming strategy.
type Transport string

const (
	TransportChunked Transport = "chunked"
	TransportEvents  Transport = "events"
)

// ParseTransport validates a transport name.
func ParseTransport(s string) (Transport, error) {
	switch t := Transport(strings.ToLower(strings.TrimSpace(s))); t {
	case TransportChunked, TransportEvents:
		return t, nil
	default:
		return "", fmt.Errorf("unknown stream transport %q (want %q or %q)", s, TransportChunked, TransportEvents)
	}
}

// Streamer returns the strategy for t bound to this client.
func (c *Client) Streamer(t Transport) (Streamer, error) {
	switch t {
	case TransportChunked:
		return NewChunkedStreamer(c), nil
	case TransportEvents:
		return NewEventSourceStreamer(c), nil
	default:
		return nil, fmt.Errorf("unknown stream transport %q", t)
	}
}

// emitter guards channel sends with the caller's context so a goroutine
// never blocks on a consumer that has gone away.
type emitter struct {
	ctx context.Context
	ch  chan<- Event
}

func (e emitter) send(ev Event) bool {
	if e.ctx.Err() != nil {
		return false
	}
	select {
	case <-e.ctx.Done():
		return false
	case e.ch <- ev:
		return true
	}
}
