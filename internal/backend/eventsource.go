package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/openai/openai-go/packages/ssestream"
)

// EndSentinel is the message that completes a server-push stream.
const EndSentinel = "[END]"

// EventSourceStreamer subscribes to GET /anime_stream as a server-sent event
// channel. Each message is one answer fragment; fragments are joined with a
// single space.
type EventSourceStreamer struct {
	client *Client
}

// NewEventSourceStreamer creates a server-push strategy for c.
func NewEventSourceStreamer(c *Client) *EventSourceStreamer {
	return &EventSourceStreamer{client: c}
}

// Stream implements Streamer.
func (s *EventSourceStreamer) Stream(ctx context.Context, question string) (<-chan Event, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyInput
	}
	target, err := url.Parse(s.client.endpoint("/anime_stream"))
	if err != nil {
		return nil, fmt.Errorf("parse stream url: %w", err)
	}
	query := target.Query()
	query.Set("q", question)
	target.RawQuery = query.Encode()

	ch := make(chan Event, DefaultStreamBufferSize)
	go s.run(ctx, target.String(), ch)
	return ch, nil
}

func (s *EventSourceStreamer) run(ctx context.Context, target string, ch chan<- Event) {
	defer close(ch)
	out := emitter{ctx: ctx, ch: ch}
	logger := s.client.logger

	reqCtx, cancel := withCeiling(ctx, s.client.streamTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		out.send(ErrorEvent(fmt.Errorf("build request: %w", err)))
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	logger.Info("anime_stream_start", "transport", string(TransportEvents), "url", target)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		out.send(ErrorEvent(classifyTransport(reqCtx, err)))
		return
	}
	defer resp.Body.Close()

	if !isSuccessStatus(resp.StatusCode) {
		out.send(ErrorEvent(s.client.httpError(resp)))
		return
	}

	decoder := ssestream.NewDecoder(resp)
	defer decoder.Close()

	fragments := 0
	for decoder.Next() {
		data := strings.TrimSuffix(string(decoder.Event().Data), "\n")
		if data == "" {
			continue
		}
		if data == EndSentinel {
			logger.Info("anime_stream_done", "transport", string(TransportEvents), "tokens", fragments)
			out.send(Event{Type: EventDone})
			return
		}
		if fragments > 0 {
			data = " " + data
		}
		fragments++
		if !out.send(Event{Type: EventToken, Content: data}) {
			return
		}
	}

	err = decoder.Err()
	switch {
	case reqCtx.Err() != nil:
		err = classifyTransport(reqCtx, err)
	case err == nil:
		err = ErrIncompleteStream
	default:
		err = &NetworkError{Err: err}
	}
	logger.Warn("anime_stream_error", "transport", string(TransportEvents), "error", err, "tokens", fragments)
	out.send(ErrorEvent(err))
}
