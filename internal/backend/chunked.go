package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
)

const readChunkSize = 4096

// ChunkedStreamer reads POST /anime/stream as raw chunks and parses
// newline-delimited "data: {json}" events out of them.
type ChunkedStreamer struct {
	client *Client
}

// NewChunkedStreamer creates a chunked-read strategy for c.
func NewChunkedStreamer(c *Client) *ChunkedStreamer {
	return &ChunkedStreamer{client: c}
}

// Stream implements Streamer.
func (s *ChunkedStreamer) Stream(ctx context.Context, question string) (<-chan Event, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyInput
	}
	ch := make(chan Event, DefaultStreamBufferSize)
	go s.run(ctx, question, ch)
	return ch, nil
}

func (s *ChunkedStreamer) run(ctx context.Context, question string, ch chan<- Event) {
	defer close(ch)
	out := emitter{ctx: ctx, ch: ch}
	logger := s.client.logger

	reqCtx, cancel := withCeiling(ctx, s.client.streamTimeout)
	defer cancel()

	req, err := s.client.newJSONRequest(reqCtx, http.MethodPost, "/anime/stream", QueryRequest{Input: question})
	if err != nil {
		out.send(ErrorEvent(err))
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	logger.Info("anime_stream_start", "transport", string(TransportChunked), "url", req.URL.String())

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

	parser := NewLineParser(logger)
	buf := make([]byte, readChunkSize)
	tokens := 0
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range parser.Feed(buf[:n]) {
				if ev.Type == EventToken {
					tokens++
				}
				if !out.send(ev) {
					return
				}
				if ev.Type == EventDone {
					logger.Info("anime_stream_done", "transport", string(TransportChunked), "tokens", tokens)
					return
				}
			}
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) && reqCtx.Err() == nil {
			if rest := parser.Pending(); rest != "" {
				logger.Debug("stream_trailing_line_dropped", "line", rest)
			}
			logger.Warn("anime_stream_incomplete", "transport", string(TransportChunked), "tokens", tokens)
			out.send(ErrorEvent(ErrIncompleteStream))
			return
		}

		err := classifyTransport(reqCtx, readErr)
		logger.Error("anime_stream_error", "transport", string(TransportChunked), "error", err)
		out.send(ErrorEvent(err))
		return
	}
}
