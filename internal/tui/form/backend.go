package form

import (
	"context"

	"github.com/animeqa/animeqa/internal/backend"
)

// Backend is the transport the form drives.
type Backend interface {
	Submit(ctx context.Context, question string) (backend.Answer, error)
	Stream(ctx context.Context, question string) (<-chan backend.Event, error)
}

// ClientBackend pairs the buffered client with one streaming strategy.
type ClientBackend struct {
	client   *backend.Client
	streamer backend.Streamer
}

// NewClientBackend streams over transport t.
func NewClientBackend(c *backend.Client, t backend.Transport) (*ClientBackend, error) {
	s, err := c.Streamer(t)
	if err != nil {
		return nil, err
	}
	return &ClientBackend{client: c, streamer: s}, nil
}

// Submit sends a buffered request.
func (b *ClientBackend) Submit(ctx context.Context, question string) (backend.Answer, error) {
	return b.client.Submit(ctx, question)
}

// Stream opens a streamed request.
func (b *ClientBackend) Stream(ctx context.Context, question string) (<-chan backend.Event, error) {
	return b.streamer.Stream(ctx, question)
}
