package qa

import (
	"context"

	"github.com/animeqa/animeqa/internal/backend"
	"github.com/google/uuid"
)

// RequestID identifies one request. Every result delivered back to a
// Session carries it so stale results can be told apart.
type RequestID string

// NewRequestID returns a fresh random ID.
func NewRequestID() RequestID {
	return RequestID(uuid.NewString())
}

// Token is the cancellation handle of a single request.
type Token struct {
	ID RequestID

	ctx    context.Context
	cancel context.CancelCauseFunc
}

func newToken(parent context.Context) *Token {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	return &Token{
		ID:     NewRequestID(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context is passed to the transport call. It is done once the request is
// cancelled, superseded or finished.
func (t *Token) Context() context.Context {
	return t.ctx
}

// Cancel aborts the request. Transport calls observe backend.ErrCancelled.
func (t *Token) Cancel() {
	t.cancel(backend.ErrCancelled)
}

// Cancelled reports whether the token's context is done.
func (t *Token) Cancelled() bool {
	return t.ctx.Err() != nil
}

// release frees the context after a terminal state.
func (t *Token) release() {
	t.cancel(nil)
}
