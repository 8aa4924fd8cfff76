package network

import (
	"context"

	"github.com/vango-dev/imclient/pkg/protocol"
)

// Requester sends a request and waits for its correlated response.
type Requester interface {
	SendAndExpect(ctx context.Context, command string, body []byte, opts ...RequestOption) (*protocol.Frame, error)
}

// SessionNegotiator performs login on a freshly connected transport. It is
// called once per Connecting → Loading transition; resume is true when the
// session is recovering from a transport fault. Returning an error wrapped
// with Unrecoverable closes the session instead of retrying.
type SessionNegotiator interface {
	Negotiate(ctx context.Context, r Requester, resume bool) error
}

// NegotiatorFunc adapts a function to SessionNegotiator.
type NegotiatorFunc func(ctx context.Context, r Requester, resume bool) error

// Negotiate calls f.
func (f NegotiatorFunc) Negotiate(ctx context.Context, r Requester, resume bool) error {
	return f(ctx, r, resume)
}

// Loader runs in the Loading state after negotiation, before the session is
// OK, to fetch whatever the session needs to be usable. A failure closes
// the session.
type Loader interface {
	Load(ctx context.Context, r Requester, resume bool) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, r Requester, resume bool) error

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, r Requester, resume bool) error {
	return f(ctx, r, resume)
}

// PushHandler receives push frames one at a time, in arrival order.
// HandlePush may send requests on the session. While it runs, up to twice
// Config.PushQueue further pushes are buffered; past that the connection
// stops reading, and responses wait until HandlePush returns.
type PushHandler interface {
	HandlePush(ctx context.Context, f *protocol.Frame)
}

// PushHandlerFunc adapts a function to PushHandler.
type PushHandlerFunc func(ctx context.Context, f *protocol.Frame)

// HandlePush calls f.
func (f PushHandlerFunc) HandlePush(ctx context.Context, frame *protocol.Frame) {
	f(ctx, frame)
}
