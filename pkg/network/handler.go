package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/imclient/pkg/protocol"
	"github.com/vango-dev/imclient/pkg/tars"
	"github.com/vango-dev/imclient/pkg/transport"
)

// Handler owns the connection lifecycle of one session: it dials, negotiates
// and loads, correlates requests with responses, forwards pushes in order,
// and reconnects after transport faults until the session is closed.
//
// All methods are safe for concurrent use.
type Handler struct {
	config     *Config
	dialer     transport.Dialer
	negotiator SessionNegotiator
	loader     Loader
	push       PushHandler
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer

	state   stateCell
	current atomic.Pointer[link]
	linkIDs atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	pushes chan *protocol.Frame
	wg     sync.WaitGroup
}

// Option configures optional collaborators of a Handler.
type Option func(*Handler)

// WithLoader sets the Loader run in the Loading state.
func WithLoader(l Loader) Option {
	return func(h *Handler) {
		h.loader = l
	}
}

// WithPushHandler sets the receiver of push frames.
func WithPushHandler(p PushHandler) Option {
	return func(h *Handler) {
		h.push = p
	}
}

// New creates a Handler in the Initialized state. No connection is made
// until the first ResumeConnection or SendAndExpect.
func New(dialer transport.Dialer, negotiator SessionNegotiator, config *Config, opts ...Option) *Handler {
	config = config.normalize()
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		config:     config,
		dialer:     dialer,
		negotiator: negotiator,
		logger:     config.Logger.With("component", "network", "session_id", config.SessionID),
		metrics:    config.Metrics,
		tracer:     otel.Tracer(config.TracerName),
		ctx:        ctx,
		cancel:     cancel,
		pushes:     make(chan *protocol.Frame, config.PushQueue),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.state.init()
	if h.push != nil {
		h.wg.Add(1)
		go h.dispatchLoop()
	}
	return h
}

// SessionID returns the configured session id.
func (h *Handler) SessionID() string {
	return h.config.SessionID
}

// State returns the current lifecycle state.
func (h *Handler) State() State {
	return h.state.load().state
}

// Cause returns why the session was closed, or nil while it is open.
func (h *Handler) Cause() error {
	snap := h.state.load()
	if snap.state != StateClosed {
		return nil
	}
	return snap.cause
}

// Done is closed once the session is closed.
func (h *Handler) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Wait blocks until every goroutine started by the handler has exited. It
// must not be called from a push handler or observer.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// ResumeConnection brings the session to OK. From Initialized it starts the
// first connection attempt; from Connecting or Loading it waits for the
// attempt in progress. It returns a *ClosedError once the session is closed.
func (h *Handler) ResumeConnection(ctx context.Context) error {
	for {
		snap := h.state.load()
		switch snap.state {
		case StateOK:
			return nil
		case StateClosed:
			return &ClosedError{Cause: snap.cause}
		case StateInitialized:
			c := NewExceptionCollector(h.config.MaxSuppressed)
			if _, next, ok := h.state.transition(moveFrom(StateInitialized, StateConnecting, nil, c)); ok {
				h.afterTransition(StateInitialized, next)
				h.startConnecting(next, false)
			}
			continue
		}

		select {
		case <-snap.changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SendAndExpect sends a request and waits for the response with the same
// sequence id, connecting first if needed. A response with a non-zero
// result is returned as *RejectedError; no response in time is a
// *TimeoutError. Neither affects the session.
func (h *Handler) SendAndExpect(ctx context.Context, command string, body []byte, opts ...RequestOption) (*protocol.Frame, error) {
	return h.request(ctx, nil, command, body, opts)
}

// SendWithoutExpect sends a request that expects no response. It does not
// connect: outside OK it fails with ErrNotReady, or *ClosedError once
// closed.
func (h *Handler) SendWithoutExpect(ctx context.Context, command string, body []byte) error {
	snap := h.state.load()
	if snap.state == StateClosed {
		return &ClosedError{Cause: snap.cause}
	}
	l := h.current.Load()
	if snap.state != StateOK || l == nil {
		return ErrNotReady
	}
	if err := l.failure(); err != nil {
		return err
	}

	f := protocol.NewRequest(l.tr.NextSeq(), command, body)
	f.Flags |= protocol.FlagNoReply
	if err := l.tr.Send(ctx, f); err != nil {
		return h.sendError(err)
	}
	return nil
}

// Close closes the session with cause, or ErrExplicitClose when cause is
// nil. Only the first call has any effect and reports true; later calls
// return false and leave the original cause in place.
func (h *Handler) Close(cause error) bool {
	if cause == nil {
		cause = ErrExplicitClose
	}
	old, next, ok := h.state.transition(func(old *snapshot) *snapshot {
		if old.state == StateClosed {
			return nil
		}
		return &snapshot{state: StateClosed, cause: cause}
	})
	if !ok {
		return false
	}

	h.cancel()
	if l := h.current.Swap(nil); l != nil {
		l.shutdown(&ClosedError{Cause: cause})
	}
	h.afterTransition(old.state, next)
	return true
}

// request is the common body of SendAndExpect and the negotiation
// requester. A nil link means the current link after ResumeConnection.
func (h *Handler) request(ctx context.Context, l *link, command string, body []byte, opts []RequestOption) (*protocol.Frame, error) {
	o := requestOptions{timeout: h.config.RequestTimeout, attempts: 1}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := h.startRequestSpan(ctx, command)
	start := time.Now()

	f, err := func() (*protocol.Frame, error) {
		if l == nil {
			if err := h.ResumeConnection(ctx); err != nil {
				return nil, err
			}
			if l = h.current.Load(); l == nil {
				return nil, h.closedOr(ErrConnectionLost)
			}
		}
		return h.roundTrip(ctx, l, command, body, o)
	}()

	h.metrics.recordRequest(command, requestOutcome(err), time.Since(start))
	endSpan(span, err)
	return f, err
}

// roundTrip sends one request on l and waits for its response. On timeout
// the same frame is resent until the attempts are used up.
func (h *Handler) roundTrip(ctx context.Context, l *link, command string, body []byte, o requestOptions) (*protocol.Frame, error) {
	seq := l.tr.NextSeq()
	p, err := l.register(seq, command)
	if err != nil {
		return nil, err
	}
	defer l.remove(seq, p)

	req := protocol.NewRequest(seq, command, body)
	for attempt := 1; attempt <= o.attempts; attempt++ {
		if err := l.tr.Send(ctx, req); err != nil {
			return nil, h.sendError(err)
		}

		timer := time.NewTimer(o.timeout)
		select {
		case r := <-p.ch:
			timer.Stop()
			return r.frame, r.err
		case <-timer.C:
			h.logger.Debug("request timed out", "command", command, "seq", seq, "attempt", attempt)
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
	return nil, &TimeoutError{
		Command:  command,
		Seq:      seq,
		After:    o.timeout * time.Duration(o.attempts),
		Attempts: o.attempts,
	}
}

// sendError maps a transport write failure.
func (h *Handler) sendError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return h.closedOr(fmt.Errorf("%w: %w", ErrConnectionLost, err))
}

// closedOr returns a *ClosedError when the session is closed, else err.
func (h *Handler) closedOr(err error) error {
	if snap := h.state.load(); snap.state == StateClosed {
		return &ClosedError{Cause: snap.cause}
	}
	return err
}

func (h *Handler) startConnecting(snap *snapshot, resume bool) {
	h.wg.Add(1)
	go h.connectLoop(snap, resume)
}

// connectLoop drives one Connecting episode to OK or Closed. The first
// connection of a session gets one attempt; reconnections retry after
// ReconnectDelay until they succeed, fail unrecoverably, or the session is
// closed.
func (h *Handler) connectLoop(snap *snapshot, resume bool) {
	defer h.wg.Done()

	for attempt := 1; ; attempt++ {
		if resume {
			h.metrics.recordReconnect()
		}
		err := h.connectOnce(snap, resume)
		if err == nil {
			return
		}
		if h.State() == StateClosed {
			return
		}

		snap.collector.Collect(err)
		if !resume || IsUnrecoverable(err) {
			h.logger.Warn("connection failed", "attempt", attempt, "error", err)
			h.Close(snap.collector.Result())
			return
		}

		h.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err, "retry_in", h.config.ReconnectDelay)
		timer := time.NewTimer(h.config.ReconnectDelay)
		select {
		case <-timer.C:
		case <-h.ctx.Done():
			timer.Stop()
			return
		}
	}
}

// connectOnce makes one connection attempt from the Connecting snapshot
// snap. A nil return means the session reached OK or was closed.
func (h *Handler) connectOnce(snap *snapshot, resume bool) error {
	ctx, cancel := context.WithTimeout(h.ctx, h.config.ConnectTimeout)
	defer cancel()

	tr, err := h.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	l := h.install(tr)
	if l == nil {
		return nil
	}

	req := &linkRequester{h: h, l: l}
	if err := h.negotiator.Negotiate(ctx, req, resume); err != nil {
		l.shutdown(err)
		return fmt.Errorf("negotiate: %w", err)
	}

	_, loading, ok := h.state.transition(func(old *snapshot) *snapshot {
		if old != snap {
			return nil
		}
		return &snapshot{state: StateLoading}
	})
	if !ok {
		l.shutdown(h.closedOr(ErrTransportReplaced))
		return nil
	}
	h.afterTransition(StateConnecting, loading)

	if h.loader != nil {
		if err := h.loader.Load(ctx, req, resume); err != nil {
			h.Close(&SessionError{SessionID: h.config.SessionID, Op: "load", Err: err})
			return nil
		}
	}

	_, ready, ok := h.state.transition(func(old *snapshot) *snapshot {
		if old != loading {
			return nil
		}
		return &snapshot{state: StateOK}
	})
	if !ok {
		return nil
	}
	h.afterTransition(StateLoading, ready)

	if h.config.HeartbeatInterval > 0 {
		h.wg.Add(1)
		go h.heartbeatLoop(l)
	}
	// The transport may have ended while Loading, before a fault could move
	// the session back to Connecting.
	if err := l.failure(); err != nil {
		h.linkDown(l, err)
	}
	return nil
}

// install makes tr the current transport. The previous one is torn down
// first and its pending requests fail with ErrTransportReplaced. It returns
// nil if the session was closed meanwhile.
func (h *Handler) install(tr transport.Transport) *link {
	l := newLink(h.linkIDs.Add(1), tr, h.metrics)
	for {
		old := h.current.Load()
		if old != nil {
			old.shutdown(ErrTransportReplaced)
		}
		if h.current.CompareAndSwap(old, l) {
			break
		}
	}

	if snap := h.state.load(); snap.state == StateClosed {
		h.current.CompareAndSwap(l, nil)
		l.shutdown(&ClosedError{Cause: snap.cause})
		return nil
	}

	h.logger.Debug("transport installed", "link", l.id)
	h.wg.Add(1)
	go h.readLoop(l)
	return l
}

// readLoop routes inbound frames of l until its transport ends. Pushes
// that do not fit the push queue wait in a backlog of up to PushQueue
// frames, so responses keep flowing while the push handler waits on a
// request of its own.
func (h *Handler) readLoop(l *link) {
	defer h.wg.Done()

	frames := l.tr.Frames()
	var backlog []*protocol.Frame
	for frames != nil || len(backlog) > 0 {
		in := frames
		if len(backlog) >= h.config.PushQueue {
			in = nil
		}
		var out chan<- *protocol.Frame
		var next *protocol.Frame
		if len(backlog) > 0 {
			out, next = h.pushes, backlog[0]
		}

		select {
		case f, ok := <-in:
			if !ok {
				frames = nil
				h.linkDown(l, h.linkError(l))
				continue
			}
			if p := h.route(l, f); p != nil {
				backlog = append(backlog, p)
			}
		case out <- next:
			backlog[0] = nil
			backlog = backlog[1:]
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Handler) linkError(l *link) error {
	err := l.tr.Err()
	if err == nil {
		err = transport.ErrClosed
	}
	return fmt.Errorf("%w: %w", ErrConnectionLost, err)
}

// route handles one inbound frame and returns it when it must go to the
// push handler.
func (h *Handler) route(l *link, f *protocol.Frame) *protocol.Frame {
	h.metrics.recordFrame(f.Kind.String())
	switch f.Kind {
	case protocol.KindResponse:
		if !l.resolve(f) {
			h.logger.Debug("response without pending request", "command", f.Command, "seq", f.Seq)
		}
	case protocol.KindPush:
		if h.config.AckPushes {
			ack := protocol.NewPushAck(f)
			req := protocol.NewRequest(l.tr.NextSeq(), protocol.CmdPushAck, tars.Marshal(ack))
			req.Flags |= protocol.FlagNoReply
			if err := l.tr.Send(h.ctx, req); err != nil {
				h.logger.Debug("push ack failed", "command", f.Command, "seq", f.Seq, "error", err)
			}
		}
		if h.push != nil {
			return f
		}
	default:
		h.logger.Warn("unexpected frame", "kind", f.Kind, "command", f.Command, "seq", f.Seq)
	}
	return nil
}

// linkDown handles the end of l. If l is still the current transport of an
// OK session, the session moves to Connecting and a reconnection starts.
func (h *Handler) linkDown(l *link, err error) {
	cause := l.fail(err)
	if h.current.Load() != l {
		return
	}

	c := NewExceptionCollector(h.config.MaxSuppressed)
	c.Collect(cause)
	_, next, ok := h.state.transition(moveFrom(StateOK, StateConnecting, cause, c))
	if !ok {
		return
	}
	h.logger.Warn("connection lost", "link", l.id, "error", cause)
	h.afterTransition(StateOK, next)
	h.startConnecting(next, true)
}

// heartbeatLoop sends heartbeats on l while it is the live transport. A failed
// heartbeat other than a rejection ends the transport, which triggers reconnection.
func (h *Handler) heartbeatLoop(l *link) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-l.tr.Done():
			return
		case <-h.ctx.Done():
			return
		}

		o := requestOptions{timeout: h.config.RequestTimeout, attempts: 1}
		_, err := h.roundTrip(h.ctx, l, protocol.CmdHeartbeat, nil, o)
		var rej *RejectedError
		if err == nil || errors.As(err, &rej) {
			continue
		}
		if l.failure() != nil || h.ctx.Err() != nil {
			return
		}
		h.logger.Warn("heartbeat failed", "link", l.id, "error", err)
		l.fail(fmt.Errorf("heartbeat: %w", err))
		l.tr.Close()
		return
	}
}

// dispatchLoop hands pushes to the push handler one at a time.
func (h *Handler) dispatchLoop() {
	defer h.wg.Done()
	for {
		select {
		case f := <-h.pushes:
			h.handlePush(f)
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Handler) handlePush(f *protocol.Frame) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("push handler panic", "command", f.Command, "seq", f.Seq, "panic", r)
		}
	}()
	h.push.HandlePush(h.ctx, f)
}

// afterTransition records a completed transition and notifies observers.
func (h *Handler) afterTransition(from State, next *snapshot) {
	h.metrics.recordTransition(from, next.state)
	if next.cause != nil {
		h.logger.Info("state changed", "from", from, "to", next.state, "cause", next.cause)
	} else {
		h.logger.Info("state changed", "from", from, "to", next.state)
	}

	change := StateChange{From: from, To: next.state, Cause: next.cause, At: time.Now()}
	for _, o := range h.config.Observers {
		o.OnStateChange(change)
	}
}

// linkRequester sends on one specific link, bypassing ResumeConnection. It
// is handed to the negotiator and loader, which run before the session is
// OK.
type linkRequester struct {
	h *Handler
	l *link
}

func (r *linkRequester) SendAndExpect(ctx context.Context, command string, body []byte, opts ...RequestOption) (*protocol.Frame, error) {
	return r.h.request(ctx, r.l, command, body, opts)
}

func requestOutcome(err error) string {
	var rej *RejectedError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &rej):
		return "rejected"
	case IsTimeout(err):
		return "timeout"
	case IsClosed(err):
		return "closed"
	default:
		return "error"
	}
}
