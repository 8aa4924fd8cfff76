package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/imclient/pkg/protocol"
	"github.com/vango-dev/imclient/pkg/transport"
)

// fakeTransport is an in-memory Transport. Sent frames go to the owning
// server's responder; inbound frames are injected with deliver.
type fakeTransport struct {
	server *fakeServer
	seq    atomic.Int32
	frames chan *protocol.Frame
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
	sent   []*protocol.Frame
}

func (t *fakeTransport) NextSeq() int32                 { return t.seq.Add(1) }
func (t *fakeTransport) Frames() <-chan *protocol.Frame { return t.frames }
func (t *fakeTransport) Done() <-chan struct{}          { return t.done }

func (t *fakeTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *fakeTransport) Send(ctx context.Context, f *protocol.Frame) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return transport.ErrClosed
	}
	t.sent = append(t.sent, f)
	t.mu.Unlock()
	t.server.respond(t, f)
	return nil
}

func (t *fakeTransport) Close() error {
	t.end(transport.ErrClosed)
	return nil
}

func (t *fakeTransport) end(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.err = err
	close(t.done)
	close(t.frames)
}

func (t *fakeTransport) deliver(f *protocol.Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.frames <- f
	}
}

func (t *fakeTransport) sentFrames(command string) []*protocol.Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*protocol.Frame
	for _, f := range t.sent {
		if f.Command == command {
			out = append(out, f)
		}
	}
	return out
}

// fakeServer dials fakeTransports and answers requests with onRequest,
// which by default echoes the body back.
type fakeServer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	dialErr    func(n int) error
	onRequest  func(t *fakeTransport, f *protocol.Frame)
}

func (s *fakeServer) Dial(ctx context.Context) (transport.Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dialErr != nil {
		if err := s.dialErr(len(s.transports)); err != nil {
			return nil, err
		}
	}
	t := &fakeTransport{
		server: s,
		frames: make(chan *protocol.Frame, 64),
		done:   make(chan struct{}),
	}
	s.transports = append(s.transports, t)
	return t, nil
}

func (s *fakeServer) respond(t *fakeTransport, f *protocol.Frame) {
	if f.Command == protocol.CmdPushAck || f.Flags.Has(protocol.FlagNoReply) {
		return
	}
	if s.onRequest != nil {
		s.onRequest(t, f)
		return
	}
	t.deliver(protocol.NewResponse(f, f.Body))
}

func (s *fakeServer) dialed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transports)
}

func (s *fakeServer) last() *fakeTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transports[len(s.transports)-1]
}

// loginNegotiator sends one login request and records the resume flags.
type loginNegotiator struct {
	mu      sync.Mutex
	resumes []bool
	fail    func(resume bool) error
}

func (n *loginNegotiator) Negotiate(ctx context.Context, r Requester, resume bool) error {
	n.mu.Lock()
	n.resumes = append(n.resumes, resume)
	n.mu.Unlock()
	if n.fail != nil {
		if err := n.fail(resume); err != nil {
			return err
		}
	}
	_, err := r.SendAndExpect(ctx, protocol.CmdLogin, nil)
	return err
}

type stateRecorder struct {
	mu      sync.Mutex
	changes []StateChange
}

func (r *stateRecorder) OnStateChange(c StateChange) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *stateRecorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.changes))
	for i, c := range r.changes {
		out[i] = c.To
	}
	return out
}

func testConfig(observers ...StateObserver) *Config {
	config := DefaultConfig()
	config.RequestTimeout = time.Second
	config.ReconnectDelay = 10 * time.Millisecond
	config.HeartbeatInterval = 0
	config.Observers = observers
	return config
}

func newTestHandler(t *testing.T, server *fakeServer, config *Config, opts ...Option) (*Handler, *loginNegotiator) {
	t.Helper()
	neg := &loginNegotiator{}
	h := New(server, neg, config, opts...)
	t.Cleanup(func() {
		h.Close(nil)
		h.Wait()
	})
	return h, neg
}

func ctxTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestResumeConnectionReachesOK(t *testing.T) {
	rec := &stateRecorder{}
	h, neg := newTestHandler(t, &fakeServer{}, testConfig(rec))

	require.Equal(t, StateInitialized, h.State())
	require.NoError(t, h.ResumeConnection(ctxTimeout(t)))

	assert.Equal(t, StateOK, h.State())
	assert.Equal(t, []State{StateConnecting, StateLoading, StateOK}, rec.states())
	assert.Equal(t, []bool{false}, neg.resumes)
	assert.NoError(t, h.Cause())
}

func TestSendAndExpectConnectsLazily(t *testing.T) {
	server := &fakeServer{}
	h, _ := newTestHandler(t, server, testConfig())

	f, err := h.SendAndExpect(ctxTimeout(t), "Echo", []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(f.Body))
	assert.Equal(t, 1, server.dialed())
}

func TestResponsesCorrelatedOutOfOrder(t *testing.T) {
	var mu sync.Mutex
	var held []*protocol.Frame
	server := &fakeServer{}
	server.onRequest = func(tr *fakeTransport, f *protocol.Frame) {
		if f.Command != "Echo" {
			tr.deliver(protocol.NewResponse(f, nil))
			return
		}
		mu.Lock()
		held = append(held, f)
		if len(held) < 3 {
			mu.Unlock()
			return
		}
		batch := held
		mu.Unlock()
		for i := len(batch) - 1; i >= 0; i-- {
			tr.deliver(protocol.NewResponse(batch[i], batch[i].Body))
		}
	}
	h, _ := newTestHandler(t, server, testConfig())
	require.NoError(t, h.ResumeConnection(ctxTimeout(t)))

	var wg sync.WaitGroup
	got := make([]string, 3)
	errs := make([]error, 3)
	for i := range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := h.SendAndExpect(ctxTimeout(t), "Echo", []byte(fmt.Sprintf("req-%d", i)))
			errs[i] = err
			if err == nil {
				got[i] = string(f.Body)
			}
		}()
	}
	wg.Wait()

	for i := range 3 {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("req-%d", i), got[i])
	}
}

func TestTimeoutKeepsSessionOK(t *testing.T) {
	server := &fakeServer{}
	server.onRequest = func(tr *fakeTransport, f *protocol.Frame) {
		if f.Command != "Slow" {
			tr.deliver(protocol.NewResponse(f, nil))
		}
	}
	h, _ := newTestHandler(t, server, testConfig())

	_, err := h.SendAndExpect(ctxTimeout(t), "Slow", nil, WithTimeout(20*time.Millisecond))
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "error = %v, want timeout", err)
	assert.Equal(t, StateOK, h.State())

	_, err = h.SendAndExpect(ctxTimeout(t), "Fast", nil)
	assert.NoError(t, err)
}

func TestWithAttemptsResendsSameSeq(t *testing.T) {
	var calls atomic.Int32
	server := &fakeServer{}
	server.onRequest = func(tr *fakeTransport, f *protocol.Frame) {
		if f.Command == "Flaky" && calls.Add(1) == 1 {
			return
		}
		tr.deliver(protocol.NewResponse(f, []byte("done")))
	}
	h, _ := newTestHandler(t, server, testConfig())

	f, err := h.SendAndExpect(ctxTimeout(t), "Flaky", nil, WithTimeout(20*time.Millisecond), WithAttempts(3))
	require.NoError(t, err)
	assert.Equal(t, "done", string(f.Body))

	sent := server.last().sentFrames("Flaky")
	require.Len(t, sent, 2)
	assert.Equal(t, sent[0].Seq, sent[1].Seq)
}

func TestTimeoutReportsAllAttempts(t *testing.T) {
	server := &fakeServer{}
	server.onRequest = func(tr *fakeTransport, f *protocol.Frame) {
		if f.Command != "Silent" {
			tr.deliver(protocol.NewResponse(f, f.Body))
		}
	}
	h, _ := newTestHandler(t, server, testConfig())

	_, err := h.SendAndExpect(ctxTimeout(t), "Silent", nil, WithTimeout(20*time.Millisecond), WithAttempts(3))
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 60*time.Millisecond, timeout.After)
	assert.Equal(t, 3, timeout.Attempts)
	assert.Contains(t, err.Error(), "60ms (3 attempts)")
	assert.Len(t, server.last().sentFrames("Silent"), 3)
	assert.Equal(t, StateOK, h.State())
}

func TestRejectionKeepsSessionOK(t *testing.T) {
	server := &fakeServer{}
	server.onRequest = func(tr *fakeTransport, f *protocol.Frame) {
		if f.Command == "Forbidden" {
			tr.deliver(protocol.NewErrorResponse(f, protocol.ResultNoPermission, "not a member"))
			return
		}
		tr.deliver(protocol.NewResponse(f, nil))
	}
	h, _ := newTestHandler(t, server, testConfig())

	_, err := h.SendAndExpect(ctxTimeout(t), "Forbidden", nil)
	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, protocol.ResultNoPermission, rej.Code)
	assert.Equal(t, "not a member", rej.Message)
	assert.False(t, rej.Retryable())
	assert.Equal(t, StateOK, h.State())
}

func TestCloseIsIdempotent(t *testing.T) {
	rec := &stateRecorder{}
	h, _ := newTestHandler(t, &fakeServer{}, testConfig(rec))
	require.NoError(t, h.ResumeConnection(ctxTimeout(t)))

	cause := errors.New("user logged out")
	assert.True(t, h.Close(cause))
	assert.False(t, h.Close(errors.New("second")))
	assert.False(t, h.Close(nil))

	assert.Equal(t, StateClosed, h.State())
	assert.Equal(t, cause, h.Cause())

	closes := 0
	for _, s := range rec.states() {
		if s == StateClosed {
			closes++
		}
	}
	assert.Equal(t, 1, closes)

	_, err := h.SendAndExpect(ctxTimeout(t), "Echo", nil)
	assert.True(t, IsClosed(err))
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, h.ResumeConnection(ctxTimeout(t)), cause)

	select {
	case <-h.Done():
	default:
		t.Error("Done() not closed")
	}
}

func TestCloseBeforeConnect(t *testing.T) {
	server := &fakeServer{}
	h, _ := newTestHandler(t, server, testConfig())

	assert.True(t, h.Close(nil))
	assert.ErrorIs(t, h.Cause(), ErrExplicitClose)
	assert.ErrorIs(t, h.ResumeConnection(ctxTimeout(t)), ErrSessionClosed)
	assert.Equal(t, 0, server.dialed())
}

func TestCloseFailsPendingRequests(t *testing.T) {
	server := &fakeServer{}
	server.onRequest = func(tr *fakeTransport, f *protocol.Frame) {
		if f.Command != "Hang" {
			tr.deliver(protocol.NewResponse(f, nil))
		}
	}
	h, _ := newTestHandler(t, server, testConfig())
	require.NoError(t, h.ResumeConnection(ctxTimeout(t)))

	errc := make(chan error, 1)
	go func() {
		_, err := h.SendAndExpect(ctxTimeout(t), "Hang", nil, WithTimeout(time.Minute))
		errc <- err
	}()
	require.Eventually(t, func() bool { return len(server.last().sentFrames("Hang")) == 1 }, time.Second, time.Millisecond)

	h.Close(io.ErrClosedPipe)
	select {
	case err := <-errc:
		assert.True(t, IsClosed(err), "error = %v, want closed", err)
		assert.ErrorIs(t, err, io.ErrClosedPipe)
	case <-time.After(2 * time.Second):
		t.Fatal("pending request not failed by Close")
	}
}

func TestInitialConnectFailureCloses(t *testing.T) {
	refused := errors.New("connection refused")
	server := &fakeServer{dialErr: func(int) error { return refused }}
	h, _ := newTestHandler(t, server, testConfig())

	err := h.ResumeConnection(ctxTimeout(t))
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, StateClosed, h.State())
}

func TestReconnectAfterTransportFault(t *testing.T) {
	rec := &stateRecorder{}
	server := &fakeServer{}
	server.onRequest = func(tr *fakeTransport, f *protocol.Frame) {
		if f.Command != "Hang" {
			tr.deliver(protocol.NewResponse(f, nil))
		}
	}
	h, neg := newTestHandler(t, server, testConfig(rec))
	require.NoError(t, h.ResumeConnection(ctxTimeout(t)))
	first := server.last()

	errc := make(chan error, 1)
	go func() {
		_, err := h.SendAndExpect(ctxTimeout(t), "Hang", nil, WithTimeout(time.Minute))
		errc <- err
	}()
	require.Eventually(t, func() bool { return len(first.sentFrames("Hang")) == 1 }, time.Second, time.Millisecond)

	first.end(io.EOF)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrConnectionLost)
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request survived the fault")
	}

	require.Eventually(t, func() bool {
		return server.dialed() == 2 && h.State() == StateOK
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, []bool{false, true}, neg.resumes)
	assert.Equal(t, []State{StateConnecting, StateLoading, StateOK, StateConnecting, StateLoading, StateOK}, rec.states())

	_, err := h.SendAndExpect(ctxTimeout(t), "Echo", nil)
	assert.NoError(t, err)
}

func TestReconnectRetriesUntilDialSucceeds(t *testing.T) {
	server := &fakeServer{}
	var failures atomic.Int32
	h, _ := newTestHandler(t, server, testConfig())
	require.NoError(t, h.ResumeConnection(ctxTimeout(t)))

	server.mu.Lock()
	server.dialErr = func(n int) error {
		if failures.Add(1) <= 3 {
			return errors.New("network unreachable")
		}
		return nil
	}
	server.mu.Unlock()
	server.last().end(io.EOF)

	require.Eventually(t, func() bool {
		return server.dialed() == 2 && h.State() == StateOK
	}, 2*time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, failures.Load(), int32(4))
}

func TestUnrecoverableReconnectCloses(t *testing.T) {
	rejected := errors.New("token revoked")
	server := &fakeServer{}
	h, neg := newTestHandler(t, server, testConfig())
	neg.fail = func(resume bool) error {
		if resume {
			return Unrecoverable(rejected)
		}
		return nil
	}
	require.NoError(t, h.ResumeConnection(ctxTimeout(t)))

	server.last().end(io.EOF)

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session not closed")
	}
	assert.ErrorIs(t, h.Cause(), rejected)
}

func TestLoaderFailureCloses(t *testing.T) {
	loadErr := errors.New("contact list unavailable")
	loader := LoaderFunc(func(ctx context.Context, r Requester, resume bool) error {
		if _, err := r.SendAndExpect(ctx, protocol.CmdLoadContacts, nil); err != nil {
			return err
		}
		return loadErr
	})
	h, _ := newTestHandler(t, &fakeServer{}, testConfig(), WithLoader(loader))

	err := h.ResumeConnection(ctxTimeout(t))
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, err, loadErr)

	var se *SessionError
	require.ErrorAs(t, h.Cause(), &se)
	assert.Equal(t, "load", se.Op)
}

func TestPushesDeliveredInOrder(t *testing.T) {
	server := &fakeServer{}
	var mu sync.Mutex
	var got []int32
	push := PushHandlerFunc(func(ctx context.Context, f *protocol.Frame) {
		mu.Lock()
		got = append(got, f.Seq)
		mu.Unlock()
	})
	h, _ := newTestHandler(t, server, testConfig(), WithPushHandler(push))
	require.NoError(t, h.ResumeConnection(ctxTimeout(t)))

	tr := server.last()
	for seq := int32(1); seq <= 5; seq++ {
		tr.deliver(protocol.NewPush(seq, protocol.CmdPushFriendMsg, nil))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 5
	}, time.Second, time.Millisecond)
	assert.Equal(t, []int32{1, 2, 3, 4, 5}, got)
	assert.Len(t, tr.sentFrames(protocol.CmdPushAck), 5)
}

func TestPushHandlerCanSendRequests(t *testing.T) {
	server := &fakeServer{}
	replies := make(chan string, 1)
	var h *Handler
	push := PushHandlerFunc(func(ctx context.Context, f *protocol.Frame) {
		resp, err := h.SendAndExpect(ctx, "Echo", []byte("from push"))
		if err != nil {
			replies <- err.Error()
			return
		}
		replies <- string(resp.Body)
	})
	h, _ = newTestHandler(t, server, testConfig(), WithPushHandler(push))
	require.NoError(t, h.ResumeConnection(ctxTimeout(t)))

	server.last().deliver(protocol.NewPush(1, protocol.CmdPushSystem, nil))
	select {
	case r := <-replies:
		assert.Equal(t, "from push", r)
	case <-time.After(2 * time.Second):
		t.Fatal("push handler request did not complete")
	}
}

func TestResponsesRoutedWhilePushQueueFull(t *testing.T) {
	server := &fakeServer{}
	release := make(chan struct{})
	replies := make(chan string, 1)
	var mu sync.Mutex
	var got []int32
	var h *Handler
	push := PushHandlerFunc(func(ctx context.Context, f *protocol.Frame) {
		mu.Lock()
		got = append(got, f.Seq)
		mu.Unlock()
		if f.Seq != 1 {
			return
		}
		<-release
		resp, err := h.SendAndExpect(ctx, "Echo", []byte("from push"))
		if err != nil {
			replies <- err.Error()
			return
		}
		replies <- string(resp.Body)
	})
	config := testConfig()
	config.PushQueue = 2
	h, _ = newTestHandler(t, server, config, WithPushHandler(push))
	require.NoError(t, h.ResumeConnection(ctxTimeout(t)))

	// The handler holds push 1 while 2 and 3 fill the queue and 4 waits
	// behind them; the Echo response arrives after all of them.
	tr := server.last()
	for seq := int32(1); seq <= 4; seq++ {
		tr.deliver(protocol.NewPush(seq, protocol.CmdPushFriendMsg, nil))
	}
	close(release)

	select {
	case r := <-replies:
		assert.Equal(t, "from push", r)
	case <-time.After(2 * time.Second):
		t.Fatal("push handler request did not complete")
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 4
	}, time.Second, time.Millisecond)
	assert.Equal(t, []int32{1, 2, 3, 4}, got)
}

func TestPushHandlerPanicIsContained(t *testing.T) {
	server := &fakeServer{}
	var handled atomic.Int32
	push := PushHandlerFunc(func(ctx context.Context, f *protocol.Frame) {
		if handled.Add(1) == 1 {
			panic("bad notice")
		}
	})
	h, _ := newTestHandler(t, server, testConfig(), WithPushHandler(push))
	require.NoError(t, h.ResumeConnection(ctxTimeout(t)))

	server.last().deliver(protocol.NewPush(1, protocol.CmdPushSystem, nil))
	server.last().deliver(protocol.NewPush(2, protocol.CmdPushSystem, nil))
	require.Eventually(t, func() bool { return handled.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, StateOK, h.State())
}

func TestSendWithoutExpect(t *testing.T) {
	server := &fakeServer{}
	h, _ := newTestHandler(t, server, testConfig())

	assert.ErrorIs(t, h.SendWithoutExpect(ctxTimeout(t), "Typing", nil), ErrNotReady)

	require.NoError(t, h.ResumeConnection(ctxTimeout(t)))
	require.NoError(t, h.SendWithoutExpect(ctxTimeout(t), "Typing", []byte{1}))

	sent := server.last().sentFrames("Typing")
	require.Len(t, sent, 1)
	assert.True(t, sent[0].Flags.Has(protocol.FlagNoReply))

	h.Close(nil)
	assert.ErrorIs(t, h.SendWithoutExpect(ctxTimeout(t), "Typing", nil), ErrSessionClosed)
}

func TestHeartbeatFailureReconnects(t *testing.T) {
	server := &fakeServer{}
	var dropHeartbeats atomic.Bool
	server.onRequest = func(tr *fakeTransport, f *protocol.Frame) {
		if f.Command == protocol.CmdHeartbeat && dropHeartbeats.Load() {
			return
		}
		tr.deliver(protocol.NewResponse(f, nil))
	}
	config := testConfig()
	config.HeartbeatInterval = 10 * time.Millisecond
	config.RequestTimeout = 20 * time.Millisecond
	h, neg := newTestHandler(t, server, config)
	require.NoError(t, h.ResumeConnection(ctxTimeout(t)))

	dropHeartbeats.Store(true)
	require.Eventually(t, func() bool { return server.dialed() >= 2 }, 2*time.Second, time.Millisecond)
	dropHeartbeats.Store(false)
	require.Eventually(t, func() bool { return h.State() == StateOK }, 2*time.Second, time.Millisecond)

	neg.mu.Lock()
	defer neg.mu.Unlock()
	assert.True(t, neg.resumes[len(neg.resumes)-1])
}

func TestConcurrentResumeDialsOnce(t *testing.T) {
	server := &fakeServer{}
	h, _ := newTestHandler(t, server, testConfig())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.ResumeConnection(ctxTimeout(t)))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, server.dialed())
}

func TestMetricsRecorded(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))
	config := testConfig()
	config.Metrics = m
	h, _ := newTestHandler(t, &fakeServer{}, config)

	_, err := h.SendAndExpect(ctxTimeout(t), "Echo", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(StateOK), testutil.ToFloat64(m.state))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("Echo", "ok")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.pending))
}

func TestMetricsOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(
		WithRegistry(reg),
		WithNamespace("bot"),
		WithConstLabels(prometheus.Labels{"account": "10001"}),
		WithBuckets([]float64{0.1, 1}),
	)
	m.recordReconnect()

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "bot_session_reconnect_attempts_total")
	assert.Equal(t, 1, testutil.CollectAndCount(m.reconnects))
}
