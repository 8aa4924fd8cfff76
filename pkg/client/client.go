// Package client ties a session handler, the notice pipeline and history
// retrieval together behind one long-lived value.
//
// A network.Handler never leaves the Closed state. Client keeps the current
// handler in an atomic pointer and replaces it once it has closed, so
// callers can hold on to the Client across sessions. A session closed by an
// unrecoverable failure, such as rejected credentials, is only replaced by
// an explicit Login.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/imclient/pkg/network"
	"github.com/vango-dev/imclient/pkg/notice"
	"github.com/vango-dev/imclient/pkg/protocol"
	"github.com/vango-dev/imclient/pkg/roaming"
	"github.com/vango-dev/imclient/pkg/store"
	"github.com/vango-dev/imclient/pkg/transport"
)

// ErrClientClosed is returned by Login after Close.
var ErrClientClosed = errors.New("client: closed")

// Config configures a Client.
type Config struct {
	// Account and Token are the login credentials.
	Account int64
	Token   string

	// LoadContacts fetches the contact list before the session is ready.
	LoadContacts bool

	// Network configures each session handler. SessionID gets a generation
	// suffix per handler.
	Network *network.Config

	// Roaming configures history retrieval.
	Roaming *roaming.Config

	// Store persists notice watermarks. Default: an in-memory store.
	// The Client closes it on Close.
	Store store.WatermarkStore

	// Sink receives pipeline events. Nil discards them.
	Sink notice.EventSink

	// NoticeMetrics records pipeline metrics. May be nil.
	NoticeMetrics *notice.Metrics

	// Logger receives diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// Client is the entry point of the library.
type Client struct {
	dialer transport.Dialer
	config Config
	logger *slog.Logger

	watermarks *notice.Watermarks
	pipeline   *notice.Pipeline
	dispatcher *notice.Dispatcher

	mu         sync.Mutex // serializes handler replacement
	handler    atomic.Pointer[network.Handler]
	generation int
	closed     atomic.Bool

	session  atomic.Pointer[Session]
	contacts atomic.Pointer[Contacts]
}

// New creates a Client. No connection is made until Login or the first
// request.
func New(dialer transport.Dialer, config *Config) *Client {
	var cfg Config
	if config != nil {
		cfg = *config
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore()
	}
	if cfg.Network == nil {
		cfg.Network = network.DefaultConfig()
	}
	if cfg.Roaming == nil {
		cfg.Roaming = &roaming.Config{}
	}
	if cfg.Roaming.Logger == nil {
		cfg.Roaming.Logger = cfg.Logger
	}

	c := &Client{
		dialer: dialer,
		config: cfg,
		logger: cfg.Logger.With("component", "client", "account", cfg.Account),
	}
	c.watermarks = notice.NewWatermarks(cfg.Store, cfg.Logger)
	c.pipeline = notice.NewPipeline(&notice.Config{Logger: cfg.Logger, Metrics: cfg.NoticeMetrics})
	notice.RegisterDefaults(c.pipeline, c.watermarks, cfg.NoticeMetrics)
	c.dispatcher = notice.NewDispatcher(c.pipeline, cfg.Sink, &notice.DispatcherConfig{
		Session: cfg.Network.SessionID,
		Self:    cfg.Account,
		Logger:  cfg.Logger,
		Metrics: cfg.NoticeMetrics,
	})
	return c
}

// Pipeline returns the notice pipeline for registering extra processors.
func (c *Client) Pipeline() *notice.Pipeline {
	return c.pipeline
}

// Watermarks returns the notice watermarks.
func (c *Client) Watermarks() *notice.Watermarks {
	return c.watermarks
}

// Network returns the current session handler, creating one if there is
// none or the last one closed for a reason a new session may fix. A
// session closed by an unrecoverable failure is returned as is until the
// next Login. It returns nil after Close.
func (c *Client) Network() *network.Handler {
	return c.current(false)
}

// current returns the live handler or replaces a closed one. Without force
// a handler closed by an unrecoverable failure is kept.
func (c *Client) current(force bool) *network.Handler {
	if c.closed.Load() {
		return nil
	}
	if h := c.handler.Load(); h != nil && !c.replaceable(h, force) {
		return h
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if h := c.handler.Load(); h != nil && !c.replaceable(h, force) {
		return h
	}
	if c.closed.Load() {
		return nil
	}

	c.generation++
	cfg := c.config.Network.Clone()
	base := cfg.SessionID
	if base == "" {
		base = "imclient"
	}
	cfg.SessionID = fmt.Sprintf("%s-%d", base, c.generation)
	if cfg.Logger == nil {
		cfg.Logger = c.config.Logger
	}
	h := network.New(c.dialer, network.NegotiatorFunc(c.negotiate), cfg,
		network.WithLoader(network.LoaderFunc(c.load)),
		network.WithPushHandler(c.dispatcher),
	)
	if old := c.handler.Swap(h); old != nil {
		c.logger.Info("replacing closed session", "old", old.SessionID(), "cause", old.Cause(), "new", cfg.SessionID)
	}
	return h
}

func (c *Client) replaceable(h *network.Handler, force bool) bool {
	if h.State() != network.StateClosed {
		return false
	}
	return force || !network.IsUnrecoverable(h.Cause())
}

// Login connects and logs in, returning once the session is ready. After a
// session has closed, for any reason, Login starts a new one.
func (c *Client) Login(ctx context.Context) error {
	h := c.current(true)
	if h == nil {
		return ErrClientClosed
	}
	return h.ResumeConnection(ctx)
}

// Session returns the current login, or nil before the first login.
func (c *Client) Session() *Session {
	return c.session.Load()
}

// Contacts returns the loaded contact list, or nil.
func (c *Client) Contacts() *Contacts {
	return c.contacts.Load()
}

// SendAndExpect sends through the current session. It implements
// roaming.Requester, so history retrievers keep working after a session
// is replaced. After an unrecoverable failure it returns *ClosedError
// without connecting until Login is called again.
func (c *Client) SendAndExpect(ctx context.Context, command string, body []byte, opts ...network.RequestOption) (*protocol.Frame, error) {
	h := c.Network()
	if h == nil {
		if last := c.handler.Load(); last != nil {
			return nil, &network.ClosedError{Cause: last.Cause()}
		}
		return nil, ErrClientClosed
	}
	return h.SendAndExpect(ctx, command, body, opts...)
}

// FriendHistory returns a history retriever for a friend.
func (c *Client) FriendHistory(peer int64) *roaming.FriendHistory {
	return roaming.NewFriendHistory(c, peer, c.config.Roaming)
}

// GroupHistory returns a history retriever for a group.
func (c *Client) GroupHistory(group int64) *roaming.GroupHistory {
	return roaming.NewGroupHistory(c, group, c.config.Roaming)
}

// Close closes the current session, flushes watermarks and closes the
// store. Later calls return nil.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.mu.Lock()
	h := c.handler.Load()
	c.mu.Unlock()
	if h != nil {
		h.Close(nil)
		h.Wait()
	}

	ctx := context.Background()
	return errors.Join(c.watermarks.Flush(ctx), c.config.Store.Close())
}
