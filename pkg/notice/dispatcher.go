package notice

import (
	"context"
	"log/slog"

	"github.com/vango-dev/imclient/pkg/protocol"
)

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Session identifies the session in processor contexts and logs.
	Session string

	// Self is the local account. Messages sent by it are dispatched as sync
	// echoes. Zero disables the check.
	Self int64

	// Logger receives diagnostics. Default: slog.Default().
	Logger *slog.Logger

	// Metrics records malformed push bodies. May be nil.
	Metrics *Metrics
}

// Dispatcher decodes push frames, runs them through a pipeline and
// broadcasts the resulting events. It implements network.PushHandler; the
// network handler calls it one frame at a time, so each pass completes
// before the next frame is decoded.
type Dispatcher struct {
	pipeline *Pipeline
	sink     EventSink
	session  string
	self     int64
	logger   *slog.Logger
	metrics  *Metrics
}

// NewDispatcher creates a Dispatcher. A nil sink discards events.
func NewDispatcher(p *Pipeline, sink EventSink, config *DispatcherConfig) *Dispatcher {
	if config == nil {
		config = &DispatcherConfig{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		pipeline: p,
		sink:     sink,
		session:  config.Session,
		self:     config.Self,
		logger:   logger.With("component", "dispatcher", "session_id", config.Session),
		metrics:  config.Metrics,
	}
}

// HandlePush implements network.PushHandler. Frames whose body fails to
// decode are dropped.
func (d *Dispatcher) HandlePush(ctx context.Context, f *protocol.Frame) {
	n, err := DecodeNotice(f)
	if err != nil {
		d.metrics.recordMalformed()
		d.logger.Warn("dropping malformed notice", "command", f.Command, "seq", f.Seq, "error", err)
		return
	}
	if err := d.Dispatch(ctx, n, d.isSync(n)); err != nil {
		d.logger.Debug("notice dispatch aborted", "notice", n, "error", err)
	}
}

// Dispatch runs n through the pipeline and broadcasts its events.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notice, fromSync bool) error {
	res, err := d.pipeline.Process(ctx, d.session, n, fromSync)
	if err != nil {
		return err
	}
	if len(res.Events) > 0 && d.sink != nil {
		d.sink.Broadcast(ctx, res.Events)
	}
	return nil
}

func (d *Dispatcher) isSync(n *Notice) bool {
	if d.self == 0 {
		return false
	}
	return (n.Kind == KindFriendMessage || n.Kind == KindGroupMessage) && n.From == d.self
}
