package roaming

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/imclient/pkg/network"
	"github.com/vango-dev/imclient/pkg/notice"
	"github.com/vango-dev/imclient/pkg/protocol"
	"github.com/vango-dev/imclient/pkg/tars"
)

// ErrCursorStalled is yielded when the server answers with a page that does
// not move the cursor, which would otherwise repeat forever.
var ErrCursorStalled = errors.New("roaming: cursor did not advance")

// DefaultPageSize is the number of messages per group history page.
const DefaultPageSize = 20

// Requester sends a request and waits for its response.
// *network.Handler satisfies it.
type Requester interface {
	SendAndExpect(ctx context.Context, command string, body []byte, opts ...network.RequestOption) (*protocol.Frame, error)
}

// MessageGroup is one logical message reassembled from its fragments.
type MessageGroup struct {
	Peer     int64
	Seq      int64 // Sequence of the first fragment
	Time     int64
	From     int64
	Messages []*notice.Message
}

// Text returns the concatenated text of all fragments.
func (g *MessageGroup) Text() string {
	n := 0
	for _, m := range g.Messages {
		n += len(m.Text)
	}
	buf := make([]byte, 0, n)
	for _, m := range g.Messages {
		buf = append(buf, m.Text...)
	}
	return string(buf)
}

// Filter selects message groups. A nil Filter selects all.
type Filter func(*MessageGroup) bool

// Config configures history retrieval.
type Config struct {
	// PageSize is the number of messages per group history page.
	// Default: 20.
	PageSize int

	// ChunkSize is the maximum number of messages asked for per friend
	// history request. Zero lets the server decide.
	ChunkSize int32

	// RequestTimeout overrides the requester's default response timeout.
	RequestTimeout time.Duration

	// Attempts resends an unanswered page request. Default: 1.
	Attempts int

	// Logger receives diagnostics. Default: slog.Default().
	Logger *slog.Logger

	// Metrics records page fetches. Nil disables metrics.
	Metrics *Metrics

	// TracerName selects the OpenTelemetry tracer. Default: "imclient".
	TracerName string
}

func (c *Config) normalize() Config {
	var out Config
	if c != nil {
		out = *c
	}
	if out.PageSize <= 0 {
		out.PageSize = DefaultPageSize
	}
	if out.Attempts <= 0 {
		out.Attempts = 1
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.TracerName == "" {
		out.TracerName = "imclient"
	}
	return out
}

// fetcher issues page requests with tracing, metrics and options applied.
type fetcher struct {
	r       Requester
	variant string
	config  Config
	logger  *slog.Logger
	tracer  trace.Tracer
}

func newFetcher(r Requester, variant string, config *Config, attrs ...any) fetcher {
	c := config.normalize()
	return fetcher{
		r:       r,
		variant: variant,
		config:  c,
		logger:  c.Logger.With(append([]any{"component", "roaming", "variant", variant}, attrs...)...),
		tracer:  otel.Tracer(c.TracerName),
	}
}

func (f fetcher) fetch(ctx context.Context, command string, req, resp tars.Struct) error {
	ctx, span := f.tracer.Start(ctx, "imclient.roaming "+command,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("imclient.command", command),
			attribute.String("imclient.roaming.variant", f.variant),
		),
	)
	defer span.End()

	opts := []network.RequestOption{network.WithAttempts(f.config.Attempts)}
	if f.config.RequestTimeout > 0 {
		opts = append(opts, network.WithTimeout(f.config.RequestTimeout))
	}

	frame, err := f.r.SendAndExpect(ctx, command, tars.Marshal(req), opts...)
	if err == nil {
		err = tars.Unmarshal(frame.Body, resp)
	}
	f.config.Metrics.recordPage(f.variant, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// surfaced reports whether a failure after the first page must still reach
// the caller instead of ending retrieval quietly.
func surfaced(ctx context.Context, err error) bool {
	return ctx.Err() != nil || network.IsClosed(err) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func compareMessages(a, b *notice.Message) int {
	if c := cmp.Compare(a.Time, b.Time); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}

// assemble groups consecutive fragments of one logical message. Fragments
// share sender and a non-zero random id. msgs must be in ascending order.
func assemble(peer int64, msgs []*notice.Message) []*MessageGroup {
	var groups []*MessageGroup
	for _, m := range msgs {
		if n := len(groups); n > 0 {
			last := groups[n-1]
			head := last.Messages[0]
			if m.Random != 0 && m.Random == head.Random && m.From == head.From {
				last.Messages = append(last.Messages, m)
				continue
			}
		}
		groups = append(groups, &MessageGroup{
			Peer:     peer,
			Seq:      m.Seq,
			Time:     m.Time,
			From:     m.From,
			Messages: []*notice.Message{m},
		})
	}
	return groups
}

// newestFirst assembles msgs and returns the groups newest first.
func newestFirst(peer int64, msgs []*notice.Message) []*MessageGroup {
	msgs = slices.Clone(msgs)
	slices.SortStableFunc(msgs, compareMessages)
	groups := assemble(peer, msgs)
	slices.Reverse(groups)
	return groups
}
