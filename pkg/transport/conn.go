package transport

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/imclient/pkg/protocol"
	"github.com/vango-dev/imclient/pkg/tars"
)

// Transport errors.
var (
	ErrClosed = errors.New("transport: closed")
)

// Transport owns one byte-stream connection to the server. Outbound frames
// are serialized by Send; inbound frames are delivered on Frames in arrival
// order. Frames is closed when the transport ends, after which Err reports
// the cause.
type Transport interface {
	// NextSeq returns a fresh sequence id for an outbound request.
	NextSeq() int32

	// Send writes one frame.
	Send(ctx context.Context, f *protocol.Frame) error

	// Frames returns the inbound frame channel.
	Frames() <-chan *protocol.Frame

	// Done is closed when the transport has ended.
	Done() <-chan struct{}

	// Err returns the reason the transport ended, or nil while it is alive.
	// An explicit Close yields ErrClosed.
	Err() error

	// Close ends the transport. It is safe to call more than once.
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Transport, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Transport, error) {
	return f(ctx)
}

// packetConn is the framing-specific half of a connection.
type packetConn interface {
	// ReadPacket returns the next frame payload, without length prefix.
	ReadPacket() ([]byte, error)
	// WritePacket writes one packet, including length prefix.
	WritePacket(data []byte, deadline time.Time) error
	// SetReadDeadline sets the deadline for the next ReadPacket.
	SetReadDeadline(t time.Time) error
	Close() error
}

// Conn implements Transport on top of a packetConn. A reader goroutine and a
// closer goroutine run in an errgroup; the first to fail ends both.
type Conn struct {
	pc     packetConn
	config *Config
	logger *slog.Logger

	seq     atomic.Int32
	frames  chan *protocol.Frame
	done    chan struct{}
	cancel  context.CancelFunc
	writeMu sync.Mutex

	closing  atomic.Bool
	causeMu  sync.Mutex
	cause    error
	err      error
	dropped  atomic.Uint64
	received atomic.Uint64
}

func newConn(pc packetConn, remote string, config *Config) *Conn {
	config = config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		pc:     pc,
		config: config,
		logger: config.logger().With("component", "transport", "remote", remote),
		frames: make(chan *protocol.Frame, config.FrameQueue),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.readLoop(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return c.pc.Close()
	})
	go func() {
		err := g.Wait()
		c.finish(err)
	}()

	return c
}

// NextSeq returns a fresh sequence id. Ids are positive and wrap to 1.
func (c *Conn) NextSeq() int32 {
	for {
		cur := c.seq.Load()
		next := cur + 1
		if cur == math.MaxInt32 {
			next = 1
		}
		if c.seq.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// Frames returns the inbound frame channel.
func (c *Conn) Frames() <-chan *protocol.Frame {
	return c.frames
}

// Done is closed when the transport has ended.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the transport ended.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Dropped returns the number of malformed frames discarded.
func (c *Conn) Dropped() uint64 {
	return c.dropped.Load()
}

// Received returns the number of frames delivered.
func (c *Conn) Received() uint64 {
	return c.received.Load()
}

// Send writes one frame. The write deadline is the earlier of the context
// deadline and the configured WriteTimeout. A failed write ends the
// transport.
func (c *Conn) Send(ctx context.Context, f *protocol.Frame) error {
	if c.closing.Load() {
		return ErrClosed
	}
	select {
	case <-c.done:
		return c.err
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := protocol.EncodePacket(f)
	if err != nil {
		return err
	}
	if len(data) > protocol.HardMaxPacketSize {
		return protocol.ErrPacketTooLarge
	}

	deadline := time.Now().Add(c.config.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	err = c.pc.WritePacket(data, deadline)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Debug("write failed", "command", f.Command, "seq", f.Seq, "error", err)
		c.fail(err)
		return err
	}
	c.logger.Debug("frame sent", "command", f.Command, "seq", f.Seq, "bytes", len(data))
	return nil
}

// Close ends the transport and waits for the reader to exit.
func (c *Conn) Close() error {
	if !c.closing.Swap(true) {
		c.fail(ErrClosed)
	}
	<-c.done
	return nil
}

// fail records the first cause and stops both goroutines.
func (c *Conn) fail(err error) {
	c.causeMu.Lock()
	if c.cause == nil {
		c.cause = err
	}
	c.causeMu.Unlock()
	c.cancel()
}

func (c *Conn) readLoop(ctx context.Context) error {
	for {
		if c.config.ReadTimeout > 0 {
			c.pc.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}
		payload, err := c.pc.ReadPacket()
		if err != nil {
			return err
		}

		f, err := protocol.DecodeFrame(payload)
		if err != nil {
			if tars.IsMalformed(err) {
				c.dropped.Add(1)
				c.logger.Warn("dropping malformed frame", "error", err, "bytes", len(payload))
				if c.config.OnDrop != nil {
					c.config.OnDrop(err)
				}
				continue
			}
			return err
		}

		c.received.Add(1)
		select {
		case c.frames <- f:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Conn) finish(err error) {
	c.causeMu.Lock()
	if c.cause != nil {
		err = c.cause
	}
	c.causeMu.Unlock()
	if err == nil {
		err = ErrClosed
	}
	c.err = err
	close(c.done)
	close(c.frames)
	c.cancel()

	if errors.Is(err, ErrClosed) {
		c.logger.Debug("transport closed", "frames", c.received.Load())
	} else {
		c.logger.Info("transport ended", "error", err, "frames", c.received.Load())
	}
}
