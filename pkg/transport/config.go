package transport

import (
	"log/slog"
	"time"

	"github.com/vango-dev/imclient/pkg/protocol"
)

// Config holds configuration for a transport connection.
type Config struct {
	// Timeouts

	// DialTimeout bounds connection setup, including the WebSocket upgrade.
	// Default: 10 seconds.
	DialTimeout time.Duration

	// ReadTimeout is the maximum time to wait for the next packet.
	// Zero disables the deadline; liveness is then left to heartbeats.
	// Default: 0.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a packet.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// Limits

	// MaxPacketSize is the maximum size of an inbound packet.
	// Default: protocol.DefaultMaxPacketSize (4MB).
	MaxPacketSize int

	// FrameQueue is the size of the inbound frame channel buffer.
	// Default: 64.
	FrameQueue int

	// ReadBufferSize is the size of the buffered reader on stream transports.
	// Default: 16KB.
	ReadBufferSize int

	// Hooks

	// OnDrop is called for every inbound frame dropped as malformed.
	OnDrop func(err error)

	// Logger receives transport diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DialTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxPacketSize:  protocol.DefaultMaxPacketSize,
		FrameQueue:     64,
		ReadBufferSize: 16 * 1024,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// withDefaults fills zero fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	def := DefaultConfig()
	if c == nil {
		return def
	}
	out := c.Clone()
	if out.DialTimeout <= 0 {
		out.DialTimeout = def.DialTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = def.WriteTimeout
	}
	if out.MaxPacketSize <= 0 {
		out.MaxPacketSize = def.MaxPacketSize
	}
	if out.FrameQueue <= 0 {
		out.FrameQueue = def.FrameQueue
	}
	if out.ReadBufferSize <= 0 {
		out.ReadBufferSize = def.ReadBufferSize
	}
	return out
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
