package network

import (
	"log/slog"
	"time"
)

// Config holds configuration for a session handler.
type Config struct {
	// SessionID labels logs, spans and errors. Default: "default".
	SessionID string

	// Timeouts

	// ConnectTimeout bounds one connection attempt: dial, negotiation and
	// loading.
	// Default: 30 seconds.
	ConnectTimeout time.Duration

	// RequestTimeout is the default wait for a response in SendAndExpect.
	// Default: 5 seconds.
	RequestTimeout time.Duration

	// ReconnectDelay is the fixed pause between reconnection attempts.
	// Default: 5 seconds.
	ReconnectDelay time.Duration

	// HeartbeatInterval is the time between heartbeats while OK.
	// Zero disables heartbeats.
	// Default: 60 seconds.
	HeartbeatInterval time.Duration

	// Limits

	// MaxSuppressed bounds the distinct failures kept while reconnecting.
	// Default: 8.
	MaxSuppressed int

	// PushQueue is the number of push frames buffered ahead of the
	// push handler. Each connection holds up to as many again while the
	// queue is full.
	// Default: 256.
	PushQueue int

	// Features

	// AckPushes sends a protocol.PushAck for every push frame received.
	// Default: true.
	AckPushes bool

	// Observability

	// Logger receives session diagnostics. Default: slog.Default().
	Logger *slog.Logger

	// Metrics records Prometheus metrics. Nil disables metrics.
	Metrics *Metrics

	// TracerName selects the OpenTelemetry tracer. Default: "imclient".
	TracerName string

	// Observers are notified of every state transition.
	Observers []StateObserver
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SessionID:         "default",
		ConnectTimeout:    30 * time.Second,
		RequestTimeout:    5 * time.Second,
		ReconnectDelay:    5 * time.Second,
		HeartbeatInterval: 60 * time.Second,
		MaxSuppressed:     DefaultMaxSuppressed,
		PushQueue:         256,
		AckPushes:         true,
		TracerName:        defaultTracerName,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Observers = append([]StateObserver(nil), c.Observers...)
	return &clone
}

// normalize fills zero values that have no meaningful zero.
func (c *Config) normalize() *Config {
	def := DefaultConfig()
	if c == nil {
		return def
	}
	out := c.Clone()
	if out.SessionID == "" {
		out.SessionID = def.SessionID
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = def.ConnectTimeout
	}
	if out.RequestTimeout <= 0 {
		out.RequestTimeout = def.RequestTimeout
	}
	if out.ReconnectDelay <= 0 {
		out.ReconnectDelay = def.ReconnectDelay
	}
	if out.MaxSuppressed <= 0 {
		out.MaxSuppressed = def.MaxSuppressed
	}
	if out.PushQueue <= 0 {
		out.PushQueue = def.PushQueue
	}
	if out.TracerName == "" {
		out.TracerName = def.TracerName
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

// RequestOption adjusts a single SendAndExpect call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	timeout  time.Duration
	attempts int
}

// WithTimeout overrides the response timeout of one request.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithAttempts resends a request with the same sequence id up to n times
// when no response arrives in time.
func WithAttempts(n int) RequestOption {
	return func(o *requestOptions) {
		if n > 0 {
			o.attempts = n
		}
	}
}
