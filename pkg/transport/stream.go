package transport

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/vango-dev/imclient/pkg/protocol"
)

// streamConn frames packets on a byte stream with the 4-byte length prefix.
type streamConn struct {
	conn    net.Conn
	r       *bufio.Reader
	maxSize int
}

func (s *streamConn) ReadPacket() ([]byte, error) {
	return protocol.ReadPacket(s.r, s.maxSize)
}

func (s *streamConn) WritePacket(data []byte, deadline time.Time) error {
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := s.conn.Write(data)
	return err
}

func (s *streamConn) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

func (s *streamConn) Close() error {
	return s.conn.Close()
}

// NewStreamConn wraps an established net.Conn as a Transport.
func NewStreamConn(conn net.Conn, config *Config) *Conn {
	config = config.withDefaults()
	pc := &streamConn{
		conn:    conn,
		r:       bufio.NewReaderSize(conn, config.ReadBufferSize),
		maxSize: config.MaxPacketSize,
	}
	return newConn(pc, conn.RemoteAddr().String(), config)
}

// TCPDialer dials the server over TCP.
type TCPDialer struct {
	Address string
	Config  *Config
}

// Dial implements Dialer.
func (d *TCPDialer) Dial(ctx context.Context) (Transport, error) {
	config := d.Config.withDefaults()
	nd := net.Dialer{Timeout: config.DialTimeout, KeepAlive: 30 * time.Second}
	conn, err := nd.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, err
	}
	return NewStreamConn(conn, config), nil
}
