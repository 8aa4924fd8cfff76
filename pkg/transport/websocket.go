package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/imclient/pkg/protocol"
)

// wsConn carries one packet per binary WebSocket message.
type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) ReadPacket() ([]byte, error) {
	for {
		mt, msg, err := w.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		if len(msg) < protocol.PacketHeaderSize {
			return nil, protocol.ErrPacketTooSmall
		}
		n := int(msg[0])<<24 | int(msg[1])<<16 | int(msg[2])<<8 | int(msg[3])
		if n != len(msg) {
			return nil, protocol.ErrLengthMismatch
		}
		return msg[protocol.PacketHeaderSize:], nil
	}
}

func (w *wsConn) WritePacket(data []byte, deadline time.Time) error {
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (w *wsConn) SetReadDeadline(t time.Time) error {
	return w.conn.SetReadDeadline(t)
}

func (w *wsConn) Close() error {
	w.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return w.conn.Close()
}

// NewWebSocketConn wraps an established WebSocket connection as a Transport.
func NewWebSocketConn(conn *websocket.Conn, config *Config) *Conn {
	config = config.withDefaults()
	conn.SetReadLimit(int64(config.MaxPacketSize))
	return newConn(&wsConn{conn: conn}, conn.RemoteAddr().String(), config)
}

// WebSocketDialer dials the server over WebSocket.
type WebSocketDialer struct {
	URL    string
	Header http.Header
	Config *Config
}

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context) (Transport, error) {
	config := d.Config.withDefaults()
	wd := websocket.Dialer{
		HandshakeTimeout: config.DialTimeout,
		ReadBufferSize:   config.ReadBufferSize,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, resp, err := wd.DialContext(ctx, d.URL, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return NewWebSocketConn(conn, config), nil
}
