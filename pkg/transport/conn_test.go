package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/imclient/pkg/protocol"
	"github.com/vango-dev/imclient/pkg/tars"
)

func pipe(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	c := NewStreamConn(client, &Config{WriteTimeout: time.Second})
	t.Cleanup(func() {
		c.Close()
		server.Close()
	})
	return c, server
}

func writeRaw(w io.Writer, payload []byte) error {
	buf := make([]byte, protocol.PacketHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(buf)))
	copy(buf[protocol.PacketHeaderSize:], payload)
	_, err := w.Write(buf)
	return err
}

func recvFrame(t *testing.T, c *Conn) *protocol.Frame {
	t.Helper()
	select {
	case f, ok := <-c.Frames():
		if !ok {
			t.Fatalf("Frames() closed: %v", c.Err())
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestConnRequestResponse(t *testing.T) {
	c, server := pipe(t)

	go func() {
		req, err := protocol.ReadFrame(server, 0)
		if err != nil {
			return
		}
		protocol.WriteFrame(server, protocol.NewResponse(req, []byte("pong")))
	}()

	seq := c.NextSeq()
	if err := c.Send(context.Background(), protocol.NewRequest(seq, protocol.CmdHeartbeat, []byte("ping"))); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	f := recvFrame(t, c)
	if f.Seq != seq || f.Kind != protocol.KindResponse || string(f.Body) != "pong" {
		t.Errorf("received %v body %q, want response seq %d body pong", f, f.Body, seq)
	}
	if c.Received() != 1 {
		t.Errorf("Received() = %d, want 1", c.Received())
	}
}

func TestConnDropsMalformedFrames(t *testing.T) {
	c, server := pipe(t)

	var dropped []error
	c.config.OnDrop = func(err error) { dropped = append(dropped, err) }

	go func() {
		writeRaw(server, []byte{0x0E})
		protocol.WriteFrame(server, protocol.NewPush(1, protocol.CmdPushSystem, nil))
	}()

	f := recvFrame(t, c)
	if f.Command != protocol.CmdPushSystem {
		t.Errorf("Command = %q, want %q", f.Command, protocol.CmdPushSystem)
	}
	if c.Dropped() != 1 || len(dropped) != 1 {
		t.Errorf("Dropped() = %d, hook calls = %d; want 1, 1", c.Dropped(), len(dropped))
	}
	if c.Err() != nil {
		t.Errorf("Err() = %v, want nil while alive", c.Err())
	}
}

func TestConnEndsOnTruncatedFrame(t *testing.T) {
	c, server := pipe(t)

	go writeRaw(server, []byte{0x02, 0x00})

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("transport did not end")
	}
	if !tars.IsTruncated(c.Err()) {
		t.Errorf("Err() = %v, want truncated codec error", c.Err())
	}
}

func TestConnRemoteClose(t *testing.T) {
	c, server := pipe(t)
	server.Close()

	select {
	case _, ok := <-c.Frames():
		if ok {
			t.Fatal("received frame from closed remote")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Frames() not closed")
	}
	if !errors.Is(c.Err(), io.EOF) {
		t.Errorf("Err() = %v, want io.EOF", c.Err())
	}
	if err := c.Send(context.Background(), protocol.NewRequest(1, "x", nil)); err == nil {
		t.Error("Send() after remote close succeeded")
	}
}

func TestConnCloseIdempotent(t *testing.T) {
	c, _ := pipe(t)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if !errors.Is(c.Err(), ErrClosed) {
		t.Errorf("Err() = %v, want ErrClosed", c.Err())
	}
	if err := c.Send(context.Background(), protocol.NewRequest(1, "x", nil)); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() error = %v, want ErrClosed", err)
	}
}

func TestNextSeqWraps(t *testing.T) {
	c, _ := pipe(t)

	if got := c.NextSeq(); got != 1 {
		t.Errorf("first NextSeq() = %d, want 1", got)
	}
	c.seq.Store(math.MaxInt32)
	if got := c.NextSeq(); got != 1 {
		t.Errorf("NextSeq() after max = %d, want 1", got)
	}
}

func TestWebSocketDialer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			req, err := protocol.DecodePacket(msg)
			if err != nil {
				return
			}
			resp, _ := protocol.EncodePacket(protocol.NewResponse(req, []byte(strings.ToUpper(string(req.Body)))))
			conn.WriteMessage(websocket.BinaryMessage, resp)
		}
	}))
	defer srv.Close()

	d := &WebSocketDialer{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}
	tr, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer tr.Close()

	seq := tr.NextSeq()
	if err := tr.Send(context.Background(), protocol.NewRequest(seq, "Echo", []byte("abc"))); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	select {
	case f := <-tr.Frames():
		if f == nil || f.Seq != seq || string(f.Body) != "ABC" {
			t.Errorf("response = %v, want seq %d body ABC", f, seq)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for response")
	}
}

func TestTCPDialer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		req, err := protocol.ReadFrame(conn, 0)
		if err != nil {
			return
		}
		protocol.WriteFrame(conn, protocol.NewErrorResponse(req, protocol.ResultNotFound, "no such peer"))
	}()

	tr, err := (&TCPDialer{Address: ln.Addr().String()}).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer tr.Close()

	if err := tr.Send(context.Background(), protocol.NewRequest(tr.NextSeq(), protocol.CmdGroupLatestSeq, nil)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	select {
	case f := <-tr.Frames():
		if f == nil || f.Result != protocol.ResultNotFound || f.Message != "no such peer" {
			t.Errorf("response = %v, want NotFound rejection", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for response")
	}
}
