package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/imclient/internal/config"
	"github.com/vango-dev/imclient/pkg/client"
	"github.com/vango-dev/imclient/pkg/notice"
	"github.com/vango-dev/imclient/pkg/protocol"
	"github.com/vango-dev/imclient/pkg/roaming"
	"github.com/vango-dev/imclient/pkg/tars"
	"github.com/vango-dev/imclient/pkg/transport"
)

func TestInitWritesConfig(t *testing.T) {
	dir := t.TempDir()

	cmd := rootCmd()
	cmd.SetArgs([]string{"init", "-c", dir, "--account", "10001"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init error = %v", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Account != 10001 || !cfg.Session.LoadContacts {
		t.Errorf("config = %+v, want account 10001 with contacts", cfg)
	}

	cmd = rootCmd()
	cmd.SetArgs([]string{"init", "-c", dir})
	if err := cmd.Execute(); err == nil {
		t.Error("second init without --force succeeded")
	}
}

func TestDecodePacket(t *testing.T) {
	body := tars.Marshal(&notice.Message{Seq: 3, Time: 1700000000, From: 42, Peer: 7, Text: "hi"})
	data, err := protocol.EncodePacket(protocol.NewPush(9, protocol.CmdPushFriendMsg, body))
	if err != nil {
		t.Fatalf("EncodePacket() error = %v", err)
	}

	out, err := decode(data, true)
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	for _, want := range []string{protocol.CmdPushFriendMsg, `5 text: "hi"`, "2 from: 42"} {
		if !strings.Contains(out, want) {
			t.Errorf("decode() missing %q in:\n%s", want, out)
		}
	}

	if _, err := decode(data[:3], true); err == nil {
		t.Error("decode(short packet) succeeded")
	}

	out, _ = decode(body, false)
	if !strings.Contains(out, `5: "hi"`) {
		t.Errorf("decode(raw) = %q, want unlabelled text field", out)
	}
}

func TestLimit(t *testing.T) {
	seq := func(yield func(*roaming.MessageGroup, error) bool) {
		for i := range 5 {
			if !yield(&roaming.MessageGroup{Seq: int64(i)}, nil) {
				return
			}
		}
	}

	count := func(n int) int {
		got := 0
		for range limit(seq, n) {
			got++
		}
		return got
	}
	if got := count(2); got != 2 {
		t.Errorf("limit(2) yielded %d, want 2", got)
	}
	if got := count(0); got != 5 {
		t.Errorf("limit(0) yielded %d, want 5", got)
	}
}

func TestDebugRouter(t *testing.T) {
	dialer := transport.DialerFunc(func(ctx context.Context) (transport.Transport, error) {
		return nil, stderrors.New("offline")
	})
	c := client.New(dialer, &client.Config{Account: 10001})
	defer c.Close()

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "imclient_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv := httptest.NewServer(debugRouter(c, reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("/healthz status = %d, want 503 before login", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/state")
	if err != nil {
		t.Fatalf("GET /state error = %v", err)
	}
	var state stateResponse
	err = json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode /state error = %v", err)
	}
	if state.Session != "imclient-1" || state.State != "Initialized" {
		t.Errorf("/state = %+v, want imclient-1 Initialized", state)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read /metrics error = %v", err)
	}
	if !strings.Contains(string(body), "imclient_test_total 1") {
		t.Errorf("/metrics missing test counter:\n%s", body)
	}
}

func TestOpenStoreSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "sqlite3",
		DSN:    filepath.Join(t.TempDir(), "marks.db"),
		Table:  config.DefaultTable,
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer st.Close()

	if err := st.Save(ctx, "friend:7", 42); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	seq, ok, err := st.Load(ctx, "friend:7")
	if err != nil || !ok || seq != 42 {
		t.Errorf("Load() = %d, %v, %v, want 42, true, nil", seq, ok, err)
	}

	cfg.Dialect = "oracle"
	if _, err := openStore(ctx, cfg); err == nil {
		t.Error("openStore(unknown dialect) succeeded")
	}
}
