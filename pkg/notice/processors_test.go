package notice

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vango-dev/imclient/pkg/protocol"
	"github.com/vango-dev/imclient/pkg/store"
	"github.com/vango-dev/imclient/pkg/tars"
)

func defaultPipeline(t *testing.T, s store.WatermarkStore) (*Pipeline, *Metrics) {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	p := NewPipeline(&Config{Metrics: m})
	RegisterDefaults(p, NewWatermarks(s, nil), m)
	return p, m
}

func TestDuplicateMessageIsNoOp(t *testing.T) {
	p, m := defaultPipeline(t, nil)
	msg := &Message{Seq: 7, Time: 1000, From: 42, Peer: 42, Text: "hello"}

	res, _ := p.Process(context.Background(), "s", mustNotice(t, KindFriendMessage, msg), false)
	if len(res.Events) != 1 {
		t.Fatalf("first events = %v, want one", eventTypes(res.Events))
	}
	recv, ok := res.Events[0].(*MessageReceived)
	if !ok || recv.Group || recv.Message.Text != "hello" {
		t.Errorf("event = %+v, want friend MessageReceived", res.Events[0])
	}

	res, _ = p.Process(context.Background(), "s", mustNotice(t, KindFriendMessage, msg), false)
	if len(res.Events) != 0 || !res.Consumed {
		t.Errorf("duplicate: events = %v, consumed = %v; want none, true", eventTypes(res.Events), res.Consumed)
	}

	older := *msg
	older.Seq = 6
	res, _ = p.Process(context.Background(), "s", mustNotice(t, KindFriendMessage, &older), false)
	if len(res.Events) != 0 {
		t.Errorf("older seq produced events %v", eventTypes(res.Events))
	}
	if got := testutil.ToFloat64(m.duplicates.WithLabelValues("FriendMessage")); got != 2 {
		t.Errorf("duplicates = %v, want 2", got)
	}

	// Same seq on another peer is independent.
	other := *msg
	other.Peer = 43
	res, _ = p.Process(context.Background(), "s", mustNotice(t, KindFriendMessage, &other), false)
	if len(res.Events) != 1 {
		t.Errorf("other peer events = %v, want one", eventTypes(res.Events))
	}
}

func TestGroupMessageSynced(t *testing.T) {
	p, _ := defaultPipeline(t, nil)
	msg := &Message{Seq: 1, Time: 1, From: 1, Peer: 900, Text: "mine"}

	res, _ := p.Process(context.Background(), "s", mustNotice(t, KindGroupMessage, msg), true)
	if len(res.Events) != 1 {
		t.Fatalf("events = %v", eventTypes(res.Events))
	}
	if ev, ok := res.Events[0].(*MessageSynced); !ok || !ev.Group {
		t.Errorf("event = %+v, want group MessageSynced", res.Events[0])
	}
}

func TestMemberProcessor(t *testing.T) {
	p, _ := defaultPipeline(t, nil)

	res, _ := p.Process(context.Background(), "s", mustNotice(t, KindMemberChange,
		&MemberChange{Seq: 1, Group: 5, Member: 9, Operator: 3, Op: MemberKick}), false)
	left, ok := res.Events[0].(*MemberLeft)
	if !ok || !left.Kicked || left.Operator != 3 {
		t.Errorf("event = %+v, want kicked MemberLeft", res.Events[0])
	}

	res, _ = p.Process(context.Background(), "s", mustNotice(t, KindMemberChange,
		&MemberChange{Seq: 2, Group: 5, Member: 10, Op: MemberJoin}), false)
	if _, ok := res.Events[0].(*MemberJoined); !ok {
		t.Errorf("event = %+v, want MemberJoined", res.Events[0])
	}

	res, _ = p.Process(context.Background(), "s", mustNotice(t, KindMemberChange,
		&MemberChange{Seq: 3, Group: 5, Member: 10, Op: MemberOp(9)}), false)
	if res.Consumed || len(res.Events) != 0 {
		t.Errorf("unknown op: consumed = %v, events = %v; want unhandled", res.Consumed, eventTypes(res.Events))
	}
}

func TestPresenceProcessorSuppressesRepeats(t *testing.T) {
	p, _ := defaultPipeline(t, nil)
	push := func(status PresenceStatus) []Event {
		res, _ := p.Process(context.Background(), "s", mustNotice(t, KindPresence, &Presence{User: 8, Status: status}), false)
		return res.Events
	}

	if evs := push(StatusOnline); len(evs) != 1 {
		t.Errorf("first = %v, want one event", eventTypes(evs))
	}
	if evs := push(StatusOnline); len(evs) != 0 {
		t.Errorf("repeat = %v, want none", eventTypes(evs))
	}
	evs := push(StatusAway)
	if len(evs) != 1 {
		t.Fatalf("change = %v, want one event", eventTypes(evs))
	}
	if ch := evs[0].(*PresenceChanged); ch.Previous != StatusOnline || ch.Status != StatusAway {
		t.Errorf("event = %+v, want Online → Away", ch)
	}
}

func TestUnknownCommandIsUnhandled(t *testing.T) {
	p, m := defaultPipeline(t, nil)
	n, err := DecodeNotice(protocol.NewPush(1, "Push.Mystery", []byte{0x01}))
	if err != nil {
		t.Fatalf("DecodeNotice() error = %v", err)
	}
	if n.Kind != KindUnknown || n.Payload != nil {
		t.Errorf("notice = %+v, want unknown without payload", n)
	}

	res, _ := p.Process(context.Background(), "s", n, false)
	if res.Consumed {
		t.Error("unknown notice consumed")
	}
	if got := testutil.ToFloat64(m.unhandled.WithLabelValues("Unknown")); got != 1 {
		t.Errorf("unhandled = %v, want 1", got)
	}
}

func TestWatermarksPersist(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	w := NewWatermarks(s, nil)
	if !w.Advance(ctx, "friend:1", 10) {
		t.Fatal("Advance(10) rejected")
	}
	if w.Advance(ctx, "friend:1", 10) {
		t.Error("Advance(10) accepted twice")
	}

	restarted := NewWatermarks(s, nil)
	if restarted.Advance(ctx, "friend:1", 9) {
		t.Error("Advance(9) accepted after restart")
	}
	if !restarted.Advance(ctx, "friend:1", 11) {
		t.Error("Advance(11) rejected after restart")
	}
	if seq, ok := restarted.Get(ctx, "friend:1"); !ok || seq != 11 {
		t.Errorf("Get() = %d, %v; want 11, true", seq, ok)
	}

	if err := restarted.Flush(ctx); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
	if seq, _, _ := s.Load(ctx, "friend:1"); seq != 11 {
		t.Errorf("stored = %d, want 11", seq)
	}
}

func TestDispatcherHandlePush(t *testing.T) {
	p, m := defaultPipeline(t, nil)
	sink := NewChannelSink(8)
	d := NewDispatcher(p, sink, &DispatcherConfig{Session: "s", Self: 1, Metrics: m})
	ctx := context.Background()

	d.HandlePush(ctx, protocol.NewPush(1, protocol.CmdPushFriendMsg, []byte{0x0F}))
	if got := testutil.ToFloat64(m.malformed); got != 1 {
		t.Errorf("malformed = %v, want 1", got)
	}

	own := &Message{Seq: 1, Time: 5, From: 1, Peer: 2, Text: "from another device"}
	d.HandlePush(ctx, protocol.NewPush(2, protocol.CmdPushFriendMsg, tars.Marshal(own)))
	theirs := &Message{Seq: 2, Time: 6, From: 2, Peer: 2, Text: "reply"}
	d.HandlePush(ctx, protocol.NewPush(3, protocol.CmdPushFriendMsg, tars.Marshal(theirs)))

	if ev := <-sink.Events(); ev.EventType() != "MessageSynced" {
		t.Errorf("first event = %s, want MessageSynced", ev.EventType())
	}
	if ev := <-sink.Events(); ev.EventType() != "MessageReceived" {
		t.Errorf("second event = %s, want MessageReceived", ev.EventType())
	}
	select {
	case ev := <-sink.Events():
		t.Errorf("unexpected event %s", ev.EventType())
	default:
	}
}

func TestDecodeNoticeFields(t *testing.T) {
	n := mustNotice(t, KindMemberChange, &MemberChange{Seq: 4, Time: 50, Group: 77, Member: 5, Operator: 6, Op: MemberLeave})
	if n.Seq != 4 || n.Peer != 77 || n.From != 6 || n.Time != 50 {
		t.Errorf("notice = %+v", n)
	}
	if key := n.WatermarkKey(); key != "member:77" {
		t.Errorf("WatermarkKey() = %q", key)
	}

	ev := mustNotice(t, KindSystem, &SystemEvent{Seq: 1, Code: 3, Extra: map[string]string{"k": "v"}})
	if se := ev.Payload.(*SystemEvent); se.Extra["k"] != "v" {
		t.Errorf("Extra = %v", se.Extra)
	}

	if _, err := NewNotice(KindUnknown, &Presence{}); err == nil {
		t.Error("NewNotice(KindUnknown) succeeded")
	}
}
