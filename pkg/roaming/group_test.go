package roaming

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/imclient/pkg/network"
	"github.com/vango-dev/imclient/pkg/notice"
	"github.com/vango-dev/imclient/pkg/protocol"
	"github.com/vango-dev/imclient/pkg/tars"
)

// groupServer serves group history from a fixed table of message times
// indexed by sequence.
type groupServer struct {
	latest int64
	times  map[int64]int64
	pages  []GroupHistoryRequest
	fail   func(page int) error
}

func (s *groupServer) handle(command string, body []byte) (tars.Struct, error) {
	switch command {
	case protocol.CmdGroupLatestSeq:
		return &LatestSeqResponse{Group: 9, Seq: s.latest}, nil
	case protocol.CmdGroupHistory:
		var req GroupHistoryRequest
		if err := tars.Unmarshal(body, &req); err != nil {
			return nil, err
		}
		s.pages = append(s.pages, req)
		if s.fail != nil {
			if err := s.fail(len(s.pages)); err != nil {
				return nil, err
			}
		}
		resp := &GroupHistoryResponse{Group: req.Group}
		// Newest first, as the server sends them.
		for seq := req.To; seq >= req.From; seq-- {
			if t, ok := s.times[seq]; ok {
				resp.Messages = append(resp.Messages, &notice.Message{Seq: seq, Time: t, From: seq, Peer: 9})
			}
		}
		return resp, nil
	}
	return nil, &network.RejectedError{Command: command, Code: protocol.ResultNotFound}
}

// latestPageTimes returns times for sequences 181..200 with runs of three
// equal timestamps at both edges of the window [70, 100].
func latestPageTimes() map[int64]int64 {
	times := map[int64]int64{
		181: 50, 182: 60,
		183: 70, 184: 70, 185: 70,
		186: 80, 187: 90,
		188: 100, 189: 100, 190: 100,
	}
	for seq := int64(191); seq <= 200; seq++ {
		times[seq] = 110 + (seq-191)*10
	}
	for seq := int64(1); seq <= 180; seq++ {
		times[seq] = 10
	}
	return times
}

func TestGroupHistoryOnePageWindow(t *testing.T) {
	s := &groupServer{latest: 200, times: latestPageTimes()}
	r := &fakeRequester{handle: s.handle}
	h := NewGroupHistory(r, 9, &Config{PageSize: 20})

	groups, err := drain(h.MessagesIn(context.Background(), 70, 100, nil))
	require.NoError(t, err)

	assert.Equal(t, 1, r.count(protocol.CmdGroupLatestSeq))
	require.Len(t, s.pages, 1)
	assert.Equal(t, GroupHistoryRequest{Group: 9, From: 181, To: 200}, s.pages[0])

	assert.Equal(t, []int64{183, 184, 185, 186, 187, 188, 189, 190}, seqs(groups))
	assert.True(t, slices.IsSortedFunc(groups, func(a, b *MessageGroup) int { return int(a.Time - b.Time) }))
}

func TestGroupHistoryWalksUntilStart(t *testing.T) {
	times := make(map[int64]int64)
	for seq := int64(1); seq <= 45; seq++ {
		times[seq] = seq * 100
	}
	s := &groupServer{latest: 45, times: times}
	h := NewGroupHistory(&fakeRequester{handle: s.handle}, 9, &Config{PageSize: 20})

	groups, err := drain(h.MessagesIn(context.Background(), 1500, 3000, nil))
	require.NoError(t, err)

	require.Len(t, s.pages, 2)
	assert.Equal(t, GroupHistoryRequest{Group: 9, From: 26, To: 45}, s.pages[0])
	assert.Equal(t, GroupHistoryRequest{Group: 9, From: 6, To: 25}, s.pages[1])
	require.Len(t, groups, 16)
	assert.Equal(t, int64(15), groups[0].Seq)
	assert.Equal(t, int64(30), groups[15].Seq)
}

func TestGroupHistoryStopsAtFirstMessage(t *testing.T) {
	times := map[int64]int64{1: 5, 2: 6, 3: 7}
	s := &groupServer{latest: 3, times: times}
	h := NewGroupHistory(&fakeRequester{handle: s.handle}, 9, nil)

	groups, err := drain(h.MessagesIn(context.Background(), 0, 10, nil))
	require.NoError(t, err)
	assert.Len(t, s.pages, 1)
	assert.Equal(t, []int64{1, 2, 3}, seqs(groups))
}

func TestGroupHistoryFailures(t *testing.T) {
	rejected := &network.RejectedError{Command: protocol.CmdGroupHistory, Code: protocol.ResultServerBusy}

	t.Run("first page surfaced", func(t *testing.T) {
		s := &groupServer{latest: 200, times: latestPageTimes(), fail: func(int) error { return rejected }}
		groups, err := drain(NewGroupHistory(&fakeRequester{handle: s.handle}, 9, nil).MessagesIn(context.Background(), 0, 1000, nil))
		assert.ErrorIs(t, err, rejected)
		assert.Empty(t, groups)
	})

	t.Run("later page swallowed", func(t *testing.T) {
		fail := func(page int) error {
			if page > 1 {
				return rejected
			}
			return nil
		}
		s := &groupServer{latest: 200, times: latestPageTimes(), fail: fail}
		groups, err := drain(NewGroupHistory(&fakeRequester{handle: s.handle}, 9, nil).MessagesIn(context.Background(), 0, 1000, nil))
		assert.NoError(t, err)
		assert.Len(t, groups, 20)
		assert.Len(t, s.pages, 2)
	})

	t.Run("latest seq surfaced", func(t *testing.T) {
		r := &fakeRequester{handle: func(command string, body []byte) (tars.Struct, error) {
			return nil, &network.ClosedError{}
		}}
		_, err := drain(NewGroupHistory(r, 9, nil).MessagesIn(context.Background(), 0, 1000, nil))
		assert.True(t, network.IsClosed(err), "error = %v", err)
		assert.Zero(t, r.count(protocol.CmdGroupHistory))
	})
}

func TestGroupHistoryStalledPage(t *testing.T) {
	page := &GroupHistoryResponse{Group: 9}
	for seq := int64(200); seq > 180; seq-- {
		page.Messages = append(page.Messages, &notice.Message{Seq: seq, Time: 1000, From: seq})
	}
	r := &fakeRequester{handle: func(command string, body []byte) (tars.Struct, error) {
		if command == protocol.CmdGroupLatestSeq {
			return &LatestSeqResponse{Seq: 200}, nil
		}
		return page, nil
	}}

	groups, err := drain(NewGroupHistory(r, 9, nil).MessagesIn(context.Background(), 0, 2000, nil))
	assert.ErrorIs(t, err, ErrCursorStalled)
	assert.Len(t, groups, 20)
	assert.Equal(t, 2, r.count(protocol.CmdGroupHistory))
}

func TestGroupHistoryMessagesBefore(t *testing.T) {
	times := make(map[int64]int64)
	for seq := int64(1); seq <= 60; seq++ {
		times[seq] = seq
	}
	s := &groupServer{latest: 60, times: times}
	r := &fakeRequester{handle: s.handle}
	h := NewGroupHistory(r, 9, nil)

	var got []int64
	for g, err := range h.MessagesBefore(context.Background(), 41, func(g *MessageGroup) bool { return g.Seq%2 == 0 }) {
		require.NoError(t, err)
		got = append(got, g.Seq)
	}
	require.Len(t, got, 20)
	assert.Equal(t, int64(40), got[0])
	assert.Equal(t, int64(2), got[19])
	assert.Len(t, s.pages, 2)
	assert.Zero(t, r.count(protocol.CmdGroupLatestSeq))

	s.pages = nil
	for range h.MessagesBefore(context.Background(), 41, nil) {
		break
	}
	assert.Len(t, s.pages, 1)
}

func TestSeqCursor(t *testing.T) {
	c := NewSeqCursor(9, 25, 20)
	req := c.Request()
	assert.Equal(t, int64(6), req.From)
	assert.Equal(t, int64(25), req.To)

	// A page with gaps still moves the cursor below the requested range.
	fresh, ok := c.Advance(req, []*notice.Message{{Seq: 20}, {Seq: 10}})
	require.True(t, ok)
	assert.Equal(t, []int64{10, 20}, []int64{fresh[0].Seq, fresh[1].Seq})
	assert.Equal(t, int64(5), c.Next)

	req = c.Request()
	assert.Equal(t, int64(1), req.From)
	_, ok = c.Advance(req, []*notice.Message{{Seq: 10}})
	assert.False(t, ok)

	fresh, ok = c.Advance(req, []*notice.Message{{Seq: 1}})
	require.True(t, ok)
	assert.Len(t, fresh, 1)
	assert.True(t, c.Done())
}

func TestWindow(t *testing.T) {
	at := func(ts ...int64) []*notice.Message {
		out := make([]*notice.Message, len(ts))
		for i, v := range ts {
			out[i] = &notice.Message{Seq: int64(i), Time: v}
		}
		return out
	}
	tests := []struct {
		name        string
		times       []int64
		start, end  int64
		left, right int
	}{
		{"empty", nil, 0, 10, 0, 0},
		{"all inside", []int64{1, 2, 3}, 0, 10, 0, 3},
		{"ties at left edge", []int64{1, 5, 5, 5, 6}, 5, 10, 1, 5},
		{"ties at right edge", []int64{1, 5, 7, 7, 7, 9}, 2, 7, 1, 5},
		{"ties at both edges", []int64{5, 5, 5, 7, 7, 7}, 5, 7, 0, 6},
		{"all before", []int64{1, 2}, 5, 10, 2, 2},
		{"all after", []int64{11, 12}, 5, 10, 0, 0},
		{"inverted window", []int64{1, 5, 9}, 9, 1, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left, right := Window(at(tt.times...), tt.start, tt.end)
			if left != tt.left || right != tt.right {
				t.Errorf("Window() = [%d, %d), want [%d, %d)", left, right, tt.left, tt.right)
			}
		})
	}
}
