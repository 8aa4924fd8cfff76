package roaming

import (
	"context"
	"iter"
	"slices"

	"github.com/vango-dev/imclient/pkg/notice"
	"github.com/vango-dev/imclient/pkg/protocol"
)

// TimeCursor is the continuation state of a friend history walk. End moves
// backward toward Start after every chunk.
type TimeCursor struct {
	Peer   int64
	Start  int64
	End    int64
	Random int64

	// boundary holds the messages already taken at time End, which the
	// server may send again in the next chunk.
	boundary map[messageKey]struct{}
}

type messageKey struct {
	seq    int64
	time   int64
	random int32
}

func keyOf(m *notice.Message) messageKey {
	return messageKey{seq: m.Seq, time: m.Time, random: m.Random}
}

// NewTimeCursor returns a cursor over [start, end]. End is raised to at
// least start and 1.
func NewTimeCursor(peer, start, end int64) *TimeCursor {
	return &TimeCursor{Peer: peer, Start: start, End: max(end, start, 1)}
}

// Advance consumes one non-empty chunk. It returns the messages not seen
// before and false when the chunk does not move the cursor.
func (c *TimeCursor) Advance(resp *FriendHistoryResponse) ([]*notice.Message, bool) {
	if len(resp.Messages) == 0 {
		return nil, false
	}
	earliest := resp.Earliest
	if earliest == 0 {
		earliest = slices.MinFunc(resp.Messages, compareMessages).Time
	}
	fresh := make([]*notice.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if _, seen := c.boundary[keyOf(m)]; seen {
			continue
		}
		fresh = append(fresh, m)
	}

	if earliest > c.End || (earliest == c.End && len(fresh) == 0) {
		return nil, false
	}
	if earliest < c.End || c.boundary == nil {
		c.boundary = make(map[messageKey]struct{})
	}
	for _, m := range fresh {
		if m.Time == earliest {
			c.boundary[keyOf(m)] = struct{}{}
		}
	}
	c.End = earliest
	c.Random = resp.Random
	return fresh, true
}

func (c *TimeCursor) request(count int32) *FriendHistoryRequest {
	return &FriendHistoryRequest{Peer: c.Peer, Start: c.Start, End: c.End, Random: c.Random, Count: count}
}

// FriendHistory retrieves one-to-one history with a time cursor.
type FriendHistory struct {
	peer int64
	f    fetcher
}

// NewFriendHistory returns a retriever for the history with peer.
func NewFriendHistory(r Requester, peer int64, config *Config) *FriendHistory {
	return &FriendHistory{
		peer: peer,
		f:    newFetcher(r, "time", config, "peer", peer),
	}
}

// Peer returns the friend account.
func (h *FriendHistory) Peer() int64 {
	return h.peer
}

// MessagesIn yields the message groups with time in [start, end], newest
// first. The sequence is lazy: each chunk is requested only when the
// previous one has been consumed. The walk ends on an empty chunk or once
// the cursor moves below start. A failed first chunk is yielded as an
// error; later failures end the sequence quietly unless the session closed
// or ctx was cancelled.
func (h *FriendHistory) MessagesIn(ctx context.Context, start, end int64, filter Filter) iter.Seq2[*MessageGroup, error] {
	return func(yield func(*MessageGroup, error) bool) {
		cursor := NewTimeCursor(h.peer, start, end)
		upper := cursor.End
		first := true

		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			resp := &FriendHistoryResponse{}
			if err := h.f.fetch(ctx, protocol.CmdFriendRoaming, cursor.request(h.f.config.ChunkSize), resp); err != nil {
				if first || surfaced(ctx, err) {
					yield(nil, err)
					return
				}
				h.f.logger.Warn("history chunk failed, returning partial result", "end", cursor.End, "error", err)
				return
			}
			first = false

			if len(resp.Messages) == 0 {
				return
			}
			fresh, ok := cursor.Advance(resp)
			if !ok {
				h.f.logger.Warn("history chunk did not advance", "end", cursor.End, "earliest", resp.Earliest)
				yield(nil, ErrCursorStalled)
				return
			}

			for _, g := range newestFirst(h.peer, fresh) {
				if g.Time < start || g.Time > upper {
					continue
				}
				if filter != nil && !filter(g) {
					continue
				}
				if !yield(g, nil) {
					return
				}
			}
			if cursor.End < cursor.Start {
				return
			}
		}
	}
}

// MessagesBefore yields the message groups at or before marker, newest
// first.
func (h *FriendHistory) MessagesBefore(ctx context.Context, marker int64, filter Filter) iter.Seq2[*MessageGroup, error] {
	return h.MessagesIn(ctx, 0, marker, filter)
}
