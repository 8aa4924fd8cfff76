package roaming

import (
	"cmp"
	"context"
	"errors"
	"iter"
	"slices"
	"sort"

	"github.com/vango-dev/imclient/pkg/notice"
	"github.com/vango-dev/imclient/pkg/protocol"
)

// SeqCursor is the continuation state of a group history walk. Next is the
// highest sequence of the next page and drops below 1 once the walk has
// reached the first message.
type SeqCursor struct {
	Group    int64
	Next     int64
	PageSize int

	low int64 // lowest sequence taken so far
}

// NewSeqCursor returns a cursor whose first page ends at latest.
func NewSeqCursor(group, latest int64, pageSize int) *SeqCursor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &SeqCursor{Group: group, Next: latest, PageSize: pageSize, low: latest + 1}
}

// Done reports whether there is nothing left to fetch.
func (c *SeqCursor) Done() bool {
	return c.Next < 1
}

// Request returns the page request for the current position.
func (c *SeqCursor) Request() *GroupHistoryRequest {
	return &GroupHistoryRequest{
		Group: c.Group,
		From:  max(c.Next-int64(c.PageSize)+1, 1),
		To:    c.Next,
	}
}

// Advance consumes the answer to req. Messages at or above a sequence
// already taken are dropped; the rest are returned in ascending sequence
// order. It returns false when nothing new arrived.
func (c *SeqCursor) Advance(req *GroupHistoryRequest, msgs []*notice.Message) ([]*notice.Message, bool) {
	fresh := make([]*notice.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Seq < c.low {
			fresh = append(fresh, m)
		}
	}
	if len(fresh) == 0 {
		return nil, false
	}
	slices.SortFunc(fresh, func(a, b *notice.Message) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	c.low = fresh[0].Seq
	c.Next = min(req.From, c.low) - 1
	return fresh, true
}

// GroupHistory retrieves group history with a sequence cursor.
type GroupHistory struct {
	group int64
	f     fetcher
}

// NewGroupHistory returns a retriever for the history of group.
func NewGroupHistory(r Requester, group int64, config *Config) *GroupHistory {
	return &GroupHistory{
		group: group,
		f:     newFetcher(r, "seq", config, "group", group),
	}
}

// Group returns the group id.
func (h *GroupHistory) Group() int64 {
	return h.group
}

// LatestSeq asks the server for the group's latest message sequence.
func (h *GroupHistory) LatestSeq(ctx context.Context) (int64, error) {
	resp := &LatestSeqResponse{}
	if err := h.f.fetch(ctx, protocol.CmdGroupLatestSeq, &LatestSeqRequest{Group: h.group}, resp); err != nil {
		return 0, err
	}
	return resp.Seq, nil
}

func (h *GroupHistory) page(ctx context.Context, req *GroupHistoryRequest) ([]*notice.Message, error) {
	resp := &GroupHistoryResponse{}
	if err := h.f.fetch(ctx, protocol.CmdGroupHistory, req, resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// walk fetches pages backward from cursor and passes each page's new
// messages to visit until visit returns false or the history ends. The
// returned error is the first page's failure, a failure caused by session
// close or cancellation, or ErrCursorStalled.
func (h *GroupHistory) walk(ctx context.Context, cursor *SeqCursor, visit func([]*notice.Message) bool) error {
	first := true
	for !cursor.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := cursor.Request()
		msgs, err := h.page(ctx, req)
		if err != nil {
			if first || surfaced(ctx, err) {
				return err
			}
			h.f.logger.Warn("history page failed, returning partial result", "from", req.From, "to", req.To, "error", err)
			return nil
		}
		first = false
		if len(msgs) == 0 {
			return nil
		}
		fresh, ok := cursor.Advance(req, msgs)
		if !ok {
			h.f.logger.Warn("history page did not advance", "from", req.From, "to", req.To)
			return ErrCursorStalled
		}
		if !visit(fresh) {
			return nil
		}
	}
	return nil
}

// collect accumulates history backward from the latest message until a
// page reaches below start, ordered by time then sequence.
func (h *GroupHistory) collect(ctx context.Context, start int64) ([]*notice.Message, error) {
	latest, err := h.LatestSeq(ctx)
	if err != nil {
		return nil, err
	}

	var pages [][]*notice.Message
	err = h.walk(ctx, NewSeqCursor(h.group, latest, h.f.config.PageSize), func(page []*notice.Message) bool {
		pages = append(pages, page)
		return slices.MinFunc(page, compareMessages).Time >= start
	})

	slices.Reverse(pages)
	msgs := slices.Concat(pages...)
	slices.SortStableFunc(msgs, compareMessages)
	return msgs, err
}

// Window returns the bounds [left, right) of the messages with time in
// [start, end]. msgs must be sorted by time. Runs of equal timestamps at
// either edge are kept whole.
func Window(msgs []*notice.Message, start, end int64) (left, right int) {
	left = sort.Search(len(msgs), func(i int) bool { return msgs[i].Time >= start })
	right = sort.Search(len(msgs), func(i int) bool { return msgs[i].Time > end })
	return left, max(left, right)
}

// MessagesIn yields the message groups with time in [start, end], oldest
// first. History is accumulated before the first group is yielded. A
// failure on the first page, or one caused by the session closing, is
// yielded as an error; a later failure leaves a partial result.
func (h *GroupHistory) MessagesIn(ctx context.Context, start, end int64, filter Filter) iter.Seq2[*MessageGroup, error] {
	return func(yield func(*MessageGroup, error) bool) {
		msgs, err := h.collect(ctx, start)
		if err != nil && !errors.Is(err, ErrCursorStalled) {
			yield(nil, err)
			return
		}

		left, right := Window(msgs, start, max(end, start))
		for _, g := range assemble(h.group, msgs[left:right]) {
			if filter != nil && !filter(g) {
				continue
			}
			if !yield(g, nil) {
				return
			}
		}
		if err != nil {
			yield(nil, err)
		}
	}
}

// MessagesBefore yields the message groups with sequence below seq, newest
// first, fetching one page at a time.
func (h *GroupHistory) MessagesBefore(ctx context.Context, seq int64, filter Filter) iter.Seq2[*MessageGroup, error] {
	return func(yield func(*MessageGroup, error) bool) {
		stopped := false
		err := h.walk(ctx, NewSeqCursor(h.group, seq-1, h.f.config.PageSize), func(page []*notice.Message) bool {
			for _, g := range newestFirst(h.group, page) {
				if filter != nil && !filter(g) {
					continue
				}
				if !yield(g, nil) {
					stopped = true
					return false
				}
			}
			return true
		})
		if err != nil && !stopped {
			yield(nil, err)
		}
	}
}
