package roaming

import (
	"github.com/vango-dev/imclient/pkg/notice"
	"github.com/vango-dev/imclient/pkg/tars"
)

func newMessage() *notice.Message { return &notice.Message{} }

// FriendHistoryRequest is the body of protocol.CmdFriendRoaming.
type FriendHistoryRequest struct {
	Peer   int64
	Start  int64
	End    int64
	Random int64
	Count  int32
}

// EncodeTars implements tars.Struct.
func (r *FriendHistoryRequest) EncodeTars(e *tars.Encoder) {
	e.WriteInt64(0, r.Peer)
	e.WriteInt64(1, r.Start)
	e.WriteInt64(2, r.End)
	e.WriteInt64(3, r.Random)
	e.WriteInt32(4, r.Count)
}

// DecodeTars implements tars.Struct.
func (r *FriendHistoryRequest) DecodeTars(d *tars.Decoder) (err error) {
	if r.Peer, err = d.ReadInt64(0, true); err != nil {
		return err
	}
	if r.Start, err = d.ReadInt64(1, false); err != nil {
		return err
	}
	if r.End, err = d.ReadInt64(2, true); err != nil {
		return err
	}
	if r.Random, err = d.ReadInt64(3, false); err != nil {
		return err
	}
	r.Count, err = d.ReadInt32(4, false)
	return err
}

// FriendHistoryResponse is one chunk of friend history. Earliest is the
// time of the oldest message in the chunk and Random the salt for the next
// request.
type FriendHistoryResponse struct {
	Peer     int64
	Earliest int64
	Random   int64
	Messages []*notice.Message
}

// EncodeTars implements tars.Struct.
func (r *FriendHistoryResponse) EncodeTars(e *tars.Encoder) {
	e.WriteInt64(0, r.Peer)
	e.WriteInt64(1, r.Earliest)
	e.WriteInt64(2, r.Random)
	tars.WriteStructList(e, 3, r.Messages)
}

// DecodeTars implements tars.Struct.
func (r *FriendHistoryResponse) DecodeTars(d *tars.Decoder) (err error) {
	if r.Peer, err = d.ReadInt64(0, false); err != nil {
		return err
	}
	if r.Earliest, err = d.ReadInt64(1, false); err != nil {
		return err
	}
	if r.Random, err = d.ReadInt64(2, false); err != nil {
		return err
	}
	r.Messages, err = tars.ReadStructList(d, 3, false, newMessage)
	return err
}

// LatestSeqRequest is the body of protocol.CmdGroupLatestSeq.
type LatestSeqRequest struct {
	Group int64
}

// EncodeTars implements tars.Struct.
func (r *LatestSeqRequest) EncodeTars(e *tars.Encoder) {
	e.WriteInt64(0, r.Group)
}

// DecodeTars implements tars.Struct.
func (r *LatestSeqRequest) DecodeTars(d *tars.Decoder) (err error) {
	r.Group, err = d.ReadInt64(0, true)
	return err
}

// LatestSeqResponse carries a group's latest message sequence.
type LatestSeqResponse struct {
	Group int64
	Seq   int64
}

// EncodeTars implements tars.Struct.
func (r *LatestSeqResponse) EncodeTars(e *tars.Encoder) {
	e.WriteInt64(0, r.Group)
	e.WriteInt64(1, r.Seq)
}

// DecodeTars implements tars.Struct.
func (r *LatestSeqResponse) DecodeTars(d *tars.Decoder) (err error) {
	if r.Group, err = d.ReadInt64(0, false); err != nil {
		return err
	}
	r.Seq, err = d.ReadInt64(1, true)
	return err
}

// GroupHistoryRequest asks for the messages with sequence in [From, To].
type GroupHistoryRequest struct {
	Group int64
	From  int64
	To    int64
}

// EncodeTars implements tars.Struct.
func (r *GroupHistoryRequest) EncodeTars(e *tars.Encoder) {
	e.WriteInt64(0, r.Group)
	e.WriteInt64(1, r.From)
	e.WriteInt64(2, r.To)
}

// DecodeTars implements tars.Struct.
func (r *GroupHistoryRequest) DecodeTars(d *tars.Decoder) (err error) {
	if r.Group, err = d.ReadInt64(0, true); err != nil {
		return err
	}
	if r.From, err = d.ReadInt64(1, true); err != nil {
		return err
	}
	r.To, err = d.ReadInt64(2, true)
	return err
}

// GroupHistoryResponse is one page of group history.
type GroupHistoryResponse struct {
	Group    int64
	Messages []*notice.Message
}

// EncodeTars implements tars.Struct.
func (r *GroupHistoryResponse) EncodeTars(e *tars.Encoder) {
	e.WriteInt64(0, r.Group)
	tars.WriteStructList(e, 1, r.Messages)
}

// DecodeTars implements tars.Struct.
func (r *GroupHistoryResponse) DecodeTars(d *tars.Decoder) (err error) {
	if r.Group, err = d.ReadInt64(0, false); err != nil {
		return err
	}
	r.Messages, err = tars.ReadStructList(d, 1, false, newMessage)
	return err
}
