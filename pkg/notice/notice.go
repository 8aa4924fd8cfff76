package notice

import (
	"fmt"

	"github.com/vango-dev/imclient/pkg/protocol"
	"github.com/vango-dev/imclient/pkg/tars"
)

// Notice is a decoded push frame.
type Notice struct {
	Kind    Kind
	Command string
	Seq     int64 // Per-peer sequence, 0 when the payload has none
	Peer    int64 // Friend, group or user the notice is about
	From    int64 // Account that caused it, 0 for the server
	Time    int64
	Payload any // *Message, *SystemEvent, *FriendGroupChange, *MemberChange or *Presence
	Raw     *protocol.Frame
}

// Batch is implemented by payloads made of independently classifiable
// items.
type Batch interface {
	Len() int
}

// Items returns the number of items of a batch payload, or 0.
func (n *Notice) Items() int {
	if b, ok := n.Payload.(Batch); ok {
		return b.Len()
	}
	return 0
}

// WatermarkKey returns the key the notice's sequence is tracked under, or
// "" when the notice carries no sequence.
func (n *Notice) WatermarkKey() string {
	if n.Seq == 0 {
		return ""
	}
	switch n.Kind {
	case KindFriendMessage:
		return fmt.Sprintf("friend:%d", n.Peer)
	case KindGroupMessage:
		return fmt.Sprintf("group:%d", n.Peer)
	case KindMemberChange:
		return fmt.Sprintf("member:%d", n.Peer)
	case KindSystem:
		return "system"
	case KindFriendGroupChange:
		return "friendgroup"
	default:
		return ""
	}
}

// String returns a short description for logs.
func (n *Notice) String() string {
	return fmt.Sprintf("%s peer=%d seq=%d", n.Kind, n.Peer, n.Seq)
}

// DecodeNotice decodes the body of a push frame. Unknown commands yield a
// KindUnknown notice with a nil payload so the pipeline can report them.
// Decode failures are *tars.CodecError.
func DecodeNotice(f *protocol.Frame) (*Notice, error) {
	n := &Notice{Kind: KindOf(f.Command), Command: f.Command, Raw: f}

	switch n.Kind {
	case KindFriendMessage, KindGroupMessage:
		m := &Message{}
		if err := tars.Unmarshal(f.Body, m); err != nil {
			return nil, err
		}
		n.Seq, n.Peer, n.From, n.Time, n.Payload = m.Seq, m.Peer, m.From, m.Time, m
	case KindSystem:
		s := &SystemEvent{}
		if err := tars.Unmarshal(f.Body, s); err != nil {
			return nil, err
		}
		n.Seq, n.Time, n.Payload = s.Seq, s.Time, s
	case KindFriendGroupChange:
		c := &FriendGroupChange{}
		if err := tars.Unmarshal(f.Body, c); err != nil {
			return nil, err
		}
		n.Seq, n.Time, n.Payload = c.Seq, c.Time, c
	case KindMemberChange:
		m := &MemberChange{}
		if err := tars.Unmarshal(f.Body, m); err != nil {
			return nil, err
		}
		n.Seq, n.Peer, n.From, n.Time, n.Payload = m.Seq, m.Group, m.Operator, m.Time, m
	case KindPresence:
		p := &Presence{}
		if err := tars.Unmarshal(f.Body, p); err != nil {
			return nil, err
		}
		n.Peer, n.From, n.Time, n.Payload = p.User, p.User, p.Time, p
	}
	return n, nil
}

// NewNotice builds a notice from a payload, as DecodeNotice would, without
// a wire frame. It is used for notices synthesized locally, such as those
// produced by ProcessAlso.
func NewNotice(kind Kind, payload tars.Struct) (*Notice, error) {
	for cmd, k := range commandKinds {
		if k == kind {
			return DecodeNotice(protocol.NewPush(0, cmd, tars.Marshal(payload)))
		}
	}
	return nil, fmt.Errorf("notice: no command for kind %s", kind)
}
