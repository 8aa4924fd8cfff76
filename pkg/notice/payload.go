package notice

import (
	"github.com/vango-dev/imclient/pkg/tars"
)

var messageTable = tars.MustTable("Message",
	tars.Desc("seq", 0, tars.Long),
	tars.Desc("time", 1, tars.Long),
	tars.Desc("from", 2, tars.Long),
	tars.Desc("peer", 3, tars.Long),
	tars.Desc("random", 4, tars.Int),
	tars.Desc("text", 5, tars.String1),
)

// Message is one chat message, pushed live or returned by roaming
// retrieval. Peer is the friend account for private messages and the group
// id for group messages.
type Message struct {
	Seq    int64
	Time   int64 // Unix seconds
	From   int64
	Peer   int64
	Random int32
	Text   string
}

// TarsTable returns the field table of Message.
func (m *Message) TarsTable() *tars.Table { return messageTable }

// EncodeTars implements tars.Struct.
func (m *Message) EncodeTars(e *tars.Encoder) {
	e.WriteInt64(messageTable.Tag("seq"), m.Seq)
	e.WriteInt64(messageTable.Tag("time"), m.Time)
	e.WriteInt64(messageTable.Tag("from"), m.From)
	e.WriteInt64(messageTable.Tag("peer"), m.Peer)
	e.WriteInt32(messageTable.Tag("random"), m.Random)
	e.WriteString(messageTable.Tag("text"), m.Text)
}

// DecodeTars implements tars.Struct.
func (m *Message) DecodeTars(d *tars.Decoder) (err error) {
	if m.Seq, err = d.ReadInt64(messageTable.Tag("seq"), true); err != nil {
		return err
	}
	if m.Time, err = d.ReadInt64(messageTable.Tag("time"), true); err != nil {
		return err
	}
	if m.From, err = d.ReadInt64(messageTable.Tag("from"), true); err != nil {
		return err
	}
	if m.Peer, err = d.ReadInt64(messageTable.Tag("peer"), true); err != nil {
		return err
	}
	if m.Random, err = d.ReadInt32(messageTable.Tag("random"), false); err != nil {
		return err
	}
	m.Text, err = d.ReadString(messageTable.Tag("text"), false)
	return err
}

var systemEventTable = tars.MustTable("SystemEvent",
	tars.Desc("seq", 0, tars.Long),
	tars.Desc("time", 1, tars.Long),
	tars.Desc("code", 2, tars.Int),
	tars.Desc("text", 3, tars.String1),
	tars.Desc("extra", 4, tars.Map),
)

// SystemEvent is a server-originated announcement such as a forced
// logout warning or a friend request.
type SystemEvent struct {
	Seq   int64
	Time  int64
	Code  int32
	Text  string
	Extra map[string]string
}

// TarsTable returns the field table of SystemEvent.
func (s *SystemEvent) TarsTable() *tars.Table { return systemEventTable }

// EncodeTars implements tars.Struct.
func (s *SystemEvent) EncodeTars(e *tars.Encoder) {
	e.WriteInt64(systemEventTable.Tag("seq"), s.Seq)
	e.WriteInt64(systemEventTable.Tag("time"), s.Time)
	e.WriteInt32(systemEventTable.Tag("code"), s.Code)
	e.WriteString(systemEventTable.Tag("text"), s.Text)
	if len(s.Extra) > 0 {
		e.WriteStringMap(systemEventTable.Tag("extra"), s.Extra)
	}
}

// DecodeTars implements tars.Struct.
func (s *SystemEvent) DecodeTars(d *tars.Decoder) (err error) {
	if s.Seq, err = d.ReadInt64(systemEventTable.Tag("seq"), true); err != nil {
		return err
	}
	if s.Time, err = d.ReadInt64(systemEventTable.Tag("time"), false); err != nil {
		return err
	}
	if s.Code, err = d.ReadInt32(systemEventTable.Tag("code"), true); err != nil {
		return err
	}
	if s.Text, err = d.ReadString(systemEventTable.Tag("text"), false); err != nil {
		return err
	}
	s.Extra, err = d.ReadStringMap(systemEventTable.Tag("extra"), false)
	return err
}

// ChangeOp is the operation of one friend group change item.
type ChangeOp int8

const (
	OpMemberMoved  ChangeOp = 1 // Friend moved into Group
	OpGroupRenamed ChangeOp = 2 // Group renamed to Name
	OpGroupDeleted ChangeOp = 3
)

// String returns the operation name.
func (op ChangeOp) String() string {
	switch op {
	case OpMemberMoved:
		return "MemberMoved"
	case OpGroupRenamed:
		return "GroupRenamed"
	case OpGroupDeleted:
		return "GroupDeleted"
	default:
		return "Unknown"
	}
}

// ChangeItem is one entry of a FriendGroupChange batch.
type ChangeItem struct {
	Op     ChangeOp
	Friend int64
	Group  int32
	Name   string
}

// EncodeTars implements tars.Struct.
func (c *ChangeItem) EncodeTars(e *tars.Encoder) {
	e.WriteInt8(0, int8(c.Op))
	e.WriteInt64(1, c.Friend)
	e.WriteInt32(2, c.Group)
	e.WriteString(3, c.Name)
}

// DecodeTars implements tars.Struct.
func (c *ChangeItem) DecodeTars(d *tars.Decoder) error {
	op, err := d.ReadInt8(0, true)
	if err != nil {
		return err
	}
	c.Op = ChangeOp(op)
	if c.Friend, err = d.ReadInt64(1, false); err != nil {
		return err
	}
	if c.Group, err = d.ReadInt32(2, false); err != nil {
		return err
	}
	c.Name, err = d.ReadString(3, false)
	return err
}

var friendGroupChangeTable = tars.MustTable("FriendGroupChange",
	tars.Desc("seq", 0, tars.Long),
	tars.Desc("time", 1, tars.Long),
	tars.Desc("items", 2, tars.List),
)

// FriendGroupChange is a batch of contact list edits. Items are classified
// independently.
type FriendGroupChange struct {
	Seq   int64
	Time  int64
	Items []*ChangeItem
}

// TarsTable returns the field table of FriendGroupChange.
func (c *FriendGroupChange) TarsTable() *tars.Table { return friendGroupChangeTable }

// Len returns the number of items in the batch.
func (c *FriendGroupChange) Len() int { return len(c.Items) }

// EncodeTars implements tars.Struct.
func (c *FriendGroupChange) EncodeTars(e *tars.Encoder) {
	e.WriteInt64(friendGroupChangeTable.Tag("seq"), c.Seq)
	e.WriteInt64(friendGroupChangeTable.Tag("time"), c.Time)
	tars.WriteStructList(e, friendGroupChangeTable.Tag("items"), c.Items)
}

// DecodeTars implements tars.Struct.
func (c *FriendGroupChange) DecodeTars(d *tars.Decoder) (err error) {
	if c.Seq, err = d.ReadInt64(friendGroupChangeTable.Tag("seq"), true); err != nil {
		return err
	}
	if c.Time, err = d.ReadInt64(friendGroupChangeTable.Tag("time"), false); err != nil {
		return err
	}
	c.Items, err = tars.ReadStructList(d, friendGroupChangeTable.Tag("items"), false, func() *ChangeItem { return &ChangeItem{} })
	return err
}

// MemberOp is the kind of a group membership change.
type MemberOp int8

const (
	MemberJoin  MemberOp = 1
	MemberLeave MemberOp = 2
	MemberKick  MemberOp = 3
)

// String returns the operation name.
func (op MemberOp) String() string {
	switch op {
	case MemberJoin:
		return "Join"
	case MemberLeave:
		return "Leave"
	case MemberKick:
		return "Kick"
	default:
		return "Unknown"
	}
}

var memberChangeTable = tars.MustTable("MemberChange",
	tars.Desc("seq", 0, tars.Long),
	tars.Desc("time", 1, tars.Long),
	tars.Desc("group", 2, tars.Long),
	tars.Desc("member", 3, tars.Long),
	tars.Desc("operator", 4, tars.Long),
	tars.Desc("op", 5, tars.Byte),
)

// MemberChange reports a member joining or leaving a group.
type MemberChange struct {
	Seq      int64
	Time     int64
	Group    int64
	Member   int64
	Operator int64 // Zero when the member acted on their own
	Op       MemberOp
}

// TarsTable returns the field table of MemberChange.
func (m *MemberChange) TarsTable() *tars.Table { return memberChangeTable }

// EncodeTars implements tars.Struct.
func (m *MemberChange) EncodeTars(e *tars.Encoder) {
	e.WriteInt64(memberChangeTable.Tag("seq"), m.Seq)
	e.WriteInt64(memberChangeTable.Tag("time"), m.Time)
	e.WriteInt64(memberChangeTable.Tag("group"), m.Group)
	e.WriteInt64(memberChangeTable.Tag("member"), m.Member)
	e.WriteInt64(memberChangeTable.Tag("operator"), m.Operator)
	e.WriteInt8(memberChangeTable.Tag("op"), int8(m.Op))
}

// DecodeTars implements tars.Struct.
func (m *MemberChange) DecodeTars(d *tars.Decoder) (err error) {
	if m.Seq, err = d.ReadInt64(memberChangeTable.Tag("seq"), true); err != nil {
		return err
	}
	if m.Time, err = d.ReadInt64(memberChangeTable.Tag("time"), false); err != nil {
		return err
	}
	if m.Group, err = d.ReadInt64(memberChangeTable.Tag("group"), true); err != nil {
		return err
	}
	if m.Member, err = d.ReadInt64(memberChangeTable.Tag("member"), true); err != nil {
		return err
	}
	if m.Operator, err = d.ReadInt64(memberChangeTable.Tag("operator"), false); err != nil {
		return err
	}
	op, err := d.ReadInt8(memberChangeTable.Tag("op"), true)
	m.Op = MemberOp(op)
	return err
}

// PresenceStatus is the online status of a contact.
type PresenceStatus int32

const (
	StatusOffline PresenceStatus = 0
	StatusOnline  PresenceStatus = 1
	StatusAway    PresenceStatus = 2
	StatusBusy    PresenceStatus = 3
)

var presenceTable = tars.MustTable("Presence",
	tars.Desc("user", 0, tars.Long),
	tars.Desc("status", 1, tars.Int),
	tars.Desc("time", 2, tars.Long),
)

// Presence reports a contact's status change.
type Presence struct {
	User   int64
	Status PresenceStatus
	Time   int64
}

// TarsTable returns the field table of Presence.
func (p *Presence) TarsTable() *tars.Table { return presenceTable }

// EncodeTars implements tars.Struct.
func (p *Presence) EncodeTars(e *tars.Encoder) {
	e.WriteInt64(presenceTable.Tag("user"), p.User)
	e.WriteInt32(presenceTable.Tag("status"), int32(p.Status))
	e.WriteInt64(presenceTable.Tag("time"), p.Time)
}

// DecodeTars implements tars.Struct.
func (p *Presence) DecodeTars(d *tars.Decoder) error {
	user, err := d.ReadInt64(presenceTable.Tag("user"), true)
	if err != nil {
		return err
	}
	status, err := d.ReadInt32(presenceTable.Tag("status"), false)
	if err != nil {
		return err
	}
	t, err := d.ReadInt64(presenceTable.Tag("time"), false)
	if err != nil {
		return err
	}
	*p = Presence{User: user, Status: PresenceStatus(status), Time: t}
	return nil
}
