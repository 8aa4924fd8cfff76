package notice

import "github.com/vango-dev/imclient/pkg/protocol"

// Kind classifies a notice.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindFriendMessage
	KindGroupMessage
	KindSystem
	KindFriendGroupChange
	KindMemberChange
	KindPresence
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFriendMessage:
		return "FriendMessage"
	case KindGroupMessage:
		return "GroupMessage"
	case KindSystem:
		return "System"
	case KindFriendGroupChange:
		return "FriendGroupChange"
	case KindMemberChange:
		return "MemberChange"
	case KindPresence:
		return "Presence"
	default:
		return "Unknown"
	}
}

var commandKinds = map[string]Kind{
	protocol.CmdPushFriendMsg:   KindFriendMessage,
	protocol.CmdPushGroupMsg:    KindGroupMessage,
	protocol.CmdPushSystem:      KindSystem,
	protocol.CmdPushFriendGroup: KindFriendGroupChange,
	protocol.CmdPushMember:      KindMemberChange,
	protocol.CmdPushPresence:    KindPresence,
}

// KindOf returns the kind of notice carried by a push command.
func KindOf(command string) Kind {
	return commandKinds[command]
}
