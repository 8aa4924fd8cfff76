package protocol

// Command names used by the session core. Everything else is opaque and
// routed by sequence id or passed to the notice pipeline.
const (
	CmdLogin           = "Login.Auth"
	CmdHeartbeat       = "Heartbeat.Alive"
	CmdLoadContacts    = "Contacts.Load"
	CmdPushAck         = "Push.Ack"
	CmdFriendRoaming   = "Friend.RoamMsg"
	CmdGroupLatestSeq  = "Group.LatestSeq"
	CmdGroupHistory    = "Group.HistoryMsg"
	CmdPushFriendMsg   = "Push.FriendMsg"
	CmdPushGroupMsg    = "Push.GroupMsg"
	CmdPushSystem      = "Push.System"
	CmdPushFriendGroup = "Push.FriendGroup"
	CmdPushMember      = "Push.Member"
	CmdPushPresence    = "Push.Presence"
)
