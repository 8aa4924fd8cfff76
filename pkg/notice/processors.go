package notice

import (
	"fmt"
	"sync"
)

// DedupProcessor drops notices whose sequence has already been applied. It
// consumes duplicates so that no later processor sees them. Register it
// first.
type DedupProcessor struct {
	watermarks *Watermarks
	metrics    *Metrics
}

// NewDedupProcessor creates a DedupProcessor. metrics may be nil.
func NewDedupProcessor(w *Watermarks, metrics *Metrics) *DedupProcessor {
	return &DedupProcessor{watermarks: w, metrics: metrics}
}

func (p *DedupProcessor) Name() string { return "dedup" }
func (p *DedupProcessor) Kinds() []Kind { return nil }

func (p *DedupProcessor) Process(c *Context, n *Notice) error {
	key := n.WatermarkKey()
	if key == "" {
		return nil
	}
	if !p.watermarks.Advance(c.Context(), key, n.Seq) {
		p.metrics.recordDuplicate(n.Kind)
		c.Consume()
	}
	return nil
}

// MessageProcessor turns friend and group messages into MessageReceived,
// or MessageSynced for messages the local account sent elsewhere.
type MessageProcessor struct{}

// NewMessageProcessor creates a MessageProcessor.
func NewMessageProcessor() *MessageProcessor { return &MessageProcessor{} }

func (p *MessageProcessor) Name() string { return "message" }

func (p *MessageProcessor) Kinds() []Kind {
	return []Kind{KindFriendMessage, KindGroupMessage}
}

func (p *MessageProcessor) Process(c *Context, n *Notice) error {
	m, ok := n.Payload.(*Message)
	if !ok {
		return fmt.Errorf("unexpected payload %T", n.Payload)
	}
	group := n.Kind == KindGroupMessage
	if c.FromSync {
		c.Collect(&MessageSynced{Message: m, Group: group})
	} else {
		c.Collect(&MessageReceived{Message: m, Group: group})
	}
	c.Consume()
	return nil
}

// FriendGroupProcessor handles the "member moved" items of a friend group
// change and leaves the others.
type FriendGroupProcessor struct{}

func (FriendGroupProcessor) Name() string  { return "friend-group" }
func (FriendGroupProcessor) Kinds() []Kind { return []Kind{KindFriendGroupChange} }

func (FriendGroupProcessor) Process(c *Context, n *Notice) error {
	change, ok := n.Payload.(*FriendGroupChange)
	if !ok {
		return fmt.Errorf("unexpected payload %T", n.Payload)
	}
	for i, item := range change.Items {
		if item.Op != OpMemberMoved || c.ItemConsumed(i) {
			continue
		}
		c.ConsumeItem(i)
		c.Collect(&FriendMoved{Friend: item.Friend, Group: item.Group})
	}
	return nil
}

// GroupRenameProcessor handles the "group renamed" items of a friend group
// change.
type GroupRenameProcessor struct{}

func (GroupRenameProcessor) Name() string  { return "group-rename" }
func (GroupRenameProcessor) Kinds() []Kind { return []Kind{KindFriendGroupChange} }

func (GroupRenameProcessor) Process(c *Context, n *Notice) error {
	change, ok := n.Payload.(*FriendGroupChange)
	if !ok {
		return fmt.Errorf("unexpected payload %T", n.Payload)
	}
	for i, item := range change.Items {
		if item.Op != OpGroupRenamed || c.ItemConsumed(i) {
			continue
		}
		c.ConsumeItem(i)
		c.Collect(&FriendGroupRenamed{Group: item.Group, Name: item.Name})
	}
	return nil
}

// MemberProcessor reports group joins and departures.
type MemberProcessor struct{}

func (MemberProcessor) Name() string  { return "member" }
func (MemberProcessor) Kinds() []Kind { return []Kind{KindMemberChange} }

func (MemberProcessor) Process(c *Context, n *Notice) error {
	m, ok := n.Payload.(*MemberChange)
	if !ok {
		return fmt.Errorf("unexpected payload %T", n.Payload)
	}
	switch m.Op {
	case MemberJoin:
		c.Collect(&MemberJoined{Group: m.Group, Member: m.Member})
	case MemberLeave, MemberKick:
		c.Collect(&MemberLeft{Group: m.Group, Member: m.Member, Operator: m.Operator, Kicked: m.Op == MemberKick})
	default:
		// Leave it unconsumed so it shows up as unhandled.
		return nil
	}
	c.Consume()
	return nil
}

// SystemProcessor forwards system events.
type SystemProcessor struct{}

func (SystemProcessor) Name() string  { return "system" }
func (SystemProcessor) Kinds() []Kind { return []Kind{KindSystem} }

func (SystemProcessor) Process(c *Context, n *Notice) error {
	ev, ok := n.Payload.(*SystemEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", n.Payload)
	}
	c.Collect(&SystemNotice{Event: ev})
	c.Consume()
	return nil
}

// PresenceProcessor reports status changes. Repeated pushes of an unchanged
// status are consumed without an event.
type PresenceProcessor struct {
	mu     sync.Mutex
	status map[int64]PresenceStatus
}

// NewPresenceProcessor creates a PresenceProcessor.
func NewPresenceProcessor() *PresenceProcessor {
	return &PresenceProcessor{status: make(map[int64]PresenceStatus)}
}

func (p *PresenceProcessor) Name() string  { return "presence" }
func (p *PresenceProcessor) Kinds() []Kind { return []Kind{KindPresence} }

func (p *PresenceProcessor) Process(c *Context, n *Notice) error {
	pr, ok := n.Payload.(*Presence)
	if !ok {
		return fmt.Errorf("unexpected payload %T", n.Payload)
	}
	p.mu.Lock()
	prev, known := p.status[pr.User]
	p.status[pr.User] = pr.Status
	p.mu.Unlock()

	if !known || prev != pr.Status {
		c.Collect(&PresenceChanged{User: pr.User, Previous: prev, Status: pr.Status})
	}
	c.Consume()
	return nil
}

// Status returns the last known status of user.
func (p *PresenceProcessor) Status(user int64) (PresenceStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.status[user]
	return s, ok
}

// RegisterDefaults registers the built-in processors in their canonical
// order: deduplication first, then the per-kind handlers.
func RegisterDefaults(p *Pipeline, w *Watermarks, metrics *Metrics) []*Registration {
	return []*Registration{
		p.Register(NewDedupProcessor(w, metrics)),
		p.Register(NewMessageProcessor()),
		p.Register(FriendGroupProcessor{}),
		p.Register(GroupRenameProcessor{}),
		p.Register(MemberProcessor{}),
		p.Register(SystemProcessor{}),
		p.Register(NewPresenceProcessor()),
	}
}
