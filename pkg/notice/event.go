package notice

import (
	"context"
	"fmt"
)

// Event is the outcome of processing a notice, delivered to an EventSink
// after the pipeline pass that produced it.
type Event interface {
	EventType() string
}

// MessageReceived is a message sent by someone else.
type MessageReceived struct {
	Message *Message
	Group   bool
}

// MessageSynced is a message the local account sent from another device.
type MessageSynced struct {
	Message *Message
	Group   bool
}

// FriendMoved reports a friend placed into another friend group.
type FriendMoved struct {
	Friend int64
	Group  int32
}

// FriendGroupRenamed reports a friend group's new name.
type FriendGroupRenamed struct {
	Group int32
	Name  string
}

// SystemNotice carries a system event.
type SystemNotice struct {
	Event *SystemEvent
}

// MemberJoined reports a new group member.
type MemberJoined struct {
	Group  int64
	Member int64
}

// MemberLeft reports a member leaving a group. Kicked is set when another
// member removed them.
type MemberLeft struct {
	Group    int64
	Member   int64
	Operator int64
	Kicked   bool
}

// PresenceChanged reports a contact's new status.
type PresenceChanged struct {
	User     int64
	Previous PresenceStatus
	Status   PresenceStatus
}

// ParseError reports a processor that failed or panicked on a notice.
// Processing of the notice continues with the next processor.
type ParseError struct {
	Notice    *Notice
	Processor string
	Err       error
}

func (MessageReceived) EventType() string    { return "MessageReceived" }
func (MessageSynced) EventType() string      { return "MessageSynced" }
func (FriendMoved) EventType() string        { return "FriendMoved" }
func (FriendGroupRenamed) EventType() string { return "FriendGroupRenamed" }
func (SystemNotice) EventType() string       { return "SystemNotice" }
func (MemberJoined) EventType() string       { return "MemberJoined" }
func (MemberLeft) EventType() string         { return "MemberLeft" }
func (PresenceChanged) EventType() string    { return "PresenceChanged" }
func (ParseError) EventType() string         { return "ParseError" }

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("notice: %s failed on %s: %v", e.Processor, e.Notice, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// EventSink receives the events of one pipeline pass at a time.
type EventSink interface {
	Broadcast(ctx context.Context, events []Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, events []Event)

// Broadcast calls f.
func (f SinkFunc) Broadcast(ctx context.Context, events []Event) {
	f(ctx, events)
}

// ChannelSink forwards events to a channel. Broadcast blocks while the
// channel is full, applying backpressure to the pipeline.
type ChannelSink struct {
	ch chan Event
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, buffer)}
}

// Events returns the receiving end.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Broadcast sends events in order until ctx is done.
func (s *ChannelSink) Broadcast(ctx context.Context, events []Event) {
	for _, ev := range events {
		select {
		case s.ch <- ev:
		case <-ctx.Done():
			return
		}
	}
}
