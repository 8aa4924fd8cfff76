package network

import (
	"fmt"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a session.
type State uint8

const (
	StateInitialized State = iota
	StateConnecting
	StateLoading
	StateOK
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInitialized:
		return "Initialized"
	case StateConnecting:
		return "Connecting"
	case StateLoading:
		return "Loading"
	case StateOK:
		return "OK"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// CanTransition reports whether the lifecycle allows moving from one state
// to another. Closed is terminal.
func CanTransition(from, to State) bool {
	switch from {
	case StateInitialized:
		return to == StateConnecting || to == StateClosed
	case StateConnecting:
		return to == StateLoading || to == StateClosed
	case StateLoading:
		return to == StateOK || to == StateClosed
	case StateOK:
		return to == StateConnecting || to == StateClosed
	default:
		return false
	}
}

// StateChange describes one completed transition.
type StateChange struct {
	From  State
	To    State
	Cause error // set when To is Closed or Connecting after a fault
	At    time.Time
}

// StateObserver is notified after every transition, in the goroutine that
// performed it.
type StateObserver interface {
	OnStateChange(StateChange)
}

// StateObserverFunc adapts a function to StateObserver.
type StateObserverFunc func(StateChange)

// OnStateChange calls f(c).
func (f StateObserverFunc) OnStateChange(c StateChange) {
	f(c)
}

// snapshot is an immutable view of the state cell. A new snapshot replaces
// the old one on every transition and closes the old changed channel.
type snapshot struct {
	state     State
	gen       uint64
	cause     error
	collector *ExceptionCollector // Connecting only
	changed   chan struct{}
}

func newSnapshot(state State) *snapshot {
	return &snapshot{state: state, changed: make(chan struct{})}
}

// stateCell holds the current snapshot. Transitions are applied with a
// compare-and-swap loop over a pure transition function.
type stateCell struct {
	p atomic.Pointer[snapshot]
}

func (c *stateCell) init() {
	c.p.Store(newSnapshot(StateInitialized))
}

func (c *stateCell) load() *snapshot {
	return c.p.Load()
}

// transition calls fn with the current snapshot until the swap succeeds.
// fn returns the next snapshot or nil to decline. Transitions the lifecycle
// does not allow are declined as well.
func (c *stateCell) transition(fn func(old *snapshot) *snapshot) (old, next *snapshot, ok bool) {
	for {
		old = c.p.Load()
		next = fn(old)
		if next == nil || !CanTransition(old.state, next.state) {
			return old, nil, false
		}
		next.gen = old.gen + 1
		if next.changed == nil {
			next.changed = make(chan struct{})
		}
		if c.p.CompareAndSwap(old, next) {
			close(old.changed)
			return old, next, true
		}
	}
}

// moveFrom returns a transition function that only applies in state from.
func moveFrom(from, next State, cause error, collector *ExceptionCollector) func(*snapshot) *snapshot {
	return func(old *snapshot) *snapshot {
		if old.state != from {
			return nil
		}
		return &snapshot{state: next, cause: cause, collector: collector}
	}
}
