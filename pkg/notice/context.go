package notice

import (
	"context"
	"errors"
)

// Maximum nesting of ProcessAlso.
const maxProcessDepth = 8

// ErrProcessDepth is returned by ProcessAlso when notices keep spawning
// nested notices.
var ErrProcessDepth = errors.New("notice: ProcessAlso nested too deeply")

// Context is handed to each processor during one pipeline pass. It tracks
// consumption of the notice and its items and buffers collected events.
// A Context is only valid for the duration of the pass.
type Context struct {
	ctx      context.Context
	pipeline *Pipeline
	notice   *Notice
	depth    int

	// Session is the identity of the session the notice arrived on.
	Session string

	// FromSync is set when the notice echoes an action the local account
	// performed itself, as opposed to a genuine remote push.
	FromSync bool

	current   *Registration
	consumers []*Registration
	items     []*Registration
	events    []Event
}

func newContext(ctx context.Context, p *Pipeline, session string, n *Notice, fromSync bool, depth int) *Context {
	return &Context{
		ctx:      ctx,
		pipeline: p,
		notice:   n,
		depth:    depth,
		Session:  session,
		FromSync: fromSync,
		items:    make([]*Registration, n.Items()),
	}
}

// Context returns the context of the pass.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Notice returns the notice being processed.
func (c *Context) Notice() *Notice {
	return c.notice
}

// Consume claims the notice for the running processor. Processors after it
// are skipped.
func (c *Context) Consume() {
	c.consumers = append(c.consumers, c.current)
}

// ReleaseConsumption withdraws a claim, but only if the running processor
// made the most recent one.
func (c *Context) ReleaseConsumption() {
	if n := len(c.consumers); n > 0 && c.consumers[n-1] == c.current {
		c.consumers = c.consumers[:n-1]
	}
}

// IsConsumed reports whether the notice has been claimed, either as a whole
// or through all of its items.
func (c *Context) IsConsumed() bool {
	if len(c.consumers) > 0 {
		return true
	}
	if len(c.items) == 0 {
		return false
	}
	for _, r := range c.items {
		if r == nil {
			return false
		}
	}
	return true
}

// ConsumeItem claims item i of a batch notice for the running processor.
// It reports false if i is out of range or already claimed.
func (c *Context) ConsumeItem(i int) bool {
	if i < 0 || i >= len(c.items) || c.items[i] != nil {
		return false
	}
	c.items[i] = c.current
	return true
}

// ItemConsumed reports whether item i has been claimed.
func (c *Context) ItemConsumed(i int) bool {
	return i >= 0 && i < len(c.items) && c.items[i] != nil
}

// Collect buffers events for broadcast after the pass.
func (c *Context) Collect(events ...Event) {
	for _, ev := range events {
		if ev != nil {
			c.events = append(c.events, ev)
		}
	}
}

// ProcessAlso runs n through the whole pipeline as part of the current pass
// and collects its events here as well. It returns the events of n alone.
func (c *Context) ProcessAlso(n *Notice) ([]Event, error) {
	if c.depth+1 >= maxProcessDepth {
		return nil, ErrProcessDepth
	}
	sub := newContext(c.ctx, c.pipeline, c.Session, n, c.FromSync, c.depth+1)
	if err := c.pipeline.run(sub); err != nil {
		return nil, err
	}
	c.events = append(c.events, sub.events...)
	return sub.events, nil
}
