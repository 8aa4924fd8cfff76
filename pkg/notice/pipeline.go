package notice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// Processor handles notices of the kinds it accepts.
type Processor interface {
	// Kinds lists the accepted kinds. Nil accepts every kind.
	Kinds() []Kind

	// Process handles one notice. A returned error is reported as a
	// ParseError event and does not stop the pass.
	Process(c *Context, n *Notice) error
}

// ProcessorFunc adapts a function to a Processor accepting every kind.
type ProcessorFunc func(c *Context, n *Notice) error

// Kinds returns nil.
func (f ProcessorFunc) Kinds() []Kind { return nil }

// Process calls f.
func (f ProcessorFunc) Process(c *Context, n *Notice) error { return f(c, n) }

// Registration is a processor's place in a pipeline.
type Registration struct {
	pipeline  *Pipeline
	processor Processor
	name      string
	kinds     []Kind
	disposed  atomic.Bool
}

// Name returns the processor's name used in logs and ParseError events.
func (r *Registration) Name() string {
	return r.name
}

// Dispose removes the processor from the pipeline. Passes already running
// may still call it. Dispose is idempotent.
func (r *Registration) Dispose() {
	if r.disposed.Swap(true) {
		return
	}
	p := r.pipeline
	p.mu.Lock()
	p.regs = slices.DeleteFunc(slices.Clone(p.regs), func(x *Registration) bool { return x == r })
	p.mu.Unlock()
}

func (r *Registration) accepts(k Kind) bool {
	return r.kinds == nil || slices.Contains(r.kinds, k)
}

// invoke runs the processor, converting a panic into an error.
func (r *Registration) invoke(c *Context, n *Notice) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v", v)
		}
	}()
	return r.processor.Process(c, n)
}

// Config configures a Pipeline.
type Config struct {
	// Logger receives diagnostics. Default: slog.Default().
	Logger *slog.Logger

	// Metrics records Prometheus metrics. Nil disables metrics.
	Metrics *Metrics
}

// Result is the outcome of one pipeline pass.
type Result struct {
	Events   []Event
	Consumed bool
}

// Pipeline runs notices through an ordered list of processors. Processors
// may be registered and disposed while passes run; each pass uses the list
// as it was when the pass began.
type Pipeline struct {
	mu      sync.RWMutex
	regs    []*Registration
	logger  *slog.Logger
	metrics *Metrics
}

// NewPipeline creates an empty pipeline.
func NewPipeline(config *Config) *Pipeline {
	p := &Pipeline{}
	if config != nil {
		p.logger = config.Logger
		p.metrics = config.Metrics
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "notice")
	return p
}

// Register appends a processor to the pipeline.
func (p *Pipeline) Register(proc Processor) *Registration {
	r := &Registration{
		pipeline:  p,
		processor: proc,
		name:      processorName(proc),
		kinds:     proc.Kinds(),
	}
	p.mu.Lock()
	p.regs = append(slices.Clone(p.regs), r)
	p.mu.Unlock()
	return r
}

// Len returns the number of registered processors.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.regs)
}

// Process runs one pass over n. It fails only if ctx is done before the
// pass completes; processor failures become ParseError events.
func (p *Pipeline) Process(ctx context.Context, session string, n *Notice, fromSync bool) (*Result, error) {
	c := newContext(ctx, p, session, n, fromSync, 0)
	if err := p.run(c); err != nil {
		return nil, err
	}
	return &Result{Events: c.events, Consumed: c.IsConsumed()}, nil
}

func (p *Pipeline) run(c *Context) error {
	p.mu.RLock()
	regs := p.regs
	p.mu.RUnlock()

	n := c.notice
	p.metrics.recordNotice(n.Kind)

	for _, r := range regs {
		if c.IsConsumed() {
			break
		}
		if r.disposed.Load() || !r.accepts(n.Kind) {
			continue
		}
		if err := c.ctx.Err(); err != nil {
			return err
		}

		c.current = r
		if err := r.invoke(c, n); err != nil {
			p.logger.Warn("processor failed", "processor", r.name, "notice", n, "error", err)
			p.metrics.recordParseError(n.Kind)
			c.Collect(&ParseError{Notice: n, Processor: r.name, Err: err})
		}
		c.current = nil
	}

	if !c.IsConsumed() {
		p.metrics.recordUnhandled(n.Kind)
		if total := len(c.items); total > 0 {
			p.logger.Warn("unhandled notice items", "notice", n, "command", n.Command, "items", total, "unclaimed", unclaimed(c.items))
		} else {
			p.logger.Warn("unhandled notice", "notice", n, "command", n.Command)
		}
	}
	return nil
}

func unclaimed(items []*Registration) []int {
	var out []int
	for i, r := range items {
		if r == nil {
			out = append(out, i)
		}
	}
	return out
}

// processorName returns p's Name() if it has one, else its type.
func processorName(p Processor) string {
	if named, ok := p.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", p)
}
