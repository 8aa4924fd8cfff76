package network

import (
	"sync"

	"github.com/vango-dev/imclient/pkg/protocol"
	"github.com/vango-dev/imclient/pkg/transport"
)

type result struct {
	frame *protocol.Frame
	err   error
}

// pendingRequest is resolved exactly once: whoever removes it from the
// registry delivers the result.
type pendingRequest struct {
	command string
	ch      chan result
}

// link is one installed transport together with the requests awaiting a
// response on it. Sequence ids are only meaningful per link, so a request
// never outlives the link it was sent on.
type link struct {
	id      uint64
	tr      transport.Transport
	metrics *Metrics

	mu      sync.Mutex
	pending map[int32]*pendingRequest
	err     error
}

func newLink(id uint64, tr transport.Transport, metrics *Metrics) *link {
	return &link{
		id:      id,
		tr:      tr,
		metrics: metrics,
		pending: make(map[int32]*pendingRequest),
	}
}

// register adds a pending request for seq. It fails once the link has
// failed.
func (l *link) register(seq int32, command string) (*pendingRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	p := &pendingRequest{command: command, ch: make(chan result, 1)}
	l.pending[seq] = p
	l.metrics.pendingAdd(1)
	return p, nil
}

// remove drops the pending request for seq if it is still p.
func (l *link) remove(seq int32, p *pendingRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.pending[seq]; ok && cur == p {
		delete(l.pending, seq)
		l.metrics.pendingAdd(-1)
	}
}

// resolve delivers a response to the request with the same seq. It reports
// false when nothing is waiting, e.g. after a timeout.
func (l *link) resolve(f *protocol.Frame) bool {
	l.mu.Lock()
	p, ok := l.pending[f.Seq]
	if ok {
		delete(l.pending, f.Seq)
		l.metrics.pendingAdd(-1)
	}
	l.mu.Unlock()
	if !ok {
		return false
	}

	r := result{frame: f}
	if f.Result != protocol.ResultOK {
		r = result{err: &RejectedError{Command: p.command, Code: f.Result, Message: f.Message}}
	}
	p.ch <- r
	return true
}

// fail marks the link failed, resolving every pending request with err. It
// returns the first failure recorded on the link.
func (l *link) fail(err error) error {
	l.mu.Lock()
	if l.err != nil {
		err = l.err
		l.mu.Unlock()
		return err
	}
	l.err = err
	pending := l.pending
	l.pending = make(map[int32]*pendingRequest)
	l.metrics.pendingAdd(-len(pending))
	l.mu.Unlock()

	for _, p := range pending {
		p.ch <- result{err: err}
	}
	return err
}

// failure returns the recorded failure, or nil while the link is healthy.
func (l *link) failure() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// shutdown fails the link and closes its transport, waiting for the
// transport's reader to exit.
func (l *link) shutdown(err error) {
	l.fail(err)
	l.tr.Close()
}
