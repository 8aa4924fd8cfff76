package network

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// DefaultMaxSuppressed bounds the distinct failures kept by a collector.
const DefaultMaxSuppressed = 8

// ExceptionCollector accumulates failures of repeated connection attempts.
// Structurally equal failures (same type chain and message) are recorded
// once and only counted afterwards, so an endless retry loop against the
// same fault keeps a bounded list.
type ExceptionCollector struct {
	mu         sync.Mutex
	max        int
	last       error
	suppressed []error
	seen       map[[32]byte]int // fingerprint → occurrences
	total      int
	overflow   int
}

// NewExceptionCollector creates a collector keeping at most max distinct
// failures. max <= 0 selects DefaultMaxSuppressed.
func NewExceptionCollector(max int) *ExceptionCollector {
	if max <= 0 {
		max = DefaultMaxSuppressed
	}
	return &ExceptionCollector{max: max, seen: make(map[[32]byte]int)}
}

// Collect records err. It reports whether err was new, that is neither a
// duplicate nor dropped because the collector is full.
func (c *ExceptionCollector) Collect(err error) bool {
	if err == nil {
		return false
	}
	fp := fingerprint(err)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	c.last = err
	if n, dup := c.seen[fp]; dup {
		c.seen[fp] = n + 1
		return false
	}
	if len(c.suppressed) >= c.max {
		c.overflow++
		return false
	}
	c.seen[fp] = 1
	c.suppressed = append(c.suppressed, err)
	return true
}

// CollectGet records err and returns the combined failure.
func (c *ExceptionCollector) CollectGet(err error) error {
	c.Collect(err)
	return c.Result()
}

// Result returns the most recent failure with every distinct earlier one
// attached, or nil if nothing was collected.
func (c *ExceptionCollector) Result() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return nil
	}
	ce := &CollectedError{Err: c.last, Attempts: c.total}
	lastFP := fingerprint(c.last)
	for _, err := range c.suppressed {
		if fingerprint(err) != lastFP {
			ce.Suppressed = append(ce.Suppressed, err)
		}
	}
	return ce
}

// Suppressed returns the distinct failures recorded so far.
func (c *ExceptionCollector) Suppressed() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.suppressed...)
}

// Total returns the number of failures collected, duplicates included.
func (c *ExceptionCollector) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// fingerprint hashes the dynamic type of every error in the chain and the
// outermost message.
func fingerprint(err error) [32]byte {
	var sb strings.Builder
	sb.WriteString(err.Error())
	for e := err; e != nil; e = errors.Unwrap(e) {
		sb.WriteByte(0)
		fmt.Fprintf(&sb, "%T", e)
	}
	return blake2b.Sum256([]byte(sb.String()))
}

// CollectedError is the primary failure of a connection episode together
// with the distinct failures that preceded it.
type CollectedError struct {
	Err        error
	Suppressed []error
	Attempts   int
}

// Error implements the error interface.
func (e *CollectedError) Error() string {
	if len(e.Suppressed) == 0 {
		if e.Attempts > 1 {
			return fmt.Sprintf("%v (after %d attempts)", e.Err, e.Attempts)
		}
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (after %d attempts, %d distinct earlier failures)", e.Err, e.Attempts, len(e.Suppressed))
}

// Unwrap exposes the primary and suppressed failures to errors.Is/As.
func (e *CollectedError) Unwrap() []error {
	return append([]error{e.Err}, e.Suppressed...)
}
