package network

import (
	"errors"
	"fmt"
	"time"

	"github.com/vango-dev/imclient/pkg/protocol"
)

// Sentinel errors.
var (
	// ErrSessionClosed is returned for any operation on a closed session.
	// The close cause is available through ClosedError.
	ErrSessionClosed = errors.New("network: session closed")

	// ErrNotReady is returned by SendWithoutExpect outside the OK state.
	ErrNotReady = errors.New("network: session not ready")

	// ErrConnectionLost fails requests that were in flight on a transport
	// that went away.
	ErrConnectionLost = errors.New("network: connection lost")

	// ErrTransportReplaced fails requests left on a transport that was
	// replaced by a newer one.
	ErrTransportReplaced = errors.New("network: transport replaced")

	// ErrExplicitClose is the default cause of Close(nil).
	ErrExplicitClose = errors.New("network: closed by caller")
)

// ClosedError reports that the session is closed, carrying the cause of
// the first close.
type ClosedError struct {
	Cause error
}

// Error implements the error interface.
func (e *ClosedError) Error() string {
	if e.Cause == nil {
		return ErrSessionClosed.Error()
	}
	return fmt.Sprintf("%v: %v", ErrSessionClosed, e.Cause)
}

// Unwrap returns both the sentinel and the cause.
func (e *ClosedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrSessionClosed}
	}
	return []error{ErrSessionClosed, e.Cause}
}

// RejectedError is a protocol-level rejection of one request. It does not
// affect the session.
type RejectedError struct {
	Command string
	Code    protocol.ResultCode
	Message string
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("network: %s rejected: %s (%d)", e.Command, e.Code, int32(e.Code))
	}
	return fmt.Sprintf("network: %s rejected: %s (%d): %s", e.Command, e.Code, int32(e.Code), e.Message)
}

// Retryable reports whether the server indicated a temporary failure.
func (e *RejectedError) Retryable() bool {
	return e.Code.Retryable()
}

// TimeoutError reports that no response arrived in time. It does not
// affect the session. After is the total time waited over all Attempts.
type TimeoutError struct {
	Command  string
	Seq      int32
	After    time.Duration
	Attempts int
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("network: %s seq %d: no response after %s (%d attempts)", e.Command, e.Seq, e.After, e.Attempts)
	}
	return fmt.Sprintf("network: %s seq %d: no response after %s", e.Command, e.Seq, e.After)
}

// Timeout marks the error as a timeout for net.Error style checks.
func (e *TimeoutError) Timeout() bool {
	return true
}

// SessionError wraps an error with the session and operation it came from.
type SessionError struct {
	SessionID string
	Op        string
	Err       error
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	return fmt.Sprintf("network: session %s: %s: %v", e.SessionID, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// unrecoverable marks a connection failure that must close the session
// instead of being retried.
type unrecoverable struct {
	err error
}

func (u *unrecoverable) Error() string { return u.err.Error() }
func (u *unrecoverable) Unwrap() error { return u.err }

// Unrecoverable wraps err so that a failing negotiation closes the session
// rather than scheduling another attempt.
func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return &unrecoverable{err: err}
}

// IsUnrecoverable reports whether err was marked with Unrecoverable.
func IsUnrecoverable(err error) bool {
	var u *unrecoverable
	return errors.As(err, &u)
}

// IsClosed reports whether err means the session is closed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrSessionClosed)
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
