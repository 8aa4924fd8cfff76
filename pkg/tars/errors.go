package tars

import (
	"errors"
	"fmt"
	"io"
)

// ErrorKind classifies codec failures.
type ErrorKind uint8

const (
	// KindTruncated means the input ended before the value was complete.
	// More bytes may still arrive on a stream.
	KindTruncated ErrorKind = iota + 1

	// KindMalformed means the input can never decode. The frame should be
	// discarded.
	KindMalformed
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindTruncated:
		return "truncated"
	case KindMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// Causes wrapped by CodecError.
var (
	ErrTypeMismatch       = errors.New("tars: type mismatch")
	ErrFieldMissing       = errors.New("tars: required field missing")
	ErrInvalidType        = errors.New("tars: invalid type")
	ErrStringTooLong      = errors.New("tars: string length out of range")
	ErrNegativeLength     = errors.New("tars: negative length")
	ErrCollectionTooLarge = errors.New("tars: collection count exceeds limit")
	ErrBadSimpleList      = errors.New("tars: bad simple list")
	ErrDepthExceeded      = errors.New("tars: nesting depth exceeded")
	ErrTrailingData       = errors.New("tars: trailing data")
)

// CodecError is returned for every decoding failure.
type CodecError struct {
	Kind ErrorKind
	Op   string
	Tag  int // -1 when the failure is not tied to a field
	Err  error
}

// Error implements the error interface.
func (e *CodecError) Error() string {
	if e.Tag >= 0 {
		return fmt.Sprintf("tars: %s tag %d: %s: %v", e.Op, e.Tag, e.Kind, e.Err)
	}
	return fmt.Sprintf("tars: %s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CodecError) Unwrap() error {
	return e.Err
}

// IsTruncated reports whether err is a truncation codec error.
func IsTruncated(err error) bool {
	var ce *CodecError
	return errors.As(err, &ce) && ce.Kind == KindTruncated
}

// IsMalformed reports whether err is a malformed-input codec error.
func IsMalformed(err error) bool {
	var ce *CodecError
	return errors.As(err, &ce) && ce.Kind == KindMalformed
}

func truncated(op string, tag int) error {
	return &CodecError{Kind: KindTruncated, Op: op, Tag: tag, Err: io.ErrUnexpectedEOF}
}

func malformed(op string, tag int, err error) error {
	return &CodecError{Kind: KindMalformed, Op: op, Tag: tag, Err: err}
}

func mismatch(op string, tag int, got Type) error {
	return malformed(op, tag, fmt.Errorf("%w: got %s", ErrTypeMismatch, got))
}
