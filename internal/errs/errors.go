// Package errs implements the error taxonomy shared by the decoder,
// encoder, and generator (§7): a small closed set of error kinds, each
// wrapping a stable sentinel (see the root package's error.go for the
// public-facing wrapper).
package errs

import (
	"errors"
	"fmt"
	"io"
)

// Kind is one of the closed set of error categories from §7.
type Kind int

const (
	// OK is the zero Kind; never actually returned as an error.
	OK Kind = iota
	// Truncated: the stream ended mid-field or mid-message.
	Truncated
	// Malformed: illegal varint, invalid wire type for a declared kind,
	// mismatched group end, or invalid UTF-8 where a string was declared.
	Malformed
	// LimitExceeded: nesting depth exceeded the decoder's configured
	// bound. No bound on message size or repeated-field capacity exists.
	LimitExceeded
	// SinkShort: the encoder's sink refused a chunk and could not recover.
	SinkShort
	// SchemaViolation: the generator's input schema falls outside the
	// supported envelope (field number, field count, or record size).
	SchemaViolation
)

var sentinels = [...]error{
	OK:              nil,
	Truncated:       io.ErrUnexpectedEOF,
	Malformed:       errors.New("malformed protobuf wire data"),
	LimitExceeded:   errors.New("limit exceeded"),
	SinkShort:       errors.New("sink accepted fewer bytes than requested"),
	SchemaViolation: errors.New("schema outside supported envelope"),
}

func (k Kind) sentinel() error {
	if int(k) < 0 || int(k) >= len(sentinels) {
		return errors.New("unknown error kind")
	}
	return sentinels[k]
}

func (k Kind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case Malformed:
		return "malformed"
	case LimitExceeded:
		return "limit exceeded"
	case SinkShort:
		return "sink short"
	case SchemaViolation:
		return "schema violation"
	default:
		return "ok"
	}
}

// Error is the concrete error value returned by the decoder and encoder.
// It carries the byte offset at which the failure was detected.
type Error struct {
	Kind   Kind
	Offset int64
	Detail string
}

// New constructs an Error at offset with no extra detail.
func New(kind Kind, offset int64) *Error {
	return &Error{Kind: kind, Offset: offset}
}

// Newf constructs an Error at offset with a formatted detail message.
func Newf(kind Kind, offset int64, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}

// Unwrap implements error unwrapping, exposing the stable sentinel for
// errors.Is checks against io.ErrUnexpectedEOF and friends.
func (e *Error) Unwrap() error {
	return e.Kind.sentinel()
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("fastpb: %v error at offset %d: %s", e.Kind, e.Offset, e.Detail)
	}
	return fmt.Sprintf("fastpb: %v error at offset %d: %v", e.Kind, e.Offset, e.Unwrap())
}
