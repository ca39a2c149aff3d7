package fastpb

import (
	"errors"

	"github.com/gerben-stavenga/rust-protobuf/internal/errs"
)

// Error is the concrete error type returned by decode and encode
// operations. Use errors.As to recover one from an error returned across
// this package's API.
type Error = errs.Error

// IsTruncated reports whether err (or something it wraps) is a Truncated
// error: the input ended before a complete message was seen.
func IsTruncated(err error) bool { return kindOf(err) == errs.Truncated }

// IsMalformed reports whether err is a Malformed error: the wire bytes
// themselves violated the protobuf encoding (a bad varint, a wire type
// that doesn't match the field's declared kind, a stray or mismatched
// group terminator).
func IsMalformed(err error) bool { return kindOf(err) == errs.Malformed }

// IsLimitExceeded reports whether err is a LimitExceeded error: the
// nesting-depth bound (ParseOptions.MaxDepth) was exceeded. The decoder
// has no bound on message size or repeated-field length.
func IsLimitExceeded(err error) bool { return kindOf(err) == errs.LimitExceeded }

// IsSchemaViolation reports whether err is a SchemaViolation error, only
// ever produced while compiling a schema (internal/gen), never while
// decoding or encoding a message.
func IsSchemaViolation(err error) bool { return kindOf(err) == errs.SchemaViolation }

func kindOf(err error) errs.Kind {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return errs.OK
}
