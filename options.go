package fastpb

import "github.com/gerben-stavenga/rust-protobuf/internal/decode"

// ParseOptions configures a Decoder. The zero value is the default
// configuration.
type ParseOptions struct {
	// MaxDepth bounds nested message/group frame depth. Zero means
	// decode.DefaultMaxDepth.
	MaxDepth int
}

func (o ParseOptions) maxDepth() int {
	if o.MaxDepth <= 0 {
		return decode.DefaultMaxDepth
	}
	return o.MaxDepth
}

// EncodeOptions configures Message.Marshal and Message.MarshalTo. There
// are currently no options; it exists so callers have a stable signature
// to extend against.
type EncodeOptions struct{}
