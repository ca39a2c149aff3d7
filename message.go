package fastpb

import (
	"github.com/gerben-stavenga/rust-protobuf/internal/arena"
	"github.com/gerben-stavenga/rust-protobuf/internal/decode"
	"github.com/gerben-stavenga/rust-protobuf/internal/encode"
	"github.com/gerben-stavenga/rust-protobuf/internal/record"
	"github.com/gerben-stavenga/rust-protobuf/internal/table"
)

// Message is one decoded (or to-be-encoded) message instance, along with
// the arena its fields are allocated from. A Message is only ever valid
// for the Type it was created with; there is no reflective "which message
// is this" check beyond what the caller already knows from having picked
// the Type.
type Message struct {
	a   *arena.Arena
	rec *record.Record
	typ *table.Type
}

// NewMessage allocates an empty Message of typ, backed by a fresh arena.
func NewMessage(typ *table.Type) *Message {
	a := arena.New(0)
	return &Message{a: a, rec: record.New(a, typ), typ: typ}
}

// Type returns the schema this message was built from.
func (m *Message) Type() *table.Type { return m.typ }

// Reset drops every field value and frees the message's arena, leaving it
// ready to decode into again. Reusing a Message across decodes (via
// Message.Decoder) avoids
// allocating a fresh arena and record tree for every message in a tight
// loop.
func (m *Message) Reset() {
	m.a.Free()
	m.rec = record.New(m.a, m.typ)
}

// Has reports whether the has-bit at index hasBit is set on this
// message's top-level record. Generated field accessors (not part of
// this package) are expected to call this rather than re-deriving
// presence from the has-bits word layout themselves.
func (m *Message) Has(hasBit int) bool { return m.rec.HasBit(hasBit) }

// Decoder returns a push-mode decoder that will populate m per opts.
// Calling Decoder more than once, or calling it after decoding into m
// directly via Parse, starts a fresh decode that merges into whatever m
// already holds (§4.3's merge semantics apply at the top level too).
func (m *Message) Decoder(opts ParseOptions) *Decoder {
	d := decode.New(m.a, m.rec, m.typ)
	d.SetMaxDepth(opts.maxDepth())
	return &Decoder{d: d}
}

// Marshal serializes m's present fields.
func (m *Message) Marshal(EncodeOptions) ([]byte, error) {
	return encode.Marshal(m.rec), nil
}

// MarshalTo serializes m and writes it to sink, retrying on short writes.
func (m *Message) MarshalTo(sink encode.Sink, _ EncodeOptions) error {
	return encode.WriteTo(sink, m.rec)
}

// Decoder is a resumable, push-mode decoder bound to one Message (see
// Message.Decoder and the package doc).
type Decoder struct {
	d *decode.Decoder
}

// Progress reports how much of a Push call's chunk was consumed. Done is
// always false: a Decoder has no way to know a top-level message is
// complete until the caller calls Finish (see decode.Decoder.Push).
type Progress = decode.Progress

// Push feeds the next chunk of wire bytes. See decode.Decoder.Push.
func (d *Decoder) Push(chunk []byte) (Progress, error) {
	return d.d.Push(chunk)
}

// Finish signals that no more input is coming, and reports an error if
// what was pushed doesn't amount to a complete message.
func (d *Decoder) Finish() error {
	return d.d.Finish()
}

// Parse is the flat-buffer convenience path: decode all of data into a
// freshly allocated Message in one call.
func Parse(typ *table.Type, data []byte, opts ParseOptions) (*Message, error) {
	m := NewMessage(typ)
	d := m.Decoder(opts)
	if _, err := d.Push(data); err != nil {
		return nil, err
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return m, nil
}
