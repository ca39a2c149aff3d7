// Package encode implements the shared size-pass-then-serialize encoder
// (§3.6/§4.5): one pair of functions that walks any table.Type's
// EncodeEntries in declaration order and reads out of any record.Record,
// driven by the same tables the decoder consumes.
//
// Repeated scalar fields are always emitted packed, matching what a
// schema-driven encoder with no wire-format history to preserve would
// choose by default (§3.6's "single length-prefixed run" shape); bytes,
// string, message, and group fields are never packable and are always
// emitted one tag+value per element.
package encode

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/gerben-stavenga/rust-protobuf/internal/errs"
	"github.com/gerben-stavenga/rust-protobuf/internal/record"
	"github.com/gerben-stavenga/rust-protobuf/internal/table"
	"github.com/gerben-stavenga/rust-protobuf/internal/wire"
	"github.com/gerben-stavenga/rust-protobuf/internal/zigzag"
)

// sizes caches each record's own serialized size (not including any outer
// tag/length a parent embeds it under) for the lifetime of one top-level
// Size/Append/Marshal call. Without it, a sub-message nested d levels deep
// has its size recomputed once per ancestor that contains it: once when
// the top-level Size pass sizes the whole tree for buffer preallocation,
// then again inside every ancestor's appendField call to produce that
// sub-message's own length prefix (§4.5's "sized exactly once").
type sizes map[*record.Record]int

func (c sizes) of(rec *record.Record) int {
	if sz, ok := c[rec]; ok {
		return sz
	}
	total := 0
	for _, e := range rec.Type.EncodeEntries {
		if !present(rec, e) {
			continue
		}
		total += c.fieldSize(rec, e)
	}
	c[rec] = total
	return total
}

// Size returns the number of bytes Append would write for rec, not
// including any outer tag/length the caller embeds rec under (the size
// pass a parent message runs before serializing its own body).
func Size(rec *record.Record) int {
	return make(sizes).of(rec)
}

// Append serializes rec's present fields, in declaration order, onto buf
// and returns the grown slice.
func Append(buf []byte, rec *record.Record) []byte {
	c := make(sizes)
	c.of(rec)
	return c.appendRecord(buf, rec)
}

// Marshal serializes rec in one pass, sharing a single sizes cache between
// the buffer preallocation and every length prefix Append writes, instead
// of the caller running Size and Append as two independent passes that
// would each rebuild the cache from scratch.
func Marshal(rec *record.Record) []byte {
	c := make(sizes)
	total := c.of(rec)
	return c.appendRecord(make([]byte, 0, total), rec)
}

func (c sizes) appendRecord(buf []byte, rec *record.Record) []byte {
	for _, e := range rec.Type.EncodeEntries {
		if !present(rec, e) {
			continue
		}
		buf = c.appendField(buf, rec, e)
	}
	return buf
}

// Sink accepts serialized output in chunks, pushing bytes to a
// caller-owned destination instead of returning one giant buffer. Write
// may accept fewer bytes than offered; WriteTo then offers the unwritten
// tail again. A write that accepts no bytes and reports no error is
// treated as a SinkShort failure (§7), as is any write error.
type Sink interface {
	Write(p []byte) (n int, err error)
}

// WriteTo serializes rec and pushes it to sink, retrying on short writes
// as long as the sink keeps making progress.
func WriteTo(sink Sink, rec *record.Record) error {
	buf := Marshal(rec)
	for len(buf) > 0 {
		n, err := sink.Write(buf)
		if err != nil {
			return errs.Newf(errs.SinkShort, 0, "sink write failed: %v", err)
		}
		if n <= 0 {
			return errs.New(errs.SinkShort, 0)
		}
		buf = buf[n:]
	}
	return nil
}

func present(rec *record.Record, e table.EncodeEntry) bool {
	switch {
	case e.Kind.IsSubMessage():
		if e.Kind.IsRepeated() {
			return rec.RepSubs[e.Entry.Slot()].Len() > 0
		}
		return rec.Subs[e.Entry.Slot()] != nil
	case e.Kind == table.Bytes || e.Kind == table.String:
		return rec.HasBit(e.Entry.HasBit())
	case e.Kind == table.RepeatedBytes || e.Kind == table.RepeatedString:
		return rec.RepBytes[e.Entry.Slot()].Len() > 0
	case e.Kind.IsRepeated():
		return rec.RepScalars[e.Entry.Slot()].Len() > 0
	default:
		return rec.HasBit(e.Entry.HasBit())
	}
}

func sizeOfTag(tag uint64) int { return wire.SizeVarint(tag) }

func endGroupTag(startTag uint64) uint64 {
	return (startTag &^ 7) | uint64(protowire.EndGroupType)
}

// baseScalarKind maps a Repeated* scalar kind to its singular counterpart;
// the two families are declared in the same relative order in
// internal/table precisely so this is an offset, not a table lookup.
func baseScalarKind(kind table.Kind) table.Kind {
	if kind >= table.RepeatedVarint64 && kind <= table.RepeatedFloat64 {
		return kind - table.RepeatedVarint64 + table.Varint64
	}
	return kind
}

func (c sizes) fieldSize(rec *record.Record, e table.EncodeEntry) int {
	switch {
	case e.Kind == table.Group || e.Kind == table.RepeatedGroup:
		return c.groupSize(rec, e)

	case e.Kind == table.Message || e.Kind == table.RepeatedMessage:
		if e.Kind.IsRepeated() {
			total := 0
			for _, child := range rec.RepSubs[e.Entry.Slot()].Raw() {
				sz := c.of(child)
				total += sizeOfTag(e.Tag) + wire.SizeVarint(uint64(sz)) + sz
			}
			return total
		}
		sz := c.of(rec.Subs[e.Entry.Slot()])
		return sizeOfTag(e.Tag) + wire.SizeVarint(uint64(sz)) + sz

	case e.Kind == table.Bytes || e.Kind == table.String:
		b := rec.Bytes[e.Entry.Slot()]
		return sizeOfTag(e.Tag) + wire.SizeVarint(uint64(b.Len())) + b.Len()

	case e.Kind == table.RepeatedBytes || e.Kind == table.RepeatedString:
		total := 0
		for _, b := range rec.RepBytes[e.Entry.Slot()].Raw() {
			total += sizeOfTag(e.Tag) + wire.SizeVarint(uint64(b.Len())) + b.Len()
		}
		return total

	case e.Kind.IsPackable():
		base := baseScalarKind(e.Kind)
		vals := rec.RepScalars[e.Entry.Slot()].Raw()
		payload := 0
		for _, v := range vals {
			payload += scalarValueSize(base, v)
		}
		return sizeOfTag(e.Tag) + wire.SizeVarint(uint64(payload)) + payload

	default:
		return sizeOfTag(e.Tag) + scalarValueSize(e.Kind, rec.Scalars[e.Entry.Slot()])
	}
}

func (c sizes) groupSize(rec *record.Record, e table.EncodeEntry) int {
	startSize := sizeOfTag(e.Tag)
	endSize := sizeOfTag(endGroupTag(e.Tag))
	if e.Kind == table.RepeatedGroup {
		total := 0
		for _, child := range rec.RepSubs[e.Entry.Slot()].Raw() {
			total += startSize + c.of(child) + endSize
		}
		return total
	}
	return startSize + c.of(rec.Subs[e.Entry.Slot()]) + endSize
}

func (c sizes) appendField(buf []byte, rec *record.Record, e table.EncodeEntry) []byte {
	switch {
	case e.Kind == table.Group || e.Kind == table.RepeatedGroup:
		return c.appendGroup(buf, rec, e)

	case e.Kind == table.Message || e.Kind == table.RepeatedMessage:
		if e.Kind.IsRepeated() {
			for _, child := range rec.RepSubs[e.Entry.Slot()].Raw() {
				buf = wire.AppendVarint(buf, e.Tag)
				buf = wire.AppendVarint(buf, uint64(c.of(child)))
				buf = c.appendRecord(buf, child)
			}
			return buf
		}
		child := rec.Subs[e.Entry.Slot()]
		buf = wire.AppendVarint(buf, e.Tag)
		buf = wire.AppendVarint(buf, uint64(c.of(child)))
		return c.appendRecord(buf, child)

	case e.Kind == table.Bytes || e.Kind == table.String:
		b := rec.Bytes[e.Entry.Slot()].Bytes()
		buf = wire.AppendVarint(buf, e.Tag)
		buf = wire.AppendVarint(buf, uint64(len(b)))
		return append(buf, b...)

	case e.Kind == table.RepeatedBytes || e.Kind == table.RepeatedString:
		for _, c := range rec.RepBytes[e.Entry.Slot()].Raw() {
			b := c.Bytes()
			buf = wire.AppendVarint(buf, e.Tag)
			buf = wire.AppendVarint(buf, uint64(len(b)))
			buf = append(buf, b...)
		}
		return buf

	case e.Kind.IsPackable():
		base := baseScalarKind(e.Kind)
		vals := rec.RepScalars[e.Entry.Slot()].Raw()
		payload := 0
		for _, v := range vals {
			payload += scalarValueSize(base, v)
		}
		buf = wire.AppendVarint(buf, e.Tag)
		buf = wire.AppendVarint(buf, uint64(payload))
		for _, v := range vals {
			buf = appendScalarValue(buf, base, v)
		}
		return buf

	default:
		buf = wire.AppendVarint(buf, e.Tag)
		return appendScalarValue(buf, e.Kind, rec.Scalars[e.Entry.Slot()])
	}
}

func (c sizes) appendGroup(buf []byte, rec *record.Record, e table.EncodeEntry) []byte {
	endTag := endGroupTag(e.Tag)
	if e.Kind == table.RepeatedGroup {
		for _, child := range rec.RepSubs[e.Entry.Slot()].Raw() {
			buf = wire.AppendVarint(buf, e.Tag)
			buf = c.appendRecord(buf, child)
			buf = wire.AppendVarint(buf, endTag)
		}
		return buf
	}
	buf = wire.AppendVarint(buf, e.Tag)
	buf = c.appendRecord(buf, rec.Subs[e.Entry.Slot()])
	return wire.AppendVarint(buf, endTag)
}

// scalarValueSize and appendScalarValue operate on a base (non-Repeated)
// Kind and the widened uint64 storage record.Record uses for it (see
// internal/record's package doc): the inverse of
// internal/decode's decodeScalarElement.
func scalarValueSize(kind table.Kind, v uint64) int {
	switch kind {
	case table.Varint64, table.Varint32, table.Bool:
		// v is already the low 32 (or 64) bits zero-extended by the
		// decoder; re-encoding it as-is is shorter than sign-extending
		// and still decodes to the identical value (any reader truncates
		// to the field's declared width, whichever extension produced
		// the bytes).
		return wire.SizeVarint(v)
	case table.ZigZag64:
		return wire.SizeVarint(zigzag.Encode64(int64(v)))
	case table.ZigZag32:
		return wire.SizeVarint(zigzag.Encode32(int32(uint32(v))))
	case table.Fixed32, table.Float32:
		return 4
	case table.Fixed64, table.Float64:
		return 8
	default:
		return 0
	}
}

func appendScalarValue(buf []byte, kind table.Kind, v uint64) []byte {
	switch kind {
	case table.Varint64, table.Varint32, table.Bool:
		return wire.AppendVarint(buf, v)
	case table.ZigZag64:
		return wire.AppendVarint(buf, zigzag.Encode64(int64(v)))
	case table.ZigZag32:
		return wire.AppendVarint(buf, zigzag.Encode32(int32(uint32(v))))
	case table.Fixed32, table.Float32:
		return wire.AppendFixed32(buf, uint32(v))
	case table.Fixed64, table.Float64:
		return wire.AppendFixed64(buf, v)
	default:
		return buf
	}
}
