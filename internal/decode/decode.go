// Package decode implements the shared push-mode decode loop (§4.4/§4.6):
// one function that walks any table.Type's FieldTable and writes into any
// record.Record, driven by a frame stack instead of per-message-type
// generated code.
//
// Unlike the byte-counting "remaining" frames of the design this is
// grounded on, every frame here tracks an absolute stream position. A
// child frame's end position never needs to be translated relative to its
// parent's, and finishing a frame never requires walking back up the stack
// to debit ancestors: it is simply "pop until the current position is
// inside the new top frame's bound, or there is no bound." That is the one
// place this port deliberately diverges from the arithmetic in
// original_source/src/decoding.rs, because Go's garbage collector already
// does the job the original's SLOP_SIZE patch buffer exists to avoid: this
// decoder copies a small pending tail across Push calls instead of
// reinterpreting raw pointers into caller-owned memory.
package decode

import (
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/gerben-stavenga/rust-protobuf/internal/arena"
	"github.com/gerben-stavenga/rust-protobuf/internal/errs"
	"github.com/gerben-stavenga/rust-protobuf/internal/record"
	"github.com/gerben-stavenga/rust-protobuf/internal/table"
	"github.com/gerben-stavenga/rust-protobuf/internal/wire"
	"github.com/gerben-stavenga/rust-protobuf/internal/zigzag"
)

// DefaultMaxDepth bounds nested message/group frame depth (§7's
// LimitExceeded), guarding against a maliciously deep stream.
const DefaultMaxDepth = 10_000

// Progress reports how much of a Push call's chunk was consumed. Push
// never sets Done: only Finish establishes that the top-level message is
// complete.
type Progress struct {
	Consumed int
	Done     bool
}

type curKind uint8

const (
	curMessage curKind = iota
	curGroup
	curPacked
	curBytes
)

// curFrame is the decoder's currently-active frame. Ancestor frames are
// saved copies of curFrame, pushed onto Decoder.stack; restoring one is
// just copying it back, since every field here is either a value or an
// absolute position, never anything relative to a frame above it.
type curFrame struct {
	kind curKind

	// curMessage/curGroup/curBytes(modes 1 and 2)/curPacked.
	rec *record.Record
	typ *table.Type // curMessage/curGroup only

	groupField uint64 // curGroup: field number its end-group tag must match

	elemKind table.Kind // curPacked: element kind to decode

	slot      int  // curPacked: RepScalars slot; curBytes: Bytes/RepBytes slot
	bytesMode int  // curBytes: 0 discard, 1 singular Bytes, 2 last element of RepBytes
	isString  bool // curBytes: field is declared String/RepeatedString, validate UTF-8 on close

	// endPos is the absolute stream position at which this frame ends.
	// -1 means unbounded: the top-level message, or any group (groups end
	// on their matching end-group tag, not a length prefix).
	endPos int64
}

// Decoder holds all state for one resumable top-level message decode.
type Decoder struct {
	a   *arena.Arena
	cur curFrame
	// depth is len(stack); stack never includes the top-level frame, only
	// its descendants, so "decode finished" is "depth 0 and cur is the
	// original top-level frame" (see Finish).
	stack []curFrame

	pending     []byte
	pendingBase int64

	err      error
	maxDepth int
}

// New returns a Decoder that will populate root (which must already exist,
// typically freshly minted via record.New) with typ's schema, allocating
// any sub-messages and repeated-field growth on a.
func New(a *arena.Arena, root *record.Record, typ *table.Type) *Decoder {
	return &Decoder{
		a:        a,
		cur:      curFrame{kind: curMessage, rec: root, typ: typ, endPos: -1},
		maxDepth: DefaultMaxDepth,
	}
}

// SetMaxDepth overrides DefaultMaxDepth.
func (d *Decoder) SetMaxDepth(n int) { d.maxDepth = n }

// Push feeds the next chunk of wire bytes. It never blocks and never
// retains chunk past the call: any bytes it cannot yet interpret (a tag,
// length, or fixed-width value split across the boundary) are copied into
// a small internal buffer and prefixed to the next call's chunk.
//
// Once Push (or Finish) has returned a non-nil error, the Decoder is
// unusable; construct a new one to retry.
func (d *Decoder) Push(chunk []byte) (Progress, error) {
	if d.err != nil {
		return Progress{}, d.err
	}

	buf := append(d.pending, chunk...)
	base := d.pendingBase
	i := 0

	for i < len(buf) {
		ni, ok := d.step(buf, i, base)
		if !ok {
			break
		}
		i = ni
	}

	// A bounded frame (sub-message, packed run, bytes value) whose last
	// byte is the last byte pushed so far is closed now rather than on the
	// next Push, so Finish sees the frame stack as it really is.
	for d.err == nil && d.cur.endPos >= 0 && base+int64(i) >= d.cur.endPos {
		ni, ok := d.step(buf, i, base)
		if !ok {
			break
		}
		i = ni
	}

	d.pending = append([]byte(nil), buf[i:]...)
	d.pendingBase = base + int64(i)

	// Done is never reported by Push: the top-level frame is unbounded by
	// construction (§4.6), so "all fields seen so far are complete" is
	// indistinguishable from "the message is over" until the caller
	// itself says there is no more input, via Finish.
	return Progress{Consumed: len(chunk), Done: false}, d.err
}

// Finish signals that no more input is coming. It reports Truncated if a
// message, group, bytes value, or packed run was left incomplete.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}
	if !d.isDone() {
		d.err = errs.New(errs.Truncated, d.pendingBase)
		return d.err
	}
	return nil
}

func (d *Decoder) isDone() bool {
	return len(d.stack) == 0 && d.cur.kind == curMessage && d.cur.endPos == -1 && len(d.pending) == 0
}

func (d *Decoder) push(f curFrame) {
	d.stack = append(d.stack, d.cur)
	d.cur = f
}

// pop restores the parent frame. It reports false if there is no parent,
// which is a bug in the caller (the top-level frame's endPos is always -1,
// so its step functions must never attempt to pop it).
func (d *Decoder) pop() bool {
	if len(d.stack) == 0 {
		return false
	}
	d.cur = d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]
	return true
}

// step advances through buf starting at i by exactly one token (a field's
// tag+value, one packed element, or a run of raw bytes) and returns the
// next position. ok is false if buf doesn't yet hold a complete token (or
// an error was recorded in d.err); the returned position is then the start
// of the incomplete token, so the same bytes are reinterpreted once more
// data arrives.
func (d *Decoder) step(buf []byte, i int, base int64) (int, bool) {
	switch d.cur.kind {
	case curBytes:
		return d.stepBytes(buf, i, base)
	case curPacked:
		return d.stepPacked(buf, i, base)
	default:
		return d.stepMessage(buf, i, base)
	}
}

func (d *Decoder) stepBytes(buf []byte, i int, base int64) (int, bool) {
	pos := base + int64(i)
	remaining := d.cur.endPos - pos
	if remaining < 0 {
		remaining = 0
	}
	avail := int64(len(buf) - i)
	n := remaining
	if avail < n {
		n = avail
	}
	if n > 0 {
		d.appendBytesPartial(buf[i : i+int(n)])
		i += int(n)
	}
	if base+int64(i) >= d.cur.endPos {
		if d.cur.isString && !d.curBytesValueValid() {
			d.err = errs.New(errs.Malformed, base+int64(i))
			return i, false
		}
		if !d.pop() {
			d.err = errs.New(errs.Malformed, base+int64(i))
			return i, false
		}
	}
	return i, true
}

func (d *Decoder) appendBytesPartial(src []byte) {
	switch d.cur.bytesMode {
	case 1:
		d.cur.rec.AppendBytesPartial(d.a, d.cur.slot, src)
	case 2:
		d.cur.rec.AppendBytesToLast(d.a, d.cur.slot, src)
	}
}

// curBytesValueValid reports whether the just-completed curBytes frame's
// accumulated value is valid UTF-8 (§3.1: strings carry a UTF-8 validation
// contract at the decode boundary, bytes fields do not).
func (d *Decoder) curBytesValueValid() bool {
	switch d.cur.bytesMode {
	case 1:
		return utf8.Valid(d.cur.rec.Bytes[d.cur.slot].Bytes())
	case 2:
		raw := d.cur.rec.RepBytes[d.cur.slot].Raw()
		return utf8.Valid(raw[len(raw)-1].Bytes())
	}
	return true
}

func (d *Decoder) stepPacked(buf []byte, i int, base int64) (int, bool) {
	pos := base + int64(i)
	if pos >= d.cur.endPos {
		if !d.pop() {
			d.err = errs.New(errs.Malformed, pos)
			return i, false
		}
		return i, true
	}
	v, ni, ok := decodeScalarElement(buf, i, d.cur.elemKind)
	if !ok {
		return i, false
	}
	d.cur.rec.AppendScalar(d.cur.slot, v)
	return ni, true
}

func (d *Decoder) stepMessage(buf []byte, i int, base int64) (int, bool) {
	if d.cur.kind == curMessage && d.cur.endPos >= 0 {
		if base+int64(i) >= d.cur.endPos {
			if !d.pop() {
				d.err = errs.New(errs.Malformed, base+int64(i))
				return i, false
			}
			return i, true
		}
	}

	tokenStart := i
	tag, ni, ok := wire.ReadVarint(buf, i)
	if !ok {
		return tokenStart, false
	}
	fieldNum, wireType := wire.DecodeTag(tag)

	if wireType == protowire.EndGroupType {
		if d.cur.kind != curGroup || uint64(fieldNum) != d.cur.groupField {
			d.err = errs.Newf(errs.Malformed, base+int64(tokenStart), "unexpected end-group for field %d", fieldNum)
			return tokenStart, false
		}
		if !d.pop() {
			d.err = errs.New(errs.Malformed, base+int64(tokenStart))
			return tokenStart, false
		}
		return ni, true
	}

	if d.cur.rec == nil {
		// Inside a skipped (unknown) group: every field is unknown.
		return d.skipField(buf, ni, base, tokenStart, uint64(fieldNum), wireType)
	}

	slot := d.cur.typ.Lookup(uint64(fieldNum))
	if slot.Kind == table.Unknown {
		return d.skipField(buf, ni, base, tokenStart, uint64(fieldNum), wireType)
	}
	// Fast path: Mask covers every bit a declared tag can set, so a tag
	// that exactly matches the schema indexes straight to its own Kind
	// with no risk of colliding with a different field. A miss falls back
	// to the slower, always-correct wire-type check below.
	if d.cur.typ.FastKind(uint32(tag)) != slot.Kind && !kindMatchesWire(slot.Kind, wireType) {
		d.err = errs.Newf(errs.Malformed, base+int64(tokenStart), "field %d: wire type %d does not match declared kind", fieldNum, wireType)
		return tokenStart, false
	}
	return d.applyField(buf, ni, base, tokenStart, slot, uint64(fieldNum), wireType)
}

func kindMatchesWire(kind table.Kind, wireType protowire.Type) bool {
	if wireType == kind.WireType() {
		return true
	}
	return kind.IsPackable() && wireType == protowire.BytesType
}

// skipField consumes one unknown field's value by wire type alone (§4.4's
// "unrecognized field numbers are skipped using only their wire type").
func (d *Decoder) skipField(buf []byte, i int, base int64, tokenStart int, fieldNum uint64, wireType protowire.Type) (int, bool) {
	switch wireType {
	case protowire.VarintType:
		_, ni, ok := wire.ReadVarint(buf, i)
		if !ok {
			return tokenStart, false
		}
		return ni, true
	case protowire.Fixed64Type:
		if i+8 > len(buf) {
			return tokenStart, false
		}
		return i + 8, true
	case protowire.Fixed32Type:
		if i+4 > len(buf) {
			return tokenStart, false
		}
		return i + 4, true
	case protowire.BytesType:
		length, ni, ok := wire.ReadVarint(buf, i)
		if !ok {
			return tokenStart, false
		}
		if len(d.stack) >= d.maxDepth {
			d.err = errs.New(errs.LimitExceeded, base+int64(tokenStart))
			return tokenStart, false
		}
		d.push(curFrame{kind: curBytes, bytesMode: 0, endPos: base + int64(ni) + int64(length)})
		return ni, true
	case protowire.StartGroupType:
		if len(d.stack) >= d.maxDepth {
			d.err = errs.New(errs.LimitExceeded, base+int64(tokenStart))
			return tokenStart, false
		}
		d.push(curFrame{kind: curGroup, rec: nil, typ: nil, groupField: fieldNum, endPos: -1})
		return i, true
	default:
		d.err = errs.Newf(errs.Malformed, base+int64(tokenStart), "unknown wire type %d", wireType)
		return tokenStart, false
	}
}

// applyField decodes one known field's value into d.cur.rec per slot.Kind
// and, for sub-messages, pushes a child frame.
func (d *Decoder) applyField(buf []byte, i int, base int64, tokenStart int, slot table.FieldSlot, fieldNum uint64, wireType protowire.Type) (int, bool) {
	rec := d.cur.rec
	entry := slot.Kind

	switch {
	case entry.IsSubMessage():
		isGroup := entry == table.Group || entry == table.RepeatedGroup
		ni := i
		endPos := int64(-1)
		if !isGroup {
			length, n2, ok := wire.ReadVarint(buf, i)
			if !ok {
				return tokenStart, false
			}
			ni = n2
			endPos = base + int64(ni) + int64(length)
		}
		if len(d.stack) >= d.maxDepth {
			d.err = errs.New(errs.LimitExceeded, base+int64(tokenStart))
			return tokenStart, false
		}
		aux := d.cur.typ.Aux[slot.Aux]
		var child *record.Record
		if entry == table.Message || entry == table.Group {
			child = rec.SubMessage(d.a, slot.Entry.Slot(), aux.Child)
		} else {
			child = rec.AppendSubMessage(d.a, slot.Entry.Slot(), aux.Child)
		}
		childKind := curMessage
		if isGroup {
			childKind = curGroup
		}
		d.push(curFrame{kind: childKind, rec: child, typ: aux.Child, groupField: fieldNum, endPos: endPos})
		return ni, true

	case entry == table.Bytes || entry == table.String:
		length, ni, ok := wire.ReadVarint(buf, i)
		if !ok {
			return tokenStart, false
		}
		avail := len(buf) - ni
		if int64(avail) >= int64(length) {
			val := buf[ni : ni+int(length)]
			if entry == table.String && !utf8.Valid(val) {
				d.err = errs.New(errs.Malformed, base+int64(ni))
				return tokenStart, false
			}
			rec.SetBytes(d.a, slot.Entry.Slot(), slot.Entry.HasBit(), val)
			return ni + int(length), true
		}
		rec.SetBytes(d.a, slot.Entry.Slot(), slot.Entry.HasBit(), buf[ni:])
		d.push(curFrame{kind: curBytes, rec: rec, slot: slot.Entry.Slot(), bytesMode: 1, isString: entry == table.String, endPos: base + int64(ni) + int64(length)})
		return len(buf), true

	case entry == table.RepeatedBytes || entry == table.RepeatedString:
		length, ni, ok := wire.ReadVarint(buf, i)
		if !ok {
			return tokenStart, false
		}
		avail := len(buf) - ni
		if int64(avail) >= int64(length) {
			val := buf[ni : ni+int(length)]
			if entry == table.RepeatedString && !utf8.Valid(val) {
				d.err = errs.New(errs.Malformed, base+int64(ni))
				return tokenStart, false
			}
			rec.AppendBytes(d.a, slot.Entry.Slot(), val)
			return ni + int(length), true
		}
		rec.AppendBytes(d.a, slot.Entry.Slot(), buf[ni:])
		d.push(curFrame{kind: curBytes, rec: rec, slot: slot.Entry.Slot(), bytesMode: 2, isString: entry == table.RepeatedString, endPos: base + int64(ni) + int64(length)})
		return len(buf), true

	case entry.IsPackable() && wireType == protowire.BytesType:
		length, ni, ok := wire.ReadVarint(buf, i)
		if !ok {
			return tokenStart, false
		}
		d.push(curFrame{kind: curPacked, rec: rec, slot: slot.Entry.Slot(), elemKind: entry, endPos: base + int64(ni) + int64(length)})
		return ni, true

	case entry.IsRepeated():
		v, ni, ok := decodeScalarElement(buf, i, entry)
		if !ok {
			return tokenStart, false
		}
		rec.AppendScalar(slot.Entry.Slot(), v)
		return ni, true

	default:
		v, ni, ok := decodeScalarElement(buf, i, entry)
		if !ok {
			return tokenStart, false
		}
		rec.SetScalar(slot.Entry.Slot(), slot.Entry.HasBit(), v)
		return ni, true
	}
}

// decodeScalarElement decodes one value of a singular-or-repeated scalar
// kind starting at buf[i]. It is shared between a single field's value and
// one element of a packed run, since both read the same wire shape.
func decodeScalarElement(buf []byte, i int, kind table.Kind) (v uint64, next int, ok bool) {
	switch kind {
	case table.Varint64, table.RepeatedVarint64:
		return wire.ReadVarint(buf, i)
	case table.Varint32, table.RepeatedVarint32:
		val, ni, ok2 := wire.ReadVarint(buf, i)
		return uint64(uint32(val)), ni, ok2
	case table.ZigZag64, table.RepeatedZigZag64:
		val, ni, ok2 := wire.ReadVarint(buf, i)
		return uint64(zigzag.Decode64(val)), ni, ok2
	case table.ZigZag32, table.RepeatedZigZag32:
		val, ni, ok2 := wire.ReadVarint(buf, i)
		return uint64(uint32(zigzag.Decode32(val))), ni, ok2
	case table.Bool, table.RepeatedBool:
		val, ni, ok2 := wire.ReadVarint(buf, i)
		if val != 0 {
			val = 1
		}
		return val, ni, ok2
	case table.Fixed32, table.RepeatedFixed32, table.Float32, table.RepeatedFloat32:
		val, ni, ok2 := wire.ReadFixed32(buf, i)
		return uint64(val), ni, ok2
	case table.Fixed64, table.RepeatedFixed64, table.Float64, table.RepeatedFloat64:
		return wire.ReadFixed64(buf, i)
	default:
		return 0, i, false
	}
}
