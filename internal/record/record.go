// Package record implements the in-memory representation of a single
// message instance: a has-bits block plus per-kind typed field slots,
// described in §3.1-§3.3.
//
// A Record never stores a raw byte offset into an untyped blob the way the
// original C-layout design does; each field's table.FieldEntry.Slot()
// indexes into whichever of the typed arrays below matches its
// table.Kind (scalar, bytes, sub-message, or one of the three repeated
// flavors). This is the adaptation DESIGN.md calls out: Go's garbage
// collector needs to know which words in a value are pointers, so a
// message instance can't be a single reinterpret-cast byte blob the way it
// can in a systems language: splitting storage by shape is what keeps the
// design memory-safe without giving up the compact (has-bit, slot) packing
// the table format is built around.
package record

import (
	"github.com/gerben-stavenga/rust-protobuf/internal/arena"
	"github.com/gerben-stavenga/rust-protobuf/internal/containers"
	"github.com/gerben-stavenga/rust-protobuf/internal/table"
)

// Record is one message instance.
type Record struct {
	Type *table.Type

	HasBits []uint32

	// Scalars holds singular scalar/enum field values, widened to
	// uint64 (floats via their IEEE-754 bit pattern). See
	// internal/wire's Float32FromBits/Float64FromBits.
	Scalars []uint64

	// Bytes holds singular bytes/string field values.
	Bytes []containers.Bytes

	// Subs holds singular sub-message/group pointers. A nil entry
	// encodes absence (§3.1's null-pointer presence); there is no
	// has-bit for these slots.
	Subs []*Record

	// RepScalars, RepBytes, and RepSubs hold repeated fields, split by
	// element shape for the same reason Scalars/Bytes/Subs are split.
	// Absence is the empty run (§3.1); there is no has-bit.
	RepScalars []containers.Slice[uint64]
	RepBytes   []containers.Slice[containers.Bytes]
	RepSubs    []containers.Slice[*Record]
}

// New allocates a zeroed Record for typ, minted on a.
func New(a *arena.Arena, typ *table.Type) *Record {
	r := &Record{
		Type:       typ,
		HasBits:    make([]uint32, typ.NumHasWords),
		Scalars:    make([]uint64, typ.NumScalarSlots),
		Bytes:      make([]containers.Bytes, typ.NumBytesSlots),
		Subs:       make([]*Record, typ.NumSubSlots),
		RepScalars: make([]containers.Slice[uint64], typ.NumRepScalars),
		RepBytes:   make([]containers.Slice[containers.Bytes], typ.NumRepBytes),
		RepSubs:    make([]containers.Slice[*Record], typ.NumRepSubs),
	}
	return arena.Keep(a, *r)
}

// HasBit reports whether has-bit index i is set.
func (r *Record) HasBit(i int) bool {
	return r.HasBits[i/32]&(1<<(uint(i)%32)) != 0
}

// SetHasBit sets has-bit index i.
func (r *Record) SetHasBit(i int) {
	r.HasBits[i/32] |= 1 << (uint(i) % 32)
}

// ClearHasBit clears has-bit index i. Only for callers mutating a
// record directly; decode merge semantics never clear a
// has-bit once set (§4.3).
func (r *Record) ClearHasBit(i int) {
	r.HasBits[i/32] &^= 1 << (uint(i) % 32)
}

// SetScalar stores v at slot and sets hasBit.
func (r *Record) SetScalar(slot, hasBit int, v uint64) {
	r.Scalars[slot] = v
	r.SetHasBit(hasBit)
}

// SetBytes copies src into slot's container (allocated on a) and sets
// hasBit. Per §4.3, this is last-value-wins: any previously stored value is
// overwritten outright, not merged with.
func (r *Record) SetBytes(a *arena.Arena, slot, hasBit int, src []byte) {
	r.Bytes[slot].Set(a, src)
	r.SetHasBit(hasBit)
}

// AppendBytesPartial extends an in-progress bytes/string value at slot with
// more bytes that just arrived, without touching the has-bit (the has-bit
// was already set when the field's value started). Used by the push-mode
// decoder when a bytes/string payload spans a chunk boundary (§4.6).
func (r *Record) AppendBytesPartial(a *arena.Arena, slot int, src []byte) {
	r.Bytes[slot].Append(a, src)
}

// SubMessage returns the existing child record at slot, minting one on a
// and storing it if the slot is currently nil (null-pointer presence,
// §3.1). Used for singular message/group fields, where decode merges
// field-wise into any existing child (§4.3).
func (r *Record) SubMessage(a *arena.Arena, slot int, childType *table.Type) *Record {
	if r.Subs[slot] == nil {
		r.Subs[slot] = New(a, childType)
	}
	return r.Subs[slot]
}

// AppendSubMessage mints a fresh child record on a, appends it to the
// repeated sub-message run at slot, and returns it. Repeated sub-messages
// never merge into a prior element (§4.3: "repeated fields append").
func (r *Record) AppendSubMessage(a *arena.Arena, slot int, childType *table.Type) *Record {
	child := New(a, childType)
	r.RepSubs[slot] = r.RepSubs[slot].Append(child)
	return child
}

// AppendScalar appends v to the repeated scalar run at slot.
func (r *Record) AppendScalar(slot int, v uint64) {
	r.RepScalars[slot] = r.RepScalars[slot].Append(v)
}

// AppendBytes copies src into a fresh element of the repeated bytes/string
// run at slot.
func (r *Record) AppendBytes(a *arena.Arena, slot int, src []byte) {
	var b containers.Bytes
	b.Set(a, src)
	r.RepBytes[slot] = r.RepBytes[slot].Append(b)
}

// AppendBytesToLast extends the last element of the repeated bytes/string
// run at slot, for a value that arrived split across a chunk boundary.
func (r *Record) AppendBytesToLast(a *arena.Arena, slot int, src []byte) {
	raw := r.RepBytes[slot].Raw()
	raw[len(raw)-1].Append(a, src)
}
