// Package table defines the compact, statically-built dispatch tables that
// drive the shared decoder and encoder: no message type has its own
// generated code, only its own Type value built from these pieces.
package table

import "google.golang.org/protobuf/encoding/protowire"

// Kind identifies how a field's value is represented on the wire and in a
// Record. It plays the role of both "wire kind" (§3.5/§3.6 of the design)
// and "which typed slot array a field's Slot indexes into" (see
// internal/record), since in a garbage-collected language the two can't be
// collapsed into a single untyped byte offset the way a C-style record
// layout would.
type Kind uint8

const (
	Unknown Kind = iota

	// Singular scalar kinds. Stored widened to uint64 in Record.Scalars.
	Varint64
	Varint32
	ZigZag64
	ZigZag32
	Bool
	Fixed32
	Fixed64
	Float32
	Float64

	// Singular length-delimited kinds. Stored in Record.Bytes.
	Bytes
	String

	// Singular sub-message/group. Stored as a *Record pointer in Record.Subs.
	Message
	Group

	// Repeated scalar kinds (packable). Stored in Record.RepScalars.
	RepeatedVarint64
	RepeatedVarint32
	RepeatedZigZag64
	RepeatedZigZag32
	RepeatedBool
	RepeatedFixed32
	RepeatedFixed64
	RepeatedFloat32
	RepeatedFloat64

	// Repeated length-delimited. Stored in Record.RepBytes.
	RepeatedBytes
	RepeatedString

	// Repeated sub-message/group. Stored in Record.RepSubs.
	RepeatedMessage
	RepeatedGroup
)

// IsRepeated reports whether k is one of the Repeated* kinds.
func (k Kind) IsRepeated() bool {
	return k >= RepeatedVarint64
}

// IsPackable reports whether k's repeated scalar values may be packed into
// a single length-delimited run.
func (k Kind) IsPackable() bool {
	return k >= RepeatedVarint64 && k <= RepeatedFloat64
}

// IsSubMessage reports whether k stores its value as a *Record (message or
// group, singular or repeated).
func (k Kind) IsSubMessage() bool {
	switch k {
	case Message, Group, RepeatedMessage, RepeatedGroup:
		return true
	}
	return false
}

// HasHasBit reports whether k is presence-tracked via a has-bit, as opposed
// to null-pointer presence (sub-messages) or non-empty-run presence
// (repeated fields).
func (k Kind) HasHasBit() bool {
	return k != Unknown && !k.IsSubMessage() && !k.IsRepeated()
}

// WireType returns the wire type a correctly-encoded field of kind k must
// carry, for validating a received tag against the declared kind.
func (k Kind) WireType() protowire.Type {
	switch k {
	case Varint64, Varint32, ZigZag64, ZigZag32, Bool,
		RepeatedVarint64, RepeatedVarint32, RepeatedZigZag64, RepeatedZigZag32, RepeatedBool:
		return protowire.VarintType
	case Fixed32, Float32, RepeatedFixed32, RepeatedFloat32:
		return protowire.Fixed32Type
	case Fixed64, Float64, RepeatedFixed64, RepeatedFloat64:
		return protowire.Fixed64Type
	case Bytes, String, Message, RepeatedBytes, RepeatedString, RepeatedMessage:
		return protowire.BytesType
	case Group, RepeatedGroup:
		return protowire.StartGroupType
	}
	return protowire.VarintType
}

const (
	// MaxSlot is the largest slot index a FieldEntry can address: low 10
	// bits of the packed 16-bit entry, per §3.3's packing requirement.
	MaxSlot = 1<<10 - 1
	// MaxHasBit is the largest has-bit index a FieldEntry can address:
	// high 6 bits of the packed 16-bit entry.
	MaxHasBit = 1<<6 - 1
	// MaxFieldNumber is the largest field number the wire-tag packing
	// supports within a 2-byte tag, per §3.3.
	MaxFieldNumber = 2047
	// MaxHasBits is the largest number of presence-bearing fields a
	// single message may declare, per §3.3 (K ≤ 64).
	MaxHasBits = 64
	// MaxRecordSlots bounds each per-kind slot array. The original design
	// bounds record *byte size* to 1024; since this layout uses typed
	// per-kind slot arrays rather than a raw byte blob (see DESIGN.md),
	// the analogous bound is 1024 slots per array.
	MaxRecordSlots = 1024
)

// FieldEntry packs (has-bit index, slot index) into 16 bits: the low 10
// bits are the slot index (≤ 1023), the high 6 bits are the has-bit index
// (≤ 63). Sub-message and repeated fields have no has-bit; their entries
// store 0 in the high bits and the slot index is still read from the low
// bits.
type FieldEntry uint16

// MakeFieldEntry packs a (has-bit, slot) pair. slot must fit in 10 bits and
// hasBit must fit in 6 bits.
func MakeFieldEntry(hasBit, slot int) FieldEntry {
	return FieldEntry(uint16(hasBit&MaxHasBit)<<10 | uint16(slot&MaxSlot))
}

// Slot returns the packed slot index.
func (e FieldEntry) Slot() int { return int(e & MaxSlot) }

// HasBit returns the packed has-bit index.
func (e FieldEntry) HasBit() int { return int(e >> 10) }

// AuxEntry holds per-sub-message-field information that doesn't fit in a
// FieldEntry: the slot to store into, and a pointer to the child message's
// Type. Aux entries are the only place a decoding/encoding table refers to
// another table, which is what allows cyclic schemas (a message containing
// itself transitively) to be represented as statically-initialized,
// pointer-linked constants (§9).
type AuxEntry struct {
	Slot  int
	Child *Type
}

// FieldSlot is the per-field-number entry of a decoding table: which kind
// of value is expected, and where to put it.
type FieldSlot struct {
	Kind  Kind
	Entry FieldEntry
	// Aux is the index into Type.Aux for sub-message fields; unused
	// (zero) otherwise.
	Aux int
}

// EncodeEntry is one entry of the encoding table's primary array, one per
// declared field in declaration order (§3.6). Every entry carries its Tag;
// sub-message/group entries also carry Aux (the child table pointer lives
// there).
type EncodeEntry struct {
	Kind  Kind
	Tag   uint64 // precomputed raw tag value (see wire.EncodeTag)
	Entry FieldEntry
	Aux   int // index into Type.Aux, for sub-message/group kinds
}

// Type is the combined decoding+encoding table for one message type. A
// schema compiles to one Type per message, with Aux entries that may refer
// to other Types (including itself, for recursive schemas) by pointer.
//
// Decoding indexes FieldTable by field number (§3.5): "jump from an
// arbitrary received field number to its slot". Encoding iterates
// EncodeEntries in declaration order (§3.6): "iterate all set fields in
// stable order". This asymmetry is deliberate, not an oversight.
type Type struct {
	Name string

	// ID is an opaque identifier minted by the generator for this Type,
	// stable for the lifetime of the process but not across compiles. It
	// exists so a schema containing structurally-identical anonymous
	// messages (map entries being the common case: every map field gets
	// its own synthetic "FooEntry" message with the same two-field
	// shape) can still be told apart in diagnostics, without the
	// generator having to invent a naming scheme for them.
	ID string

	// FieldTable is indexed directly by field number; index 0 and any
	// number beyond the largest declared field are absent (zero Kind).
	FieldTable []FieldSlot

	// Mask and KindArray implement the §3.5 fast-path tag dispatch. Mask is
	// sized to cover every bit any declared field's canonical tag can set,
	// so for a tag that matches what the schema declares,
	// KindArray[tag&Mask] yields that field's Kind with no possibility of
	// colliding with a different declared field. The decoder still looks
	// the field number up in FieldTable to get the slot/has-bit it needs
	// to write, but validates the wire type with a single indexed
	// KindArray read instead of a Kind.WireType() switch; a miss (the
	// indexed Kind disagrees with FieldTable's) means either an
	// undeclared field or a wire type that doesn't match the schema, and
	// the decoder falls back to the slower, always-correct check.
	Mask      uint32
	KindArray []Kind

	// EncodeEntries drives the encoder, in declaration order.
	EncodeEntries []EncodeEntry

	// Aux is the shared sub-message table referenced by both FieldTable
	// (via FieldSlot.Aux) and EncodeEntries (via EncodeEntry.Aux).
	Aux []AuxEntry

	// NumHasWords is ceil(K/32), the number of has-bits words a Record of
	// this type carries.
	NumHasWords int

	// Slot counts per category, used by the arena/record allocator to
	// size a fresh Record.
	NumScalarSlots int
	NumBytesSlots  int
	NumSubSlots    int
	NumRepScalars  int
	NumRepBytes    int
	NumRepSubs     int
}

// Lookup returns the FieldSlot for fieldNumber, or the zero FieldSlot
// (Kind == Unknown) if it is out of the declared range.
func (t *Type) Lookup(fieldNumber uint64) FieldSlot {
	if fieldNumber == 0 || fieldNumber >= uint64(len(t.FieldTable)) {
		return FieldSlot{}
	}
	return t.FieldTable[fieldNumber]
}

// FastKind is the §3.5 fast-path lookup: it takes a received tag's raw
// bits and returns the Kind the schema declares for that exact tag, or
// Unknown if Mask can't address it. A mismatch against the Kind a full
// FieldTable lookup would report means either an unexpected wire type or
// an out-of-schema field; either way the decoder must fall back to full
// validation.
func (t *Type) FastKind(rawTagBits uint32) Kind {
	idx := rawTagBits & t.Mask
	if int(idx) >= len(t.KindArray) {
		return Unknown
	}
	return t.KindArray[idx]
}
