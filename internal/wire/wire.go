// Package wire implements the leaf-level protobuf wire-format primitives:
// varints, fixed-width scalars, length-delimited headers, and tags.
//
// Every function here is bounds-checked and returns ok=false on truncation
// or malformed input instead of panicking; callers turn that into a
// structured error (see the root package's error.go).
package wire

import (
	"encoding/binary"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Type aliases so callers don't need to import protowire directly for the
// handful of wire-type/field-number constants they need.
type (
	Number = protowire.Number
	Type   = protowire.Type
)

const (
	VarintType     = protowire.VarintType
	Fixed32Type    = protowire.Fixed32Type
	Fixed64Type    = protowire.Fixed64Type
	BytesType      = protowire.BytesType
	StartGroupType = protowire.StartGroupType
	EndGroupType   = protowire.EndGroupType
)

// MaxVarintLen is the longest a 64-bit varint can be on the wire.
const MaxVarintLen = 10

// ReadVarint reads a varint starting at buf[i]. ok is false if the buffer
// ends before a complete varint is read, or if the varint is malformed
// (continuation bit set past the 10th byte).
func ReadVarint(buf []byte, i int) (v uint64, next int, ok bool) {
	var shift uint
	for n := 0; n < MaxVarintLen; n++ {
		if i+n >= len(buf) {
			return 0, i, false
		}
		b := buf[i+n]
		if n == MaxVarintLen-1 && b > 1 {
			// 10th byte of a varint may only contribute a single bit.
			return 0, i, false
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, i + n + 1, true
		}
		shift += 7
	}
	return 0, i, false
}

// PeekVarintLen reports how many bytes the varint starting at buf[i] would
// need, without validating it fully. Used to decide whether a chunk holds a
// complete token before committing to decode it.
func PeekVarintLen(buf []byte, i int) (n int, complete bool) {
	for n = 0; n < MaxVarintLen; n++ {
		if i+n >= len(buf) {
			return n, false
		}
		if buf[i+n] < 0x80 {
			return n + 1, true
		}
	}
	return MaxVarintLen, true
}

// ReadTag reads a tag (field number << 3 | wire type) as a varint.
func ReadTag(buf []byte, i int) (tag uint64, next int, ok bool) {
	return ReadVarint(buf, i)
}

// DecodeTag splits a raw tag value into its field number and wire type.
func DecodeTag(tag uint64) (num protowire.Number, typ protowire.Type) {
	return protowire.Number(tag >> 3), protowire.Type(tag & 7)
}

// ReadFixed32 reads a little-endian 32-bit value.
func ReadFixed32(buf []byte, i int) (v uint32, next int, ok bool) {
	if i+4 > len(buf) {
		return 0, i, false
	}
	return binary.LittleEndian.Uint32(buf[i : i+4]), i + 4, true
}

// ReadFixed64 reads a little-endian 64-bit value.
func ReadFixed64(buf []byte, i int) (v uint64, next int, ok bool) {
	if i+8 > len(buf) {
		return 0, i, false
	}
	return binary.LittleEndian.Uint64(buf[i : i+8]), i + 8, true
}

// AppendVarint appends a varint encoding of v to buf.
func AppendVarint(buf []byte, v uint64) []byte {
	return protowire.AppendVarint(buf, v)
}

// AppendTag appends the tag for (num, typ).
func AppendTag(buf []byte, num protowire.Number, typ protowire.Type) []byte {
	return protowire.AppendTag(buf, num, typ)
}

// AppendFixed32 appends a little-endian 32-bit value.
func AppendFixed32(buf []byte, v uint32) []byte {
	return protowire.AppendFixed32(buf, v)
}

// AppendFixed64 appends a little-endian 64-bit value.
func AppendFixed64(buf []byte, v uint64) []byte {
	return protowire.AppendFixed64(buf, v)
}

// SizeVarint returns the number of bytes needed to varint-encode v.
func SizeVarint(v uint64) int {
	return protowire.SizeVarint(v)
}

// SizeTag returns the number of bytes needed to encode the tag for num.
func SizeTag(num protowire.Number) int {
	return protowire.SizeTag(num)
}

// EncodeTag precomputes the raw tag value for (num, typ); it is the value
// table builders store so the encoder never recomputes it per-message.
func EncodeTag(num protowire.Number, typ protowire.Type) uint64 {
	return uint64(num)<<3 | uint64(typ)
}

// Float32FromBits and Float64FromBits reinterpret the widened uint64 scalar
// storage used by the record layout (see internal/record) back into
// IEEE-754 floats, and vice versa.
func Float32FromBits(bits uint64) float32 { return math.Float32frombits(uint32(bits)) }
func Float64FromBits(bits uint64) float64 { return math.Float64frombits(bits) }
func Float32Bits(f float32) uint64        { return uint64(math.Float32bits(f)) }
func Float64Bits(f float64) uint64        { return math.Float64bits(f) }
