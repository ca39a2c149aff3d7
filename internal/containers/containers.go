// Package containers implements the record-level storage shapes described
// in §3.1/§4.3: a byte/string container with static-or-arena-owned backing,
// and growable typed runs for repeated fields.
package containers

import "github.com/gerben-stavenga/rust-protobuf/internal/arena"

// Bytes holds the value of a bytes/string field: either a static slice
// (the zero value, or any generator-emitted constant) or an arena-owned
// run copied in from the wire.
type Bytes struct {
	b []byte
}

// BytesFromStatic wraps a slice the caller promises outlives the record,
// without copying it into an arena. Used for empty defaults and
// generator-emitted constants.
func BytesFromStatic(b []byte) Bytes { return Bytes{b} }

// Set copies src into a (the has-bit is the caller's responsibility, since
// Bytes itself does not know its own field's has-bit index).
func (b *Bytes) Set(a *arena.Arena, src []byte) {
	b.b = a.CopyBytes(src)
}

// Append extends the container's backing storage by copying src onto the
// end, growing via the arena. Used to stitch a bytes/string value that
// arrived split across chunk boundaries (§4.6) back together.
func (b *Bytes) Append(a *arena.Arena, src []byte) {
	if len(src) == 0 {
		return
	}
	if len(b.b) == 0 {
		b.b = a.CopyBytes(src)
		return
	}
	grown := a.AllocBytes(len(b.b) + len(src))
	copy(grown, b.b)
	copy(grown[len(b.b):], src)
	b.b = grown
}

// Bytes returns the container's current contents.
func (b Bytes) Bytes() []byte { return b.b }

// Len returns the number of bytes currently stored.
func (b Bytes) Len() int { return len(b.b) }

// Slice is a growable run of values, used for repeated scalar fields (via
// Slice[uint64], scalars widened per table.Kind), repeated bytes/string
// fields (Slice[Bytes]), and repeated sub-message pointers
// (Slice[*Record], instantiated in the record package).
//
// Growth uses Go's built-in append, which enlarges capacity
// geometrically. The backing array is ordinary Go memory, not drawn from
// an arena; an outgrown backing is dropped and becomes eligible for GC as
// soon as nothing else references it (see the note in
// internal/arena/arena.go).
type Slice[T any] struct {
	data []T
}

// Len returns the number of elements currently stored.
func (s Slice[T]) Len() int { return len(s.data) }

// Raw returns the underlying slice. Callers must not retain it past the
// next mutation of s.
func (s Slice[T]) Raw() []T { return s.data }

// At returns the element at index i.
func (s Slice[T]) At(i int) T { return s.data[i] }

// Append appends v, growing the backing slice via append if needed. A zero-value Slice grows on its first append.
func (s Slice[T]) Append(v T) Slice[T] {
	s.data = append(s.data, v)
	return s
}

// AppendSlice appends every element of vs.
func (s Slice[T]) AppendSlice(vs []T) Slice[T] {
	s.data = append(s.data, vs...)
	return s
}
