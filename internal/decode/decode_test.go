package decode_test

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/gerben-stavenga/rust-protobuf/internal/arena"
	"github.com/gerben-stavenga/rust-protobuf/internal/decode"
	"github.com/gerben-stavenga/rust-protobuf/internal/errs"
	"github.com/gerben-stavenga/rust-protobuf/internal/record"
	"github.com/gerben-stavenga/rust-protobuf/internal/table"
)

// childType: field 1 is a string.
func childType() *table.Type {
	ft := make([]table.FieldSlot, 2)
	ft[1] = table.FieldSlot{Kind: table.String, Entry: table.MakeFieldEntry(0, 0)}
	return &table.Type{
		Name:          "Child",
		FieldTable:    ft,
		NumHasWords:   1,
		NumBytesSlots: 1,
	}
}

// rootType: field 1 varint64, field 2 repeated packable int32, field 3
// singular message (Child).
func rootType(child *table.Type) *table.Type {
	ft := make([]table.FieldSlot, 4)
	ft[1] = table.FieldSlot{Kind: table.Varint64, Entry: table.MakeFieldEntry(0, 0)}
	ft[2] = table.FieldSlot{Kind: table.RepeatedVarint32, Entry: table.MakeFieldEntry(0, 0)}
	ft[3] = table.FieldSlot{Kind: table.Message, Entry: table.MakeFieldEntry(0, 0), Aux: 0}
	return &table.Type{
		Name:           "Root",
		FieldTable:     ft,
		NumHasWords:    1,
		NumScalarSlots: 1,
		NumRepScalars:  1,
		NumSubSlots:    1,
		Aux:            []table.AuxEntry{{Slot: 0, Child: child}},
	}
}

func tag(num int, typ protowire.Type) []byte {
	return protowire.AppendTag(nil, protowire.Number(num), typ)
}

func newRoot(t *testing.T) (*arena.Arena, *record.Record, *table.Type) {
	typ := rootType(childType())
	a := arena.New(256)
	return a, record.New(a, typ), typ
}

func TestDecodeSingleVarint(t *testing.T) {
	t.Parallel()

	a, root, typ := newRoot(t)
	d := decode.New(a, root, typ)

	var buf []byte
	buf = append(buf, tag(1, protowire.VarintType)...)
	buf = protowire.AppendVarint(buf, 150)

	prog, err := d.Push(buf)
	require.NoError(t, err)
	assert.False(t, prog.Done)
	require.NoError(t, d.Finish())

	assert.True(t, root.HasBit(0))
	assert.EqualValues(t, 150, root.Scalars[0])
}

func TestDecodePackedRepeated(t *testing.T) {
	t.Parallel()

	a, root, typ := newRoot(t)
	d := decode.New(a, root, typ)

	var payload []byte
	payload = protowire.AppendVarint(payload, 1)
	payload = protowire.AppendVarint(payload, 2)
	payload = protowire.AppendVarint(payload, 3)

	var buf []byte
	buf = append(buf, tag(2, protowire.BytesType)...)
	buf = protowire.AppendVarint(buf, uint64(len(payload)))
	buf = append(buf, payload...)

	_, err := d.Push(buf)
	require.NoError(t, err)
	require.NoError(t, d.Finish())

	got := root.RepScalars[0].Raw()
	require.Len(t, got, 3)
	assert.EqualValues(t, []uint64{1, 2, 3}, got)
}

func TestDecodeUnpackedRepeatedAppends(t *testing.T) {
	t.Parallel()

	a, root, typ := newRoot(t)
	d := decode.New(a, root, typ)

	var buf []byte
	buf = append(buf, tag(2, protowire.VarintType)...)
	buf = protowire.AppendVarint(buf, 7)
	buf = append(buf, tag(2, protowire.VarintType)...)
	buf = protowire.AppendVarint(buf, 8)

	_, err := d.Push(buf)
	require.NoError(t, err)
	require.NoError(t, d.Finish())

	assert.EqualValues(t, []uint64{7, 8}, root.RepScalars[0].Raw())
}

func TestDecodeNestedMessage(t *testing.T) {
	t.Parallel()

	a, root, typ := newRoot(t)
	d := decode.New(a, root, typ)

	var inner []byte
	inner = append(inner, tag(1, protowire.BytesType)...)
	inner = protowire.AppendVarint(inner, uint64(len("hi")))
	inner = append(inner, "hi"...)

	var buf []byte
	buf = append(buf, tag(3, protowire.BytesType)...)
	buf = protowire.AppendVarint(buf, uint64(len(inner)))
	buf = append(buf, inner...)

	_, err := d.Push(buf)
	require.NoError(t, err)
	require.NoError(t, d.Finish())

	require.NotNil(t, root.Subs[0])
	child := root.Subs[0]
	assert.True(t, child.HasBit(0))
	assert.Equal(t, "hi", string(child.Bytes[0].Bytes()))
}

func TestDecodeUnknownFieldSkipped(t *testing.T) {
	t.Parallel()

	a, root, typ := newRoot(t)
	d := decode.New(a, root, typ)

	var buf []byte
	buf = append(buf, tag(9, protowire.VarintType)...)
	buf = protowire.AppendVarint(buf, 12345)
	buf = append(buf, tag(1, protowire.VarintType)...)
	buf = protowire.AppendVarint(buf, 42)

	_, err := d.Push(buf)
	require.NoError(t, err)
	require.NoError(t, d.Finish())

	assert.True(t, root.HasBit(0))
	assert.EqualValues(t, 42, root.Scalars[0])
}

func TestDecodeUnknownGroupSkipped(t *testing.T) {
	t.Parallel()

	a, root, typ := newRoot(t)
	d := decode.New(a, root, typ)

	var buf []byte
	buf = append(buf, tag(9, protowire.StartGroupType)...)
	buf = append(buf, tag(1, protowire.VarintType)...)
	buf = protowire.AppendVarint(buf, 999)
	buf = append(buf, tag(9, protowire.EndGroupType)...)
	buf = append(buf, tag(1, protowire.VarintType)...)
	buf = protowire.AppendVarint(buf, 5)

	_, err := d.Push(buf)
	require.NoError(t, err)
	require.NoError(t, d.Finish())

	assert.EqualValues(t, 5, root.Scalars[0])
}

func TestDecodeMergeLastScalarWins(t *testing.T) {
	t.Parallel()

	a, root, typ := newRoot(t)
	d := decode.New(a, root, typ)

	var buf []byte
	buf = append(buf, tag(1, protowire.VarintType)...)
	buf = protowire.AppendVarint(buf, 1)
	buf = append(buf, tag(1, protowire.VarintType)...)
	buf = protowire.AppendVarint(buf, 2)

	_, err := d.Push(buf)
	require.NoError(t, err)
	require.NoError(t, d.Finish())

	assert.EqualValues(t, 2, root.Scalars[0])
}

// TestDecodeChunkedAcrossBoundary pushes the same message one byte at a
// time and checks every intermediate Push reports NeedMore (Done == false)
// until the final byte, and that the fully-chunked result holds the same
// values a single-shot decode of these bytes yields.
func TestDecodeChunkedAcrossBoundary(t *testing.T) {
	t.Parallel()

	var inner []byte
	inner = append(inner, tag(1, protowire.BytesType)...)
	inner = protowire.AppendVarint(inner, uint64(len("chunked")))
	inner = append(inner, "chunked"...)

	var buf []byte
	buf = append(buf, tag(1, protowire.VarintType)...)
	buf = protowire.AppendVarint(buf, 150)
	buf = append(buf, tag(3, protowire.BytesType)...)
	buf = protowire.AppendVarint(buf, uint64(len(inner)))
	buf = append(buf, inner...)

	a, root, typ := newRoot(t)
	d := decode.New(a, root, typ)

	for i := 0; i < len(buf)-1; i++ {
		prog, err := d.Push(buf[i : i+1])
		require.NoError(t, err)
		assert.False(t, prog.Done, "should not be done before the final byte (index %d)", i)
	}
	_, err := d.Push(buf[len(buf)-1:])
	require.NoError(t, err)
	require.NoError(t, d.Finish())

	assert.EqualValues(t, 150, root.Scalars[0])
	require.NotNil(t, root.Subs[0])
	assert.Equal(t, "chunked", string(root.Subs[0].Bytes[0].Bytes()))
}

func TestFinishTruncatedOnIncompleteMessage(t *testing.T) {
	t.Parallel()

	a, root, typ := newRoot(t)
	d := decode.New(a, root, typ)

	var buf []byte
	buf = append(buf, tag(3, protowire.BytesType)...)
	buf = protowire.AppendVarint(buf, 10) // claims 10 bytes, supplies none

	_, err := d.Push(buf)
	require.NoError(t, err)

	err = d.Finish()
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestDecodeMalformedWireTypeMismatch(t *testing.T) {
	t.Parallel()

	a, root, typ := newRoot(t)
	d := decode.New(a, root, typ)

	// Field 1 is declared Varint64 but sent as Fixed32.
	var buf []byte
	buf = append(buf, tag(1, protowire.Fixed32Type)...)
	buf = protowire.AppendFixed32(buf, 7)

	_, err := d.Push(buf)
	require.Error(t, err)

	var decErr *errs.Error
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, errs.Malformed, decErr.Kind)
}

func TestDecodeInvalidUTF8StringIsMalformed(t *testing.T) {
	t.Parallel()

	a, root, typ := newRoot(t)
	d := decode.New(a, root, typ)

	inner := append([]byte{}, tag(1, protowire.BytesType)...)
	inner = protowire.AppendVarint(inner, 1)
	inner = append(inner, 0xff) // not valid UTF-8

	var buf []byte
	buf = append(buf, tag(3, protowire.BytesType)...)
	buf = protowire.AppendVarint(buf, uint64(len(inner)))
	buf = append(buf, inner...)

	_, err := d.Push(buf)
	require.Error(t, err)

	var decErr *errs.Error
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, errs.Malformed, decErr.Kind)
}

func TestDecodeInvalidUTF8StringAcrossChunksIsMalformed(t *testing.T) {
	t.Parallel()

	a, root, typ := newRoot(t)
	d := decode.New(a, root, typ)

	var inner []byte
	inner = append(inner, tag(1, protowire.BytesType)...)
	inner = protowire.AppendVarint(inner, 2)
	inner = append(inner, 0xc3, 0x28) // two bytes, not a valid UTF-8 sequence

	var buf []byte
	buf = append(buf, tag(3, protowire.BytesType)...)
	buf = protowire.AppendVarint(buf, uint64(len(inner)))
	buf = append(buf, inner...)

	var err error
	for i := 0; i < len(buf) && err == nil; i++ {
		_, err = d.Push(buf[i : i+1])
	}
	require.Error(t, err)

	var decErr *errs.Error
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, errs.Malformed, decErr.Kind)
}

func TestDecodeDepthLimitExceeded(t *testing.T) {
	t.Parallel()

	// A message type that nests itself, so an attacker can drive depth
	// arbitrarily high with a short, deeply-nested input.
	self := &table.Type{Name: "Self"}
	ft := make([]table.FieldSlot, 2)
	ft[1] = table.FieldSlot{Kind: table.Message, Entry: table.MakeFieldEntry(0, 0), Aux: 0}
	self.FieldTable = ft
	self.NumSubSlots = 1
	self.Aux = []table.AuxEntry{{Slot: 0, Child: self}}
	self.NumHasWords = 1

	a := arena.New(1024)
	root := record.New(a, self)
	d := decode.New(a, root, self)
	d.SetMaxDepth(4)

	// Build ten levels of nesting from the inside out.
	var body []byte
	for i := 0; i < 10; i++ {
		var frame []byte
		frame = append(frame, tag(1, protowire.BytesType)...)
		frame = protowire.AppendVarint(frame, uint64(len(body)))
		frame = append(frame, body...)
		body = frame
	}

	_, err := d.Push(body)
	require.Error(t, err)

	var decErr *errs.Error
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, errs.LimitExceeded, decErr.Kind)
}
