// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package arena_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gerben-stavenga/rust-protobuf/internal/arena"
)

func TestAllocBytesDistinct(t *testing.T) {
	t.Parallel()

	a := arena.New(64)
	x := a.AllocBytes(16)
	y := a.AllocBytes(16)
	require.Len(t, x, 16)
	require.Len(t, y, 16)

	x[0] = 1
	y[0] = 2
	assert.Equal(t, byte(1), x[0])
	assert.Equal(t, byte(2), y[0])
}

func TestAllocBytesSpansBlocks(t *testing.T) {
	t.Parallel()

	a := arena.New(16)
	total := 0
	for i := 0; i < 100; i++ {
		b := a.AllocBytes(8)
		require.Len(t, b, 8)
		for j := range b {
			b[j] = byte(i)
		}
		total += 8
	}
	assert.EqualValues(t, total, a.BytesAllocated())
}

func TestCopyBytesIsIndependent(t *testing.T) {
	t.Parallel()

	a := arena.New(64)
	src := []byte{1, 2, 3}
	dst := a.CopyBytes(src)
	src[0] = 9
	assert.Equal(t, byte(1), dst[0])
}

func TestKeepKeepsValueReachable(t *testing.T) {
	t.Parallel()

	a := arena.New(64)
	p := arena.Keep(a, 42)
	assert.Equal(t, 42, *p)
}

func TestAllocDedicatedKeepsSignificantTailAvailable(t *testing.T) {
	t.Parallel()

	a := arena.New(2048)
	head := a.AllocBytes(100) // off=100, 1948 bytes left in cur: >= significantSpace
	head[0] = 0xAA

	big := a.AllocBytes(2000) // doesn't fit in the 1948 left, but that's significant space
	require.Len(t, big, 2000)

	tail := a.AllocBytes(50)
	require.Len(t, tail, 50)

	// tail must have come out of cur's tail, right after head, not out of
	// a freshly retired block: the dedicated allocation above must not
	// have disturbed cur/off.
	headAddr := uintptr(unsafe.Pointer(&head[0]))
	tailAddr := uintptr(unsafe.Pointer(&tail[0]))
	assert.Equal(t, headAddr+100, tailAddr)

	tail[0] = 0xBB
	assert.Equal(t, byte(0xAA), head[0])
	assert.Equal(t, byte(0xBB), tail[0])
}

func TestFreeResetsState(t *testing.T) {
	t.Parallel()

	a := arena.New(64)
	a.AllocBytes(8)
	arena.Keep(a, "x")
	require.Positive(t, a.BytesAllocated())

	a.Free()
	assert.Zero(t, a.BytesAllocated())

	// The arena must still be usable after Free.
	b := a.AllocBytes(4)
	assert.Len(t, b, 4)
}
