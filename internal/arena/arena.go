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

// Package arena provides a bump allocator for the byte payloads and
// pointer-bearing records owned by a parsed message tree.
//
// # Design
//
// An Arena is an ordered collection of blocks drawn from a backing
// allocator. Raw byte payloads (string/bytes field backing storage) are
// bump-allocated out of those blocks directly: []byte contains no pointers,
// so a block is just reused Go memory and there is nothing for the garbage
// collector to trace through it. Pointer-bearing values (records, growable
// typed slices) are minted with ordinary Go allocation but routed through
// the Arena so that every allocation an arena has made is reachable from
// one place and can be dropped in one shot on Free.
//
// This is a deliberately safe re-rendering of a bump-pointer arena: no
// manual memory reuse, no raw pointer arithmetic. Go's tracing garbage
// collector already reclaims unreferenced memory promptly, which is
// strictly better than the retain-until-arena-drop behavior a systems
// language needs; Free exists to drop every live reference at once so the
// collector can reclaim the whole tree, not to hand memory back to an
// allocator.
package arena

// defaultBlockSize is the size of the first block an Arena allocates.
const defaultBlockSize = 4 * 1024

// maxBlockSize caps the geometric growth of block sizes. An allocation
// larger than this always gets its own dedicated block.
const maxBlockSize = 1 << 20

// significantSpace is the free-space threshold for an allocation that does
// not fit in the current block. With at least this much free, AllocBytes
// gives the allocation a dedicated block and keeps the current block's
// tail for later allocations; with less, it abandons the tail and starts a
// new current block.
const significantSpace = 512

// Arena is a bump allocator for byte payloads, plus a tracking root for
// every record and growable container it has minted.
//
// A zero Arena is empty and ready to use. Arenas are not safe for
// concurrent use: distinct arenas are independent and may be driven on
// different threads, but a single Arena must not be shared across threads.
type Arena struct {
	blocks    [][]byte // fully-used or retired blocks, kept alive for Free's sake
	cur       []byte   // current block
	off       int       // next free offset within cur
	blockSize int       // size of the next block to allocate
	kept      []any     // pointer-bearing values minted via Keep, kept reachable until Free
	allocated int64      // total bytes ever handed out, for diagnostics
}

// New returns an empty arena. initialBlock, if positive, overrides the
// default first-block size.
func New(initialBlock int) *Arena {
	bs := defaultBlockSize
	if initialBlock > 0 {
		bs = initialBlock
	}
	return &Arena{blockSize: bs}
}

// AllocBytes bump-allocates n zeroed, pointer-free bytes.
//
// The returned slice is only valid for the lifetime of the Arena: it must
// not be referenced after Free.
func (a *Arena) AllocBytes(n int) []byte {
	if n == 0 {
		return nil
	}
	if a.off+n > len(a.cur) {
		if b := a.allocDedicated(n); b != nil {
			return b
		}
		a.grow(n)
	}
	p := a.cur[a.off : a.off+n : a.off+n]
	a.off += n
	a.allocated += int64(n)
	return p
}

// allocDedicated handles the case where the current block has significant
// free space left but not enough for n: rather than retire that space by
// calling grow, it gives n a block entirely its own and leaves a.cur/a.off
// untouched, so the current block's tail stays available for whatever
// smaller allocation comes next. Returns nil when the current block's
// remaining space isn't worth preserving, in which case the caller should
// fall back to grow.
func (a *Arena) allocDedicated(n int) []byte {
	if len(a.cur)-a.off < significantSpace {
		return nil
	}
	b := make([]byte, n)
	a.blocks = append(a.blocks, b)
	a.allocated += int64(n)
	return b
}

// CopyBytes bump-allocates a copy of src.
func (a *Arena) CopyBytes(src []byte) []byte {
	if len(src) == 0 {
		return nil
	}
	dst := a.AllocBytes(len(src))
	copy(dst, src)
	return dst
}

// grow retires the current block (it has no significant space worth
// keeping around, or allocDedicated would have handled it) and replaces it
// with a fresh one sized for at least need.
func (a *Arena) grow(need int) {
	a.blocks = append(a.blocks, a.cur)
	size := a.blockSize
	if need > size {
		size = need
	}
	a.cur = make([]byte, size)
	a.off = 0

	if a.blockSize < maxBlockSize {
		a.blockSize *= 2
		if a.blockSize > maxBlockSize {
			a.blockSize = maxBlockSize
		}
	}
}

// Keep mints a pointer-bearing value of type T on the arena, i.e. it is
// allocated with ordinary Go allocation but kept reachable from the arena
// until Free so that the whole parsed tree can be dropped as a unit.
func Keep[T any](a *Arena, value T) *T {
	p := new(T)
	*p = value
	a.kept = append(a.kept, p)
	return p
}

// BytesAllocated reports the total number of raw bytes this arena has
// handed out via AllocBytes/CopyBytes, for diagnostics and tests.
func (a *Arena) BytesAllocated() int64 {
	return a.allocated
}

// Free drops every reference this arena holds, in one pass, with no
// per-node teardown walk: the garbage collector reclaims the rest.
//
// Any record, container, or byte slice obtained from this arena must not be
// used after Free.
func (a *Arena) Free() {
	a.blocks = nil
	a.cur = nil
	a.off = 0
	a.kept = nil
	a.allocated = 0
}
