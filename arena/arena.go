// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package arena implements a bump allocator with
// checkpoint/reset semantics, plus a power-of-two span
// pool used for the per-node edge lists and per-entry
// access lists described by the render-graph's data model.
//
// Arenas and the persistent state they back live for the
// render graph's lifetime; per-frame arenas are reset at
// the start of each update, which invalidates every span
// and byte slice handed out since the last reset (or since
// the matching Checkpoint).
package arena

import (
	"unsafe"

	"github.com/gviegas/rendergraph/rgerr"
)

const pkgName = "arena"

// defaultBlockSize is the minimum size of a freshly
// allocated block: coarse, infrequent growth beats chasing
// every small request with its own allocation.
const defaultBlockSize = 64 * 1024

// block is a single link in the arena's block list.
type block struct {
	buf []byte
	off int
}

func newBlock(size int) *block { return &block{buf: make([]byte, size)} }

func (b *block) remaining() int { return len(b.buf) - b.off }

// Arena is a singly-linked list of blocks. alloc bumps
// within the current block; on overflow a new block of at
// least max(blockSize, size+align) is acquired, reusing a
// block parked by ResetToCheckpoint when one is large enough.
type Arena struct {
	blockSize int
	blocks    []*block // blocks in use, in allocation order
	free      []*block // blocks parked by ResetToCheckpoint, for reuse
	curLast   int      // index of the last allocation start within blocks[len-1], for Realloc
	lastSize  int
}

// New creates an arena that grows in blocks of at least
// blockSize bytes. A non-positive blockSize selects
// defaultBlockSize.
func New(blockSize int) *Arena {
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	a := &Arena{blockSize: blockSize}
	a.blocks = append(a.blocks, newBlock(blockSize))
	return a
}

func alignUp(n, align int) int { return (n + align - 1) &^ (align - 1) }

// cur returns the current (last) block.
func (a *Arena) cur() *block { return a.blocks[len(a.blocks)-1] }

// newBlockFor acquires a block able to hold at least
// size+align bytes, preferring a parked block from the
// free list.
func (a *Arena) newBlockFor(size, align int) *block {
	need := size + align
	if need < a.blockSize {
		need = a.blockSize
	}
	for i, b := range a.free {
		if len(b.buf) >= need {
			a.free = append(a.free[:i], a.free[i+1:]...)
			b.off = 0
			return b
		}
	}
	return newBlock(need)
}

// Alloc returns size bytes aligned to align (which must be
// a power of two). The returned slice is valid until the
// arena is reset, or ResetToCheckpoint rewinds past it.
func (a *Arena) Alloc(size, align int) []byte {
	if size < 0 || align <= 0 || align&(align-1) != 0 {
		panic(rgerr.New(pkgName, rgerr.InvalidArguments, "Alloc: bad size or non-power-of-two align"))
	}
	if size == 0 {
		size = 1
	}
	b := a.cur()
	start := alignUp(b.off, align)
	if start+size > len(b.buf) {
		nb := a.newBlockFor(size, align)
		a.blocks = append(a.blocks, nb)
		b = nb
		start = alignUp(b.off, align)
	}
	b.off = start + size
	a.curLast = start
	a.lastSize = size
	return b.buf[start : start+size : start+size]
}

// AllocT allocates space for one T and returns a pointer
// to it, field-wise zeroed. T must be trivially destructible:
// the arena never calls a destructor or finalizer on
// arena-backed values, so T must not require one.
func AllocT[T any](a *Arena) *T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	align := int(unsafe.Alignof(zero))
	buf := a.Alloc(size, align)
	p := (*T)(unsafe.Pointer(&buf[0]))
	*p = zero
	return p
}

// Realloc extends the most recent allocation in place when
// the current block has room; otherwise it allocates anew
// and copies the old bytes.
func (a *Arena) Realloc(prev []byte, newSize int) []byte {
	b := a.cur()
	start := a.curLast
	// Only the most recent allocation, from the current
	// block, can be extended in place.
	if len(prev) == a.lastSize && start+len(prev) == b.off && &prev[:1][0] == &b.buf[start] {
		if start+newSize <= len(b.buf) {
			b.off = start + newSize
			a.lastSize = newSize
			return b.buf[start : start+newSize : start+newSize]
		}
	}
	out := a.Alloc(newSize, 1)
	n := copy(out, prev)
	_ = n
	return out
}

// Checkpoint records a rewind point: the current block and
// the offset reached within it.
type Checkpoint struct {
	blockIdx int
	off      int
}

// Mark returns a Checkpoint for the arena's current state.
func (a *Arena) Mark() Checkpoint {
	return Checkpoint{blockIdx: len(a.blocks) - 1, off: a.cur().off}
}

// ResetToCheckpoint rewinds the arena to cp. Blocks newer
// than cp are moved to a free list rather than released, so
// a subsequent grow can reuse them without a new allocation.
// Every span and byte slice handed out since cp becomes
// invalid.
func (a *Arena) ResetToCheckpoint(cp Checkpoint) {
	if cp.blockIdx < 0 || cp.blockIdx >= len(a.blocks) {
		panic(rgerr.New(pkgName, rgerr.InvalidArguments, "ResetToCheckpoint: stale checkpoint"))
	}
	for i := cp.blockIdx + 1; i < len(a.blocks); i++ {
		a.free = append(a.free, a.blocks[i])
	}
	a.blocks = a.blocks[:cp.blockIdx+1]
	a.blocks[cp.blockIdx].off = cp.off
	a.curLast = -1
	a.lastSize = 0
}

// Reset rewinds the arena to empty, parking every block but
// the first on the free list. Called at the start of each
// render-graph update.
func (a *Arena) Reset() {
	a.ResetToCheckpoint(Checkpoint{blockIdx: 0, off: 0})
}

// Used returns the total number of live bytes across every
// block currently in use (diagnostic only).
func (a *Arena) Used() int {
	n := 0
	for _, b := range a.blocks {
		n += b.off
	}
	return n
}
