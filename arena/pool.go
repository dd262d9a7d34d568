// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package arena

import "math/bits"

// Uint is the granularity a Pool operates on. It must be at
// least u32-sized because a freed span's first element is
// overwritten with the index of the next free span of the
// same size class (an intrusive free list, avoiding a
// separate bookkeeping allocation per class).
//
// Whether this intrusive encoding is a hard requirement or
// merely how the reference implementation happened to do it
// is not stated by the source; this port treats it as a
// precondition of Pool, not something it enforces at
// compile time beyond the type constraint below.
type Uint interface {
	~uint32 | ~uint64 | ~uintptr
}

// noFree marks an empty free-list bucket.
const noFree = ^uint32(0)

// Pool is a free-list pool of power-of-two-sized spans into
// a caller-owned vector. It maintains 32 free lists, indexed
// by log2(capacity). Span offsets are positions within the
// vector passed to Alloc, so a freed span is only valid for
// reuse within that same vector.
type Pool[T Uint] struct {
	free [32]uint32
}

// NewPool creates an empty Pool. Unlike bitm.Bitm, the zero
// value is not ready to use: bucket 0 of a zeroed free array
// reads as offset 0, which is indistinguishable from a real
// free span there, so every bucket must be seeded with
// noFree first.
func NewPool[T Uint]() *Pool[T] {
	p := new(Pool[T])
	for i := range p.free {
		p.free[i] = noFree
	}
	return p
}

func classOf(capacity uint32) int {
	if capacity == 0 {
		return -1
	}
	return bits.TrailingZeros32(capacity)
}

// Alloc returns the start offset of a fresh span of size
// 1<<class within *vec, extending *vec when no freed span
// of that class is available.
func (p *Pool[T]) Alloc(vec *[]T, class int) uint32 {
	if class < 0 || class >= len(p.free) {
		panic("arena: span class out of range")
	}
	if p.free[class] == noFree {
		cap32 := uint32(1) << uint(class)
		start := uint32(len(*vec))
		*vec = append(*vec, make([]T, cap32)...)
		return start
	}
	start := p.free[class]
	p.free[class] = uint32((*vec)[start])
	return start
}

// Free returns the span [start, start+1<<class) to the pool
// for reuse by a later Alloc of the same class. The span's
// first element is overwritten with the current free-list
// head for that class.
func (p *Pool[T]) Free(vec []T, start uint32, class int) {
	(vec)[start] = T(p.free[class])
	p.free[class] = start
}

// Grow doubles a span's capacity, copying its live prefix
// (length elements) into the new location and freeing the
// old span. It returns the new span's start offset and
// class. If curClass is -1 (an empty, not-yet-allocated
// span), Grow allocates a fresh class-0 span instead.
func (p *Pool[T]) Grow(vec *[]T, start uint32, curClass int, length uint32) (newStart uint32, newClass int) {
	if curClass < 0 {
		newClass = 0
		newStart = p.Alloc(vec, 0)
		return
	}
	newClass = curClass + 1
	newStart = p.Alloc(vec, newClass)
	copy((*vec)[newStart:newStart+length], (*vec)[start:start+length])
	p.Free(*vec, start, curClass)
	return
}

// PushToSpan appends val to the span described by
// (start, class, length), growing it first if it is full.
// It returns the (possibly updated) start, class and the
// new length, matching the "doubles capacity on power-of-two
// boundaries" growth rule.
func (p *Pool[T]) PushToSpan(vec *[]T, start uint32, class int, length uint32, val T) (newStart uint32, newClass int, newLength uint32) {
	cap32 := uint32(0)
	if class >= 0 {
		cap32 = uint32(1) << uint(class)
	}
	if length >= cap32 {
		start, class = p.Grow(vec, start, class, length)
	}
	(*vec)[start+length] = val
	return start, class, length + 1
}
