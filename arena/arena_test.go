// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package arena

import "testing"

func TestAllocAlignment(t *testing.T) {
	a := New(0)
	for _, align := range []int{1, 2, 4, 8, 16, 32} {
		b := a.Alloc(3, align)
		if len(b) != 3 {
			t.Fatalf("Alloc(3, %d): len\nhave %d\nwant 3", align, len(b))
		}
	}
}

func TestAllocGrowsNewBlock(t *testing.T) {
	a := New(64)
	first := a.Alloc(32, 1)
	second := a.Alloc(48, 1) // forces a new block, since 32+48 > 64
	if cap(first) < 32 || cap(second) < 48 {
		t.Fatalf("Alloc sizes wrong: cap(first)=%d cap(second)=%d", cap(first), cap(second))
	}
	for i := range first {
		first[i] = 1
	}
	for i := range second {
		second[i] = 2
	}
	if first[0] != 1 || second[0] != 2 {
		t.Fatalf("allocations alias: first[0]=%d second[0]=%d", first[0], second[0])
	}
}

func TestAllocTZeroed(t *testing.T) {
	type pair struct{ A, B int64 }
	a := New(0)
	p := AllocT[pair](a)
	if p.A != 0 || p.B != 0 {
		t.Fatalf("AllocT: not zeroed: %+v", *p)
	}
	p.A = 7
	q := AllocT[pair](a)
	if q.A != 0 {
		t.Fatalf("AllocT: second alloc not independently zeroed: %+v", *q)
	}
}

func TestReallocInPlace(t *testing.T) {
	a := New(0)
	buf := a.Alloc(8, 1)
	for i := range buf {
		buf[i] = byte(i)
	}
	grown := a.Realloc(buf, 16)
	if len(grown) != 16 {
		t.Fatalf("Realloc: len\nhave %d\nwant 16", len(grown))
	}
	for i := 0; i < 8; i++ {
		if grown[i] != byte(i) {
			t.Fatalf("Realloc: byte %d\nhave %d\nwant %d", i, grown[i], i)
		}
	}
}

func TestReallocNotLastAllocates(t *testing.T) {
	a := New(0)
	first := a.Alloc(8, 1)
	a.Alloc(8, 1) // second allocation becomes "last"
	grown := a.Realloc(first, 16)
	if len(grown) != 16 {
		t.Fatalf("Realloc: len\nhave %d\nwant 16", len(grown))
	}
}

func TestCheckpointResetInvalidatesGrowth(t *testing.T) {
	a := New(64)
	cp := a.Mark()
	a.Alloc(32, 1)
	usedAfterAlloc := a.Used()
	a.ResetToCheckpoint(cp)
	if a.Used() != 0 {
		t.Fatalf("ResetToCheckpoint: Used\nhave %d\nwant 0", a.Used())
	}
	if usedAfterAlloc == 0 {
		t.Fatalf("test setup: Alloc did not register usage")
	}
}

func TestResetReusesBlocks(t *testing.T) {
	a := New(64)
	a.Alloc(32, 1)
	a.Alloc(48, 1) // spills into a second block
	a.Reset()
	if a.Used() != 0 {
		t.Fatalf("Reset: Used\nhave %d\nwant 0", a.Used())
	}
	// Re-allocating past the first block's capacity should
	// reuse the parked block rather than grow unbounded.
	a.Alloc(32, 1)
	a.Alloc(48, 1)
	if got := len(a.blocks); got != 2 {
		t.Fatalf("Reset did not reuse parked block: have %d blocks want 2", got)
	}
}

func TestPoolAllocFreeReuse(t *testing.T) {
	p := NewPool[uint32]()
	var vec []uint32

	s0 := p.Alloc(&vec, 0) // class 0: capacity 1
	s1 := p.Alloc(&vec, 0)
	if s0 == s1 {
		t.Fatalf("Pool.Alloc returned the same span twice: %d", s0)
	}

	p.Free(vec, s0, 0)
	s2 := p.Alloc(&vec, 0)
	if s2 != s0 {
		t.Fatalf("Pool.Alloc after Free did not reuse span:\nhave %d\nwant %d", s2, s0)
	}
}

func TestPoolGrowCopiesAndFrees(t *testing.T) {
	p := NewPool[uint32]()
	var vec []uint32

	start, class, length := uint32(0), -1, uint32(0)
	start, class, length = p.PushToSpan(&vec, start, class, length, 10)
	start, class, length = p.PushToSpan(&vec, start, class, length, 20)

	if length != 2 {
		t.Fatalf("PushToSpan: length\nhave %d\nwant 2", length)
	}
	if vec[start] != 10 || vec[start+1] != 20 {
		t.Fatalf("PushToSpan: contents\nhave [%d %d]\nwant [10 20]", vec[start], vec[start+1])
	}
	if class < 1 {
		t.Fatalf("PushToSpan: expected span to have grown past class 0, got class %d", class)
	}
}
