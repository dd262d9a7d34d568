// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package alloc implements the render graph's memory planner:
// given a scheduled node order and the resources a builder
// declared, it computes each resource's lifetime (the span of
// the order over which it is read or written), sweeps that
// timeline placing resources into per-memory-type heaps with
// a bitmap sub-allocator, and frees a resource's span the
// instant its lifetime ends so a later, non-overlapping
// resource can alias the same bytes.
//
// The sub-allocator is the bitmap-span technique of package
// internal/bitm, generalized from one fixed buffer to a
// growable set of heaps keyed by backend memory-type index.
package alloc

import (
	"sort"

	"github.com/gviegas/rendergraph/builder"
	"github.com/gviegas/rendergraph/driver"
	"github.com/gviegas/rendergraph/graph"
	"github.com/gviegas/rendergraph/internal/bitm"
	"github.com/gviegas/rendergraph/rgerr"
	"github.com/gviegas/rendergraph/signature"
)

const pkgName = "alloc"

// granule is the sub-allocator's block size in bytes; every
// placement is rounded up to a whole number of granules.
const granule = 256

// Placement is where one resource ended up: which heap, and
// the byte offset within it.
type Placement struct {
	Resource  int
	Heap      int
	Offset    int64
	Size      int64
	// IsAliased reports whether this placement's byte range
	// overlaps another resource's placement in the same heap
	// (always disjoint lifetimes, by construction of Plan's
	// sweep).
	IsAliased bool
}

// Options configures a Planner's allocation policy.
type Options struct {
	// NoAliasing forbids a freed span from being reused by a
	// later, non-overlapping resource: every resource keeps
	// its own heap range for the life of the Planner,
	// matching the render-graph-creation-time
	// render-graph-creation-time NoGpuMemoryAliasing flag.
	NoAliasing bool
	// NoLifetimeAnalysis forces every resource's lifetime to
	// span the whole order, so no two resources are ever
	// considered non-overlapping, matching the
	// render-graph-creation-time NoLifetimeAnalysis flag.
	NoLifetimeAnalysis bool
}

// heap wraps a backend driver.Heap with the bitmap tracking
// which granules are currently occupied.
type heap struct {
	driver.Heap
	alloc bitm.Bitm[uint32]
}

func (h *heap) granules() int { return int(h.Size / granule) }

func (h *heap) isFree(start, n int) bool {
	for i := 0; i < n; i++ {
		if h.alloc.IsSet(start + i) {
			return false
		}
	}
	return true
}

func (h *heap) mark(start, n int) {
	for i := 0; i < n; i++ {
		h.alloc.Set(start + i)
	}
}

func (h *heap) unmark(start, n int) {
	for i := 0; i < n; i++ {
		h.alloc.Unset(start + i)
	}
}

// prevPlacement is what Planner remembers about a resource id
// from the previous call to Plan, so a later frame whose
// resources have the same ids (and so, typically, the same
// shapes) can be biased toward landing in the same spot.
type prevPlacement struct {
	memType int
	heap    int
	start   int
	blocks  int
}

// Planner assigns heap placements to a frame's resources. A
// Planner is meant to be reused across frames: Heaps grow but
// are never destroyed mid-run, and placement history feeds the
// next Plan call's stability bias.
type Planner struct {
	backend driver.ResourceBackend
	opts    Options
	heaps   map[int][]*heap // memory type -> heaps of that type
	prev    map[int]prevPlacement
}

// New creates a Planner that sizes and binds resources through
// backend. opts is optional; the zero Options enables both
// aliasing and lifetime analysis.
func New(backend driver.ResourceBackend, opts ...Options) *Planner {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	return &Planner{
		backend: backend,
		opts:    o,
		heaps:   make(map[int][]*heap),
		prev:    make(map[int]prevPlacement),
	}
}

// lifetime is the [first, last] index into the schedule order
// at which a resource is accessed.
type lifetime struct {
	resource   int
	first, last int
}

// Plan computes a heap placement for every resource b declared
// that is actually accessed somewhere in order (a resource
// declared but never bound to a live node needs no placement).
func (p *Planner) Plan(b *builder.Builder, order []graph.NodeId) ([]Placement, error) {
	// Every resource is placed afresh each call: release the
	// previous call's granules so place can find a resource's
	// last spot free again.
	for _, list := range p.heaps {
		for _, h := range list {
			h.alloc.Clear()
		}
	}
	lifetimes := computeLifetimes(b, order)
	if p.opts.NoLifetimeAnalysis {
		for i := range lifetimes {
			lifetimes[i].first, lifetimes[i].last = 0, len(order)-1
		}
	}

	// Sweep by first-use, so a resource is never placed before
	// an earlier-starting one, then free every resource whose
	// lifetime has ended before placing the next (unless
	// NoAliasing forbids reuse of freed spans). An external
	// output's span is never freed, so nothing aliases it.
	active := make(map[int]bool)
	var placements []Placement

	for i, lt := range lifetimes {
		if !p.opts.NoAliasing {
			for _, done := range lifetimes[:i] {
				if active[done.resource] && done.last < lt.first &&
					!b.Resource(done.resource).Flags.IsExternalOutput() {
					p.free(done.resource)
					delete(active, done.resource)
				}
			}
		}

		pl, err := p.place(b, lt.resource)
		if err != nil {
			return nil, err
		}
		active[lt.resource] = true
		placements = append(placements, pl)
	}
	markAliased(placements, p.prev)
	return placements, nil
}

// markAliased sets IsAliased on every placement whose byte
// range in its heap overlaps another placement's, which can
// only happen when a freed span was reused by a
// disjoint-lifetime resource.
func markAliased(placements []Placement, prev map[int]prevPlacement) {
	byHeap := map[[2]int][]int{} // (memory type, heap) -> indices into placements
	for i, pl := range placements {
		key := [2]int{prev[pl.Resource].memType, pl.Heap}
		byHeap[key] = append(byHeap[key], i)
	}
	for _, idxs := range byHeap {
		sort.Slice(idxs, func(i, j int) bool { return placements[idxs[i]].Offset < placements[idxs[j]].Offset })
		for k := 0; k < len(idxs); k++ {
			a := placements[idxs[k]]
			for j := k + 1; j < len(idxs) && placements[idxs[j]].Offset < a.Offset+a.Size; j++ {
				placements[idxs[k]].IsAliased = true
				placements[idxs[j]].IsAliased = true
			}
		}
	}
}

// computeLifetimes derives, for every non-External resource id
// referenced in order, the first and last position in order at
// which it is accessed, sorted by first ascending. External
// resources (the swapchain image, or anything else the render
// graph does not own) are never placed: only the
// core's own transient/persistent resources are heap-allocated.
func computeLifetimes(b *builder.Builder, order []graph.NodeId) []lifetime {
	first := map[int]int{}
	last := map[int]int{}
	var ids []int
	for i, n := range order {
		bnd := b.Binding(n)
		if bnd == nil {
			continue
		}
		for _, pb := range bnd.Bindings {
			if b.Resource(pb.Resource).Flags&signature.External != 0 {
				continue
			}
			if _, ok := first[pb.Resource]; !ok {
				first[pb.Resource] = i
				ids = append(ids, pb.Resource)
			}
			last[pb.Resource] = i
		}
	}
	lifetimes := make([]lifetime, len(ids))
	for i, id := range ids {
		lifetimes[i] = lifetime{resource: id, first: first[id], last: last[id]}
	}
	// Stable sort by first-use, preserving discovery order
	// (which is program/schedule order) on ties.
	for i := 1; i < len(lifetimes); i++ {
		for j := i; j > 0 && lifetimes[j].first < lifetimes[j-1].first; j-- {
			lifetimes[j], lifetimes[j-1] = lifetimes[j-1], lifetimes[j]
		}
	}
	return lifetimes
}

// place finds or creates room for resource id, preferring the
// heap/offset it held last Plan call if that span is still
// free, and records the new placement for the next call.
func (p *Planner) place(b *builder.Builder, id int) (Placement, error) {
	res := b.Resource(id)
	size, align, memType, err := p.backend.DescribeMemory(res.Desc())
	if err != nil {
		return Placement{}, rgerr.Wrap(pkgName, rgerr.InvalidOperation, "place: DescribeMemory failed", err)
	}
	blocks := int((size + granule - 1) / granule)
	if blocks < 1 {
		blocks = 1
	}
	_ = align // granule spacing already exceeds any realistic backend alignment; see DESIGN.md

	if prev, ok := p.prev[id]; ok && prev.memType == memType {
		if prev.heap < len(p.heaps[memType]) {
			h := p.heaps[memType][prev.heap]
			if prev.blocks == blocks && h.isFree(prev.start, blocks) {
				h.mark(prev.start, blocks)
				return p.commit(id, memType, prev.heap, prev.start, blocks, size)
			}
		}
	}

	hi, start, err := p.alloc(memType, blocks)
	if err != nil {
		return Placement{}, err
	}
	return p.commit(id, memType, hi, start, blocks, size)
}

func (p *Planner) commit(id, memType, hi, start, blocks int, size int64) (Placement, error) {
	p.prev[id] = prevPlacement{memType: memType, heap: hi, start: start, blocks: blocks}
	return Placement{Resource: id, Heap: hi, Offset: int64(start) * granule, Size: size}, nil
}

// alloc finds room for blocks granules within some heap of
// memType, growing an existing heap or creating a new one
// through the backend if none has room.
func (p *Planner) alloc(memType, blocks int) (heapIdx, start int, err error) {
	for i, h := range p.heaps[memType] {
		if idx, ok := h.alloc.SearchRange(blocks); ok {
			h.mark(idx, blocks)
			return i, idx, nil
		}
	}

	need := int64(blocks) * granule
	const minHeapSize = 1 << 20
	if need < minHeapSize {
		need = minHeapSize
	}
	bh, err := p.backend.CreateHeap(memType, need)
	if err != nil {
		return 0, 0, rgerr.Wrap(pkgName, rgerr.OutOfMemory, "alloc: CreateHeap failed", err)
	}
	nh := &heap{Heap: *bh}
	nh.alloc.Grow((nh.granules() + 31) / 32)
	idx, ok := nh.alloc.SearchRange(blocks)
	if !ok {
		return 0, 0, rgerr.New(pkgName, rgerr.OutOfMemory, "alloc: freshly created heap cannot fit requested span")
	}
	nh.mark(idx, blocks)
	p.heaps[memType] = append(p.heaps[memType], nh)
	return len(p.heaps[memType]) - 1, idx, nil
}

// free releases the granules held by resource id's most recent
// placement, making them available for a later, non-overlapping
// resource to alias.
func (p *Planner) free(id int) {
	prev, ok := p.prev[id]
	if !ok {
		return
	}
	list := p.heaps[prev.memType]
	if prev.heap >= len(list) {
		return
	}
	list[prev.heap].unmark(prev.start, prev.blocks)
}

// ResourceLifetimes returns the [first, last] position in
// order of every resource Plan would place, keyed by resource
// id, for diagnostic enumeration.
func ResourceLifetimes(b *builder.Builder, order []graph.NodeId) map[int][2]int {
	lifetimes := computeLifetimes(b, order)
	out := make(map[int][2]int, len(lifetimes))
	for _, lt := range lifetimes {
		out[lt.resource] = [2]int{lt.first, lt.last}
	}
	return out
}

// HeapInfo summarizes one backend heap for diagnostic
// enumeration.
type HeapInfo struct {
	MemoryType int
	Size       int64
	UsedSize   int64
}

// Heaps returns a summary of every heap p has created so far,
// across every memory type, in creation order within each type.
func (p *Planner) Heaps() []HeapInfo {
	var out []HeapInfo
	for memType, list := range p.heaps {
		for _, h := range list {
			used := int64(0)
			for i := 0; i < h.granules(); i++ {
				if h.alloc.IsSet(i) {
					used += granule
				}
			}
			out = append(out, HeapInfo{MemoryType: memType, Size: h.Size, UsedSize: used})
		}
	}
	return out
}
