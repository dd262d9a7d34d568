// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package driver

// ResourceType distinguishes the two kinds of transient
// resource the memory planner can place.
type ResourceType int

const (
	RBuffer ResourceType = iota
	RImage
)

// ResourceDesc is the backend-agnostic description of a
// resource the memory planner needs to size and place. It is
// the render graph's view of a resource declaration's
// descriptor (see signature.ResourceDecl), stripped to the
// fields a backend needs to answer DescribeMemory.
type ResourceDesc struct {
	Type     ResourceType
	Format   PixelFmt
	Width    int
	Height   int
	Depth    int
	ByteSize int64 // meaningful for RBuffer only
	Layers   int
	Levels   int
	Samples  int
	Usage    Usage
	Name     string
}

// Heap is a backend memory block that resource placements are
// carved from by the memory planner. Handle is the opaque
// runtime heap object; the core never inspects it, only
// passes it back to the backend.
type Heap struct {
	MemoryType  int
	Alignment   int64
	Size        int64
	UsedSize    int64
	MaxUsedSize int64
	Handle      any
}

// Resource is a backend-bound resource placed within a Heap.
type Resource interface {
	Destroyer
}

// ResourceBackend is the capability trait the memory planner
// queries to size a resource and to materialize/destroy it
// once a placement has been chosen.
//
// This is the seam a concrete graphics backend fills in under
// "Handle-based dynamic dispatch": the source dispatches
// through the device's virtual runtime interface, which this
// port narrows to exactly the operations the planner needs,
// so a backend for a new graphics API is a handful of
// methods rather than a wholesale reimplementation of GPU.
type ResourceBackend interface {
	// DescribeMemory returns the size, alignment, and
	// memory-type index the backend would require to back
	// desc. It must not allocate anything.
	DescribeMemory(desc ResourceDesc) (size, align int64, memoryType int, err error)

	// CreateHeap creates a new Heap of at least size bytes
	// from the given memory-type index.
	CreateHeap(memoryType int, size int64) (*Heap, error)

	// DestroyHeap releases a Heap created by CreateHeap.
	// Every Resource bound to it must already be destroyed.
	DestroyHeap(h *Heap)

	// BindResource creates the backend resource for desc at
	// the given byte offset within h.
	BindResource(h *Heap, offset int64, desc ResourceDesc) (Resource, error)
}
