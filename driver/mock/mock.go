// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package mock implements a deterministic driver.ResourceBackend
// for use in tests of the memory planner and the render-graph
// façade, standing in for a real graphics-API backend (which
// is explicitly out of scope for the core).
package mock

import (
	"fmt"
	"sync"

	"github.com/gviegas/rendergraph/driver"
)

// Alignment constants mirror the conventions a real backend
// would enforce (buffer descriptor ranges at 256 bytes, image
// copy strides at 512 bytes for a Vulkan-style backend).
const (
	bufferAlign = 256
	imageAlign  = 512
)

// Backend is a driver.ResourceBackend that never touches real
// GPU memory: it sizes resources deterministically from their
// descriptor and hands out Heap/Resource values backed by Go
// byte slices, which is enough to exercise placement, aliasing,
// and lifetime logic end to end in tests.
type Backend struct {
	mu    sync.Mutex
	heaps []*driver.Heap
}

// New creates an empty mock Backend.
func New() *Backend { return &Backend{} }

// DescribeMemory implements driver.ResourceBackend.
func (b *Backend) DescribeMemory(desc driver.ResourceDesc) (size, align int64, memoryType int, err error) {
	switch desc.Type {
	case driver.RBuffer:
		size = desc.ByteSize
		align = bufferAlign
	case driver.RImage:
		texel := texelSize(desc.Format)
		layers := desc.Layers
		if layers < 1 {
			layers = 1
		}
		levels := desc.Levels
		if levels < 1 {
			levels = 1
		}
		samples := desc.Samples
		if samples < 1 {
			samples = 1
		}
		var total int64
		w, h := desc.Width, desc.Height
		for l := 0; l < levels; l++ {
			lw, lh := max1(w>>l), max1(h>>l)
			total += int64(lw) * int64(lh) * int64(texel) * int64(samples)
		}
		size = total * int64(layers)
		align = imageAlign
	default:
		return 0, 0, 0, fmt.Errorf("mock: unknown resource type %d", desc.Type)
	}
	if desc.Usage&driver.UShaderWrite != 0 {
		memoryType = 1 // writable resources grouped separately from read-only ones
	}
	return
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// texelSize approximates bytes-per-texel; exact fidelity does
// not matter for a mock backend, only monotonicity with format
// "width".
func texelSize(f driver.PixelFmt) int {
	switch f {
	case driver.RGBA32f:
		return 16
	case driver.RGBA16f, driver.RG32f:
		return 8
	case driver.RGBA8un, driver.RGBA8n, driver.RGBA8sRGB, driver.BGRA8un, driver.BGRA8sRGB,
		driver.RG16f, driver.R32f, driver.D32fS8ui:
		return 4
	case driver.RG8un, driver.RG8n, driver.R16f, driver.D24unS8ui:
		return 2
	default:
		return 1
	}
}

// CreateHeap implements driver.ResourceBackend.
func (b *Backend) CreateHeap(memoryType int, size int64) (*driver.Heap, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := &driver.Heap{MemoryType: memoryType, Size: size, Alignment: bufferAlign, Handle: make([]byte, size)}
	b.heaps = append(b.heaps, h)
	return h, nil
}

// DestroyHeap implements driver.ResourceBackend.
func (b *Backend) DestroyHeap(h *driver.Heap) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, x := range b.heaps {
		if x == h {
			b.heaps = append(b.heaps[:i], b.heaps[i+1:]...)
			return
		}
	}
}

// resource is the mock driver.Resource: a byte-slice view into
// its heap's backing store.
type resource struct {
	bytes []byte
	name  string
}

func (r *resource) Destroy() {}

// BindResource implements driver.ResourceBackend.
func (b *Backend) BindResource(h *driver.Heap, offset int64, desc driver.ResourceDesc) (driver.Resource, error) {
	buf, ok := h.Handle.([]byte)
	if !ok {
		return nil, fmt.Errorf("mock: heap handle is not a mock heap")
	}
	size, _, _, err := b.DescribeMemory(desc)
	if err != nil {
		return nil, err
	}
	if offset+size > int64(len(buf)) {
		return nil, fmt.Errorf("mock: placement (%d,%d) exceeds heap of size %d", offset, size, len(buf))
	}
	return &resource{bytes: buf[offset : offset+size], name: desc.Name}, nil
}
