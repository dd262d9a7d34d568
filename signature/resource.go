// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package signature

import "github.com/gviegas/rendergraph/driver"

// ResourceFlags mark properties of a resource declaration
// that the scheduler's dead-code pass and the memory planner
// both need to know about.
type ResourceFlags int

const (
	// Persistent resources carry their contents across frames
	// and are never considered dead code.
	Persistent ResourceFlags = 1 << iota
	// CPUVisible resources are host-visible and are never
	// considered dead code (the host may read them back).
	CPUVisible
	// External resources are not owned by the render graph
	// (e.g. the swapchain image); the memory planner never
	// places them.
	External
)

// ResourceDecl is a named resource declaration: the
// descriptor fields needed to derive a driver.ResourceDesc
// once a concrete frame's dimensions/format are known, plus
// the temporal-layer count and flags that affect scheduling
// and allocation.
type ResourceDecl struct {
	Name  string
	Type  driver.ResourceType
	Flags ResourceFlags

	Format   driver.PixelFmt
	Width    int
	Height   int
	Depth    int
	ByteSize int64
	Layers   int
	Levels   int
	Samples  int

	// TemporalLayers is the number of round-robin replicas
	// used to carry data across frames (1 means no temporal
	// replication). The memory planner does not read it: each
	// resource gets a single placement per frame.
	TemporalLayers int

	Usage driver.Usage
}

// Desc derives the driver.ResourceDesc the memory planner
// passes to a backend's DescribeMemory.
func (r *ResourceDecl) Desc() driver.ResourceDesc {
	return driver.ResourceDesc{
		Type:     r.Type,
		Format:   r.Format,
		Width:    r.Width,
		Height:   r.Height,
		Depth:    r.Depth,
		ByteSize: r.ByteSize,
		Layers:   r.Layers,
		Levels:   r.Levels,
		Samples:  r.Samples,
		Usage:    r.Usage,
		Name:     r.Name,
	}
}

// IsExternalOutput reports whether a resource with these
// flags is always considered an observable external output,
// regardless of what reads it — i.e. the scheduler's
// dead-code pass must never remove the sole writer of such a
// resource.
func (f ResourceFlags) IsExternalOutput() bool {
	return f&(Persistent|CPUVisible|External) != 0
}
