// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package signature derives parameter and node declarations
// from user-supplied descriptors: it resolves semantic
// bindings (sorting append semantics into a running count,
// then re-sorting for downstream backends), infers access
// attributes from fixed-function semantics, computes queue
// capability, and synthesizes render-pass info.
package signature

import (
	"sort"

	"github.com/gviegas/rendergraph/driver"
	"github.com/gviegas/rendergraph/rgerr"
)

const pkgName = "signature"

// Unbounded marks a ParamDecl's ArraySize as runtime-determined
// rather than a fixed count. Whether this means "truly
// unbounded" or merely "not known until the node is called" is
// left ambiguous by the underlying model;
// this port treats it as the latter. builder.AddNode does not
// check a bound element count against ArraySize.
const Unbounded = ^uint32(0)

// ParamFlags describe a parameter declaration's shape.
type ParamFlags int

const (
	Out ParamFlags = 1 << iota
	Optional
	Resource
)

// Semantic classifies a parameter's role for sorting and for
// fixed-function access inference.
type Semantic int

const (
	SemUser Semantic = iota // no special handling

	// Dynamic render state.
	SemViewport
	SemScissor
	SemClearValue

	// Fixed-function bindings.
	SemRenderTarget
	SemDepthStencilTarget
	SemResolveTarget
	SemShadingRateImage
	SemVertexBuffer
	SemIndexBuffer
	SemIndirectBuffer
	SemStreamOutBuffer
)

// IsFixedFunction reports whether sem is one of the
// fixed-function binding kinds (as opposed to dynamic render
// state or a user binding).
func (sem Semantic) IsFixedFunction() bool {
	return sem >= SemRenderTarget && sem <= SemStreamOutBuffer
}

// Append is the semantic-index sentinel meaning "assign the
// next running count for this semantic", as opposed to an
// explicit, caller-chosen index.
const Append = -1

// AccessAttr is the {access_flags, shader_stages} tuple
// describing how a node invocation uses one subresource
// range of a resource parameter.
type AccessAttr struct {
	Access driver.Access
	Stages driver.Stage
	// DiscardBefore resets the prior-state record for the
	// accessed range without emitting a transition.
	DiscardBefore bool
	// DiscardAfter marks the range as not requiring its
	// contents preserved past this access, shortening the
	// resource's effective lifetime.
	DiscardAfter bool
}

// IsWrite reports whether a includes any write bit.
func (a AccessAttr) IsWrite() bool {
	const writeMask = driver.AColorWrite | driver.ADSWrite | driver.AResolveWrite |
		driver.ACopyWrite | driver.AShaderWrite | driver.AAnyWrite
	return a.Access&writeMask != 0
}

// ParamDecl is one parameter of a NodeDeclInfo.
type ParamDecl struct {
	Name          string
	TypeSize      int
	ArraySize     uint32
	Flags         ParamFlags
	Semantic      Semantic
	SemanticIndex int // resolved; Append is replaced before use

	// Explicit is the caller-declared access, if any; nil
	// selects full semantic-based inference.
	Explicit *AccessAttr
	// Access is the derived access attribute: Explicit when
	// given (after masking incompatible inferred writes off),
	// or purely semantic-inferred otherwise.
	Access AccessAttr
}

// inferBase returns the access implied purely by sem, before
// any explicit override is applied.
func inferBase(sem Semantic) driver.Access {
	switch sem {
	case SemRenderTarget:
		return driver.AColorWrite
	case SemDepthStencilTarget:
		return driver.ADSWrite
	case SemResolveTarget:
		return driver.AResolveWrite
	case SemVertexBuffer:
		return driver.AVertexBufRead
	case SemIndexBuffer:
		return driver.AIndexBufRead
	case SemIndirectBuffer, SemShadingRateImage, SemStreamOutBuffer:
		return driver.AAnyRead
	default:
		return driver.ANone
	}
}

// resolveAccess computes a ParamDecl's final AccessAttr: the
// semantic base, combined with the explicit attribute when
// present. Depth-stencil-target implies both
// depth and stencil writes unless the explicit attribute
// already marks the corresponding aspect read-only, in which
// case that write bit is masked off.
func resolveAccess(sem Semantic, explicit *AccessAttr) AccessAttr {
	base := inferBase(sem)
	if explicit == nil {
		return AccessAttr{Access: base}
	}
	access := explicit.Access | (base &^ readOnlyMask(explicit.Access))
	return AccessAttr{
		Access:        access,
		Stages:        explicit.Stages,
		DiscardBefore: explicit.DiscardBefore,
		DiscardAfter:  explicit.DiscardAfter,
	}
}

// readOnlyMask returns the write bits that must be masked off
// a semantic-inferred base because the explicit attribute
// already declares the corresponding aspect read-only.
func readOnlyMask(explicit driver.Access) driver.Access {
	var mask driver.Access
	if explicit&driver.ADSRead != 0 && explicit&driver.ADSWrite == 0 {
		mask |= driver.ADSWrite
	}
	return mask
}

// QueueCap is a mask of queue capabilities a node declaration
// either states explicitly or is inferred to require.
type QueueCap int

const (
	Graphics QueueCap = 1 << iota
	Compute
	Copy
	PreferAsync
	PreferRenderPass
)

// queueFor returns the minimum QueueCap that access implies:
// graphics-only accesses (render target, depth-stencil,
// vertex/index data, resolve) force Graphics; any other
// non-copy GPU access (including indirect-argument reads,
// which infer as AAnyRead) forces Compute; copy-only access
// forces Copy.
func queueFor(a driver.Access) QueueCap {
	const graphicsOnly = driver.AColorRead | driver.AColorWrite | driver.ADSRead | driver.ADSWrite |
		driver.AResolveRead | driver.AResolveWrite | driver.AVertexBufRead | driver.AIndexBufRead
	switch {
	case a&graphicsOnly != 0:
		return Graphics
	case a&(driver.AShaderRead|driver.AShaderWrite|driver.AAnyRead|driver.AAnyWrite) != 0:
		return Compute
	case a&(driver.ACopyRead | driver.ACopyWrite) != 0:
		return Copy
	default:
		return 0
	}
}

// RenderPassInfo is synthesized once per node declaration: a
// compact set of bit-masks plus parameter-ref arrays into the
// declaration's own Params, describing how a graphics node's
// parameters map onto a render pass.
type RenderPassInfo struct {
	RTMask         uint8 // which of the 8 render-target slots are bound
	RTParam        [8]int
	HasDS          bool
	DSParam        int
	ResolveMask    uint8
	ResolveParam   [8]int
	ClearMask      uint16 // RT slots (low 8 bits) + DS (bit 8) that clear
	ViewportParams []int
	ScissorParams  []int
}

// NodeDeclInfo fully describes a declared node kind: its
// parameters (sorted for append-semantic resolution, then
// re-sorted for downstream backend consumption), its derived
// queue capability, and (for nodes with fixed-function render
// targets) its RenderPassInfo.
type NodeDeclInfo struct {
	Name     string
	Params   []ParamDecl
	Queue    QueueCap
	HasPass  bool
	RPInfo   RenderPassInfo
	byName   map[string]int
}

// New derives a NodeDeclInfo from name and params. params is
// left unmodified; the returned Params is a resolved copy,
// ordered first by (semantic, param_index) to resolve Append,
// then by (semantic, semantic_index) for downstream backends.
func New(name string, declaredQueue QueueCap, params []ParamDecl) (*NodeDeclInfo, error) {
	if name == "" {
		return nil, rgerr.New(pkgName, rgerr.InvalidArguments, "New: empty node name")
	}

	// Pass 1: stable sort by (semantic, declaration order) so
	// that Append indices become a running count in the order
	// params were declared.
	idx := make([]int, len(params))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return params[idx[i]].Semantic < params[idx[j]].Semantic
	})
	counts := map[Semantic]int{}
	resolved := make([]ParamDecl, len(params))
	for rank, srcI := range idx {
		p := params[srcI]
		if p.SemanticIndex == Append {
			p.SemanticIndex = counts[p.Semantic]
			counts[p.Semantic]++
		}
		p.Access = resolveAccess(p.Semantic, p.Explicit)
		resolved[rank] = p
	}

	// Pass 2: re-sort by (semantic, semantic_index) for
	// downstream backend consumption.
	sort.SliceStable(resolved, func(i, j int) bool {
		if resolved[i].Semantic != resolved[j].Semantic {
			return resolved[i].Semantic < resolved[j].Semantic
		}
		return resolved[i].SemanticIndex < resolved[j].SemanticIndex
	})

	queue := declaredQueue
	for _, p := range resolved {
		queue |= queueFor(p.Access.Access)
	}

	decl := &NodeDeclInfo{Name: name, Params: resolved, Queue: queue}
	decl.byName = make(map[string]int, len(resolved))
	for i, p := range resolved {
		decl.byName[p.Name] = i
	}
	decl.synthRenderPass()
	return decl, nil
}

// ParamIndex returns the index of the parameter named n, or
// -1 if none exists.
func (d *NodeDeclInfo) ParamIndex(n string) int {
	if i, ok := d.byName[n]; ok {
		return i
	}
	return -1
}

// synthRenderPass builds RPInfo from the render-target,
// depth-stencil, resolve, clear-value, viewport, and scissor
// parameters present in d.Params.
func (d *NodeDeclInfo) synthRenderPass() {
	var info RenderPassInfo
	info.DSParam = -1
	rt, resolve := 0, 0
	for i, p := range d.Params {
		switch p.Semantic {
		case SemRenderTarget:
			if rt < 8 {
				info.RTMask |= 1 << uint(rt)
				info.RTParam[rt] = i
				rt++
			}
		case SemDepthStencilTarget:
			info.HasDS = true
			info.DSParam = i
		case SemResolveTarget:
			if resolve < 8 {
				info.ResolveMask |= 1 << uint(resolve)
				info.ResolveParam[resolve] = i
				resolve++
			}
		case SemClearValue:
			if rt > 0 {
				info.ClearMask |= 1 << uint(rt-1)
			} else if info.HasDS {
				info.ClearMask |= 1 << 8
			}
		case SemViewport:
			info.ViewportParams = append(info.ViewportParams, i)
		case SemScissor:
			info.ScissorParams = append(info.ScissorParams, i)
		}
	}
	d.HasPass = rt > 0 || info.HasDS
	d.RPInfo = info
}
