// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/alloc"
	"github.com/gviegas/rendergraph/analyzer"
	"github.com/gviegas/rendergraph/graph"
	"github.com/gviegas/rendergraph/signature"
)

// ResourceInfo reports one resource's declaration, lifetime,
// and placement from the most recent successful Update.
type ResourceInfo struct {
	Resource  int
	Decl      signature.ResourceDecl
	FirstUse  int
	LastUse   int
	Placement alloc.Placement
	Placed    bool
}

// CmdInfo reports one scheduled node's position, queue and
// batch assignment, and (if it is a node rather than a
// synthesized transition) its declared kind.
type CmdInfo struct {
	Node  graph.NodeId
	Index int
	Queue signature.QueueCap
	Batch int

	DeclName   string // empty for a synthesized transition or marker
	Transition *analyzer.TransitionInfo
}

// DiagnosticInfo is a reused-slice snapshot of the most recent
// successful Update: a caller polling it every frame for
// tooling (a visualizer, a memory budget HUD) can keep reusing
// the slices rather than allocate fresh ones.
type DiagnosticInfo struct {
	FrameIndex             int
	GPUCompletedFrameIndex int
	NumBatches             int
	Heaps                  []alloc.HeapInfo
	Resources              []ResourceInfo
	Cmds                   []CmdInfo
}

// GetDiagnosticInfo fills out into a snapshot of the most
// recent successful Update, reusing out's slices (growing them
// only as needed) so repeated polling does not reallocate them;
// the lookup maps and heap summary it reads from are still
// built afresh on every call. out may be the zero value on
// first use.
func (rg *RenderGraph) GetDiagnosticInfo(out *DiagnosticInfo) *DiagnosticInfo {
	if out == nil {
		out = &DiagnosticInfo{}
	}
	out.FrameIndex = rg.frameIndex
	out.GPUCompletedFrameIndex = rg.completedAt

	if rg.schedule == nil {
		out.NumBatches = 0
		out.Heaps = out.Heaps[:0]
		out.Resources = out.Resources[:0]
		out.Cmds = out.Cmds[:0]
		return out
	}
	out.NumBatches = rg.schedule.NumBatches
	out.Heaps = append(out.Heaps[:0], rg.planner.Heaps()...)

	lifetimes := alloc.ResourceLifetimes(rg.b, rg.schedule.Order)
	// The planner reports no lifetime for resources it never
	// places (External ones); list those too, unplaced.
	for i, n := range rg.schedule.Order {
		if bnd := rg.b.Binding(n); bnd != nil {
			for _, pb := range bnd.Bindings {
				if rg.b.Resource(pb.Resource).Flags&signature.External == 0 {
					continue
				}
				lt, seen := lifetimes[pb.Resource]
				if !seen {
					lt[0] = i
				}
				lt[1] = i
				lifetimes[pb.Resource] = lt
			}
		}
	}
	byResource := make(map[int]alloc.Placement, len(rg.placements))
	for _, pl := range rg.placements {
		byResource[pl.Resource] = pl
	}
	out.Resources = out.Resources[:0]
	for id, lt := range lifetimes {
		pl, placed := byResource[id]
		out.Resources = append(out.Resources, ResourceInfo{
			Resource:  id,
			Decl:      *rg.b.Resource(id),
			FirstUse:  lt[0],
			LastUse:   lt[1],
			Placement: pl,
			Placed:    placed,
		})
	}

	transByNode := make(map[graph.NodeId]*analyzer.TransitionInfo, len(rg.analysis.Transitions))
	for i := range rg.analysis.Transitions {
		transByNode[rg.analysis.Transitions[i].Node] = &rg.analysis.Transitions[i]
	}
	out.Cmds = out.Cmds[:0]
	for i, n := range rg.schedule.Order {
		ci := CmdInfo{Node: n, Index: i, Queue: rg.schedule.Queue[n], Batch: rg.schedule.Batch[n]}
		if t, ok := transByNode[n]; ok {
			ci.Transition = t
		} else if bnd := rg.b.Binding(n); bnd != nil {
			ci.DeclName = bnd.Decl.Name
		}
		out.Cmds = append(out.Cmds, ci)
	}
	return out
}
