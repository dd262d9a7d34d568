// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package analyzer implements the render graph's access
// analysis pass: walking the nodes a builder.Builder produced
// in program order, tracking the most recent access to every
// subresource range of every declared resource, and inserting
// synchronization — a merged read-after-read when two accesses
// are compatible, a synthesized transition node otherwise.
//
// This is the pass the rest of the pipeline depends on most:
// the scheduler orders around the dependency edges it adds,
// and the memory planner derives resource lifetimes from the
// schedule those edges produce.
package analyzer

import (
	"github.com/gviegas/rendergraph/builder"
	"github.com/gviegas/rendergraph/driver"
	"github.com/gviegas/rendergraph/graph"
	"github.com/gviegas/rendergraph/signature"
	"github.com/gviegas/rendergraph/subres"
)

// TransitionInfo records one synthesized transition node: its
// place in the graph, which resource and subresource range it
// guards, and the barrier/layout-change it represents.
type TransitionInfo struct {
	Node       graph.NodeId
	Resource   int
	Range      subres.Range
	Transition driver.Transition
}

// accessRecord is the most recent access to one (disjoint)
// subresource range of a resource.
type accessRecord struct {
	Range   subres.Range
	Access  signature.AccessAttr
	Layout  driver.Layout
	Writer  graph.NodeId // node that produced the current contents (the last writer, or the transition that made them readable); NilNode if none
	Readers []graph.NodeId
}

// Analyzer runs the access-analysis pass over a builder's
// graph.
type Analyzer struct {
	b           *builder.Builder
	records     map[int][]accessRecord // resource id -> disjoint access records
	Transitions []TransitionInfo
}

// New creates an Analyzer over b. Analyze should be called
// once b's program body has finished building the frame's
// graph.
func New(b *builder.Builder) *Analyzer {
	return &Analyzer{b: b, records: make(map[int][]accessRecord)}
}

// Analyze walks every node b.Graph holds, in ascending NodeId
// order (the order the builder added them, i.e. program
// order), resolving each node's resource-parameter bindings
// against the running per-subresource access state and
// inserting the synchronization that requires.
func (a *Analyzer) Analyze() error {
	n := a.b.Graph.NumNodes()
	for i := 0; i < n; i++ {
		id := graph.NodeId(i)
		bnd := a.b.Binding(id)
		if bnd == nil {
			continue // marker, transition, or subgraph begin/end
		}
		for _, pb := range bnd.Bindings {
			pi := bnd.Decl.ParamIndex(pb.Param)
			if pi < 0 {
				continue
			}
			param := bnd.Decl.Params[pi]
			res := a.b.Resource(pb.Resource)
			rng := pb.Range
			if rng.Empty() {
				// A buffer declares no layers or levels; track
				// it as a single layer/level so its accesses
				// still overlap.
				layers, levels := res.Layers, res.Levels
				if layers < 1 {
					layers = 1
				}
				if levels < 1 {
					levels = 1
				}
				rng = subres.Full(subres.AspectColor|subres.AspectDepth|subres.AspectStencil, layers, levels)
			}
			layout := driver.LUndefined
			if res.Type == driver.RImage {
				layout = layoutFor(param.Access.Access)
			}
			a.access(id, pb.Resource, rng, param.Access, layout)
		}
	}
	return nil
}

// access resolves one node's access to [rng] of resource resID,
// splitting any overlapping prior records and emitting
// whatever synchronization the overlap requires.
func (a *Analyzer) access(n graph.NodeId, resID int, rng subres.Range, attr signature.AccessAttr, layout driver.Layout) {
	old := a.records[resID]
	pending := []subres.Range{rng}
	var updated []accessRecord

	for _, rec := range old {
		inter, recLeftover, ok := rec.Range.Clip(rng)
		if !ok {
			updated = append(updated, rec)
			continue
		}
		for _, lo := range recLeftover {
			clone := rec
			clone.Range = lo
			updated = append(updated, clone)
		}
		updated = append(updated, a.resolveOverlap(n, resID, inter, attr, layout, rec))

		var nextPending []subres.Range
		for _, p := range pending {
			_, leftover, ok := p.Clip(rec.Range)
			if !ok {
				nextPending = append(nextPending, p)
				continue
			}
			nextPending = append(nextPending, leftover...)
		}
		pending = nextPending
	}

	for _, p := range pending {
		updated = append(updated, freshRecord(p, attr, layout, n))
	}
	a.records[resID] = updated
}

// resolveOverlap decides, for the portion rng of rec that a
// new access attr/layout overlaps, whether the access is
// compatible with rec's (no new synchronization beyond an
// ordering edge — a read-after-read coalesce) or requires a
// synthesized transition node, and returns the accessRecord
// that portion of the resource now carries.
func (a *Analyzer) resolveOverlap(n graph.NodeId, resID int, rng subres.Range, attr signature.AccessAttr, layout driver.Layout, rec accessRecord) accessRecord {
	if attr.DiscardBefore {
		return freshRecord(rng, attr, layout, n)
	}

	compatible := layout == rec.Layout && attr.Access == rec.Access.Access && !attr.IsWrite()
	if compatible {
		if rec.Writer != graph.NilNode {
			a.b.AddDependency(rec.Writer, n)
		}
		readers := append(append([]graph.NodeId{}, rec.Readers...), n)
		return accessRecord{Range: rng, Access: attr, Layout: layout, Writer: rec.Writer, Readers: readers}
	}

	trans := a.b.Graph.AddNode(graph.EncodeTransition(len(a.Transitions)))
	preds := append([]graph.NodeId{}, rec.Readers...)
	if rec.Writer != graph.NilNode {
		preds = append(preds, rec.Writer)
	}
	for _, p := range preds {
		a.b.AddDependency(p, trans)
	}
	a.b.AddDependency(trans, n)

	a.Transitions = append(a.Transitions, TransitionInfo{
		Node:     trans,
		Resource: resID,
		Range:    rng,
		Transition: driver.Transition{
			Barrier: driver.Barrier{
				SyncBefore:   syncFor(rec.Access),
				SyncAfter:    syncFor(attr),
				AccessBefore: rec.Access.Access,
				AccessAfter:  attr.Access,
			},
			LayoutBefore: rec.Layout,
			LayoutAfter:  layout,
		},
	})
	nrec := freshRecord(rng, attr, layout, n)
	if !attr.IsWrite() {
		nrec.Writer = trans
	}
	return nrec
}

func freshRecord(rng subres.Range, attr signature.AccessAttr, layout driver.Layout, n graph.NodeId) accessRecord {
	rec := accessRecord{Range: rng, Access: attr, Layout: layout}
	if attr.IsWrite() {
		rec.Writer = n
	} else {
		rec.Writer = graph.NilNode
		rec.Readers = []graph.NodeId{n}
	}
	return rec
}

// layoutFor returns the image layout a given access implies.
func layoutFor(access driver.Access) driver.Layout {
	switch {
	case access&driver.AColorWrite != 0:
		return driver.LColorTarget
	case access&driver.ADSWrite != 0:
		return driver.LDSTarget
	case access&driver.ADSRead != 0:
		return driver.LDSRead
	case access&driver.AResolveWrite != 0:
		return driver.LResolveDst
	case access&driver.AResolveRead != 0:
		return driver.LResolveSrc
	case access&driver.ACopyWrite != 0:
		return driver.LCopyDst
	case access&driver.ACopyRead != 0:
		return driver.LCopySrc
	case access&(driver.AShaderRead|driver.AAnyRead|driver.AShaderWrite|driver.AAnyWrite) != 0:
		return driver.LShaderRead
	default:
		return driver.LCommon
	}
}

// syncFor returns the pipeline-stage sync scope a given
// access/stage combination participates in.
func syncFor(a signature.AccessAttr) driver.Sync {
	var s driver.Sync
	access := a.Access
	if access&(driver.AVertexBufRead|driver.AIndexBufRead) != 0 {
		s |= driver.SVertexInput
	}
	if access&(driver.AColorRead|driver.AColorWrite) != 0 {
		s |= driver.SColorOutput
	}
	if access&(driver.ADSRead|driver.ADSWrite) != 0 {
		s |= driver.SDSOutput
	}
	if access&(driver.AResolveRead|driver.AResolveWrite) != 0 {
		s |= driver.SResolve
	}
	if access&(driver.ACopyRead|driver.ACopyWrite) != 0 {
		s |= driver.SCopy
	}
	if access&(driver.AShaderRead|driver.AShaderWrite|driver.AAnyRead|driver.AAnyWrite) != 0 {
		if a.Stages&driver.SVertex != 0 {
			s |= driver.SVertexShading
		}
		if a.Stages&driver.SFragment != 0 {
			s |= driver.SFragmentShading
		}
		if a.Stages&driver.SCompute != 0 {
			s |= driver.SComputeShading
		}
	}
	if s == 0 {
		s = driver.SAll
	}
	return s
}
