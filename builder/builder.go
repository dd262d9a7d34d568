// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package builder implements the declarative API a program
// body calls against to construct one frame's render graph:
// declaring resources and node kinds, adding node instances
// and the dependencies between them, and scoping subgraphs —
// the thin layer that wires package graph, package signature
// and package program together the way a caller actually
// drives them.
package builder

import (
	"github.com/gviegas/rendergraph/graph"
	"github.com/gviegas/rendergraph/program"
	"github.com/gviegas/rendergraph/rgerr"
	"github.com/gviegas/rendergraph/signature"
	"github.com/gviegas/rendergraph/subres"
)

const pkgName = "builder"

// ParamBinding is one resource parameter binding supplied to
// AddNode: which resource the parameter reads/writes, and
// which subresource range of it. An empty Range means the
// resource's full extent.
type ParamBinding struct {
	Param    string
	Resource int // stable resource id, from DeclareResource
	Range    subres.Range
}

// NodeBinding is everything the analyzer and scheduler need
// about one added node: the kind it was declared against and
// the concrete parameter bindings supplied for this call.
type NodeBinding struct {
	Decl     *signature.NodeDeclInfo
	Bindings []ParamBinding
}

// Builder accumulates one frame's graph.Graph alongside the
// resource declarations and node bindings the analyzer and
// scheduler need, threading a program.Generator through
// control flow so repeated Update calls assign the same
// stable ids to the same logical resources and nodes.
type Builder struct {
	Graph *graph.Graph
	Gen   *program.Generator

	resources []signature.ResourceDecl
	bindings  map[graph.NodeId]*NodeBinding

	decls map[string]*signature.NodeDeclInfo

	resCounter  []int // local-index counter for resources, one per nesting depth
	nodeCounter []int // local-index counter for nodes, one per nesting depth
}

// New creates a Builder over g and gen. Both are typically
// owned by a program.Instance and reused, with g reset to
// empty, across frames.
func New(g *graph.Graph, gen *program.Generator) *Builder {
	return &Builder{
		Graph:    g,
		Gen:      gen,
		bindings: make(map[graph.NodeId]*NodeBinding),
		decls:    make(map[string]*signature.NodeDeclInfo),
	}
}

// DeclareNodeKind registers decl under its Name for later
// AddNode calls. Registration is idempotent across frames: a
// later DeclareNodeKind call with the same name simply
// replaces the stored pointer, since the signature is derived
// fresh (and deterministically) every frame from the same
// caller-supplied descriptors.
func (b *Builder) DeclareNodeKind(decl *signature.NodeDeclInfo) {
	b.decls[decl.Name] = decl
}

// NodeKind returns the NodeDeclInfo registered under name, or
// nil.
func (b *Builder) NodeKind(name string) *signature.NodeDeclInfo {
	return b.decls[name]
}

func (b *Builder) depth() int { return b.Gen.Depth() }

func (b *Builder) counterAt(counters *[]int) *int {
	d := b.depth()
	for len(*counters) <= d {
		*counters = append(*counters, 0)
	}
	return &(*counters)[d]
}

// resetCountersAtDepth zeroes the local-index counters for the
// current nesting depth: called whenever the generator starts
// a new block occurrence (EnterFunction, EnterLoop) or rewinds
// to the next iteration of the current one (LoopIteration), so
// that Generate<Kind>(local_index) calls made while declaring
// that occurrence's body start counting from zero again.
func (b *Builder) resetCountersAtDepth() {
	d := b.depth()
	if d < len(b.resCounter) {
		b.resCounter[d] = 0
	}
	if d < len(b.nodeCounter) {
		b.nodeCounter[d] = 0
	}
}

// DeclareResource assigns decl a stable resource id (stable
// across frames for the same lexical declaration site) and
// records its descriptor, growing the builder's resource
// table as needed. The returned id indexes Resources.
func (b *Builder) DeclareResource(decl signature.ResourceDecl) int {
	c := b.counterAt(&b.resCounter)
	localIndex := *c
	*c++
	id := b.Gen.Generate(program.KindResource, localIndex)
	if id >= len(b.resources) {
		grown := make([]signature.ResourceDecl, id+1)
		copy(grown, b.resources)
		b.resources = grown
	}
	b.resources[id] = decl
	return id
}

// Resource returns the declaration for a stable resource id
// returned by DeclareResource.
func (b *Builder) Resource(id int) *signature.ResourceDecl { return &b.resources[id] }

// Resources returns every declared resource, indexed by
// stable id; a zero-value entry marks an id that was never
// declared on this frame (e.g. a loop that ran fewer
// iterations than a previous frame).
func (b *Builder) Resources() []signature.ResourceDecl { return b.resources }

// AddNode adds a node instance of the given declared kind,
// with the given parameter bindings, and returns its NodeId.
// The node's identity (its graph.CmdId) is the stable id the
// generator assigns to this lexical call site, so the same
// logical node instance gets the same CmdId across frames.
func (b *Builder) AddNode(declName string, bindings []ParamBinding) (graph.NodeId, error) {
	decl, ok := b.decls[declName]
	if !ok {
		return graph.NilNode, rgerr.New(pkgName, rgerr.UnknownNode, "AddNode: undeclared node kind "+declName)
	}
	for _, bnd := range bindings {
		if decl.ParamIndex(bnd.Param) < 0 {
			return graph.NilNode, rgerr.New(pkgName, rgerr.InvalidArguments, "AddNode: unknown parameter "+bnd.Param+" for "+declName)
		}
	}

	c := b.counterAt(&b.nodeCounter)
	localIndex := *c
	*c++
	stableID := b.Gen.Generate(program.KindNode, localIndex)

	n := b.Graph.AddNode(graph.CmdId(stableID))
	b.bindings[n] = &NodeBinding{Decl: decl, Bindings: bindings}
	return n, nil
}

// Binding returns the NodeBinding recorded for n, or nil if n
// is not a node added through AddNode (e.g. a marker or a
// transition synthesized by the analyzer).
func (b *Builder) Binding(n graph.NodeId) *NodeBinding { return b.bindings[n] }

// AddDependency records that dst must observe the effects of
// src.
func (b *Builder) AddDependency(src, dst graph.NodeId) { b.Graph.AddEdge(src, dst) }

// BeginSubgraph opens a subgraph scoping the nodes added until
// the matching EndSubgraph, nested under the currently open
// subgraph (if any).
func (b *Builder) BeginSubgraph(flags graph.SubgraphFlags) (graph.SubgraphId, graph.NodeId) {
	begin := b.Graph.AddNode(graph.CmdSubgraphBegin)
	id := b.Graph.BeginSubgraph(b.Graph.OpenSubgraph(), flags, begin)
	return id, begin
}

// EndSubgraph closes the subgraph opened by BeginSubgraph.
func (b *Builder) EndSubgraph(id graph.SubgraphId) graph.NodeId {
	end := b.Graph.AddNode(graph.CmdSubgraphEnd)
	b.Graph.EndSubgraph(id, end)
	return end
}

// ScheduleBarrier forbids the scheduler from reordering any
// node added before this call past any node added after it.
func (b *Builder) ScheduleBarrier() graph.NodeId { return b.Graph.ScheduleBarrier() }

// CallSubroutine invokes body with gen substituted as b's
// active persistent-index generator, bracketed by
// subroutine-begin/end marker nodes in the shared Graph. This
// is how a nested subprogram instance (see package program)
// gets its own stable-id space while still appending nodes to
// the same node stream the outer program is building: the
// caller's own lexical counters are saved and restored around
// the call, so resuming the outer body afterward continues
// counting from where it left off.
//
// Distinct program instances may legitimately reuse the same
// CmdId values for unrelated nodes — a stable id is only
// unique within the generator that produced it, exactly as
// NodeId (not CmdId) is what the rest of the pipeline uses to
// address a node in this Graph.
func (b *Builder) CallSubroutine(gen *program.Generator, body func(*Builder) error) (begin, end graph.NodeId, err error) {
	begin = b.Graph.AddNode(graph.CmdSubroutineBegin)

	savedGen, savedRes, savedNode := b.Gen, b.resCounter, b.nodeCounter
	b.Gen, b.resCounter, b.nodeCounter = gen, nil, nil

	err = body(b)

	b.Gen, b.resCounter, b.nodeCounter = savedGen, savedRes, savedNode
	end = b.Graph.AddNode(graph.CmdSubroutineEnd)
	return begin, end, err
}

// Reset clears per-frame state (the graph, the node bindings,
// the resource table, and the lexical-position counters) in
// preparation for a new call to the program body, while
// keeping the Generator's accumulated block/instance state so
// stable ids continue across frames.
func (b *Builder) Reset() {
	b.Graph.Reset()
	for k := range b.bindings {
		delete(b.bindings, k)
	}
	b.resources = b.resources[:0]
	b.resCounter = b.resCounter[:0]
	b.nodeCounter = b.nodeCounter[:0]
}

// EnterFunction forwards to the Generator and resets this
// depth's lexical counters.
func (b *Builder) EnterFunction(counts [program.NumKinds]int) error {
	if _, err := b.Gen.EnterFunction(counts); err != nil {
		return err
	}
	b.resetCountersAtDepth()
	return nil
}

// ExitFunction forwards to the Generator.
func (b *Builder) ExitFunction() { b.Gen.ExitFunction() }

// EnterLoop forwards to the Generator.
func (b *Builder) EnterLoop(localIndex, numChildren int, counts [program.NumKinds]int) error {
	if _, err := b.Gen.EnterLoop(localIndex, numChildren, counts); err != nil {
		return err
	}
	b.resetCountersAtDepth()
	return nil
}

// LoopIteration forwards to the Generator.
func (b *Builder) LoopIteration() error {
	if _, err := b.Gen.LoopIteration(); err != nil {
		return err
	}
	b.resetCountersAtDepth()
	return nil
}

// ExitLoop forwards to the Generator.
func (b *Builder) ExitLoop() { b.Gen.ExitLoop() }
