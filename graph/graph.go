// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package graph implements the render graph's node/edge/
// subgraph data model: a dense node list, a shared edge
// vector addressed through power-of-two spans (see package
// arena), and nested subgraphs used to scope scheduling.
//
// No deduplication of edges is performed; consumers must
// tolerate multiple edges between the same pair of nodes.
package graph

import "github.com/gviegas/rendergraph/arena"

// NodeId identifies a node by its dense index into a Graph.
type NodeId int32

// NilNode is not a valid node.
const NilNode NodeId = -1

// SubgraphId identifies a subgraph by its dense index into
// a Graph.
type SubgraphId int32

// NilSubgraph is not a valid subgraph.
const NilSubgraph SubgraphId = -1

// Built-in markers. A node's CmdId is negative for these
// and for synthesized transitions; it is the dense index of
// a Cmd for every other node. The two encodings share the
// "negative" half of the range but never the same values:
// markers occupy [markerFloor, -1] and transition indices
// are encoded strictly below markerFloor (see EncodeTransition).
// The source left this encoding's exact numbering unstated;
// this is a deliberate, documented choice, not a guess
// carried into behavior that matters (callers only ever
// compare against the named constants and the Encode/Decode
// helpers below).
type CmdId int32

const (
	CmdSchedulerBarrier  CmdId = -1
	CmdSubgraphBegin     CmdId = -2
	CmdSubgraphEnd       CmdId = -3
	CmdSubroutineBegin   CmdId = -4
	CmdSubroutineEnd     CmdId = -5
	markerFloor          CmdId = -6
)

// EncodeTransition returns the CmdId for the idx-th
// synthesized transition.
func EncodeTransition(idx int) CmdId { return markerFloor - 1 - CmdId(idx) }

// DecodeTransition reports the transition index encoded in
// id, if any.
func DecodeTransition(id CmdId) (idx int, ok bool) {
	if id > markerFloor-1 {
		return 0, false
	}
	return int(markerFloor - 1 - id), true
}

// IsMarker reports whether id names a built-in marker.
func IsMarker(id CmdId) bool { return id <= -1 && id >= markerFloor }

// IsCommand reports whether id indexes a Cmd.
func IsCommand(id CmdId) bool { return id >= 0 }

// Edge is an ordered pair (Src, Dst) of NodeId. Edges live
// in a single shared vector; a node's in- and out-edge spans
// hold indices into that vector, so the same Edge record is
// reachable both from its source's out-edge span and from
// its destination's in-edge span.
type Edge struct {
	Src, Dst NodeId
}

// SubgraphFlags scope a subgraph's reordering freedom.
type SubgraphFlags int

const (
	// Atomic: members must not be reordered across the
	// subgraph's boundary; the scheduler contracts the
	// whole subgraph into one super-node.
	Atomic SubgraphFlags = 1 << iota
	// Sequential: members must execute in declared order,
	// but the subgraph as a whole may be reordered freely
	// relative to the rest of the graph.
	Sequential
)

// Subgraph is a contiguous, named span of nodes with scoping
// flags.
type Subgraph struct {
	Parent    SubgraphId
	Flags     SubgraphFlags
	BeginNode NodeId
	EndNode   NodeId
}

// Node is the graph's per-node record.
type Node struct {
	CmdId    CmdId
	Subgraph SubgraphId
	// BarrierScope counts the number of scheduler barriers
	// that precede this node in program order; the
	// scheduler uses it to forbid reordering across an
	// explicit barrier without modeling one edge per pair
	// of nodes that straddle it.
	BarrierScope int32

	inStart, outStart uint32
	inClass, outClass int8 // -1 means empty/unallocated
	inLen, outLen     uint32
}

// Graph is the node/edge/subgraph store for one render-graph
// build. The zero value is not usable; call New.
type Graph struct {
	nodes     []Node
	edges     []Edge
	edgeIdx   []uint32 // span-pool-managed vector of indices into edges
	subgraphs []Subgraph
	pool      *arena.Pool[uint32]

	openSubgraph SubgraphId // subgraph awaiting EndSubgraph, or NilSubgraph
	barriers     int32
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{pool: arena.NewPool[uint32](), openSubgraph: NilSubgraph}
}

// Reset empties g while retaining its backing storage, for
// reuse across per-frame rebuilds.
func (g *Graph) Reset() {
	g.nodes = g.nodes[:0]
	g.edges = g.edges[:0]
	g.edgeIdx = g.edgeIdx[:0]
	g.subgraphs = g.subgraphs[:0]
	g.pool = arena.NewPool[uint32]()
	g.openSubgraph = NilSubgraph
	g.barriers = 0
}

// NumNodes returns the number of nodes currently in g.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the number of edges currently in g.
func (g *Graph) NumEdges() int { return len(g.edges) }

// Node returns the Node record for n.
func (g *Graph) Node(n NodeId) *Node { return &g.nodes[n] }

// AddNode appends a new node with the given CmdId and
// returns its dense NodeId. The node is attached to the
// currently open subgraph, if any.
func (g *Graph) AddNode(cmdID CmdId) NodeId {
	id := NodeId(len(g.nodes))
	g.nodes = append(g.nodes, Node{
		CmdId:        cmdID,
		Subgraph:     g.openSubgraph,
		inClass:      -1,
		outClass:     -1,
		BarrierScope: g.barriers,
	})
	return id
}

// CloneNode creates a new node with newCmdID whose in- and
// out-edge lists are duplicates of src's. Used when a
// transition is inserted and src's original edges must be
// split between the transition and the original node: the
// caller re-adds the edges that should be kept on each side
// after cloning.
func (g *Graph) CloneNode(src NodeId, newCmdID CmdId) NodeId {
	s := g.nodes[src]
	dst := g.AddNode(newCmdID)
	for _, e := range g.InEdges(src) {
		g.AddEdge(e, dst)
	}
	for _, e := range g.OutEdges(src) {
		g.AddEdge(dst, e)
	}
	g.nodes[dst].Subgraph = s.Subgraph
	g.nodes[dst].BarrierScope = s.BarrierScope
	return dst
}

// AddEdge appends a dependency src -> dst: dst must observe
// the effects of src. The edge is appended once to the
// shared edge vector and referenced from both src's out-edge
// span and dst's in-edge span.
func (g *Graph) AddEdge(src, dst NodeId) {
	idx := uint32(len(g.edges))
	g.edges = append(g.edges, Edge{Src: src, Dst: dst})

	sn := &g.nodes[src]
	var newClass int
	sn.outStart, newClass, sn.outLen = g.pool.PushToSpan(&g.edgeIdx, sn.outStart, int(sn.outClass), sn.outLen, idx)
	sn.outClass = int8(newClass)

	dn := &g.nodes[dst]
	dn.inStart, newClass, dn.inLen = g.pool.PushToSpan(&g.edgeIdx, dn.inStart, int(dn.inClass), dn.inLen, idx)
	dn.inClass = int8(newClass)
}

// InEdges returns the NodeId of every producer of n, i.e.
// the Src of every edge in n's in-edge span.
func (g *Graph) InEdges(n NodeId) []NodeId {
	nd := &g.nodes[n]
	return g.resolve(nd.inStart, nd.inLen, true)
}

// OutEdges returns the NodeId of every consumer of n, i.e.
// the Dst of every edge in n's out-edge span.
func (g *Graph) OutEdges(n NodeId) []NodeId {
	nd := &g.nodes[n]
	return g.resolve(nd.outStart, nd.outLen, false)
}

func (g *Graph) resolve(start, length uint32, src bool) []NodeId {
	out := make([]NodeId, length)
	for i := uint32(0); i < length; i++ {
		e := g.edges[g.edgeIdx[start+i]]
		if src {
			out[i] = e.Src
		} else {
			out[i] = e.Dst
		}
	}
	return out
}

// BeginSubgraph opens a new subgraph as a child of parent
// (NilSubgraph for a top-level subgraph), starting at begin.
// It must be matched by EndSubgraph before another
// BeginSubgraph call, and subgraphs must not be nested while
// one is already open unless the caller intends a nested
// scope (parent is then the currently open subgraph's id).
func (g *Graph) BeginSubgraph(parent SubgraphId, flags SubgraphFlags, begin NodeId) SubgraphId {
	id := SubgraphId(len(g.subgraphs))
	g.subgraphs = append(g.subgraphs, Subgraph{
		Parent:    parent,
		Flags:     flags,
		BeginNode: begin,
		EndNode:   NilNode,
	})
	g.openSubgraph = id
	return id
}

// EndSubgraph closes subgraph id at end, restoring the
// enclosing subgraph (if any) as current.
func (g *Graph) EndSubgraph(id SubgraphId, end NodeId) {
	g.subgraphs[id].EndNode = end
	g.openSubgraph = g.subgraphs[id].Parent
}

// OpenSubgraph returns the subgraph currently accepting
// nodes, or NilSubgraph.
func (g *Graph) OpenSubgraph() SubgraphId { return g.openSubgraph }

// Subgraph returns the Subgraph record for id.
func (g *Graph) Subgraph(id SubgraphId) *Subgraph { return &g.subgraphs[id] }

// NumSubgraphs returns the number of subgraphs in g.
func (g *Graph) NumSubgraphs() int { return len(g.subgraphs) }

// IsParentSubgraph reports whether parent is an ancestor of
// child (or equal to it), walking the parent chain in
// O(depth).
func (g *Graph) IsParentSubgraph(parent, child SubgraphId) bool {
	for child != NilSubgraph {
		if child == parent {
			return true
		}
		child = g.subgraphs[child].Parent
	}
	return parent == NilSubgraph
}

// ScheduleBarrier records a scheduler-ordering barrier: every
// node added after this call carries a higher BarrierScope
// than every node added before it, so the scheduler can
// forbid moving a node across the boundary without an edge
// per pair.
func (g *Graph) ScheduleBarrier() NodeId {
	id := g.AddNode(CmdSchedulerBarrier)
	g.barriers++
	return id
}
