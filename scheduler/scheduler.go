// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package scheduler implements the render graph's scheduling
// pass: dead-code elimination over the dependency graph the
// analyzer produced, a topological ordering that respects
// subgraph atomicity/sequential constraints and scheduler
// barriers, and cross-queue fence/signal-wait placement for
// the resulting order.
package scheduler

import (
	"math/rand"
	"sort"

	"github.com/gviegas/rendergraph/builder"
	"github.com/gviegas/rendergraph/graph"
	"github.com/gviegas/rendergraph/rgerr"
	"github.com/gviegas/rendergraph/signature"
)

// Flags select optional scheduling behaviors. MinimizeSwitch
// and PipelineAggressive are mutually exclusive: both trade
// off the same choice (how eagerly to interleave graphics and
// compute work) in opposite directions, so setting both is a
// caller error (see Run).
type Flags int

const (
	// MinimizeSwitch prefers the next-ready node on the same
	// queue as the node just scheduled, reducing pipeline
	// stalls from switching hardware queues.
	MinimizeSwitch Flags = 1 << iota
	// PipelineAggressive prefers the next-ready node on a
	// different queue than the node just scheduled, exposing
	// more opportunity for the two queues to overlap.
	PipelineAggressive
	// MemorySavingBias prefers, among ready nodes, the one with
	// the fewest outgoing dependency edges. It does not look at
	// resource lifetimes.
	MemorySavingBias
	// KeepProgramOrder makes the smallest-NodeId tie-break
	// explicit policy rather than an incidental fallback. It
	// is the zero-value behavior already; the flag exists so
	// callers can name it, e.g. to turn RandomOrder back off
	// for a single Run without clearing other bits.
	KeepProgramOrder
	// RandomOrder selects among ready nodes with Options.Rand
	// instead of falling back to program order, for fuzzing
	// and scheduler testing. Options.Rand must be non-nil.
	RandomOrder
	// DisableDeadCode skips the dead-code elimination pass:
	// every node reachable from the graph is scheduled,
	// regardless of whether it feeds an external output.
	DisableDeadCode
)

// Options configures a scheduling run.
type Options struct {
	Flags Flags
	// Rand supplies the selection order when Flags&RandomOrder
	// is set; required in that case.
	Rand *rand.Rand
}

// SyncPoint is a cross-queue dependency in the final order: To
// must wait for From's queue to reach Signal before it may
// observe Signal's effects via Wait.
type SyncPoint struct {
	FromQueue, ToQueue signature.QueueCap
	Signal, Wait       graph.NodeId
}

// Result is the output of a scheduling run.
type Result struct {
	// Order lists every live node in final execution order.
	Order []graph.NodeId
	// Dead lists every node dead-code elimination removed.
	Dead []graph.NodeId
	// Queue gives the assigned queue for every node in Order.
	Queue map[graph.NodeId]signature.QueueCap
	// Sync lists the cross-queue synchronization the order
	// requires.
	Sync []SyncPoint
	// Batch gives the batch id for every node in Order: a
	// maximal run of same-queue nodes with no intervening
	// cross-queue sync point. A caller's backend recorder
	// should start a new logical command-buffer block
	// (a Begin/End pair) at every batch boundary.
	Batch map[graph.NodeId]int
	// NumBatches is the number of distinct batch ids in Batch.
	NumBatches int
}

const pkgName = "scheduler"

// Scheduler schedules the graph a builder.Builder built,
// using the resource/node metadata it recorded to decide
// liveness and queue assignment.
type Scheduler struct {
	b *builder.Builder
}

// New creates a Scheduler over b.
func New(b *builder.Builder) *Scheduler {
	return &Scheduler{b: b}
}

// Run performs dead-code elimination, computes a topological
// order honoring subgraph and barrier constraints, and
// assigns cross-queue synchronization.
func (s *Scheduler) Run(opts Options) (*Result, error) {
	if opts.Flags&MinimizeSwitch != 0 && opts.Flags&PipelineAggressive != 0 {
		return nil, rgerr.New(pkgName, rgerr.InvalidArguments, "Run: MinimizeSwitch and PipelineAggressive are mutually exclusive")
	}
	if opts.Flags&KeepProgramOrder != 0 {
		opts.Flags &^= RandomOrder
	}
	if opts.Flags&RandomOrder != 0 && opts.Rand == nil {
		return nil, rgerr.New(pkgName, rgerr.InvalidArguments, "Run: RandomOrder set without Options.Rand")
	}
	g := s.b.Graph
	var live map[graph.NodeId]bool
	if opts.Flags&DisableDeadCode != 0 {
		live = make(map[graph.NodeId]bool, g.NumNodes())
		for i := 0; i < g.NumNodes(); i++ {
			live[graph.NodeId(i)] = true
		}
	} else {
		live = s.liveSet()
	}

	unitOf, members := s.contractAtomicSubgraphs(live)
	s.addSequentialOrderEdges(live)

	order, err := s.topoOrder(live, unitOf, members, opts)
	if err != nil {
		return nil, err
	}

	queue := make(map[graph.NodeId]signature.QueueCap, len(order))
	for _, n := range order {
		queue[n] = s.queueFor(n)
	}

	var dead []graph.NodeId
	for i := 0; i < g.NumNodes(); i++ {
		n := graph.NodeId(i)
		if !live[n] {
			dead = append(dead, n)
		}
	}

	sync := s.crossQueueSync(order, queue)
	batch, numBatches := s.assignBatches(order, queue, sync)

	return &Result{Order: order, Dead: dead, Queue: queue, Sync: sync, Batch: batch, NumBatches: numBatches}, nil
}

// assignBatches partitions order into maximal same-queue runs,
// starting a new batch at every queue change or cross-queue
// sync boundary.
func (s *Scheduler) assignBatches(order []graph.NodeId, queue map[graph.NodeId]signature.QueueCap, sync []SyncPoint) (map[graph.NodeId]int, int) {
	waits := make(map[graph.NodeId]bool, len(sync))
	for _, sp := range sync {
		waits[sp.Wait] = true
	}
	batch := make(map[graph.NodeId]int, len(order))
	id := 0
	var lastQueue signature.QueueCap
	for i, n := range order {
		q := queue[n]
		if i > 0 && (q != lastQueue || waits[n]) {
			id++
		}
		batch[n] = id
		lastQueue = q
	}
	if len(order) == 0 {
		return batch, 0
	}
	return batch, id + 1
}

// queueFor returns the queue a node executes on: the bound
// node kind's declared queue capability, reduced to a single
// queue by Graphics > Compute > Copy precedence. Nodes with no
// binding (markers, subgraph begin/end, synthesized
// transitions) default to Graphics, the most capable queue.
func (s *Scheduler) queueFor(n graph.NodeId) signature.QueueCap {
	bnd := s.b.Binding(n)
	if bnd == nil {
		return signature.Graphics
	}
	switch {
	case bnd.Decl.Queue&signature.Graphics != 0:
		return signature.Graphics
	case bnd.Decl.Queue&signature.Compute != 0:
		return signature.Compute
	case bnd.Decl.Queue&signature.Copy != 0:
		return signature.Copy
	default:
		return signature.Graphics
	}
}

// liveSet runs dead-code elimination: every node that writes a
// resource flagged as an external output is a root; every
// node backward-reachable (through in-edges) from a root is
// live. A node belonging to an Atomic subgraph is live if any
// member of that subgraph is.
func (s *Scheduler) liveSet() map[graph.NodeId]bool {
	g := s.b.Graph
	live := make(map[graph.NodeId]bool, g.NumNodes())
	var stack []graph.NodeId

	for i := 0; i < g.NumNodes(); i++ {
		n := graph.NodeId(i)
		bnd := s.b.Binding(n)
		if bnd == nil {
			continue
		}
		for _, pb := range bnd.Bindings {
			pi := bnd.Decl.ParamIndex(pb.Param)
			if pi < 0 {
				continue
			}
			if !bnd.Decl.Params[pi].Access.IsWrite() {
				continue
			}
			if s.b.Resource(pb.Resource).Flags.IsExternalOutput() {
				if !live[n] {
					live[n] = true
					stack = append(stack, n)
				}
			}
		}
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range g.InEdges(n) {
			if !live[p] {
				live[p] = true
				stack = append(stack, p)
			}
		}
	}

	// Propagate liveness across whole Atomic subgraphs: if any
	// member is live, every member (and its begin/end markers)
	// must execute too, since an atomic subgraph cannot be
	// partially elided.
	bySub := map[graph.SubgraphId][]graph.NodeId{}
	anyLive := map[graph.SubgraphId]bool{}
	for i := 0; i < g.NumNodes(); i++ {
		n := graph.NodeId(i)
		sg := g.Node(n).Subgraph
		if sg == graph.NilSubgraph || g.Subgraph(sg).Flags&graph.Atomic == 0 {
			continue
		}
		bySub[sg] = append(bySub[sg], n)
		if live[n] {
			anyLive[sg] = true
		}
	}
	for sg, members := range bySub {
		if !anyLive[sg] {
			continue
		}
		for _, n := range members {
			live[n] = true
		}
		sub := g.Subgraph(sg)
		live[sub.BeginNode] = true
		live[sub.EndNode] = true
	}

	return live
}

// contractAtomicSubgraphs assigns every live node a unit id: a
// live node outside any Atomic subgraph is its own unit;
// every live node inside a given Atomic subgraph shares one
// unit, represented by the subgraph's lowest-NodeId member.
func (s *Scheduler) contractAtomicSubgraphs(live map[graph.NodeId]bool) (unitOf map[graph.NodeId]graph.NodeId, members map[graph.NodeId][]graph.NodeId) {
	g := s.b.Graph
	unitOf = make(map[graph.NodeId]graph.NodeId, len(live))
	members = make(map[graph.NodeId][]graph.NodeId)

	bySub := map[graph.SubgraphId][]graph.NodeId{}
	for n := range live {
		sg := g.Node(n).Subgraph
		if sg != graph.NilSubgraph && g.Subgraph(sg).Flags&graph.Atomic != 0 {
			bySub[sg] = append(bySub[sg], n)
		}
	}
	for _, ns := range bySub {
		sort.Slice(ns, func(i, j int) bool { return ns[i] < ns[j] })
		unit := ns[0]
		for _, n := range ns {
			unitOf[n] = unit
		}
		members[unit] = ns
	}
	for n := range live {
		if _, ok := unitOf[n]; !ok {
			unitOf[n] = n
			members[n] = []graph.NodeId{n}
		}
	}
	return unitOf, members
}

// addSequentialOrderEdges adds an explicit ordering edge
// between each consecutive pair of live members of a
// Sequential subgraph (in NodeId order), so the topological
// sort cannot interleave them out of declaration order even
// though the subgraph as a whole remains free to move.
func (s *Scheduler) addSequentialOrderEdges(live map[graph.NodeId]bool) {
	g := s.b.Graph
	bySub := map[graph.SubgraphId][]graph.NodeId{}
	for n := range live {
		sg := g.Node(n).Subgraph
		if sg != graph.NilSubgraph && g.Subgraph(sg).Flags&graph.Sequential != 0 {
			bySub[sg] = append(bySub[sg], n)
		}
	}
	for _, ns := range bySub {
		sort.Slice(ns, func(i, j int) bool { return ns[i] < ns[j] })
		for i := 1; i < len(ns); i++ {
			g.AddEdge(ns[i-1], ns[i])
		}
	}
}

// topoOrder computes a topological order over the contracted
// unit graph, tie-breaking ready units according to opts, and
// expands each chosen unit back into its member NodeIds in
// ascending order.
func (s *Scheduler) topoOrder(live map[graph.NodeId]bool, unitOf map[graph.NodeId]graph.NodeId, members map[graph.NodeId][]graph.NodeId, opts Options) ([]graph.NodeId, error) {
	g := s.b.Graph

	indeg := map[graph.NodeId]int{}
	succ := map[graph.NodeId]map[graph.NodeId]bool{}
	for unit := range members {
		indeg[unit] = 0
	}
	for n := range live {
		u := unitOf[n]
		for _, p := range g.InEdges(n) {
			if !live[p] {
				continue
			}
			pu := unitOf[p]
			if pu == u {
				continue
			}
			if succ[pu] == nil {
				succ[pu] = map[graph.NodeId]bool{}
			}
			if !succ[pu][u] {
				succ[pu][u] = true
				indeg[u]++
			}
		}
	}

	var ready []graph.NodeId
	for unit, d := range indeg {
		if d == 0 {
			ready = append(ready, unit)
		}
	}

	var order []graph.NodeId
	var lastQueue signature.QueueCap
	haveLast := false
	scheduled := 0
	total := len(members)

	for len(ready) > 0 {
		var idx int
		if opts.Flags&RandomOrder != 0 {
			idx = opts.Rand.Intn(len(ready))
		} else {
			idx = s.pickNext(ready, lastQueue, haveLast, opts)
		}
		unit := ready[idx]
		ready = append(ready[:idx], ready[idx+1:]...)

		for _, n := range members[unit] {
			order = append(order, n)
			lastQueue = s.queueFor(n)
			haveLast = true
		}
		scheduled++

		for v := range succ[unit] {
			indeg[v]--
			if indeg[v] == 0 {
				ready = append(ready, v)
			}
		}
	}

	if scheduled != total {
		return nil, errCycle()
	}
	return order, nil
}

// pickNext selects which ready unit to schedule next,
// honoring opts.Flags, with a stable fallback to the
// smallest-NodeId member (program order).
func (s *Scheduler) pickNext(ready []graph.NodeId, lastQueue signature.QueueCap, haveLast bool, opts Options) int {
	best := 0
	for i := 1; i < len(ready); i++ {
		if s.less(ready[i], ready[best], lastQueue, haveLast, opts) {
			best = i
		}
	}
	return best
}

func (s *Scheduler) less(a, b graph.NodeId, lastQueue signature.QueueCap, haveLast bool, opts Options) bool {
	if haveLast && opts.Flags&MinimizeSwitch != 0 {
		aSame, bSame := s.queueFor(a) == lastQueue, s.queueFor(b) == lastQueue
		if aSame != bSame {
			return aSame
		}
	}
	if haveLast && opts.Flags&PipelineAggressive != 0 {
		aDiff, bDiff := s.queueFor(a) != lastQueue, s.queueFor(b) != lastQueue
		if aDiff != bDiff {
			return aDiff
		}
	}
	if opts.Flags&MemorySavingBias != 0 {
		ao, bo := len(s.b.Graph.OutEdges(a)), len(s.b.Graph.OutEdges(b))
		if ao != bo {
			return ao < bo
		}
	}
	return a < b
}

// crossQueueSync walks order and records a SyncPoint for every
// dependency edge whose endpoints execute on different queues.
func (s *Scheduler) crossQueueSync(order []graph.NodeId, queue map[graph.NodeId]signature.QueueCap) []SyncPoint {
	g := s.b.Graph
	pos := make(map[graph.NodeId]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	var sync []SyncPoint
	seen := map[[2]graph.NodeId]bool{}
	for _, n := range order {
		for _, p := range g.InEdges(n) {
			if _, ok := pos[p]; !ok {
				continue
			}
			if queue[p] == queue[n] {
				continue
			}
			key := [2]graph.NodeId{p, n}
			if seen[key] {
				continue
			}
			seen[key] = true
			sync = append(sync, SyncPoint{FromQueue: queue[p], ToQueue: queue[n], Signal: p, Wait: n})
		}
	}
	return sync
}

func errCycle() error {
	return rgerr.New(pkgName, rgerr.InvalidOperation, "Run: dependency graph contains a cycle")
}
