// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package rendergraph is the render-graph façade (component
// C10): it owns every other package in this module and exposes
// the small surface an engine actually calls across a frame —
// Create once, then Update every frame, then RecordCommands
// (possibly from several goroutines over disjoint ranges of
// the published command stream) and, for tooling,
// GetDiagnosticInfo.
//
// The control flow follows a long-lived-object pattern: a
// RenderGraph resets per-frame scratch state (here, the
// builder's graph and its lexical-position counters — see
// builder.Reset) and republishes a fresh result every
// call, while persistent state (heap placements, program
// instance identities) survives across calls the way a
// ring-buffered renderer's per-frame resources do.
package rendergraph

import (
	"errors"
	"math/rand"

	"github.com/gviegas/rendergraph/alloc"
	"github.com/gviegas/rendergraph/analyzer"
	"github.com/gviegas/rendergraph/builder"
	"github.com/gviegas/rendergraph/driver"
	"github.com/gviegas/rendergraph/graph"
	"github.com/gviegas/rendergraph/program"
	"github.com/gviegas/rendergraph/rgerr"
	"github.com/gviegas/rendergraph/scheduler"
	"github.com/gviegas/rendergraph/signature"
)

const pkgName = "rendergraph"

// ErrAvoidReschedule is returned by a Phase to tell Update that
// every remaining phase should be skipped for this frame: the
// previously published schedule and placements are still
// valid because nothing this phase depends on changed.
var ErrAvoidReschedule = rgerr.New(pkgName, rgerr.InternalError, "phase requested reschedule avoidance")

// CreateFlags select render-graph-wide behaviors fixed at
// creation time: whether unbound nodes are an error, and
// whether the memory planner may alias or must keep every
// resource fully lived for the frame.
type CreateFlags int

const (
	// DisallowUnboundNodes makes RecordCommands fail with
	// UnrecognizedCommand for any live node whose declared
	// kind has no registered callback, instead of silently
	// skipping it.
	DisallowUnboundNodes CreateFlags = 1 << iota
	// NoGpuMemoryAliasing forbids the memory planner from
	// reusing a freed span for a later, non-overlapping
	// resource: every resource keeps a distinct heap range.
	NoGpuMemoryAliasing
	// NoLifetimeAnalysis forces every resource to a distinct
	// range for its entire frame, as if every resource were
	// live across the whole schedule.
	NoLifetimeAnalysis
)

// Build is the user's program body: it populates b with
// resource declarations, node calls, dependencies, and
// subgraph scopes for one frame. It is invoked once per
// Update, against a freshly Reset builder.
type Build func(b *builder.Builder) error

// CreateInfo configures a new RenderGraph.
type CreateInfo struct {
	// Backend sizes and binds transient resources. Required.
	Backend driver.ResourceBackend
	// EntryPoint is the top-level program body. Required.
	EntryPoint Build
	// Flags are the render-graph-wide behaviors described above.
	Flags CreateFlags
	// DefaultSchedule is used by Update whenever its own
	// UpdateInfo.Flags is left at the zero value.
	DefaultSchedule scheduler.Flags
	// Phases overrides the default build/analyze/schedule/
	// allocate/finalize pipeline. Most callers should leave
	// this nil.
	Phases []Phase
}

// UpdateInfo configures one call to Update.
type UpdateInfo struct {
	// FrameIndex is the caller's monotonically increasing
	// frame counter. Update records it for GetDiagnosticInfo;
	// no phase uses it to select among a resource's
	// temporal-layer replicas.
	FrameIndex int
	// GPUCompletedFrameIndex is the last frame index the GPU
	// is known to have finished; resource teardown for
	// frames at or before it is safe. The core does not
	// destroy anything itself, but carries the value for a
	// caller-supplied teardown policy to consult via
	// GetDiagnosticInfo.
	GPUCompletedFrameIndex int
	// Flags overrides CreateInfo.DefaultSchedule for this
	// frame only.
	Flags scheduler.Flags
	// Rand is required when Flags has scheduler.RandomOrder
	// set.
	Rand *rand.Rand
}

// RenderGraph owns one frame's worth of build/analyze/
// schedule/allocate state, plus the persistent identity and
// placement state that must survive across frames.
type RenderGraph struct {
	backend  driver.ResourceBackend
	build    Build
	flags    CreateFlags
	defaults scheduler.Flags
	phases   []Phase

	registry *program.Registry
	root     *program.Instance
	b        *builder.Builder
	planner  *alloc.Planner

	callbacks      map[string]NodeCallback
	transitionHook TransitionCallback

	// Published results of the most recent successful Update.
	analysis    *analyzer.Analyzer
	schedule    *scheduler.Result
	placements  []alloc.Placement
	frameIndex  int
	completedAt int
}

// Create builds a new RenderGraph from ci.
func Create(ci CreateInfo) (*RenderGraph, error) {
	if ci.Backend == nil {
		return nil, rgerr.New(pkgName, rgerr.InvalidArguments, "Create: nil Backend")
	}
	if ci.EntryPoint == nil {
		return nil, rgerr.New(pkgName, rgerr.InvalidArguments, "Create: nil EntryPoint")
	}

	registry := program.NewRegistry()
	root := registry.Instantiate("__root__", 0)
	b := builder.New(graph.New(), root.Gen)

	var plannerOpts alloc.Options
	plannerOpts.NoAliasing = ci.Flags&NoGpuMemoryAliasing != 0
	plannerOpts.NoLifetimeAnalysis = ci.Flags&NoLifetimeAnalysis != 0

	rg := &RenderGraph{
		backend:   ci.Backend,
		build:     ci.EntryPoint,
		flags:     ci.Flags,
		defaults:  ci.DefaultSchedule,
		phases:    ci.Phases,
		registry:  registry,
		root:      root,
		b:         b,
		planner:   alloc.New(ci.Backend, plannerOpts),
		callbacks: make(map[string]NodeCallback),
	}
	if rg.phases == nil {
		rg.phases = DefaultPhases()
	}
	return rg, nil
}

// Builder returns the RenderGraph's Builder, for use by an
// EntryPoint that needs to call DeclareNodeKind once up front
// (outside of a per-frame Build closure) or by a caller
// wiring node callbacks against signature.NodeDeclInfo values
// it already holds.
func (rg *RenderGraph) Builder() *builder.Builder { return rg.b }

// Registry returns the program-instance registry backing
// nested subprogram calls (see builder.Builder.CallSubroutine),
// so an EntryPoint can instantiate a named subroutine's
// program.Instance by a caller-chosen slot (e.g. a loop index)
// and keep its identity stable across frames.
func (rg *RenderGraph) Registry() *program.Registry { return rg.registry }

// Update reruns the build/analyze/schedule/allocate/finalize
// pipeline (or ci.Phases, if the caller overrode it) for one
// frame.
func (rg *RenderGraph) Update(ui UpdateInfo) error {
	flags := ui.Flags
	if flags == 0 {
		flags = rg.defaults
	}
	rg.frameIndex = ui.FrameIndex
	rg.completedAt = ui.GPUCompletedFrameIndex

	pc := &phaseCtx{rg: rg, ui: ui, flags: flags}
	for _, ph := range rg.phases {
		if err := ph(pc); err != nil {
			if errors.Is(err, ErrAvoidReschedule) {
				return nil
			}
			return err
		}
	}
	return nil
}

// NumNodes returns the number of nodes in the most recently
// scheduled command stream (the length a RecordInfo range may
// address).
func (rg *RenderGraph) NumNodes() int {
	if rg.schedule == nil {
		return 0
	}
	return len(rg.schedule.Order)
}

// QueueFor reports the queue the most recent schedule assigned
// to node n, or 0 if n was not scheduled (dead, or n belongs to
// a stale schedule).
func (rg *RenderGraph) QueueFor(n graph.NodeId) signature.QueueCap {
	if rg.schedule == nil {
		return 0
	}
	return rg.schedule.Queue[n]
}
