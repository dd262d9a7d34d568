// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/analyzer"
	"github.com/gviegas/rendergraph/scheduler"
)

// phaseCtx carries one Update call's state between phases.
type phaseCtx struct {
	rg    *RenderGraph
	ui    UpdateInfo
	flags scheduler.Flags
}

// Phase is one stage of the façade's per-frame pipeline. A
// phase may return ErrAvoidReschedule to short-circuit the
// remaining phases when it determines this frame's inputs are
// unchanged from the last successful Update.
type Phase func(*phaseCtx) error

// DefaultPhases returns the default build -> analyze ->
// schedule -> allocate -> finalize pipeline.
func DefaultPhases() []Phase {
	return []Phase{phaseBuild, phaseAnalyze, phaseSchedule, phaseAllocate, phaseFinalize}
}

// phaseBuild resets the builder's per-frame state and runs the
// user's entry point against it.
func phaseBuild(pc *phaseCtx) error {
	pc.rg.b.Reset()
	return pc.rg.build(pc.rg.b)
}

// phaseAnalyze runs access analysis over the graph the build
// phase populated, inserting transitions and dependency edges.
func phaseAnalyze(pc *phaseCtx) error {
	a := analyzer.New(pc.rg.b)
	if err := a.Analyze(); err != nil {
		return err
	}
	pc.rg.analysis = a
	return nil
}

// phaseSchedule linearizes the augmented graph.
func phaseSchedule(pc *phaseCtx) error {
	opts := scheduler.Options{Flags: pc.flags, Rand: pc.ui.Rand}
	res, err := scheduler.New(pc.rg.b).Run(opts)
	if err != nil {
		return err
	}
	pc.rg.schedule = res
	return nil
}

// phaseAllocate assigns heap placements to every resource the
// schedule actually touches.
func phaseAllocate(pc *phaseCtx) error {
	placements, err := pc.rg.planner.Plan(pc.rg.b, pc.rg.schedule.Order)
	if err != nil {
		return err
	}
	pc.rg.placements = placements
	return nil
}

// phaseFinalize is a no-op extension point: a caller-supplied
// phase list can append its own finishing phase (e.g. to bind
// backend descriptor tables against the published placements)
// after the default pipeline without reimplementing it.
func phaseFinalize(pc *phaseCtx) error { return nil }
