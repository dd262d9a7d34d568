// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package rendergraph

import (
	"github.com/gviegas/rendergraph/analyzer"
	"github.com/gviegas/rendergraph/builder"
	"github.com/gviegas/rendergraph/graph"
	"github.com/gviegas/rendergraph/rgerr"
	"github.com/gviegas/rendergraph/signature"
)

// RecordContext is what a NodeCallback receives: the handful
// of accessors a program body needs at record time (a
// resource's descriptor, its runtime handle, render-pass
// info, and so on), narrowed to what this core (as opposed to
// a per-backend recorder, out of scope here) can actually
// supply — the node's declaration, its concrete parameter
// bindings, and the caller-supplied command-buffer handle.
// Translating Bindings into actual graphics-API calls against
// CmdBuffer is the backend recorder's job.
type RecordContext struct {
	CmdBuffer any
	Node      graph.NodeId
	Decl      *signature.NodeDeclInfo
	Bindings  []builder.ParamBinding
	Queue     signature.QueueCap
	Batch     int
}

// NodeCallback records one command node.
type NodeCallback func(*RecordContext) error

// TransitionCallback records one synthesized transition (a
// barrier), given the CmdBuffer a RecordInfo call supplied and
// the TransitionInfo the access analyzer produced.
type TransitionCallback func(cmdBuffer any, t analyzer.TransitionInfo) error

// RegisterCallback binds cb to every node added against the
// node kind named declName. A node kind with no registered
// callback is silently skipped during RecordCommands unless
// CreateInfo.Flags had DisallowUnboundNodes set, in which case
// it is an UnrecognizedCommand error.
func (rg *RenderGraph) RegisterCallback(declName string, cb NodeCallback) {
	rg.callbacks[declName] = cb
}

// RegisterTransitionCallback sets the callback invoked for
// every synthesized transition node RecordCommands iterates
// over. A nil hook (the default) means transitions are not
// recorded by this call at all, e.g. because the caller
// records barriers through some other path.
func (rg *RenderGraph) RegisterTransitionCallback(cb TransitionCallback) {
	rg.transitionHook = cb
}

// RecordInfo selects a contiguous range of the most recently
// published command stream to record, and the command-buffer
// handle to record into.
type RecordInfo struct {
	Begin     int
	NumCmds   int
	CmdBuffer any
}

// RecordCommands iterates [Begin, Begin+NumCmds) of the
// schedule from the most recent successful Update, invoking
// the registered NodeCallback (or TransitionCallback) for each
// node. Multiple RecordCommands calls over disjoint ranges of
// the same Update's schedule may run concurrently, each with
// its own CmdBuffer, for multi-threaded command recording.
func (rg *RenderGraph) RecordCommands(info RecordInfo) error {
	if rg.schedule == nil {
		return rgerr.New(pkgName, rgerr.InvalidOperation, "RecordCommands: no successful Update yet")
	}
	order := rg.schedule.Order
	if info.Begin < 0 || info.NumCmds < 0 || info.Begin+info.NumCmds > len(order) {
		return rgerr.New(pkgName, rgerr.IndexOutOfBounds, "RecordCommands: range out of bounds")
	}

	transByNode := make(map[graph.NodeId]int, len(rg.analysis.Transitions))
	for i, t := range rg.analysis.Transitions {
		transByNode[t.Node] = i
	}

	for _, n := range order[info.Begin : info.Begin+info.NumCmds] {
		if idx, ok := transByNode[n]; ok {
			if rg.transitionHook != nil {
				if err := rg.transitionHook(info.CmdBuffer, rg.analysis.Transitions[idx]); err != nil {
					return err
				}
			}
			continue
		}

		bnd := rg.b.Binding(n)
		if bnd == nil {
			continue // marker or subgraph/subroutine boundary: nothing to record
		}
		cb, ok := rg.callbacks[bnd.Decl.Name]
		if !ok {
			if rg.flags&DisallowUnboundNodes != 0 {
				return rgerr.New(pkgName, rgerr.UnrecognizedCommand, "RecordCommands: no callback for node kind "+bnd.Decl.Name)
			}
			continue
		}
		ctx := &RecordContext{
			CmdBuffer: info.CmdBuffer,
			Node:      n,
			Decl:      bnd.Decl,
			Bindings:  bnd.Bindings,
			Queue:     rg.schedule.Queue[n],
			Batch:     rg.schedule.Batch[n],
		}
		if err := cb(ctx); err != nil {
			return err
		}
	}
	return nil
}
