// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package program implements per-invocation program identity:
// the persistent index generator that assigns stable ids to
// nodes and resources declared inside control flow (so the
// same logical node/resource gets the same id across frames,
// letting the memory planner carry placements forward), and
// the program instance that owns a generator together with
// the resolved callback bindings for one subprogram
// invocation.
package program

import "github.com/gviegas/rendergraph/rgerr"

const pkgName = "program"

// Kind distinguishes the two things a block declares a count
// of: node calls and resource declarations.
type Kind int

const (
	KindNode Kind = iota
	KindResource
	NumKinds
)

// BlockInfo is a block's static shape, built once (on the
// first frame that reaches it) and checked for consistency on
// every subsequent frame.
type BlockInfo struct {
	Parent      int // block id of the lexically enclosing block, -1 for a root
	LocalIndex  int // this block's child-index within Parent
	NumChildren int
	Counts      [NumKinds]int
}

// BlockInstance is one dynamic occurrence of a block: the
// per-kind stable-id base offsets assigned to it, and a link
// to the instance representing its next loop iteration (if
// LoopIteration has been called on it in some frame).
type BlockInstance struct {
	BlockID       int
	Offsets       [NumKinds]int
	NextIteration int // -1 until a LoopIteration allocates one
}

type blockKey struct{ parent, local int }
type instKey struct{ parentInst, blockID int }

// Generator assigns stable ids across frames to nodes and
// resources declared by a program body that issues block
// markers (EnterFunction/EnterLoop/LoopIteration/ExitLoop) as
// it runs. Blocks and instances, once created, live for the
// Generator's lifetime (i.e. for the owning program
// instance's lifetime — see Instance); only the current
// lexical-path stacks are transient per invocation.
type Generator struct {
	blocks   []BlockInfo
	blockKey map[blockKey]int

	instances []BlockInstance
	instKey   map[instKey]int

	totals [NumKinds]int

	blockStack    []int
	instanceStack []int
}

// NewGenerator creates an empty Generator.
func NewGenerator() *Generator {
	return &Generator{
		blockKey: make(map[blockKey]int),
		instKey:  make(map[instKey]int),
	}
}

// currentInstance returns the instance id at the top of the
// stack, or -1 if the stack is empty (i.e. we are at the
// program root).
func (g *Generator) currentInstance() int {
	if len(g.instanceStack) == 0 {
		return -1
	}
	return g.instanceStack[len(g.instanceStack)-1]
}

// declareBlock looks up or creates the static BlockInfo for
// (parent, localIndex). On a repeat declaration it verifies
// that numChildren and counts are unchanged, returning
// InvalidProgram otherwise: a lexical block's shape must stay
// fixed across every frame and every dynamic occurrence.
func (g *Generator) declareBlock(parent, localIndex, numChildren int, counts [NumKinds]int) (int, error) {
	key := blockKey{parent, localIndex}
	if id, ok := g.blockKey[key]; ok {
		info := g.blocks[id]
		if info.NumChildren != numChildren || info.Counts != counts {
			return 0, rgerr.New(pkgName, rgerr.InvalidProgram,
				"block shape changed across frames (mismatched child count or resource counts)")
		}
		return id, nil
	}
	id := len(g.blocks)
	g.blocks = append(g.blocks, BlockInfo{
		Parent: parent, LocalIndex: localIndex, NumChildren: numChildren, Counts: counts,
	})
	g.blockKey[key] = id
	return id, nil
}

// allocInstance creates a fresh BlockInstance for blockID,
// assigning it the Generator's current per-kind running
// totals as base offsets and then advancing those totals by
// the block's declared counts.
func (g *Generator) allocInstance(blockID int) int {
	info := g.blocks[blockID]
	var offs [NumKinds]int
	for k := range offs {
		offs[k] = g.totals[k]
		g.totals[k] += info.Counts[k]
	}
	id := len(g.instances)
	g.instances = append(g.instances, BlockInstance{BlockID: blockID, Offsets: offs, NextIteration: -1})
	return id
}

// enter is the shared implementation of EnterFunction and
// EnterLoop: it declares/validates the block, then finds or
// creates the first BlockInstance of that block under the
// current parent instance, caching the mapping so that a
// later frame re-entering the same lexical path (the same
// parent instance, the same static block) lands on the same
// instance and therefore the same stable ids.
func (g *Generator) enter(parent, localIndex, numChildren int, counts [NumKinds]int) (instanceID int, err error) {
	blockID, err := g.declareBlock(parent, localIndex, numChildren, counts)
	if err != nil {
		return 0, err
	}
	parentInst := g.currentInstance()
	key := instKey{parentInst, blockID}
	if id, ok := g.instKey[key]; ok {
		instanceID = id
	} else {
		instanceID = g.allocInstance(blockID)
		g.instKey[key] = instanceID
	}
	g.blockStack = append(g.blockStack, blockID)
	g.instanceStack = append(g.instanceStack, instanceID)
	return instanceID, nil
}

// EnterFunction enters the root block of a subprogram
// invocation (or, on a frame after the first, re-enters and
// validates it).
func (g *Generator) EnterFunction(counts [NumKinds]int) (instanceID int, err error) {
	return g.enter(-1, 0, 0, counts)
}

// EnterLoop declares (or validates) and enters a child block
// at localIndex within the lexically current block, with the
// given per-kind resource counts and number of nested
// (grand-child) blocks.
func (g *Generator) EnterLoop(localIndex, numChildren int, counts [NumKinds]int) (instanceID int, err error) {
	if len(g.blockStack) == 0 {
		return 0, rgerr.New(pkgName, rgerr.InvalidProgram, "EnterLoop: no enclosing block")
	}
	parent := g.blockStack[len(g.blockStack)-1]
	return g.enter(parent, localIndex, numChildren, counts)
}

// LoopIteration advances the current (innermost) block
// instance to its next iteration: it follows an existing
// next-iteration link if one was recorded on a previous frame
// for this loop, or allocates a fresh instance range and
// records the link otherwise.
func (g *Generator) LoopIteration() (instanceID int, err error) {
	if len(g.instanceStack) == 0 {
		return 0, rgerr.New(pkgName, rgerr.InvalidProgram, "LoopIteration: no current loop")
	}
	top := len(g.instanceStack) - 1
	cur := g.instanceStack[top]
	if next := g.instances[cur].NextIteration; next >= 0 {
		g.instanceStack[top] = next
		return next, nil
	}
	blockID := g.instances[cur].BlockID
	next := g.allocInstance(blockID)
	g.instances[cur].NextIteration = next
	g.instanceStack[top] = next
	return next, nil
}

// ExitLoop closes the current block (a loop entered via
// EnterLoop), returning to its enclosing lexical context.
func (g *Generator) ExitLoop() { g.exit() }

// ExitFunction closes the root block entered via
// EnterFunction.
func (g *Generator) ExitFunction() { g.exit() }

func (g *Generator) exit() {
	g.blockStack = g.blockStack[:len(g.blockStack)-1]
	g.instanceStack = g.instanceStack[:len(g.instanceStack)-1]
}

// Generate returns the stable id for the localIndex-th
// occurrence of kind declared directly within the current
// block.
func (g *Generator) Generate(kind Kind, localIndex int) int {
	cur := g.currentInstance()
	return g.instances[cur].Offsets[kind] + localIndex
}

// Depth reports the current lexical nesting depth (0 at the
// program root, before any EnterFunction).
func (g *Generator) Depth() int { return len(g.blockStack) }
