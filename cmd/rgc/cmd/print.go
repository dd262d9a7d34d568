// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package cmd

import (
	"fmt"

	"github.com/gviegas/rendergraph"
)

// printDiagnostics renders a RenderGraph's most recent
// GetDiagnosticInfo snapshot as a pair of plain-text tables.
func printDiagnostics(rg *rendergraph.RenderGraph) {
	var info rendergraph.DiagnosticInfo
	rg.GetDiagnosticInfo(&info)

	fmt.Printf("\nframe %d (gpu completed %d), %d batches, %d heaps\n",
		info.FrameIndex, info.GPUCompletedFrameIndex, info.NumBatches, len(info.Heaps))
	for i, h := range info.Heaps {
		fmt.Printf("  heap %d: type=%d size=%d used=%d\n", i, h.MemoryType, h.Size, h.UsedSize)
	}

	fmt.Println("\nresources:")
	for _, r := range info.Resources {
		fmt.Printf("  %-16s lifetime=[%d,%d] placed=%v heap=%d offset=%d size=%d aliased=%v\n",
			r.Decl.Name, r.FirstUse, r.LastUse, r.Placed, r.Placement.Heap, r.Placement.Offset, r.Placement.Size, r.Placement.IsAliased)
	}

	fmt.Println("\ncommands:")
	for _, c := range info.Cmds {
		if c.Transition != nil {
			fmt.Printf("  [%d] transition resource=%d queue=%v batch=%d\n", c.Index, c.Transition.Resource, c.Queue, c.Batch)
			continue
		}
		if c.DeclName == "" {
			continue // marker: subgraph/subroutine boundary
		}
		fmt.Printf("  [%d] %-20s queue=%v batch=%d\n", c.Index, c.DeclName, c.Queue, c.Batch)
	}
}
